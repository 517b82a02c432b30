// Package result holds the outcome of a single attempt at something that
// can fail in more than one distinguishable way.
package result

type Kind int

const (
	KindOk Kind = iota
	KindAuthExpired
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindAuthExpired:
		return "auth_expired"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Of[T any] struct {
	Kind Kind
	Ok   *T
	Err  error
}

func Ok[T any](v *T) Of[T] {
	return Of[T]{Kind: KindOk, Ok: v, Err: nil}
}

func Err[T any](err error) Of[T] {
	return Of[T]{Kind: KindFailed, Ok: nil, Err: err}
}

// AuthExpired marks an attempt rejected because of its credentials. err
// carries the upstream details for when the condition becomes fatal.
func AuthExpired[T any](err error) Of[T] {
	return Of[T]{Kind: KindAuthExpired, Ok: nil, Err: err}
}
