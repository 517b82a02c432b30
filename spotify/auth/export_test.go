package auth

import "context"

// Exchange exposes the shared exchange path to tests.
func (m *Manager) Exchange(ctx context.Context) (string, error) {
	return m.exchange(ctx)
}
