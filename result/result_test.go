package result_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xeptore/spotwrap/result"
)

func TestOf(t *testing.T) {
	t.Parallel()

	v := 7
	ok := result.Ok(&v)
	assert.Equal(t, result.KindOk, ok.Kind)
	assert.Same(t, &v, ok.Ok)
	assert.NoError(t, ok.Err)

	errBoom := errors.New("boom")
	failed := result.Err[int](errBoom)
	assert.Equal(t, result.KindFailed, failed.Kind)
	assert.Nil(t, failed.Ok)
	assert.ErrorIs(t, failed.Err, errBoom)

	expired := result.AuthExpired[int](errBoom)
	assert.Equal(t, result.KindAuthExpired, expired.Kind)
	assert.Equal(t, "auth_expired", expired.Kind.String())
}
