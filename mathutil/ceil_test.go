package mathutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xeptore/spotwrap/mathutil"
)

func TestCeilInts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b, expected int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{65, 20, 4},
		{135, 50, 3},
		{135, 100, 2},
		{-7, 2, -3},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, mathutil.CeilInts(c.a, c.b), "ceil(%d/%d)", c.a, c.b)
	}
}
