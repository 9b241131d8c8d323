package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	a := New("ICCT")
	assert.Equal(t, "ICCT-001", a.Format(1))
	assert.Equal(t, "ICCT-042", a.Format(42))
	assert.Equal(t, "ICCT-1234", a.Format(1234))
}

func TestParseSuffix(t *testing.T) {
	a := New("ICCT")

	n, ok := a.ParseSuffix("ICCT-007")
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)

	n, ok = a.ParseSuffix("ICCT-1234")
	assert.True(t, ok)
	assert.Equal(t, int64(1234), n)

	_, ok = a.ParseSuffix("OTHER-007")
	assert.False(t, ok)

	_, ok = a.ParseSuffix("ICCT-abc")
	assert.False(t, ok)

	_, ok = a.ParseSuffix("ICCT")
	assert.False(t, ok)
}

func TestFormatParseSuffixRoundTrip(t *testing.T) {
	a := New("ICCT")
	for _, n := range []int64{1, 9, 10, 99, 100, 999, 1000} {
		id := a.Format(n)
		got, ok := a.ParseSuffix(id)
		assert.True(t, ok)
		assert.Equal(t, n, got)
	}
}
