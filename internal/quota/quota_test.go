package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	precomposed := "Egliseé"      // e-acute as a single precomposed code point
	decomposed := "Eglise" + "é" // e followed by a combining acute accent

	cases := []struct {
		name  string
		a, b  string
		equal bool
	}{
		{"case folding", "Grace Church", "GRACE CHURCH", true},
		{"whitespace collapse", "Grace   Church", "Grace Church", true},
		{"leading/trailing whitespace", "  Grace Church  ", "Grace Church", true},
		{"different names", "Grace Church", "Faith Church", false},
		{"NFC vs NFD composition", precomposed, decomposed, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Normalize(c.a) == Normalize(c.b)
			assert.Equal(t, c.equal, got)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	assert.Equal(t, Normalize("Grace Church"), Normalize(Normalize("Grace Church")))
}

func TestNew(t *testing.T) {
	g := New(2)
	assert.Equal(t, 2, g.MaxPerChurch)
}
