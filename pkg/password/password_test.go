package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateLength(t *testing.T) {
	assert.Len(t, Generate(DefaultLength), DefaultLength)
	assert.Len(t, Generate(20), 20)
	// Too-short requests are raised to the minimum that fits every class.
	assert.GreaterOrEqual(t, len(Generate(2)), 4)
}

func TestGenerateContainsEveryClass(t *testing.T) {
	for i := 0; i < 50; i++ {
		p := Generate(DefaultLength)
		assert.True(t, strings.ContainsAny(p, uppercase), p)
		assert.True(t, strings.ContainsAny(p, lowercase), p)
		assert.True(t, strings.ContainsAny(p, digits), p)
		assert.True(t, strings.ContainsAny(p, special), p)
	}
}

func TestGenerateIsNotConstant(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 20; i++ {
		seen[Generate(DefaultLength)] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}
