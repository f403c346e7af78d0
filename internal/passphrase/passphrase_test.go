package passphrase

import (
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUsesDistinctVocabularyWords(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		parts := strings.Split(Generate(r), "-")
		require.Len(t, parts, WordCount)
		for _, p := range parts {
			assert.True(t, slices.Contains(Words, p), "unexpected word %q", p)
		}
		assert.NotEqual(t, parts[0], parts[1])
		assert.NotEqual(t, parts[0], parts[2])
		assert.NotEqual(t, parts[1], parts[2])
	}
}

func TestGenerateIsSeedable(t *testing.T) {
	a := Generate(rand.New(rand.NewPCG(7, 7)))
	b := Generate(rand.New(rand.NewPCG(7, 7)))
	assert.Equal(t, a, b)
}

func TestGenerateWithGlobalSource(t *testing.T) {
	assert.Len(t, strings.Split(Generate(nil), "-"), WordCount)
}

func TestVocabularyHasNoDuplicates(t *testing.T) {
	seen := map[string]bool{}
	for _, w := range Words {
		assert.False(t, seen[w], "duplicate word %q", w)
		seen[w] = true
	}
	assert.Len(t, Words, 36)
}
