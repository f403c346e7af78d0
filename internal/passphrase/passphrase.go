// Package passphrase generates memorable three-word passwords for new and reset
// accounts.
//
// The vocabulary is small and themed, which keeps passphrases easy to type from
// a Reddit message. Three words from 36 give 36*35*34 = 42840 combinations, so
// these are not cryptographic-strength secrets; users are told to change them.
package passphrase

import (
	"math/rand/v2"
	"strings"
)

const WordCount = 3

var Words = []string{
	"ceiling", "pancakes", "floor", "pizza", "spiral", "tower", "dagger", "robe",
	"sacrifice", "blood", "towerling", "dream", "dungeon", "alter", "cult",
	"koolaid", "library", "dark", "light", "knife", "towel", "wumpus", "potion",
	"lore", "traveler", "arcade", "diamond", "gold", "coin", "ring", "cat",
	"sexy", "portal", "axe", "flush", "scroll",
}

// Generate picks WordCount distinct words and joins them with hyphens. A nil
// r uses the global source.
func Generate(r *rand.Rand) string {
	perm := permutation(r, len(Words))
	picked := make([]string, 0, WordCount)
	for _, idx := range perm[:WordCount] {
		picked = append(picked, Words[idx])
	}
	return strings.Join(picked, "-")
}

func permutation(r *rand.Rand, n int) []int {
	if r == nil {
		return rand.Perm(n)
	}
	return r.Perm(n)
}
