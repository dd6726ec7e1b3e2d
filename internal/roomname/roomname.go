// Package roomname generates memorable room identifiers of the form
// word-word-word-word, e.g. "kitten-waffle-stardust-happy". The four words
// are drawn from four of the five word pools, no pool used twice, so the
// shape stays pronounceable.
package roomname

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

var pools = [][]string{animals, dishes, nature, adjectives, mythical}

// Generate returns a fresh random room identifier.
func Generate() string {
	picked := make([]string, 0, 4)
	used := make(map[int]bool)

	for len(picked) < 4 {
		poolIndex := randomIndex(len(pools))
		if used[poolIndex] {
			continue
		}
		used[poolIndex] = true
		pool := pools[poolIndex]
		picked = append(picked, pool[randomIndex(len(pool))])
	}

	return strings.Join(picked, "-")
}

func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		// crypto/rand failing means the platform's entropy source is
		// broken; nothing sensible to continue with.
		panic(fmt.Sprintf("roomname: random source unavailable: %v", err))
	}
	return int(n.Int64())
}
