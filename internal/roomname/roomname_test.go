package roomname

import (
	"strings"
	"testing"
)

func TestGenerate_Shape(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := Generate()
		parts := strings.Split(id, "-")
		if len(parts) != 4 {
			t.Fatalf("id %q has %d words, want 4", id, len(parts))
		}
		for _, part := range parts {
			if part == "" {
				t.Fatalf("id %q has an empty word", id)
			}
			if strings.ToLower(part) != part {
				t.Fatalf("id %q is not all lowercase", id)
			}
		}
	}
}

func TestGenerate_VariesAcrossCalls(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[Generate()] = true
	}
	// 50 draws from a space this large collapsing to a handful of values
	// would mean the random source is broken.
	if len(seen) < 40 {
		t.Fatalf("only %d distinct ids in 50 draws", len(seen))
	}
}
