package id

import (
	"regexp"
	"testing"
)

var runIDPattern = regexp.MustCompile(`^run-\d+-[0-9a-f]{8}$`)

func TestGenerate(t *testing.T) {
	id := Generate()

	if !runIDPattern.MatchString(id) {
		t.Errorf("expected ID to match %s, got %s", runIDPattern, id)
	}

	id2 := Generate()
	if id == id2 {
		t.Error("expected different IDs for consecutive calls")
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := Generate()
		if seen[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}
