package main

import (
	"io"
	"testing"

	"github.com/calliope-fm/calliope/internal/shared"
)

func TestRegister(t *testing.T) {
	r := NewRunner(shared.NewLogger(io.Discard))

	commands := r.register()
	want := map[string]bool{"serve": false, "setup": false, "bootstrap-admin": false}
	for _, cmd := range commands {
		if _, ok := want[cmd.Name]; !ok {
			t.Errorf("unexpected command %q", cmd.Name)
			continue
		}
		want[cmd.Name] = true
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("missing command %q", name)
		}
	}
}
