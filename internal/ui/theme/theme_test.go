package theme

import (
	"strings"
	"testing"
)

func TestStatusKeepsWord(t *testing.T) {
	t.Parallel()
	for _, status := range []string{"success", "failure", "not-implemented", "running", "idle"} {
		if got := Status(status); !strings.Contains(got, status) {
			t.Fatalf("status %q rendered as %q", status, got)
		}
	}
}

func TestFlag(t *testing.T) {
	t.Parallel()
	if got := Flag(true, "debug"); !strings.Contains(got, "debug") {
		t.Fatalf("flag on rendered as %q", got)
	}
	if got := Flag(false, "debug"); strings.Contains(got, "debug") {
		t.Fatalf("flag off rendered as %q", got)
	}
}
