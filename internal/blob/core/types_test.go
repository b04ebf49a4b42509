package core

import (
	"errors"
	"testing"
)

func TestValidateKey(t *testing.T) {
	ok := map[string]string{
		"reports/recommendations/a.json": "reports/recommendations/a.json",
		"reports//seasonal/./b.csv":      "reports/seasonal/b.csv",
		"single":                         "single",
	}
	for in, want := range ok {
		got, err := ValidateKey(in)
		if err != nil {
			t.Fatalf("ValidateKey(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ValidateKey(%q) = %q, want %q", in, got, want)
		}
	}
	for _, bad := range []string{"", "  ", "/abs", "../up", "a/../../b", `win\path`} {
		if _, err := ValidateKey(bad); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("ValidateKey(%q) expected ErrInvalidKey, got %v", bad, err)
		}
	}
}

func TestCloneMetadata(t *testing.T) {
	if CloneMetadata(nil) != nil {
		t.Fatalf("expected nil clone of nil map")
	}
	in := map[string]string{"kind": "seasonal"}
	out := CloneMetadata(in)
	out["kind"] = "changed"
	if in["kind"] != "seasonal" {
		t.Fatalf("clone aliases source map")
	}
}
