package ident

import "testing"

func TestNewNameCaseInsensitiveByDefault(t *testing.T) {
	n := NewNormalizer(false)

	a := n.NewName("Label1")
	b := n.NewName("LABEL1")

	if a.Key() != b.Key() {
		t.Fatalf("expected case-insensitive keys to match, got %q vs %q", a.Key(), b.Key())
	}
	if a.String() != "Label1" {
		t.Fatalf("expected original spelling preserved, got %q", a.String())
	}
}

func TestNewNameCaseSensitive(t *testing.T) {
	n := NewNormalizer(true)

	a := n.NewName("Label1")
	b := n.NewName("LABEL1")

	if a.Key() == b.Key() {
		t.Fatalf("expected case-sensitive keys to differ, got both %q", a.Key())
	}
}

func TestNormalizerPolicyFixedAtConstruction(t *testing.T) {
	n := NewNormalizer(false)
	a := n.NewName("Foo")

	// Flipping the underlying field directly (as if the flag changed
	// process-wide) must not affect a Name already constructed.
	n.caseSensitive = true
	b := n.NewName("Foo")

	if a.Key() != "FOO" {
		t.Fatalf("expected %q normalized to FOO, got %q", a.String(), a.Key())
	}
	if b.Key() != "Foo" {
		t.Fatalf("expected name constructed after flag flip to use new policy, got %q", b.Key())
	}
}
