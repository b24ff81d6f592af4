package secretbox

import (
	"errors"
	"strings"
	"testing"
)

func TestSealOpen(t *testing.T) {
	b, err := New("correct horse battery staple")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sealed, err := b.Seal("refresh-token-value")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if strings.Contains(sealed, "refresh-token-value") {
		t.Fatal("sealed value leaks the plaintext")
	}

	again, _ := b.Seal("refresh-token-value")
	if again == sealed {
		t.Fatal("nonce reuse: two seals produced identical output")
	}

	got, err := b.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "refresh-token-value" {
		t.Fatalf("got %q", got)
	}
}

func TestOpenRejectsForeignKey(t *testing.T) {
	a, _ := New("key-a")
	b, _ := New("key-b")

	sealed, err := a.Seal("x")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := b.Open(sealed); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	b, _ := New("key")
	sealed, _ := b.Seal("value")

	last := sealed[len(sealed)-1]
	flipped := byte('A')
	if last == 'A' {
		flipped = 'B'
	}
	tampered := sealed[:len(sealed)-1] + string(flipped)

	if _, err := b.Open(tampered); err == nil {
		t.Fatal("tampered box opened")
	}
}

func TestOpenMalformed(t *testing.T) {
	b, _ := New("key")
	for _, in := range []string{"", "!!!", "c2hvcnQ"} {
		if _, err := b.Open(in); !errors.Is(err, ErrMalformed) {
			t.Errorf("%q: expected ErrMalformed, got %v", in, err)
		}
	}
}

func TestNewRejectsEmptyKey(t *testing.T) {
	if _, err := New("  "); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
}
