package seal

import (
	"bytes"
	"errors"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestSealOpen(t *testing.T) {
	b, err := New(testSecret)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sealed, err := b.SealString("access-token")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if bytes.Contains(sealed, []byte("access-token")) {
		t.Error("sealed value contains plaintext")
	}

	got, err := b.OpenString(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got != "access-token" {
		t.Errorf("Open() = %q, want access-token", got)
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	b, _ := New(testSecret)
	a, _ := b.SealString("same")
	c, _ := b.SealString("same")
	if bytes.Equal(a, c) {
		t.Error("two seals of the same value are identical")
	}
}

func TestOpenWrongKey(t *testing.T) {
	a, _ := New(testSecret)
	b, _ := New("another-secret-another-secret-xx")

	sealed, _ := a.SealString("token")
	if _, err := b.Open(sealed); !errors.Is(err, ErrMalformed) {
		t.Errorf("Open() with wrong key error = %v, want ErrMalformed", err)
	}
}

func TestOpenMalformed(t *testing.T) {
	b, _ := New(testSecret)
	tests := [][]byte{nil, []byte("short"), make([]byte, nonceSize)}
	for _, in := range tests {
		if _, err := b.Open(in); !errors.Is(err, ErrMalformed) {
			t.Errorf("Open(%d bytes) error = %v, want ErrMalformed", len(in), err)
		}
	}
}

func TestNewEmptySecret(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty secret")
	}
}
