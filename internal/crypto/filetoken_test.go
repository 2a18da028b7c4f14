package crypto

import (
	"errors"
	"testing"
	"time"
)

func TestFileTokens_RoundTrip(t *testing.T) {
	ft, err := NewFileTokens("local-signing-passphrase")
	if err != nil {
		t.Fatalf("NewFileTokens: %v", err)
	}
	token, err := ft.Seal("images/c-1/abc.png", time.Minute)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	path, err := ft.Open(token)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if path != "images/c-1/abc.png" {
		t.Errorf("path = %q", path)
	}
}

func TestFileTokens_Expired(t *testing.T) {
	ft, _ := NewFileTokens("local-signing-passphrase")
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ft.now = func() time.Time { return base }
	token, err := ft.Seal("exports/c-1/j-1.json", time.Minute)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	ft.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := ft.Open(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Open() error = %v, want ErrTokenExpired", err)
	}
}

func TestFileTokens_OtherKeyRejected(t *testing.T) {
	a, _ := NewFileTokens("key-a")
	b, _ := NewFileTokens("key-b")
	token, _ := a.Seal("images/x.png", time.Minute)
	if _, err := b.Open(token); err == nil {
		t.Error("token sealed with another key was accepted")
	}
	if _, err := a.Open("not-a-token"); err == nil {
		t.Error("garbage token was accepted")
	}
}

func TestFileTokens_Malformed(t *testing.T) {
	ft, _ := NewFileTokens("local-signing-passphrase")
	token, _ := ft.Seal("images/a.png", time.Minute)

	tampered := []byte(token)
	tampered[len(tampered)/2] ^= 1
	for _, tok := range []string{"%%%", "AAAA", "", string(tampered)} {
		if _, err := ft.Open(tok); !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("Open(%q) error = %v, want ErrTokenMalformed", tok, err)
		}
	}
}

func TestNewFileTokens_EmptyKey(t *testing.T) {
	if _, err := NewFileTokens(""); err == nil {
		t.Error("expected error for empty signing key")
	}
}
