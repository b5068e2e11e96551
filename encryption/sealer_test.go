package encryption

import (
	"errors"
	"testing"
)

const secret = "0123456789abcdef-test-secret"

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer(secret)
	if err != nil {
		t.Fatal(err)
	}
	box, err := s.Seal([]byte("refresh-token"), []byte("user-1"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Open(box, []byte("user-1"))
	if err != nil || string(got) != "refresh-token" {
		t.Errorf("expected refresh-token, got %q (%v)", got, err)
	}

	again, _ := s.Seal([]byte("refresh-token"), []byte("user-1"))
	if again == box {
		t.Error("expected a fresh nonce per seal")
	}
}

func TestSealer_Rejects(t *testing.T) {
	s, _ := NewSealer(secret)
	other, _ := NewSealer(secret + "-other")
	box, _ := s.Seal([]byte("value"), []byte("user-1"))

	tampered := []byte(box)
	tampered[len(tampered)/2] ^= 1
	cases := map[string]func() ([]byte, error){
		"wrong associated data": func() ([]byte, error) { return s.Open(box, []byte("user-2")) },
		"wrong key":             func() ([]byte, error) { return other.Open(box, []byte("user-1")) },
		"tampered":              func() ([]byte, error) { return s.Open(string(tampered), []byte("user-1")) },
		"truncated":             func() ([]byte, error) { return s.Open(box[:10], []byte("user-1")) },
		"not base64":            func() ([]byte, error) { return s.Open("!!", []byte("user-1")) },
	}
	for name, open := range cases {
		if _, err := open(); !errors.Is(err, ErrOpen) {
			t.Errorf("%s: expected ErrOpen, got %v", name, err)
		}
	}
}

func TestNewSealer_ShortSecret(t *testing.T) {
	if _, err := NewSealer("short"); err == nil {
		t.Error("expected a short secret to be refused")
	}
}
