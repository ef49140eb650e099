package secure

import "testing"

func TestSealOpenRoundTrip(t *testing.T) {
	key := DeriveKey("cluster-secret-token")
	codec, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	plaintext := []byte("cluster traffic")
	sealed, err := codec.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	opened, err := codec.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(opened) != string(plaintext) {
		t.Fatalf("got %q, want %q", opened, plaintext)
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	key := DeriveKey("cluster-secret-token")
	codec, _ := New(key)

	sealed, _ := codec.Seal([]byte("cluster traffic"))
	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xFF

	if _, err := codec.Open(tampered); err != ErrTagMismatch {
		t.Fatalf("expected ErrTagMismatch, got %v", err)
	}
}

func TestOpenWithDifferentKeyFails(t *testing.T) {
	codec1, _ := New(DeriveKey("token-a"))
	codec2, _ := New(DeriveKey("token-b"))

	sealed, _ := codec1.Seal([]byte("cluster traffic"))
	if _, err := codec2.Open(sealed); err != ErrTagMismatch {
		t.Fatalf("expected ErrTagMismatch across keys, got %v", err)
	}
}
