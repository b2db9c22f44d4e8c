package crypto

import (
	"bytes"
	"testing"
)

func TestEncryptDecrypt(t *testing.T) {
	key := bytes.Repeat([]byte{0x1}, 32)
	plaintext := []byte("sensitive data")

	encoded, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("encrypt error: %v", err)
	}

	decrypted, err := Decrypt(encoded, key)
	if err != nil {
		t.Fatalf("decrypt error: %v", err)
	}

	if !bytes.Equal(plaintext, decrypted) {
		t.Fatalf("expected decrypted plaintext to match original, got %s", decrypted)
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	encoded, err := Encrypt([]byte("payload"), bytes.Repeat([]byte{0x1}, 16))
	if err != nil {
		t.Fatalf("encrypt error: %v", err)
	}

	if _, err := Decrypt(encoded, bytes.Repeat([]byte{0x2}, 16)); err == nil {
		t.Fatal("expected decrypt with the wrong key to fail")
	}
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	if len(token) == 0 {
		t.Fatal("expected token to be non-empty")
	}
}

func TestDerivePasswordDeterministic(t *testing.T) {
	first, err := DerivePassword("Instagram", "app-secret", 32)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	second, err := DerivePassword("Instagram", "app-secret", 32)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if first != second {
		t.Fatalf("expected deterministic output, got %q and %q", first, second)
	}
	if len(first) != 32 {
		t.Fatalf("expected 32 characters, got %d", len(first))
	}

	other, err := DerivePassword("YouTube", "app-secret", 32)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if other == first {
		t.Fatal("expected different tags to derive different passwords")
	}
}

func TestDerivePasswordValidatesInput(t *testing.T) {
	if _, err := DerivePassword("", "secret", 32); err == nil {
		t.Fatal("expected error for empty tag")
	}
	if _, err := DerivePassword("tag", "", 32); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
