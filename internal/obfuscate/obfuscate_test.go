package obfuscate

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	c := DefaultComponents()
	plain := []byte(`{"version":1,"dtc_codes":[{"code":"P0420"}]}`)
	encoded, err := Encrypt(plain, c)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains([]byte(encoded), []byte("P0420")) {
		t.Error("ciphertext leaks plaintext")
	}
	back, err := Decrypt(encoded, c)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(back, plain) {
		t.Errorf("round trip mismatch: %q", back)
	}
}

func TestDecryptWrongComponents(t *testing.T) {
	encoded, err := Encrypt([]byte("payload"), DefaultComponents())
	if err != nil {
		t.Fatal(err)
	}
	wrong := DefaultComponents()
	wrong.Salt = "different"
	if out, err := Decrypt(encoded, wrong); err == nil && bytes.Equal(out, []byte("payload")) {
		t.Error("wrong components decrypted cleanly")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	c := DefaultComponents()
	if _, err := Decrypt("not base64!!", c); err == nil {
		t.Error("bad base64 accepted")
	}
	if _, err := Decrypt("YWJj", c); err == nil {
		t.Error("unaligned ciphertext accepted")
	}
}

func TestEncryptFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "app_data.json")
	dst := filepath.Join(dir, "app_data.enc")
	plain := []byte(`{"version":3}`)
	if err := os.WriteFile(src, plain, 0o644); err != nil {
		t.Fatal(err)
	}
	c := DefaultComponents()
	if err := EncryptFile(src, dst, c); err != nil {
		t.Fatalf("EncryptFile: %v", err)
	}
	back, err := DecryptFile(dst, c)
	if err != nil {
		t.Fatalf("DecryptFile: %v", err)
	}
	if !bytes.Equal(back, plain) {
		t.Errorf("file round trip mismatch: %q", back)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("DTCKIT_OBF_SALT", "rotated")
	c := DefaultComponents()
	if c.Salt != "rotated" {
		t.Errorf("Salt = %q", c.Salt)
	}
}
