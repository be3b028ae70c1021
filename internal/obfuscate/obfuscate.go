// Package obfuscate encrypts published dataset files so casual inspection
// of the distributed app bundle does not expose the curated data. This is
// obfuscation, not secrecy: the key material ships with the reader.
package obfuscate

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
)

// Components are the key derivation inputs. The defaults are compiled in;
// each can be overridden through the environment so readers and writers
// can be rotated together.
type Components struct {
	C1, C2, C3, C4 string
	Salt           string
}

// DefaultComponents returns the compiled-in components with DTCKIT_OBF_*
// environment overrides applied.
func DefaultComponents() Components {
	c := Components{
		C1:   "motorbase",
		C2:   "dataset",
		C3:   "dtc",
		C4:   "bundle",
		Salt: "mb2314",
	}
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.C1, "DTCKIT_OBF_C1")
	override(&c.C2, "DTCKIT_OBF_C2")
	override(&c.C3, "DTCKIT_OBF_C3")
	override(&c.C4, "DTCKIT_OBF_C4")
	override(&c.Salt, "DTCKIT_OBF_SALT")
	return c
}

// key derives the AES-256 key from the combined component string.
func (c Components) key() []byte {
	combined := fmt.Sprintf("%s::%s||%s<<%s>>%s", c.C3, c.C1, c.Salt, c.C4, c.C2)
	sum := sha256.Sum256([]byte(combined))
	return sum[:]
}

// iv derives the 16-byte CBC IV.
func (c Components) iv() []byte {
	seed := fmt.Sprintf("%s@@%s!!%s", c.C2, c.Salt, c.C1)
	sum := md5.Sum([]byte(seed))
	return sum[:]
}

// Encrypt returns the base64 AES-256-CBC ciphertext of plain.
func Encrypt(plain []byte, c Components) (string, error) {
	block, err := aes.NewCipher(c.key())
	if err != nil {
		return "", fmt.Errorf("obfuscate: %w", err)
	}
	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.iv()).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func Decrypt(encoded string, c Components) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("obfuscate: decode: %w", err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("obfuscate: ciphertext length %d not block aligned", len(raw))
	}
	block, err := aes.NewCipher(c.key())
	if err != nil {
		return nil, fmt.Errorf("obfuscate: %w", err)
	}
	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, c.iv()).CryptBlocks(out, raw)
	return pkcs7Unpad(out, aes.BlockSize)
}

// EncryptFile writes the encrypted form of src to dst, verifying the
// round trip before reporting success.
func EncryptFile(src, dst string, c Components) error {
	plain, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("obfuscate: read %s: %w", src, err)
	}
	encoded, err := Encrypt(plain, c)
	if err != nil {
		return err
	}
	back, err := Decrypt(encoded, c)
	if err != nil {
		return fmt.Errorf("obfuscate: verification failed: %w", err)
	}
	if !bytes.Equal(back, plain) {
		return fmt.Errorf("obfuscate: verification mismatch for %s", src)
	}
	if err := os.WriteFile(dst, []byte(encoded), 0o644); err != nil {
		return fmt.Errorf("obfuscate: write %s: %w", dst, err)
	}
	return nil
}

// DecryptFile reads an encrypted file and returns the plaintext.
func DecryptFile(path string, c Components) ([]byte, error) {
	encoded, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("obfuscate: read %s: %w", path, err)
	}
	return Decrypt(string(encoded), c)
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("obfuscate: empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("obfuscate: bad padding")
	}
	for _, pad := range b[len(b)-n:] {
		if int(pad) != n {
			return nil, fmt.Errorf("obfuscate: bad padding")
		}
	}
	return b[:len(b)-n], nil
}
