package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// Encrypt seals plaintext with AES-256-GCM under a key derived from the
// shared encryption key. Output is URL-safe base64 of nonce||ciphertext.
func Encrypt(plaintext, key string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt is the inverse of Encrypt.
func Decrypt(encoded, key string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrBadCiphertext
	}
	if len(raw) < gcm.NonceSize() {
		return "", ErrBadCiphertext
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrBadCiphertext
	}
	return string(plain), nil
}

// BearerTriple builds the relayed-mode authorization value: the region,
// access key, and secret key are encrypted independently and joined with
// ":" behind a Bearer prefix.
func BearerTriple(region, accessKey, secretKey, encryptionKey string) (string, error) {
	parts := make([]string, 0, 3)
	for _, v := range []string{region, accessKey, secretKey} {
		enc, err := Encrypt(v, encryptionKey)
		if err != nil {
			return "", err
		}
		parts = append(parts, enc)
	}
	return "Bearer " + strings.Join(parts, ":"), nil
}

// ParseBearerTriple decrypts a relayed-mode authorization value back into
// region, access key, and secret key.
func ParseBearerTriple(header, encryptionKey string) (region, accessKey, secretKey string, err error) {
	value, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", "", "", ErrBadAuthHeader
	}
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return "", "", "", ErrBadAuthHeader
	}
	if region, err = Decrypt(parts[0], encryptionKey); err != nil {
		return "", "", "", err
	}
	if accessKey, err = Decrypt(parts[1], encryptionKey); err != nil {
		return "", "", "", err
	}
	if secretKey, err = Decrypt(parts[2], encryptionKey); err != nil {
		return "", "", "", err
	}
	return region, accessKey, secretKey, nil
}

func newGCM(key string) (cipher.AEAD, error) {
	derived := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(derived[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
