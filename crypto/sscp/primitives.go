package sscp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/subtle"
	"fmt"
	"runtime"

	"golang.org/x/crypto/sha3"
)

// Digest256 returns the legacy Keccak-256 digest of the concatenated parts.
func Digest256(parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	return h.Sum(nil)
}

// Digest128 returns the 16-byte digest used to turn the transport handshake token into IV material.
func Digest128(data []byte) []byte {
	sum := md5.Sum(data)
	return sum[:]
}

// Equal reports whether a and b hold the same bytes. The scan does not stop at the first mismatch.
func Equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// NewAESGCM creates an AES-256-GCM AEAD with the 16-byte nonce the wire format uses.
func NewAESGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKey, len(key))
	}
	b, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(b, IVSize)
}

// Seal encrypts plaintext; the 16-byte tag is appended to the ciphertext.
func Seal(key, iv, plaintext []byte) ([]byte, error) {
	aead, err := NewAESGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv %d", ErrInvalidKey, len(iv))
	}
	return aead.Seal(nil, iv, plaintext, nil), nil
}

// Open authenticates and decrypts ciphertext. It never returns partial plaintext.
func Open(key, iv, ciphertext []byte) ([]byte, error) {
	aead, err := NewAESGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv %d", ErrInvalidKey, len(iv))
	}
	plain, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}

// Wipe zeroes b.
//
//go:noinline
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(&b)
}
