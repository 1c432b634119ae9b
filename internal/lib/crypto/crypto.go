// Package crypto seals phone numbers before they reach storage. The scheme is
// nacl/secretbox with a random 24-byte nonce prepended to the ciphertext; the
// stored blob is opaque and reversible only with the configured key.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var ErrDecrypt = errors.New("crypto: decryption failed")

type Sealer struct {
	key [32]byte
}

// New expects a base64-encoded 32-byte key. A malformed key is a
// configuration error and must abort startup.
func New(base64Key string) (*Sealer, error) {
	const op = "lib.crypto.New"

	raw, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("%s: key is not valid base64: %w", op, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("%s: key must be 32 bytes, got %d", op, len(raw))
	}

	s := &Sealer{}
	copy(s.key[:], raw)
	return s, nil
}

func (s *Sealer) Encrypt(plaintext string) ([]byte, error) {
	const op = "lib.crypto.Encrypt"

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key), nil
}

func (s *Sealer) Decrypt(blob []byte) (string, error) {
	const op = "lib.crypto.Decrypt"

	if len(blob) < nonceSize {
		return "", fmt.Errorf("%s: %w", op, ErrDecrypt)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], blob[:nonceSize])

	plaintext, ok := secretbox.Open(nil, blob[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", fmt.Errorf("%s: %w", op, ErrDecrypt)
	}

	return string(plaintext), nil
}
