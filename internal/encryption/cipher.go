// Package encryption implements instance-key encryption of message bodies
// at rest. The key is derived from a single operator secret, so every
// process sharing the secret can read every message. This is not end-to-end
// encryption.
package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/vedran77/pulse/pkg/apperrors"
)

const (
	KeySize = 32
	IVSize  = aes.BlockSize
)

var (
	// ErrMissingSecret is fatal: the service must not start without it.
	ErrMissingSecret = apperrors.Configuration("MESSAGE_ENCRYPTION_SECRET is not configured")
	// ErrDecryption marks a stored blob that cannot be turned back into text.
	ErrDecryption = errors.New("unable to decrypt message")
)

// DeriveKey hashes the operator secret into an AES-256 key. The same secret
// always yields the same key.
func DeriveKey(secret []byte) [KeySize]byte {
	return sha256.Sum256(secret)
}

// Cipher encrypts and decrypts message bodies with a key fixed at
// construction. It is safe for concurrent use.
type Cipher struct {
	block cipher.Block
	rand  io.Reader
}

func New(secret string) (*Cipher, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	key := DeriveKey([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("creating block cipher: %w", err)
	}
	return &Cipher{block: block, rand: rand.Reader}, nil
}

// Encrypt returns base64(IV || ciphertext). A fresh IV is drawn per call,
// so equal plaintexts produce different blobs.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	padded := pad([]byte(plaintext), aes.BlockSize)

	out := make([]byte, IVSize+len(padded))
	iv := out[:IVSize]
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("generating iv: %w", err)
	}
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out[IVSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *Cipher) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: bad encoding: %v", ErrDecryption, err)
	}
	if len(raw) < IVSize+aes.BlockSize || (len(raw)-IVSize)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: bad length %d", ErrDecryption, len(raw))
	}

	iv, body := raw[:IVSize], raw[IVSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plain, body)

	plain, err = unpad(plain, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: plaintext is not utf-8", ErrDecryption)
	}
	return string(plain), nil
}

// PKCS#7
func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, errors.New("bad block alignment")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, errors.New("bad padding")
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, errors.New("bad padding")
		}
	}
	return b[:len(b)-n], nil
}
