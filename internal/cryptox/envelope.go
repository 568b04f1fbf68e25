// Package cryptox implements the envelope-encryption primitives of the
// escrow service: content key generation, AES-256-GCM file encryption and
// RSA-OAEP (SHA-256) key wrapping, plus the password verifier.
//
// Ciphertext files are laid out as
//
//	[12-byte nonce][ciphertext][16-byte GCM tag]
//
// with no header. Wrapped keys are base64(RSA-OAEP(base64(contentKey))).
package cryptox

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/keyescrow/internal/common"
)

const (
	// NonceSize is the GCM nonce length written at the head of every ciphertext file.
	NonceSize = 12
	// TagSize is the GCM authentication tag length.
	TagSize = 16
)

// Envelope groups the cryptographic operations the orchestrator needs.
// The zero value is not usable; construct with NewEnvelope.
type Envelope struct {
	rand         io.Reader
	maxPlaintext int64
}

// NewEnvelope returns an Envelope backed by crypto/rand.
func NewEnvelope() *Envelope {
	return &Envelope{rand: rand.Reader}
}

// WithMaxPlaintext returns a copy of e that refuses to encrypt files larger
// than n bytes. EncryptFile holds the plaintext and the sealed output in
// memory at once, so n bounds its peak allocation at roughly 2n. n <= 0 means
// no limit.
func (e *Envelope) WithMaxPlaintext(n int64) *Envelope {
	c := *e
	c.maxPlaintext = n
	return &c
}

// GenerateContentKey returns a fresh 256-bit key, base64 encoded.
func (e *Envelope) GenerateContentKey() (string, error) {
	key := make([]byte, common.ContentKeySize)
	defer common.WipeByteArray(key)

	if _, err := io.ReadFull(e.rand, key); err != nil {
		return "", fmt.Errorf("%w: generate content key: %v", common.ErrCrypto, err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// EncryptFile seals the contents of plainPath under key and writes
// nonce||ciphertext||tag to cipherPath. cipherPath must not exist.
// On failure nothing is left at cipherPath.
func (e *Envelope) EncryptFile(ctx context.Context, plainPath, cipherPath, key string) error {
	aead, err := newGCM(key)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrCrypto, err)
	}

	if e.maxPlaintext > 0 {
		info, err := os.Stat(plainPath)
		if err != nil {
			return fmt.Errorf("%w: stat %s: %v", common.ErrCrypto, plainPath, err)
		}
		if info.Size() > e.maxPlaintext {
			return fmt.Errorf("%w: archive is %d bytes, limit is %d", common.ErrInvalidArgument, info.Size(), e.maxPlaintext)
		}
	}

	plaintext, err := os.ReadFile(plainPath)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", common.ErrCrypto, plainPath, err)
	}
	defer common.WipeByteArray(plaintext)

	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := io.ReadFull(e.rand, nonce); err != nil {
		return fmt.Errorf("%w: nonce: %v", common.ErrCrypto, err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrCrypto, err)
	}

	if err := writeExclusive(cipherPath, sealed); err != nil {
		return fmt.Errorf("%w: %v", common.ErrCrypto, err)
	}
	return nil
}

// DecryptFile reverses EncryptFile. Authentication failure fails closed:
// plainPath is only written after the whole file has been verified.
func (e *Envelope) DecryptFile(ctx context.Context, cipherPath, plainPath, key string) error {
	aead, err := newGCM(key)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrCrypto, err)
	}

	blob, err := os.ReadFile(cipherPath)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", common.ErrCrypto, cipherPath, err)
	}
	if len(blob) < NonceSize+TagSize {
		return fmt.Errorf("%w: ciphertext too short", common.ErrCrypto)
	}

	plaintext, err := aead.Open(nil, blob[:NonceSize], blob[NonceSize:], nil)
	if err != nil {
		return fmt.Errorf("%w: authentication failed", common.ErrCrypto)
	}
	defer common.WipeByteArray(plaintext)

	if err := writeExclusive(plainPath, plaintext); err != nil {
		return fmt.Errorf("%w: %v", common.ErrCrypto, err)
	}
	return nil
}

// WrapKey encrypts the transportable (base64) form of key for the holder of
// publicKey using RSA-OAEP with SHA-256 and returns the result base64 encoded.
func (e *Envelope) WrapKey(key, publicKey string) (string, error) {
	pub, err := ParseEncryptionKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrCrypto, err)
	}

	wrapped, err := rsa.EncryptOAEP(sha256.New(), e.rand, pub, []byte(key), nil)
	if err != nil {
		return "", fmt.Errorf("%w: wrap key: %v", common.ErrCrypto, err)
	}
	return base64.StdEncoding.EncodeToString(wrapped), nil
}

// UnwrapKey recovers the base64 content key from a wrapped key with the
// recipient's private key.
func UnwrapKey(wrapped string, priv *rsa.PrivateKey) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		return "", fmt.Errorf("%w: wrapped key encoding: %v", common.ErrCrypto, err)
	}

	key, err := rsa.DecryptOAEP(sha256.New(), nil, priv, raw, nil)
	if err != nil {
		return "", fmt.Errorf("%w: unwrap key: %v", common.ErrCrypto, err)
	}
	return string(key), nil
}

func newGCM(key string) (cipher.AEAD, error) {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("%w: content key encoding: %v", common.ErrCrypto, err)
	}
	defer common.WipeByteArray(raw)

	if len(raw) != common.ContentKeySize {
		return nil, fmt.Errorf("%w: content key must be %d bytes, got %d", common.ErrCrypto, common.ContentKeySize, len(raw))
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCrypto, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCrypto, err)
	}
	return aead, nil
}

// writeExclusive creates path (which must not exist) and writes data,
// removing the partial file if anything fails.
func writeExclusive(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Sync()
}
