// Package cryptox implements the field codec: AES-256-GCM encryption of single
// JSON-serializable values into envelopes, and management of the process-wide
// key (random key persisted in the local secret store, or a passphrase-derived
// key when one is configured).
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/ledgerkeeper/internal/common"
	"github.com/dmitrijs2005/ledgerkeeper/internal/jsonx"
)

// KeySize is the AES-256 key length.
const KeySize = 32

// Codec encrypts and decrypts field values with one key. The key is never
// modified after construction, so a Codec is safe for concurrent use.
type Codec struct {
	aead cipher.AEAD
	rand io.Reader
	now  func() time.Time
}

// NewCodec builds a codec for a 32-byte key. Nonces are drawn from crypto/rand.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead, rand: rand.Reader, now: time.Now}, nil
}

// Encrypt serializes value to JSON and seals it under a fresh random nonce.
func (c *Codec) Encrypt(value any) (Envelope, error) {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return Envelope{}, fmt.Errorf("serialize value: %w", err)
	}

	nonce, err := common.ReadRandBytes(c.rand, NonceSize)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: nonce: %w", common.ErrKeyUnavailable, err)
	}

	return Envelope{
		Ciphertext: c.aead.Seal(nil, nonce, plaintext, nil),
		Nonce:      nonce,
		Timestamp:  c.now().UnixMilli(),
	}, nil
}

// Decrypt opens an envelope and returns the decoded JSON value. Values that are
// not envelopes are returned unchanged, which lets legacy plaintext fields pass
// through. Authentication failures wrap common.ErrDecryptionFailed.
func (c *Codec) Decrypt(value any) (any, error) {
	env, ok := AsEnvelope(value)
	if !ok {
		return value, nil
	}
	if len(env.Nonce) != c.aead.NonceSize() {
		return nil, fmt.Errorf("%w: nonce length %d", common.ErrDecryptionFailed, len(env.Nonce))
	}

	plaintext, err := c.aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDecryptionFailed, err)
	}

	out, err := jsonx.Decode(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %w", common.ErrDecryptionFailed, err)
	}
	return out, nil
}
