package cryptox

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/ledgerkeeper/internal/common"
	"golang.org/x/crypto/argon2"
)

// Well-known names in the secret store.
const (
	KeyName      = "encryption_key"
	SaltName     = "encryption_salt"
	VerifierName = "encryption_verifier"
)

var ErrWrongPassphrase = errors.New("passphrase does not match stored verifier")

// KeyStore is the local secret store the key material lives in. Get returns
// (nil, nil) for a missing name.
type KeyStore interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Set(ctx context.Context, name string, value []byte) error
}

// storedKey is the persisted form: {"key": [..bytes..], "created": epochMillis}.
type storedKey struct {
	Key     []int `json:"key"`
	Created int64 `json:"created"`
}

// GetOrCreateKey loads the random field key from ks, generating and persisting
// a new one when none exists. A failing random source yields
// common.ErrKeyUnavailable so callers can fall back to plaintext mode.
func GetOrCreateKey(ctx context.Context, ks KeyStore, rnd io.Reader) ([]byte, error) {
	raw, err := ks.Get(ctx, KeyName)
	if err != nil {
		return nil, fmt.Errorf("load key: %w", err)
	}
	if raw != nil {
		return decodeStoredKey(raw)
	}

	key, err := common.ReadRandBytes(rnd, KeySize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrKeyUnavailable, err)
	}

	sk := storedKey{Key: make([]int, len(key)), Created: time.Now().UnixMilli()}
	for i, b := range key {
		sk.Key[i] = int(b)
	}
	data, err := json.Marshal(sk)
	if err != nil {
		return nil, err
	}
	if err := ks.Set(ctx, KeyName, data); err != nil {
		return nil, fmt.Errorf("persist key: %w", err)
	}
	return key, nil
}

func decodeStoredKey(raw []byte) ([]byte, error) {
	var sk storedKey
	if err := json.Unmarshal(raw, &sk); err != nil {
		return nil, fmt.Errorf("decode stored key: %w", err)
	}
	if len(sk.Key) != KeySize {
		return nil, fmt.Errorf("stored key has %d bytes, want %d", len(sk.Key), KeySize)
	}
	key := make([]byte, KeySize)
	for i, v := range sk.Key {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("stored key byte %d out of range", i)
		}
		key[i] = byte(v)
	}
	return key, nil
}

// DeriveKey stretches a passphrase into a field key with argon2id.
func DeriveKey(passphrase []byte, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

// MakeVerifier hashes a key so a later passphrase can be checked without
// storing the key itself.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// KeyFromPassphrase derives the field key from a passphrase. The salt and a
// verifier are persisted on first use; the key itself never is. A passphrase
// that does not match the stored verifier yields ErrWrongPassphrase.
func KeyFromPassphrase(ctx context.Context, ks KeyStore, passphrase []byte, rnd io.Reader) ([]byte, error) {
	salt, err := ks.Get(ctx, SaltName)
	if err != nil {
		return nil, fmt.Errorf("load salt: %w", err)
	}

	if salt == nil {
		if salt, err = common.ReadRandBytes(rnd, 32); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrKeyUnavailable, err)
		}
		key := DeriveKey(passphrase, salt)
		if err := ks.Set(ctx, SaltName, salt); err != nil {
			return nil, fmt.Errorf("persist salt: %w", err)
		}
		if err := ks.Set(ctx, VerifierName, MakeVerifier(key)); err != nil {
			return nil, fmt.Errorf("persist verifier: %w", err)
		}
		return key, nil
	}

	key := DeriveKey(passphrase, salt)
	verifier, err := ks.Get(ctx, VerifierName)
	if err != nil {
		return nil, fmt.Errorf("load verifier: %w", err)
	}
	if subtle.ConstantTimeCompare(verifier, MakeVerifier(key)) == 0 {
		common.WipeByteArray(key)
		return nil, ErrWrongPassphrase
	}
	return key, nil
}
