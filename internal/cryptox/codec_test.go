package cryptox

import (
	"bytes"
	"testing"

	"github.com/dmitrijs2005/ledgerkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

func newTestCodec(t *testing.T, b byte) *Codec {
	t.Helper()
	c, err := NewCodec(testKey(b))
	require.NoError(t, err)
	return c
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newTestCodec(t, 1)

	values := []any{
		"ACME Groceries",
		float64(5000),
		-12.75,
		true,
		nil,
		[]any{"a", float64(1)},
		map[string]any{"iban": "DE89370400440532013000", "primary": true},
	}
	for _, v := range values {
		env, err := c.Encrypt(v)
		require.NoError(t, err)
		require.Len(t, env.Nonce, NonceSize)
		require.NotZero(t, env.Timestamp)

		got, err := c.Decrypt(env)
		require.NoError(t, err)
		assert.Equal(t, v, got)

		// the map form stored inside records decrypts the same way
		got, err = c.Decrypt(env.Map())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestCodec_FreshNoncePerCall(t *testing.T) {
	c := newTestCodec(t, 2)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		env, err := c.Encrypt("same value")
		require.NoError(t, err)
		require.False(t, seen[string(env.Nonce)], "nonce reused")
		seen[string(env.Nonce)] = true
	}
}

func TestCodec_Passthrough(t *testing.T) {
	c := newTestCodec(t, 3)

	for _, v := range []any{
		"plain",
		float64(42),
		nil,
		map[string]any{"ciphertext": "AAAA", "nonce": "AAAA"},
		map[string]any{"ciphertext": "not base64!", "nonce": "AAAA", "timestamp": float64(1)},
		map[string]any{"ciphertext": "AAAA", "nonce": "AAAA", "timestamp": "yesterday"},
	} {
		got, err := c.Decrypt(v)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestCodec_TamperedCiphertext(t *testing.T) {
	c := newTestCodec(t, 4)
	env, err := c.Encrypt("1234-5678")
	require.NoError(t, err)

	env.Ciphertext[0] ^= 0xff
	_, err = c.Decrypt(env)
	require.ErrorIs(t, err, common.ErrDecryptionFailed)
}

func TestCodec_WrongKey(t *testing.T) {
	env, err := newTestCodec(t, 5).Encrypt("secret")
	require.NoError(t, err)

	_, err = newTestCodec(t, 6).Decrypt(env.Map())
	require.ErrorIs(t, err, common.ErrDecryptionFailed)
}

func TestCodec_BadNonceLength(t *testing.T) {
	c := newTestCodec(t, 7)
	env, err := c.Encrypt("x")
	require.NoError(t, err)
	env.Nonce = env.Nonce[:4]

	_, err = c.Decrypt(env)
	require.ErrorIs(t, err, common.ErrDecryptionFailed)
}

func TestCodec_NonceSourceFailure(t *testing.T) {
	c := newTestCodec(t, 8)
	c.rand = bytes.NewReader(nil)

	_, err := c.Encrypt("x")
	require.ErrorIs(t, err, common.ErrKeyUnavailable)
}

func TestNewCodec_RejectsShortKey(t *testing.T) {
	_, err := NewCodec([]byte("short"))
	require.Error(t, err)
}

func TestAsEnvelope_Forms(t *testing.T) {
	env := Envelope{Ciphertext: []byte{1}, Nonce: []byte{2}, Timestamp: 3}

	got, ok := AsEnvelope(env)
	require.True(t, ok)
	assert.Equal(t, env, got)

	got, ok = AsEnvelope(&env)
	require.True(t, ok)
	assert.Equal(t, env, got)

	got, ok = AsEnvelope(env.Map())
	require.True(t, ok)
	assert.Equal(t, env, got)

	var nilEnv *Envelope
	_, ok = AsEnvelope(nilEnv)
	assert.False(t, ok)

	_, ok = AsEnvelope(map[string]any{"ciphertext": "AQ==", "nonce": "Ag==", "timestamp": float64(3), "extra": 1})
	assert.False(t, ok)
}
