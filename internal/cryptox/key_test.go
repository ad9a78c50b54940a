package cryptox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dmitrijs2005/ledgerkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memKeyStore struct {
	data   map[string][]byte
	getErr error
	setErr error
}

func newMemKeyStore() *memKeyStore {
	return &memKeyStore{data: map[string][]byte{}}
}

func (m *memKeyStore) Get(_ context.Context, name string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.data[name], nil
}

func (m *memKeyStore) Set(_ context.Context, name string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[name] = value
	return nil
}

func TestGetOrCreateKey_GeneratesAndReloads(t *testing.T) {
	ctx := context.Background()
	ks := newMemKeyStore()

	rnd := bytes.NewReader(bytes.Repeat([]byte{0xAB}, KeySize))
	key, err := GetOrCreateKey(ctx, ks, rnd)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0xAB}, KeySize), key)

	var persisted struct {
		Key     []int `json:"key"`
		Created int64 `json:"created"`
	}
	require.NoError(t, json.Unmarshal(ks.data[KeyName], &persisted))
	require.Len(t, persisted.Key, KeySize)
	assert.Equal(t, 0xAB, persisted.Key[0])
	assert.NotZero(t, persisted.Created)

	// second call loads, never touches the random source
	again, err := GetOrCreateKey(ctx, ks, bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestGetOrCreateKey_NoRandomSource(t *testing.T) {
	_, err := GetOrCreateKey(context.Background(), newMemKeyStore(), bytes.NewReader(nil))
	require.ErrorIs(t, err, common.ErrKeyUnavailable)
}

func TestGetOrCreateKey_CorruptStoredKey(t *testing.T) {
	ks := newMemKeyStore()
	ks.data[KeyName] = []byte(`{"key":[1,2,3],"created":1}`)

	_, err := GetOrCreateKey(context.Background(), ks, bytes.NewReader(nil))
	require.Error(t, err)
	require.NotErrorIs(t, err, common.ErrKeyUnavailable)
}

func TestGetOrCreateKey_StoreErrors(t *testing.T) {
	ks := newMemKeyStore()
	ks.getErr = errors.New("locked")
	_, err := GetOrCreateKey(context.Background(), ks, bytes.NewReader(nil))
	require.ErrorContains(t, err, "load key")

	ks = newMemKeyStore()
	ks.setErr = errors.New("readonly")
	_, err = GetOrCreateKey(context.Background(), ks, bytes.NewReader(bytes.Repeat([]byte{1}, KeySize)))
	require.ErrorContains(t, err, "persist key")
}

func TestDeriveKey_Deterministic(t *testing.T) {
	a := DeriveKey([]byte("pass"), []byte("salt-1"))
	b := DeriveKey([]byte("pass"), []byte("salt-1"))
	c := DeriveKey([]byte("pass"), []byte("salt-2"))
	require.Len(t, a, KeySize)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestKeyFromPassphrase(t *testing.T) {
	ctx := context.Background()
	ks := newMemKeyStore()
	rnd := bytes.NewReader(bytes.Repeat([]byte{7}, 32))

	key, err := KeyFromPassphrase(ctx, ks, []byte("correct horse"), rnd)
	require.NoError(t, err)
	require.Len(t, key, KeySize)
	assert.NotContains(t, ks.data, KeyName)
	assert.NotNil(t, ks.data[SaltName])

	again, err := KeyFromPassphrase(ctx, ks, []byte("correct horse"), bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, key, again)

	_, err = KeyFromPassphrase(ctx, ks, []byte("battery staple"), bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrWrongPassphrase)
}
