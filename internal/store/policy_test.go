package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/ledgerkeeper/internal/cryptox"
	"github.com/dmitrijs2005/ledgerkeeper/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_SealOnlySensitiveFields(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, Options{})
	goals, _ := s.Manifest().Collection("goals")

	in := Record{"id": "g1", "name": "House", "targetAmount": 250000.0, "notes": nil}
	sealed, err := s.SealRecord(ctx, "goals", in)
	require.NoError(t, err)

	assert.Equal(t, "House", sealed["name"])
	assert.Nil(t, sealed["notes"])
	_, isEnv := cryptox.AsEnvelope(sealed["targetAmount"])
	assert.True(t, isEnv)
	_, present := sealed["currentAmount"]
	assert.False(t, present)
	// input untouched
	assert.Equal(t, 250000.0, in["targetAmount"])

	opened, failed := s.policy.open(ctx, sealed, goals)
	assert.Empty(t, failed)
	assert.Equal(t, in, opened)
}

func TestPolicy_OpenPassesLegacyPlaintext(t *testing.T) {
	s := openTestStore(t, Options{})
	rec := Record{"id": "a1", "balance": 12.5, "accountNumber": "1234"}
	out, err := s.OpenRecord(context.Background(), "accounts", rec)
	require.NoError(t, err)
	assert.Equal(t, rec, out)
}

func TestPolicy_TamperedFieldIsNulledNotFatal(t *testing.T) {
	ctx := context.Background()
	logger, logs := bufferLogger()
	s := openTestStore(t, Options{Logger: logger})
	sess := s.Initialize("u1")

	rec, err := sess.Create(ctx, "goals", map[string]any{
		"name":          "Wedding",
		"targetAmount":  20000,
		"currentAmount": 2500,
		"notes":         "keep it small",
	})
	require.NoError(t, err)

	_, err = s.DB().ExecContext(ctx,
		`UPDATE rec_goals SET data = json_set(data, '$.notes.ciphertext', 'AAAAAAAAAAAAAAAAAAAAAAAA') WHERE id = ?`,
		rec.ID())
	require.NoError(t, err)

	got, err := sess.Read(ctx, "goals", rec.ID())
	require.NoError(t, err)
	require.NotNil(t, got)
	v, ok := got["notes"]
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, float64(20000), got["targetAmount"])
	assert.Equal(t, "Wedding", got["name"])
	assert.Equal(t, 1, logs.Count("field decryption failed"))

	// an update that does not touch the broken field keeps its stored ciphertext
	_, err = sess.Update(ctx, "goals", rec.ID(), map[string]any{"currentAmount": 3000})
	require.NoError(t, err)
	assert.Contains(t, rawData(t, s, "goals", rec.ID()), "AAAAAAAAAAAAAAAAAAAAAAAA")

	// replacing it repairs the record
	_, err = sess.Update(ctx, "goals", rec.ID(), map[string]any{"notes": "fresh"})
	require.NoError(t, err)
	got, err = sess.Read(ctx, "goals", rec.ID())
	require.NoError(t, err)
	assert.Equal(t, "fresh", got["notes"])
	assert.Equal(t, float64(3000), got["currentAmount"])
}

func TestPolicy_DegradedModeWhenNoRandomSource(t *testing.T) {
	ctx := context.Background()
	logger, logs := bufferLogger()
	s := openTestStore(t, Options{Logger: logger, Rand: failingReader{}})
	require.False(t, s.Encrypted())

	sess := s.Initialize("u1")
	for range 3 {
		_, err := sess.Create(ctx, "transactions", map[string]any{"amount": 5, "merchant": "Corner shop"})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, logs.Count("sensitive fields are stored as plaintext"))

	cur, err := sess.List(ctx, "transactions", ListOptions{})
	require.NoError(t, err)
	recs, err := Collect(cur)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "Corner shop", recs[0]["merchant"])
	assert.Contains(t, rawData(t, s, "transactions", recs[0].ID()), "Corner shop")
}

func TestPolicy_DegradedWarningIsPerStore(t *testing.T) {
	ctx := context.Background()
	logger, logs := bufferLogger()

	for range 2 {
		s := openTestStore(t, Options{Logger: logger, Rand: failingReader{}})
		sess := s.Initialize("u1")
		for range 2 {
			_, err := sess.Create(ctx, "transactions", map[string]any{"amount": 1})
			require.NoError(t, err)
		}
	}

	assert.Equal(t, 2, logs.Count("sensitive fields are stored as plaintext"))
}

func TestPolicy_PassphraseMode(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "ledger.db")

	s1, err := Open(ctx, Options{DSN: dsn, Passphrase: []byte("correct horse")})
	require.NoError(t, err)
	require.True(t, s1.Encrypted())
	rec, err := s1.Initialize("u1").Create(ctx, "accounts", map[string]any{"accountNumber": "DE89 3704"})
	require.NoError(t, err)

	stored, err := s1.Metadata().Get(ctx, cryptox.KeyName)
	require.NoError(t, err)
	assert.Nil(t, stored, "passphrase mode must not persist the key")
	require.NoError(t, s1.Close())

	_, err = Open(ctx, Options{DSN: dsn, Passphrase: []byte("wrong")})
	require.ErrorIs(t, err, cryptox.ErrWrongPassphrase)

	s2, err := Open(ctx, Options{DSN: dsn, Passphrase: []byte("correct horse")})
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Initialize("u1").Read(ctx, "accounts", rec.ID())
	require.NoError(t, err)
	assert.Equal(t, "DE89 3704", got["accountNumber"])
}

func TestPolicy_CollectionWithoutSensitiveFields(t *testing.T) {
	s := openTestStore(t, Options{})
	c := &schema.Collection{Name: "categories"}
	rec := Record{"name": "Food"}
	sealed, err := s.policy.seal(context.Background(), rec, c)
	require.NoError(t, err)
	assert.Equal(t, rec, sealed)
}
