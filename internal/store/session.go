package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ledgerkeeper/internal/common"
	"github.com/dmitrijs2005/ledgerkeeper/internal/dbx"
	"github.com/dmitrijs2005/ledgerkeeper/internal/jsonx"
	"github.com/dmitrijs2005/ledgerkeeper/internal/logging"
	"github.com/dmitrijs2005/ledgerkeeper/internal/repositories/records"
	"github.com/dmitrijs2005/ledgerkeeper/internal/schema"
	"github.com/dmitrijs2005/ledgerkeeper/internal/syncqueue"
	"github.com/google/uuid"
)

// Session is a store handle bound to the active user. It holds no other state;
// each operation runs in its own transaction.
type Session struct {
	store  *Store
	userID string
	logger logging.Logger
}

// UserID returns the user the session was initialized for.
func (s *Session) UserID() string { return s.userID }

// Store returns the underlying store.
func (s *Session) Store() *Store { return s.store }

// clock reads the store clock once; the record timestamp and its queue entry
// share the instant.
func (s *Session) clock() (time.Time, string) {
	at := s.store.now().UTC()
	return at, at.Format(time.RFC3339Nano)
}

// normalize round-trips data through JSON so the caller gets back exactly the
// value types a later Read returns.
func normalize(data map[string]any) (Record, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: not JSON-serializable: %w", common.ErrInvalidRecord, err)
	}
	rec, err := jsonx.DecodeObject(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidRecord, err)
	}
	return rec, nil
}

func decode(collection string, data []byte) (Record, error) {
	rec, err := jsonx.DecodeObject(data)
	if err != nil {
		return nil, dbx.StorageError("decode "+collection, err)
	}
	return rec, nil
}

// Create stores a new record. A caller-supplied id is kept unless it is already
// in use (common.ErrDuplicateID); otherwise a UUID is generated. userId
// defaults to the session user. The returned record is unsealed.
func (s *Session) Create(ctx context.Context, collection string, data map[string]any) (Record, error) {
	c, err := s.store.collection(collection)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: nil data", common.ErrInvalidRecord)
	}
	rec, err := normalize(data)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if raw, ok := rec[schema.FieldID]; ok && raw != nil {
		given, ok := raw.(string)
		if !ok || given == "" {
			return nil, fmt.Errorf("%w: id must be a non-empty string", common.ErrInvalidRecord)
		}
		id = given
	}
	userID := s.userID
	if given, ok := rec[schema.FieldUserID].(string); ok && given != "" {
		userID = given
	}

	at, now := s.clock()
	rec[schema.FieldID] = id
	rec[schema.FieldUserID] = userID
	rec[schema.FieldCreatedAt] = now
	rec[schema.FieldUpdatedAt] = now
	rec[schema.FieldVersion] = float64(1)
	rec[schema.FieldSynced] = false

	sealed, err := s.store.policy.seal(ctx, rec, c)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidRecord, err)
	}

	err = dbx.WithTx(ctx, s.store.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := records.NewSQLiteRepository(tx)
		existing, err := repo.Get(ctx, collection, id)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s/%s", common.ErrDuplicateID, collection, id)
		}
		if err := repo.Insert(ctx, collection, id, userID, payload); err != nil {
			return err
		}
		s.store.queue.Enqueue(ctx, tx, syncqueue.Entry{
			UserID: userID, Operation: syncqueue.OpCreate, Collection: collection, RecordID: id, CreatedAt: at,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "record created", "collection", collection, "id", id)
	return rec, nil
}

// Read returns the record or (nil, nil) if id does not exist.
func (s *Session) Read(ctx context.Context, collection, id string) (Record, error) {
	c, err := s.store.collection(collection)
	if err != nil {
		return nil, err
	}
	data, err := records.NewSQLiteRepository(s.store.db).Get(ctx, collection, id)
	if err != nil || data == nil {
		return nil, err
	}
	rec, err := decode(collection, data)
	if err != nil {
		return nil, err
	}
	out, _ := s.store.policy.open(ctx, rec, c)
	return out, nil
}

// Update shallow-merges patch onto the stored record, keeping id, userId,
// createdAt and the collection's protected fields, bumps version and clears
// synced. A missing id is common.ErrNotFound.
func (s *Session) Update(ctx context.Context, collection, id string, patch map[string]any) (Record, error) {
	c, err := s.store.collection(collection)
	if err != nil {
		return nil, err
	}
	normPatch, err := normalize(patch)
	if err != nil {
		return nil, err
	}

	var result Record
	err = dbx.WithTx(ctx, s.store.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := records.NewSQLiteRepository(tx)
		data, err := repo.Get(ctx, collection, id)
		if err != nil {
			return err
		}
		if data == nil {
			return fmt.Errorf("%w: %s/%s", common.ErrNotFound, collection, id)
		}
		stored, err := decode(collection, data)
		if err != nil {
			return err
		}
		current, failed := s.store.policy.open(ctx, stored, c)

		merged := Record(c.Merge(current, normPatch))
		at, now := s.clock()
		merged[schema.FieldUpdatedAt] = now
		merged[schema.FieldVersion] = float64(current.Version() + 1)
		merged[schema.FieldSynced] = false

		sealed, err := s.store.policy.seal(ctx, merged, c)
		if err != nil {
			return err
		}
		// keep the stored ciphertext of fields we could not open and the patch
		// did not replace, instead of overwriting them with null
		for _, f := range failed {
			if _, replaced := normPatch[f]; !replaced {
				sealed[f] = stored[f]
			}
		}

		payload, err := json.Marshal(sealed)
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrInvalidRecord, err)
		}
		if err := repo.Replace(ctx, collection, id, payload); err != nil {
			return err
		}
		s.store.queue.Enqueue(ctx, tx, syncqueue.Entry{
			UserID: merged.UserID(), Operation: syncqueue.OpUpdate, Collection: collection, RecordID: id, CreatedAt: at,
		})
		result = merged
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "record updated", "collection", collection, "id", id, "version", result.Version())
	return result, nil
}

// Delete hard-deletes a record. It returns false, and queues nothing, when id
// does not exist.
func (s *Session) Delete(ctx context.Context, collection, id string) (bool, error) {
	if _, err := s.store.collection(collection); err != nil {
		return false, err
	}

	var deleted bool
	err := dbx.WithTx(ctx, s.store.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		owner, ok, err := records.NewSQLiteRepository(tx).Delete(ctx, collection, id)
		if err != nil || !ok {
			return err
		}
		deleted = true
		s.store.queue.Enqueue(ctx, tx, syncqueue.Entry{
			UserID: owner, Operation: syncqueue.OpDelete, Collection: collection, RecordID: id,
		})
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// MarkSynced sets synced=true on a record if it is still at version. It is the
// acknowledgement hook for the sync process and queues nothing.
func (s *Session) MarkSynced(ctx context.Context, collection, id string, version int64) (bool, error) {
	if _, err := s.store.collection(collection); err != nil {
		return false, err
	}
	return records.NewSQLiteRepository(s.store.db).MarkSynced(ctx, collection, id, version)
}
