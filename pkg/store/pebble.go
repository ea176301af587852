package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"chatfront/pkg/logger"
)

var db *pebble.DB

// keyPrefix namespaces viewer context records. Message bodies are never
// written here; transcripts live in the remote backend only.
const keyPrefix = "viewer:"

// ContextRecord is the durable part of a viewer's ActiveContext: identity
// tokens and the session pointer. Messages and the history-loaded flag are
// deliberately absent so a restart re-fetches history exactly once.
type ContextRecord struct {
	ViewerID     string `json:"viewer_id"`
	UserID       string `json:"user_id,omitempty"`
	Email        string `json:"email,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	UpdatedTS    int64  `json:"updated_ts"`
}

// Open opens (or creates) the Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_context_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("context_db_open_failed", "path", path, "error", err)
		return err
	}
	return nil
}

// Close closes the opened DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("context_db_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func key(viewerID string) []byte {
	return []byte(keyPrefix + viewerID)
}

// SaveContext upserts a viewer context record, stamping UpdatedTS.
func SaveContext(rec ContextRecord) error {
	if db == nil {
		return fmt.Errorf("context store not opened; call store.Open first")
	}
	if rec.ViewerID == "" {
		return fmt.Errorf("viewer id required")
	}
	rec.UpdatedTS = time.Now().UTC().UnixNano()
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal context record: %w", err)
	}
	return db.Set(key(rec.ViewerID), b, pebble.Sync)
}

// GetContext returns the record for a viewer, or nil when none is stored.
func GetContext(viewerID string) (*ContextRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("context store not opened; call store.Open first")
	}
	v, closer, err := db.Get(key(viewerID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer closer.Close()
	var rec ContextRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("corrupt context record for %s: %w", viewerID, err)
	}
	return &rec, nil
}

// DeleteContext removes a viewer's record. Missing keys are not an error.
func DeleteContext(viewerID string) error {
	if db == nil {
		return fmt.Errorf("context store not opened; call store.Open first")
	}
	return db.Delete(key(viewerID), pebble.Sync)
}

// SweepIdle deletes anonymous viewer records idle for longer than maxIdle
// and returns how many were removed. Signed-in viewers are never swept;
// their sessions belong to the identity provider's lifecycle.
func SweepIdle(maxIdle time.Duration) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("context store not opened; call store.Open first")
	}
	cutoff := time.Now().UTC().Add(-maxIdle).UnixNano()
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "\xff"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	removed := 0
	for iter.First(); iter.Valid(); iter.Next() {
		var rec ContextRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			// unreadable record: sweep it too
			if derr := db.Delete(append([]byte{}, iter.Key()...), pebble.Sync); derr == nil {
				removed++
			}
			continue
		}
		if rec.UserID != "" || rec.UpdatedTS > cutoff {
			continue
		}
		if err := db.Delete(append([]byte{}, iter.Key()...), pebble.Sync); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, iter.Error()
}
