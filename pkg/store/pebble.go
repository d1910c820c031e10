package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"commsdb/pkg/logger"
	"commsdb/pkg/models"
)

var db *pebble.DB
var dbPath string

// seq reduces key collisions when multiple messages share the same
// nanosecond timestamp.
var seq uint64

// rmwMu serializes read-modify-write updates (conversation counters,
// message read-state). Pebble has no multi-key transactions; with a
// single writer process this mutex makes counter deltas atomic.
var rmwMu sync.Mutex

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Key layout:
//
//	conv:<convID>:meta                  conversation metadata JSON
//	conv:<convID>:msg:<ts20>-<seq6>     message JSON, ordered by insertion time
//	msg:<msgID>                         message ID -> message key
//	user:<userID>:conv:<convID>         participant index
func convMetaKey(convID string) []byte { return []byte("conv:" + convID + ":meta") }
func msgPrefix(convID string) []byte   { return []byte("conv:" + convID + ":msg:") }
func msgIndexKey(msgID string) []byte  { return []byte("msg:" + msgID) }
func userConvKey(userID, convID string) []byte {
	return []byte("user:" + userID + ":conv:" + convID)
}
func userConvPrefix(userID string) []byte { return []byte("user:" + userID + ":conv:") }

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	dbPath = ""
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func notOpened() error {
	return fmt.Errorf("pebble not opened; call store.Open first")
}

// SaveConversation writes conversation metadata and the participant
// index entries used by ListUserConversations.
func SaveConversation(c models.Conversation) error {
	if db == nil {
		return notOpened()
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if err := db.Set(convMetaKey(c.ID), data, pebble.Sync); err != nil {
		logger.Error("save_conversation_failed", "conversation", c.ID, "error", err)
		return err
	}
	for _, p := range c.Participants {
		if err := db.Set(userConvKey(p.ID, c.ID), []byte("1"), pebble.Sync); err != nil {
			logger.Error("save_participant_index_failed", "conversation", c.ID, "user", p.ID, "error", err)
			return err
		}
	}
	writes.WithLabelValues("conversation").Inc()
	logger.Info("conversation_saved", "conversation", c.ID, "participants", len(c.Participants))
	return nil
}

// GetConversation returns the stored conversation for the given ID.
func GetConversation(convID string) (models.Conversation, error) {
	var c models.Conversation
	if db == nil {
		return c, notOpened()
	}
	v, closer, err := db.Get(convMetaKey(convID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return c, ErrNotFound
		}
		return c, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &c); err != nil {
		return c, fmt.Errorf("invalid conversation JSON: %w", err)
	}
	reads.WithLabelValues("conversation").Inc()
	return c, nil
}

// UpdateConversation applies fn to the stored conversation under the
// store's write lock and persists the result. This is the atomic
// keyed-counter primitive: concurrent unread/message-count deltas are
// serialized here instead of racing as read-then-write from callers.
func UpdateConversation(convID string, fn func(*models.Conversation) error) (models.Conversation, error) {
	var c models.Conversation
	if db == nil {
		return c, notOpened()
	}
	rmwMu.Lock()
	defer rmwMu.Unlock()
	c, err := GetConversation(convID)
	if err != nil {
		return c, err
	}
	if err := fn(&c); err != nil {
		return c, err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return c, fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if err := db.Set(convMetaKey(convID), data, pebble.Sync); err != nil {
		logger.Error("update_conversation_failed", "conversation", convID, "error", err)
		return c, err
	}
	writes.WithLabelValues("conversation").Inc()
	return c, nil
}

// ListUserConversations returns every conversation whose participant
// index contains userID. Order is unspecified; callers sort.
func ListUserConversations(userID string) ([]models.Conversation, error) {
	if db == nil {
		return nil, notOpened()
	}
	prefix := userConvPrefix(userID)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Conversation
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		convID := string(iter.Key()[len(prefix):])
		c, err := GetConversation(convID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// stale index entry; skip
				continue
			}
			return nil, err
		}
		out = append(out, c)
	}
	return out, iter.Error()
}

// SaveMessage appends a message to its conversation by inserting a new
// key with a sortable timestamp prefix, and indexes it by message ID so
// it can be looked up and rewritten in place.
func SaveMessage(m models.Message) error {
	if db == nil {
		return notOpened()
	}
	ts := m.CreatedTS
	if ts == 0 {
		ts = time.Now().UTC().UnixNano()
	}
	s := atomic.AddUint64(&seq, 1)
	key := fmt.Sprintf("conv:%s:msg:%020d-%06d", m.Conversation, ts, s)

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := db.Set([]byte(key), data, pebble.Sync); err != nil {
		logger.Error("save_message_failed", "conversation", m.Conversation, "key", key, "error", err)
		return err
	}
	if err := db.Set(msgIndexKey(m.ID), []byte(key), pebble.Sync); err != nil {
		logger.Error("save_message_index_failed", "msg_id", m.ID, "error", err)
		return err
	}
	writes.WithLabelValues("message").Inc()
	logger.Info("message_saved", "conversation", m.Conversation, "msg_id", m.ID)
	return nil
}

// messageKey resolves a message ID to its full storage key.
func messageKey(msgID string) (string, error) {
	v, closer, err := db.Get(msgIndexKey(msgID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	defer closer.Close()
	return string(v), nil
}

// GetMessage returns the stored message for the given ID.
func GetMessage(msgID string) (models.Message, error) {
	var m models.Message
	if db == nil {
		return m, notOpened()
	}
	key, err := messageKey(msgID)
	if err != nil {
		return m, err
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return m, ErrNotFound
		}
		return m, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &m); err != nil {
		return m, fmt.Errorf("invalid message JSON: %w", err)
	}
	reads.WithLabelValues("message").Inc()
	return m, nil
}

// UpdateMessage applies fn to the stored message under the store's
// write lock and rewrites it at its original key, preserving its
// position in the conversation ordering.
func UpdateMessage(msgID string, fn func(*models.Message) error) (models.Message, error) {
	var m models.Message
	if db == nil {
		return m, notOpened()
	}
	rmwMu.Lock()
	defer rmwMu.Unlock()
	key, err := messageKey(msgID)
	if err != nil {
		return m, err
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return m, ErrNotFound
		}
		return m, err
	}
	if err := json.Unmarshal(v, &m); err != nil {
		closer.Close()
		return m, fmt.Errorf("invalid message JSON: %w", err)
	}
	closer.Close()
	if err := fn(&m); err != nil {
		return m, err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return m, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := db.Set([]byte(key), data, pebble.Sync); err != nil {
		logger.Error("update_message_failed", "msg_id", msgID, "error", err)
		return m, err
	}
	writes.WithLabelValues("message").Inc()
	return m, nil
}

// ListConversationMessages returns messages for a conversation in
// insertion (chronological) order. A positive limit keeps only the
// newest limit entries, still oldest-first.
func ListConversationMessages(convID string, limit int) ([]models.Message, error) {
	if db == nil {
		return nil, notOpened()
	}
	prefix := msgPrefix(convID)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("invalid message JSON at %s: %w", iter.Key(), err)
		}
		out = append(out, m)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	reads.WithLabelValues("message_list").Inc()
	return out, nil
}

// CountConversationMessages returns the number of stored message
// records for a conversation.
func CountConversationMessages(convID string) (int, error) {
	if db == nil {
		return 0, notOpened()
	}
	prefix := msgPrefix(convID)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		n++
	}
	return n, iter.Error()
}

// PurgeDeletedMessages removes soft-deleted message records whose last
// update is older than the cutoff (ns). It deletes at most batch
// records per call (batch <= 0 means no cap) and returns the number of
// records that matched. In dry-run mode nothing is deleted.
func PurgeDeletedMessages(cutoff int64, batch int, dryRun bool) (int, error) {
	if db == nil {
		return 0, notOpened()
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	prefix := []byte("conv:")
	purged := 0
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		k := iter.Key()
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		if !bytes.Contains(k, []byte(":msg:")) {
			continue
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if !m.Deleted || m.UpdatedTS > cutoff {
			continue
		}
		purged++
		if !dryRun {
			key := append([]byte(nil), k...)
			if err := db.Delete(key, pebble.Sync); err != nil {
				return purged, err
			}
			if err := db.Delete(msgIndexKey(m.ID), pebble.Sync); err != nil {
				return purged, err
			}
			purges.Inc()
		}
		if batch > 0 && purged >= batch {
			break
		}
	}
	return purged, iter.Error()
}

// ListKeys returns all keys (as strings) that start with the given
// prefix. An empty prefix returns every key in the DB.
func ListKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, notOpened()
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	if prefix == "" {
		for iter.First(); iter.Valid(); iter.Next() {
			out = append(out, string(iter.Key()))
		}
		return out, iter.Error()
	}
	pfx := []byte(prefix)
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		out = append(out, string(iter.Key()))
	}
	return out, iter.Error()
}
