package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"threadmail/models"
	"threadmail/utils"
)

// ThreadStore persists thread snapshots and their event logs in BoltDB.
//
// Saves are guarded by optimistic concurrency: the caller states the version
// it loaded, and the save is rejected with a conflict error when another
// writer advanced the stored version in the meantime. The store also
// maintains the candidate indexes the ingestion side queries before running
// the matcher: normalized subject -> thread ids, and external message id ->
// thread id.
type ThreadStore struct {
	db *bolt.DB
}

// NewThreadStore creates a new thread store
func NewThreadStore(db *bolt.DB) *ThreadStore {
	return &ThreadStore{db: db}
}

// Load retrieves a thread snapshot by ID
func (s *ThreadStore) Load(id string) (*models.Thread, error) {
	const op = "ThreadStore.Load"

	var thread models.Thread
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketThreads).Get([]byte(id))
		if data == nil {
			return utils.NotFoundError(op, "thread "+id+" not found")
		}
		if err := json.Unmarshal(data, &thread); err != nil {
			return fmt.Errorf("failed to decode thread %s: %v", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &thread, nil
}

// Save persists a thread snapshot and appends its pending events, atomically.
// expectedVersion is the version the caller loaded (0 for a new thread); a
// mismatch means another writer got there first and surfaces as a conflict
// error so the caller can reload and retry. The thread's pending-event
// buffer is cleared only after the transaction commits.
func (s *ThreadStore) Save(thread *models.Thread, expectedVersion int) error {
	const op = "ThreadStore.Save"

	pending := thread.PendingEvents()

	err := s.db.Update(func(tx *bolt.Tx) error {
		tb := tx.Bucket(bucketThreads)

		var prev *models.Thread
		if data := tb.Get([]byte(thread.ID)); data != nil {
			prev = &models.Thread{}
			if err := json.Unmarshal(data, prev); err != nil {
				return fmt.Errorf("failed to decode stored thread %s: %v", thread.ID, err)
			}
		}

		if prev == nil {
			if expectedVersion != 0 {
				return utils.ConflictError(op, fmt.Sprintf("thread %s expected at version %d but is gone", thread.ID, expectedVersion))
			}
		} else if prev.Version != expectedVersion {
			return utils.ConflictError(op, fmt.Sprintf("thread %s is at version %d, expected %d", thread.ID, prev.Version, expectedVersion))
		}

		encoded, err := json.Marshal(thread)
		if err != nil {
			return fmt.Errorf("failed to encode thread %s: %v", thread.ID, err)
		}
		if err := tb.Put([]byte(thread.ID), encoded); err != nil {
			return err
		}

		if err := s.appendEvents(tx, thread.ID, pending); err != nil {
			return err
		}

		return s.updateIndexes(tx, prev, thread)
	})
	if err != nil {
		return err
	}

	thread.ClearPendingEvents()
	return nil
}

// Events returns the full ordered event log for a thread, version ascending.
func (s *ThreadStore) Events(threadID string) ([]models.Event, error) {
	var events []models.Event

	err := s.db.View(func(tx *bolt.Tx) error {
		lb := tx.Bucket(bucketEvents).Bucket([]byte(threadID))
		if lb == nil {
			return nil
		}
		return lb.ForEach(func(k, v []byte) error {
			var evt models.Event
			if err := json.Unmarshal(v, &evt); err != nil {
				return fmt.Errorf("failed to decode event %s/%s: %v", threadID, k, err)
			}
			events = append(events, evt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return events, nil
}

// AllThreads retrieves all thread snapshots
func (s *ThreadStore) AllThreads() ([]*models.Thread, error) {
	var threads []*models.Thread

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketThreads).ForEach(func(k, v []byte) error {
			var thread models.Thread
			if err := json.Unmarshal(v, &thread); err != nil {
				return fmt.Errorf("failed to decode thread %s: %v", k, err)
			}
			threads = append(threads, &thread)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return threads, nil
}

// Candidates returns the ids of threads worth testing with the matcher for a
// message with the given normalized subject key, references and in-reply-to.
// The result is deduplicated and sorted so ingestion is deterministic.
func (s *ThreadStore) Candidates(subjectKey string, references []string, inReplyTo string) ([]string, error) {
	seen := make(map[string]struct{})

	err := s.db.View(func(tx *bolt.Tx) error {
		if subjectKey != "" {
			if data := tx.Bucket(bucketSubjectIndex).Get([]byte(subjectKey)); data != nil {
				var ids []string
				if err := json.Unmarshal(data, &ids); err != nil {
					return fmt.Errorf("failed to decode subject index %q: %v", subjectKey, err)
				}
				for _, id := range ids {
					seen[id] = struct{}{}
				}
			}
		}

		mb := tx.Bucket(bucketMessageIndex)
		lookup := references
		if inReplyTo != "" {
			lookup = append(append([]string{}, references...), inReplyTo)
		}
		for _, ext := range lookup {
			if data := mb.Get([]byte(ext)); data != nil {
				seen[string(data)] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a thread, its event log and its index entries. This is the
// only way a thread ceases to exist; the aggregate has no self-destruct.
func (s *ThreadStore) Delete(id string) error {
	const op = "ThreadStore.Delete"

	return s.db.Update(func(tx *bolt.Tx) error {
		tb := tx.Bucket(bucketThreads)
		data := tb.Get([]byte(id))
		if data == nil {
			return utils.NotFoundError(op, "thread "+id+" not found")
		}

		var thread models.Thread
		if err := json.Unmarshal(data, &thread); err != nil {
			return fmt.Errorf("failed to decode thread %s: %v", id, err)
		}

		if err := tb.Delete([]byte(id)); err != nil {
			return err
		}
		if eb := tx.Bucket(bucketEvents); eb.Bucket([]byte(id)) != nil {
			if err := eb.DeleteBucket([]byte(id)); err != nil {
				return err
			}
		}

		mb := tx.Bucket(bucketMessageIndex)
		for _, ext := range thread.ExternalMessageIDs() {
			if string(mb.Get([]byte(ext))) == id {
				if err := mb.Delete([]byte(ext)); err != nil {
					return err
				}
			}
		}

		return s.removeFromSubjectIndex(tx, thread.Subject.NormalizedKey(), id)
	})
}

// PurgeInactiveBefore deletes archived threads whose last activity predates
// the cutoff, returning how many were removed. The retention sweeper in main
// calls this on a timer.
func (s *ThreadStore) PurgeInactiveBefore(cutoff time.Time) (int, error) {
	threads, err := s.AllThreads()
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, thread := range threads {
		if !thread.IsArchived || !thread.LastActivityAt.Before(cutoff) {
			continue
		}
		if err := s.Delete(thread.ID); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}

// appendEvents writes the pending events into the thread's log bucket,
// keyed by zero-padded version so iteration order is version order.
func (s *ThreadStore) appendEvents(tx *bolt.Tx, threadID string, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	lb, err := tx.Bucket(bucketEvents).CreateBucketIfNotExists([]byte(threadID))
	if err != nil {
		return err
	}

	for _, evt := range events {
		key := []byte(fmt.Sprintf("%010d", evt.Version))
		if lb.Get(key) != nil {
			return utils.ConflictError("ThreadStore.Save", fmt.Sprintf("event %s/%d already recorded", threadID, evt.Version))
		}
		encoded, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("failed to encode event %s/%d: %v", threadID, evt.Version, err)
		}
		if err := lb.Put(key, encoded); err != nil {
			return err
		}
	}
	return nil
}

// updateIndexes reconciles the candidate indexes with the new snapshot,
// dropping entries for messages removed since the previous save.
func (s *ThreadStore) updateIndexes(tx *bolt.Tx, prev, thread *models.Thread) error {
	mb := tx.Bucket(bucketMessageIndex)

	current := make(map[string]struct{})
	for _, ext := range thread.ExternalMessageIDs() {
		current[ext] = struct{}{}
		if err := mb.Put([]byte(ext), []byte(thread.ID)); err != nil {
			return err
		}
	}

	if prev != nil {
		for _, ext := range prev.ExternalMessageIDs() {
			if _, ok := current[ext]; ok {
				continue
			}
			if string(mb.Get([]byte(ext))) == thread.ID {
				if err := mb.Delete([]byte(ext)); err != nil {
					return err
				}
			}
		}
	}

	return s.addToSubjectIndex(tx, thread.Subject.NormalizedKey(), thread.ID)
}

// addToSubjectIndex inserts the thread id into the sorted id list for a
// subject key.
func (s *ThreadStore) addToSubjectIndex(tx *bolt.Tx, key, threadID string) error {
	sb := tx.Bucket(bucketSubjectIndex)

	var ids []string
	if data := sb.Get([]byte(key)); data != nil {
		if err := json.Unmarshal(data, &ids); err != nil {
			return fmt.Errorf("failed to decode subject index %q: %v", key, err)
		}
	}
	for _, id := range ids {
		if id == threadID {
			return nil
		}
	}
	ids = append(ids, threadID)
	sort.Strings(ids)

	encoded, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode subject index %q: %v", key, err)
	}
	return sb.Put([]byte(key), encoded)
}

// removeFromSubjectIndex removes the thread id from a subject key's list.
func (s *ThreadStore) removeFromSubjectIndex(tx *bolt.Tx, key, threadID string) error {
	sb := tx.Bucket(bucketSubjectIndex)

	data := sb.Get([]byte(key))
	if data == nil {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("failed to decode subject index %q: %v", key, err)
	}

	kept := ids[:0]
	for _, id := range ids {
		if id != threadID {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		return sb.Delete([]byte(key))
	}

	encoded, err := json.Marshal(kept)
	if err != nil {
		return fmt.Errorf("failed to encode subject index %q: %v", key, err)
	}
	return sb.Put([]byte(key), encoded)
}
