package ingest

import (
	"github.com/google/uuid"

	"threadmail/models"
	"threadmail/storage"
	"threadmail/utils"
)

// maxSaveAttempts bounds the reload-and-retry loop when a save loses an
// optimistic-concurrency race.
const maxSaveAttempts = 3

// Service routes newly arrived messages into threads: it asks storage for
// candidate threads, runs the matcher against each, and either admits the
// message into the first match or founds a new thread. The load, mutate and
// save cycle and its conflict retries live here; the aggregate itself never
// touches storage.
type Service struct {
	store  *storage.ThreadStore
	logger *utils.Logger
}

// NewService creates a new ingestion service
func NewService(store *storage.ThreadStore, logger *utils.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Result describes where an ingested message ended up.
type Result struct {
	ThreadID      string `json:"thread_id"`
	MessageID     string `json:"message_id"`
	CreatedThread bool   `json:"created_thread"`
}

// IngestRaw parses a raw RFC 822 message and ingests it.
func (s *Service) IngestRaw(raw []byte) (*Result, error) {
	msg, err := ParseMessage(raw)
	if err != nil {
		return nil, err
	}
	return s.Ingest(msg)
}

// Ingest files a parsed message into a matching thread, or founds a new one
// when no candidate matches. Candidates are tested in sorted id order so the
// outcome is deterministic. A lost save race reloads and retries a bounded
// number of times before surfacing the conflict.
func (s *Service) Ingest(msg models.Message) (*Result, error) {
	var lastErr error

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		result, err := s.ingestOnce(msg)
		if err == nil {
			return result, nil
		}
		if !utils.IsKind(err, utils.KindConflict) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn("ingest save conflict for message %s, retrying (%d/%d)", msg.ExternalMessageID, attempt+1, maxSaveAttempts)
	}

	return nil, lastErr
}

// ingestOnce runs a single routing pass without retry handling.
func (s *Service) ingestOnce(msg models.Message) (*Result, error) {
	candidates, err := s.store.Candidates(msg.Subject.NormalizedKey(), msg.References, msg.InReplyTo)
	if err != nil {
		return nil, err
	}

	for _, threadID := range candidates {
		thread, err := s.store.Load(threadID)
		if err != nil {
			if utils.IsKind(err, utils.KindNotFound) {
				// Index entry outlived the thread; skip it.
				continue
			}
			return nil, err
		}

		if !models.Matches(thread, msg) {
			continue
		}

		for _, ext := range thread.ExternalMessageIDs() {
			if ext == msg.ExternalMessageID {
				return nil, utils.InvariantError("ingest.Ingest", "message "+msg.ExternalMessageID+" already ingested into thread "+thread.ID)
			}
		}

		loadedVersion := thread.Version
		if err := thread.AddMessage(msg); err != nil {
			return nil, err
		}
		if err := s.store.Save(thread, loadedVersion); err != nil {
			return nil, err
		}

		s.logger.WithField("thread", thread.ID).Debug("message %s joined existing thread", msg.ExternalMessageID)
		return &Result{ThreadID: thread.ID, MessageID: msg.ID}, nil
	}

	thread, err := models.NewThread(uuid.New().String(), msg)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(thread, 0); err != nil {
		return nil, err
	}

	s.logger.WithField("thread", thread.ID).Debug("message %s founded a new thread", msg.ExternalMessageID)
	return &Result{ThreadID: thread.ID, MessageID: msg.ID, CreatedThread: true}, nil
}
