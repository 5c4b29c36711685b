package api

import (
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"threadmail/models"
	"threadmail/storage"
	"threadmail/utils"
)

// ThreadListCacheKey is the cache entry holding the inbox summaries. Anything
// that changes a thread, including the retention sweeper, invalidates it.
const ThreadListCacheKey = "thread_list"

// ThreadSummary is the inbox-list projection of a thread.
type ThreadSummary struct {
	ID             string    `json:"id"`
	Subject        string    `json:"subject"`
	Participants   []string  `json:"participants"`
	MessageCount   int       `json:"message_count"`
	UnreadCount    int       `json:"unread_count"`
	HasAttachments bool      `json:"has_attachments"`
	IsArchived     bool      `json:"is_archived"`
	IsMuted        bool      `json:"is_muted"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Preview        string    `json:"preview"`
	Version        int       `json:"version"`
}

// ThreadHandler serves thread reads and thread-level mutations
type ThreadHandler struct {
	store    *storage.ThreadStore
	cache    *utils.MemoryCache
	cacheTTL time.Duration
}

// NewThreadHandler creates a new thread handler
func NewThreadHandler(store *storage.ThreadStore, cache *utils.MemoryCache, cacheTTL time.Duration) *ThreadHandler {
	return &ThreadHandler{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// ListThreads returns inbox summaries, newest activity first
func (h *ThreadHandler) ListThreads(c *fiber.Ctx) error {
	if cached, ok := h.cache.Get(ThreadListCacheKey); ok {
		return c.JSON(fiber.Map{
			"success": true,
			"threads": cached,
		})
	}

	threads, err := h.store.AllThreads()
	if err != nil {
		return fail(c, err)
	}

	summaries := make([]ThreadSummary, 0, len(threads))
	for _, thread := range threads {
		summaries = append(summaries, summarize(thread))
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastActivityAt.After(summaries[j].LastActivityAt)
	})

	h.cache.Set(ThreadListCacheKey, summaries, h.cacheTTL)

	return c.JSON(fiber.Map{
		"success": true,
		"threads": summaries,
	})
}

// GetThread returns one thread with its messages in date order
func (h *ThreadHandler) GetThread(c *fiber.Ctx) error {
	thread, err := h.store.Load(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"thread":   summarize(thread),
		"messages": thread.MessagesByDate(),
	})
}

// GetThreadEvents returns the audit log for a thread
func (h *ThreadHandler) GetThreadEvents(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.store.Load(id); err != nil {
		return fail(c, err)
	}

	events, err := h.store.Events(id)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"events":  events,
	})
}

// Archive archives a thread
func (h *ThreadHandler) Archive(c *fiber.Ctx) error {
	return h.mutate(c, func(t *models.Thread) error { return t.Archive() })
}

// Unarchive restores an archived thread
func (h *ThreadHandler) Unarchive(c *fiber.Ctx) error {
	return h.mutate(c, func(t *models.Thread) error { return t.Unarchive() })
}

// Mute mutes a thread
func (h *ThreadHandler) Mute(c *fiber.Ctx) error {
	return h.mutate(c, func(t *models.Thread) error { return t.Mute() })
}

// Unmute unmutes a thread
func (h *ThreadHandler) Unmute(c *fiber.Ctx) error {
	return h.mutate(c, func(t *models.Thread) error { return t.Unmute() })
}

// MarkAllRead marks every message in a thread read
func (h *ThreadHandler) MarkAllRead(c *fiber.Ctx) error {
	return h.mutate(c, func(t *models.Thread) error { return t.MarkAllRead() })
}

// RemoveMessage deletes a message from a thread
func (h *ThreadHandler) RemoveMessage(c *fiber.Ctx) error {
	messageID := c.Params("messageId")
	return h.mutate(c, func(t *models.Thread) error { return t.RemoveMessage(messageID) })
}

// MarkMessageRead marks a single message read
func (h *ThreadHandler) MarkMessageRead(c *fiber.Ctx) error {
	messageID := c.Params("messageId")
	return h.mutate(c, func(t *models.Thread) error { return t.MarkMessageRead(messageID) })
}

// MarkMessageUnread marks a single message unread
func (h *ThreadHandler) MarkMessageUnread(c *fiber.Ctx) error {
	messageID := c.Params("messageId")
	return h.mutate(c, func(t *models.Thread) error { return t.MarkMessageUnread(messageID) })
}

// FlagMessage flags a message for follow-up
func (h *ThreadHandler) FlagMessage(c *fiber.Ctx) error {
	messageID := c.Params("messageId")
	return h.mutate(c, func(t *models.Thread) error { return t.FlagMessage(messageID) })
}

// UnflagMessage clears a message's follow-up flag
func (h *ThreadHandler) UnflagMessage(c *fiber.Ctx) error {
	messageID := c.Params("messageId")
	return h.mutate(c, func(t *models.Thread) error { return t.UnflagMessage(messageID) })
}

// LabelMessage attaches a label to a message
func (h *ThreadHandler) LabelMessage(c *fiber.Ctx) error {
	messageID := c.Params("messageId")
	label := c.Params("label")
	return h.mutate(c, func(t *models.Thread) error { return t.LabelMessage(messageID, label) })
}

// UnlabelMessage removes a label from a message
func (h *ThreadHandler) UnlabelMessage(c *fiber.Ctx) error {
	messageID := c.Params("messageId")
	label := c.Params("label")
	return h.mutate(c, func(t *models.Thread) error { return t.UnlabelMessage(messageID, label) })
}

// mutate loads the thread named in the URL, applies op, and saves the result.
// Conflicts surface as 409; the client reloads and retries.
func (h *ThreadHandler) mutate(c *fiber.Ctx, op func(*models.Thread) error) error {
	thread, err := h.store.Load(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	loadedVersion := thread.Version
	if err := op(thread); err != nil {
		return fail(c, err)
	}

	if thread.Version != loadedVersion {
		if err := h.store.Save(thread, loadedVersion); err != nil {
			return fail(c, err)
		}
		h.cache.Delete(ThreadListCacheKey)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"thread":  summarize(thread),
	})
}

// summarize builds the list projection for one thread.
func summarize(t *models.Thread) ThreadSummary {
	preview := ""
	if messages := t.MessagesByDate(); len(messages) > 0 {
		preview = messages[len(messages)-1].Content.Preview(120)
	}

	return ThreadSummary{
		ID:             t.ID,
		Subject:        t.Subject.Normalized(),
		Participants:   t.Participants,
		MessageCount:   len(t.Messages),
		UnreadCount:    t.UnreadCount(),
		HasAttachments: t.HasAttachments(),
		IsArchived:     t.IsArchived,
		IsMuted:        t.IsMuted,
		LastActivityAt: t.LastActivityAt,
		Preview:        preview,
		Version:        t.Version,
	}
}
