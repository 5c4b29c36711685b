package api

import (
	"github.com/gofiber/fiber/v2"

	"threadmail/ingest"
	"threadmail/utils"
)

// IngestHandler accepts newly arrived messages
type IngestHandler struct {
	service *ingest.Service
	cache   *utils.MemoryCache
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(service *ingest.Service, cache *utils.MemoryCache) *IngestHandler {
	return &IngestHandler{
		service: service,
		cache:   cache,
	}
}

// IngestMessage files a raw RFC 822 message into the right thread
func (h *IngestHandler) IngestMessage(c *fiber.Ctx) error {
	raw := c.Body()
	if len(raw) == 0 {
		return fail(c, utils.ValidationError("IngestHandler.IngestMessage", "empty request body", nil))
	}

	result, err := h.service.IngestRaw(raw)
	if err != nil {
		return fail(c, err)
	}

	h.cache.Delete(ThreadListCacheKey)

	status := fiber.StatusOK
	if result.CreatedThread {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"result":  result,
	})
}
