package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/domain"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/service"
)

// WebhooksHandler receives external event deliveries.
type WebhooksHandler struct {
	ingestion       *service.IngestionService
	signatureHeader string
}

// NewWebhooksHandler constructs handler.
func NewWebhooksHandler(ingestion *service.IngestionService, signatureHeader string) *WebhooksHandler {
	return &WebhooksHandler{ingestion: ingestion, signatureHeader: signatureHeader}
}

// Hostaway POST /webhooks/hostaway.
func (h *WebhooksHandler) Hostaway(c *fiber.Ctx) error {
	return h.ingest(c, domain.SourceHostaway)
}

// Breezeway POST /webhooks/breezeway.
func (h *WebhooksHandler) Breezeway(c *fiber.Ctx) error {
	return h.ingest(c, domain.SourceBreezeway)
}

func (h *WebhooksHandler) ingest(c *fiber.Ctx, source domain.SourceKind) error {
	// Body() is the raw bytes the sender signed; never re-marshal before
	// verification.
	result, err := h.ingestion.Ingest(c.UserContext(), source, c.Body(), c.Get(h.signatureHeader))
	if err != nil {
		return err
	}
	return c.JSON(result)
}
