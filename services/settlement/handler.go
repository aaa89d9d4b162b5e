package settlement

import (
	"context"
	"net/http"

	"sendpool/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const SourceGateway = "gateway"

type WebhookHandler struct {
	processor *Processor
}

func NewWebhookHandler(processor *Processor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// WhatsApp always answers 200 so the gateway does not redeliver. Failures
// stay in webhook_logs.
func (h *WebhookHandler) WhatsApp(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		zap.L().Warn("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	if err := h.processor.HandlePayload(context.WithoutCancel(c.Request.Context()), SourceGateway, raw); err != nil {
		zap.L().Warn("webhook processed with errors",
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *WebhookHandler) Register(r gin.IRouter) {
	r.POST("/webhooks/whatsapp", h.WhatsApp)
}
