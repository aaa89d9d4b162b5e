package settlement

import (
	"sendpool/services/dispatch"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("settlement",
	fx.Provide(
		NewProcessor,
		NewWebhookHandler,
	),
	fx.Invoke(
		registerRoutes,
		subscribeReceipts,
	),
)

func registerRoutes(r *gin.Engine, h *WebhookHandler) {
	h.Register(r)
}

// subscribeReceipts settles from in-process session receipts when the
// whatsmeow driver is in use. The gateway driver reports through the webhook.
func subscribeReceipts(sender dispatch.Sender, p *Processor) {
	if w, ok := sender.(*dispatch.WhatsmeowSender); ok {
		w.OnReceipt(p.HandlePayload)
	}
}
