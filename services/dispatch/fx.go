package dispatch

import (
	"context"
	"fmt"
	"net/http"

	"sendpool/pkg/config"
	"sendpool/services/campaign"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("dispatch",
	fx.Provide(
		NewSender,
		newDispatcher,
	),
)

// NewSender builds the driver named by SENDER.DRIVER.
func NewSender(lc fx.Lifecycle, cfg *config.Config) (Sender, error) {
	switch cfg.Sender.Driver {
	case "", DriverGateway:
		if cfg.Sender.BaseURL == "" {
			return nil, fmt.Errorf("SENDER.BASE_URL is required for the %s driver", DriverGateway)
		}
		return NewGatewaySender(cfg.Sender.BaseURL, cfg.Sender.APIKey, &http.Client{Timeout: cfg.Sender.Timeout}), nil
	case DriverWhatsmeow:
		w, err := NewWhatsmeowSender(context.Background(), cfg.Sender.WhatsmeowStore)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStart: w.Start,
			OnStop: func(ctx context.Context) error {
				w.Stop()
				return nil
			},
		})
		return w, nil
	default:
		return nil, fmt.Errorf("unknown sender driver %q", cfg.Sender.Driver)
	}
}

func newDispatcher(db *gorm.DB, sender Sender, templates *campaign.Templates, cfg *config.Config) *Dispatcher {
	return NewDispatcher(db, sender, templates, cfg.Sender.Timeout)
}
