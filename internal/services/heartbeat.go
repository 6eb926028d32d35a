package services

import (
	"presence-gateway/internal/domain"
	"presence-gateway/pkg/logger"

	"github.com/robfig/cron/v3"
)

// heartbeatSchedule keeps intermediary proxies from dropping idle
// sockets.
const heartbeatSchedule = "@every 20s"

// Heartbeat periodically sends the empty {} frame to every live
// connection.
type Heartbeat struct {
	cron     *cron.Cron
	registry domain.ConnectionRegistry
	log      logger.Logger
}

func NewHeartbeat(registry domain.ConnectionRegistry, log logger.Logger) *Heartbeat {
	return &Heartbeat{
		cron:     cron.New(cron.WithSeconds()),
		registry: registry,
		log:      log,
	}
}

func (h *Heartbeat) Start() error {
	if _, err := h.cron.AddFunc(heartbeatSchedule, h.sweep); err != nil {
		return err
	}
	h.cron.Start()
	h.log.Info("Heartbeat started", "schedule", heartbeatSchedule)
	return nil
}

func (h *Heartbeat) Stop() {
	h.cron.Stop()
	h.log.Info("Heartbeat stopped")
}

// sweep sends one keep-alive frame per connection. A failed send is
// that connection's problem and does not abort the sweep.
func (h *Heartbeat) sweep() {
	if h.registry.Count() == 0 {
		return
	}
	h.registry.ForEach(func(conn domain.Connection) {
		if err := conn.Send(domain.OutboundMessage{}); err != nil {
			h.log.Error("Keep-alive send failed", "connection_id", conn.ID(), "error", err)
		}
	})
}
