package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"sui-invariant-monitor/internal/collector"
	"sui-invariant-monitor/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleStream handles GET /api/stream. The client first receives the
// latest cycle, if any, then one frame per completed cycle. Frames a slow
// client cannot take are dropped by the store.
func (h *Handlers) HandleStream(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade the websocket", "error", err)
		return
	}
	defer func() { _ = ws.Close() }()

	reports, unsubscribe := h.store.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	if snap, ok := h.store.Snapshot(); ok {
		if err := h.writeFrame(ws, collector.NewCycleReport(snap, h.store.Results())); err != nil {
			return
		}
	}

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case report, ok := <-reports:
			if !ok {
				return
			}
			if err := h.writeFrame(ws, report); err != nil {
				h.logger.Debug("stream client write failed", "error", err)
				return
			}
		}
	}
}

func (h *Handlers) writeFrame(ws *websocket.Conn, report model.CycleReport) error {
	frame := model.Envelope{
		Type:          model.FrameTypeCycle,
		MonitorID:     h.monitorID,
		TimestampUnix: int64(report.Snapshot.TimestampUnix),
		Payload:       report,
	}
	_ = ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	return ws.WriteJSON(frame)
}
