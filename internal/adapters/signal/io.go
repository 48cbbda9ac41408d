package signal

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Tandem/internal/core"
	"github.com/dkeye/Tandem/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, sid domain.ParticipantID, c *WsSignalConn) {
	period := ctl.cfg.PingPeriod
	if period <= 0 {
		period = 30 * time.Second
	}
	ticker := time.NewTicker(period)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump channel closed")
				return
			}
			if err := ctl.write(c, websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := ctl.write(c, websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump ping error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) write(c *WsSignalConn, messageType int, data []byte) error {
	wait := ctl.cfg.WriteWait
	if wait <= 0 {
		wait = 10 * time.Second
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// readPump owns the participant's lifetime: when it returns the participant is gone.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid domain.ParticipantID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.Orch.Disconnect(sid)
	}()

	ctl.touch(sid, c)
	c.conn.SetPongHandler(func(string) error {
		ctl.touch(sid, c)
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			ctl.touch(sid, c)
			ctl.handleSignal(sid, data)
		}
	}
}

// handleSignal drops anything that does not decode into a known message or exceeds its rate limit.
func (ctl *SignalWSController) handleSignal(sid domain.ParticipantID, data []byte) {
	msg, err := core.DecodeClientMessage(data)
	if err != nil {
		lvl := log.Debug()
		if errors.Is(err, core.ErrUnknownType) {
			lvl = log.Warn()
		}
		lvl.Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("dropped frame")
		return
	}
	if !ctl.Orch.Allow(sid, msg.Type()) {
		log.Debug().Str("module", "signal").Str("sid", string(sid)).Str("type", string(msg.Type())).Msg("rate limited")
		return
	}

	switch m := msg.(type) {
	case core.JoinQueue:
		ctl.Orch.JoinQueue(sid, m.Prefs)
	case core.LeaveQueue:
		ctl.Orch.LeaveQueue(sid)
	case core.LeaveRoom:
		ctl.Orch.LeaveRoom(sid)
	case core.ChatMessage:
		ctl.Orch.Chat(sid, m.Text)
	case core.Typing:
		ctl.Orch.Typing(sid, m.IsTyping)
	case core.Signal:
		ctl.Orch.Relay(sid, m)
	case core.LivenessPing:
		ctl.Orch.Ping(sid)
	case core.ConnectivityFailure:
		ctl.Orch.ReportConnectivityFailure(sid)
	}
}
