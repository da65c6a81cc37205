// Package discovery is the Discovery Sources component (spec.md §4.E): WebSocket log
// subscribers and decoders per launchpad, plus the Bags Telegram parser, all emitting
// deduplicated LaunchCandidate rows. The reconnect-loop idiom is adapted from the
// sniperterminal reference's per-symbol worker (dial, read until error, retry), pinned
// to the spec's exact heartbeat and backoff schedule instead of a fixed 5s retry.
package discovery

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"raptor/internal/logger"
)

const (
	heartbeatInterval = 30 * time.Second
	maxMissedPings    = 2
	backoffUnit       = 3 * time.Second
	backoffMaxSteps   = 5
	backoffAttemptCap = 10
	backoffCooldown   = 60 * time.Second
)

// wsSubscriber owns one WebSocket connection's dial/subscribe/heartbeat/reconnect
// lifecycle. onMessage is invoked for every non-control frame the connection receives.
type wsSubscriber struct {
	name         string
	url          string
	log          *logger.Logger
	subscribeMsg interface{}
	onMessage    func(ctx context.Context, raw []byte)
}

func newWSSubscriber(name, url string, subscribeMsg interface{}, log *logger.Logger, onMessage func(ctx context.Context, raw []byte)) *wsSubscriber {
	return &wsSubscriber{name: name, url: url, log: log, subscribeMsg: subscribeMsg, onMessage: onMessage}
}

// run dials, subscribes, and reads until ctx is cancelled, reconnecting on every
// failure per spec.md §4.E's backoff schedule.
func (s *wsSubscriber) run(ctx context.Context) {
	attempts := 0
	for ctx.Err() == nil {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			s.log.Warn("discovery ws dial failed", "source", s.name, "url", s.url, "error", err.Error())
			if !s.backoff(ctx, &attempts) {
				return
			}
			continue
		}

		s.log.Info("discovery ws connected", "source", s.name, "url", s.url)
		if err := conn.WriteJSON(s.subscribeMsg); err != nil {
			s.log.Warn("discovery ws subscribe failed", "source", s.name, "error", err.Error())
			conn.Close()
			if !s.backoff(ctx, &attempts) {
				return
			}
			continue
		}

		attempts = 0
		if err := s.readLoop(ctx, conn); err != nil {
			s.log.Warn("discovery ws connection lost", "source", s.name, "error", err.Error())
		}
		conn.Close()

		if !s.backoff(ctx, &attempts) {
			return
		}
	}
}

// readLoop runs the heartbeat ping alongside the blocking read, returning once the
// connection dies (read error, ctx cancellation, or two missed pongs).
func (s *wsSubscriber) readLoop(ctx context.Context, conn *websocket.Conn) error {
	missed := int32(0)
	conn.SetPongHandler(func(string) error {
		atomic.StoreInt32(&missed, 0)
		return nil
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if atomic.AddInt32(&missed, 1) > maxMissedPings {
					conn.Close()
					return
				}
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.onMessage(ctx, msg)
	}
}

// backoff sleeps `3s * min(attempts, 5)` for up to 10 attempts, then sleeps 60s and
// resets the counter (spec.md §4.E). Returns false if ctx was cancelled while waiting.
func (s *wsSubscriber) backoff(ctx context.Context, attempts *int) bool {
	*attempts++

	var delay time.Duration
	if *attempts > backoffAttemptCap {
		delay = backoffCooldown
		*attempts = 0
	} else {
		step := *attempts
		if step > backoffMaxSteps {
			step = backoffMaxSteps
		}
		delay = time.Duration(step) * backoffUnit
	}

	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}
