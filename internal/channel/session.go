package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/gosuda/taskboard/internal/domain"
)

// State is a session's position in its lifecycle. Transitions only move
// forward and StateClosed is terminal.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrUnsupportedFrame is returned by Transport.Read for frames the channel
// does not carry, such as binary messages. The session drops them and keeps
// reading.
var ErrUnsupportedFrame = errors.New("channel: unsupported frame") //nolint:gochecknoglobals // sentinel error

// Transport is the physical message stream behind a session.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, msg []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Options tune a session.
type Options struct {
	// MessageFloor is the minimum spacing between two processed inbound
	// messages. Zero disables the limit.
	MessageFloor time.Duration
	// SendQueue is the per-peer outbound buffer.
	SendQueue int
	// WriteTimeout bounds a single outbound frame.
	WriteTimeout time.Duration
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{
		MessageFloor: 100 * time.Millisecond,
		SendQueue:    64,
		WriteTimeout: 10 * time.Second,
	}
}

// Session owns one connection bound to one card.
type Session struct {
	id        string
	key       int64
	transport Transport
	registry  *Registry
	metrics   *Metrics
	opts      Options
	limiter   *rate.Limiter
	send      chan []byte
	logger    zerolog.Logger

	state   atomic.Int32
	userID  atomic.Int64
	dropped atomic.Bool

	cancelMu  sync.Mutex
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewSession wraps an accepted transport for card key. The session starts
// in StateConnecting.
func NewSession(key int64, transport Transport, registry *Registry, metrics *Metrics, opts Options) *Session {
	if opts.SendQueue <= 0 {
		opts.SendQueue = DefaultOptions().SendQueue
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultOptions().WriteTimeout
	}

	limit := rate.Inf
	if opts.MessageFloor > 0 {
		limit = rate.Every(opts.MessageFloor)
	}

	id := uuid.NewString()
	return &Session{
		id:        id,
		key:       key,
		transport: transport,
		registry:  registry,
		metrics:   metrics,
		opts:      opts,
		limiter:   rate.NewLimiter(limit, 1),
		send:      make(chan []byte, opts.SendQueue),
		logger:    log.With().Str("conn_id", id).Int64("card_id", key).Logger(),
	}
}

func (s *Session) ID() string    { return s.id }
func (s *Session) CardID() int64 { return s.key }
func (s *Session) UserID() int64 { return s.userID.Load() }
func (s *Session) State() State  { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// Deliver queues msg for the writer. It never blocks; a full queue marks the
// session as a slow consumer and closes it.
func (s *Session) Deliver(msg []byte) error {
	if s.State() != StateActive || s.dropped.Load() {
		return ErrPeerClosed
	}

	select {
	case s.send <- msg:
		return nil
	default:
		if s.dropped.CompareAndSwap(false, true) {
			go s.shutdown(CloseInternal, "send queue overflow")
		}
		return ErrSlowConsumer
	}
}

// Serve runs the session to completion: authenticate through gate, join the
// registry, relay inbound events, then clean up. It returns once the
// connection is closed.
func (s *Session) Serve(ctx context.Context, token string, gate Gate) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()

	s.setState(StateAuthenticating)

	user, err := gate.Admit(ctx, s.key, token)
	if err != nil {
		s.reject(err)
		return
	}

	s.userID.Store(user.ID)
	s.logger = s.logger.With().Int64("user_id", user.ID).Logger()

	s.setState(StateActive)
	s.registry.Admit(s.key, s, user.ID)
	s.logger.Info().Msg("channel: connection admitted")

	go s.writeLoop(ctx)

	code, reason := s.readLoop(ctx, gate)
	s.shutdown(code, reason)
}

func (s *Session) reject(err error) {
	var rej *Rejection
	if !errors.As(err, &rej) {
		rej = &Rejection{Code: CloseInternal, Reason: "internal error", Err: err}
	}

	s.metrics.handshakeRejected(rejectionLabel(rej.Code))
	if rej.Code == CloseInternal {
		s.logger.Error().Err(err).Msg("channel: handshake failed")
	} else {
		s.logger.Debug().Err(err).Msg("channel: handshake rejected")
	}

	s.shutdown(rej.Code, rej.Reason)
}

func rejectionLabel(code websocket.StatusCode) string {
	switch code {
	case CloseMissingToken:
		return "missing_token"
	case CloseInvalidToken:
		return "invalid_token"
	case CloseUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// readLoop processes inbound frames until the connection ends and returns
// the close code to send.
func (s *Session) readLoop(ctx context.Context, gate Gate) (code websocket.StatusCode, reason string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("channel: recovered from fault in receive loop")
			code, reason = CloseInternal, "internal error"
		}
	}()

	for {
		msg, err := s.transport.Read(ctx)
		if errors.Is(err, ErrUnsupportedFrame) {
			s.metrics.eventDropped()
			s.logger.Debug().Err(err).Msg("channel: dropping frame")
			continue
		}
		if err != nil {
			if s.dropped.Load() {
				return CloseInternal, "send queue overflow"
			}
			if status := websocket.CloseStatus(err); status != -1 {
				s.logger.Debug().Int("status", int(status)).Msg("channel: client closed")
			} else if ctx.Err() == nil {
				s.logger.Debug().Err(err).Msg("channel: read failed")
			}
			return websocket.StatusNormalClosure, "connection closed"
		}

		// The limiter holds no registry lock and is released by ctx.
		if err := s.limiter.Wait(ctx); err != nil {
			return websocket.StatusNormalClosure, "connection closed"
		}

		if !s.handle(ctx, gate, msg) {
			return CloseUnauthorized, "access revoked"
		}
	}
}

// handle relays one inbound frame. Relaying requires edit on the card's
// board; view-only senders have their events dropped. It returns false once
// the sender no longer holds view.
func (s *Session) handle(ctx context.Context, gate Gate, msg []byte) bool {
	ev, err := domain.ParseEvent(msg)
	if err != nil {
		s.metrics.eventDropped()
		s.logger.Debug().Err(err).Msg("channel: dropping malformed event")
		return true
	}

	level, err := gate.Level(ctx, s.key, s.UserID())
	switch {
	case err != nil:
		s.metrics.eventDropped()
		s.logger.Error().Err(err).Msg("channel: permission check failed, dropping event")
		return true
	case !level.Allows(domain.PermissionView):
		s.logger.Info().Msg("channel: access revoked")
		return false
	case !level.Allows(domain.PermissionEdit):
		s.metrics.eventDropped()
		s.logger.Debug().Stringer("level", level).Msg("channel: dropping event from read-only member")
		return true
	}

	ev.UserID = s.UserID()
	n := s.registry.Broadcast(s.key, ev, s)
	s.logger.Debug().
		Str("kind", string(ev.Kind)).
		Str("action", string(ev.Action)).
		Int("recipients", n).
		Msg("channel: event relayed")
	return true
}

func (s *Session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.send:
			writeCtx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
			err := s.transport.Write(writeCtx, msg)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Debug().Err(err).Msg("channel: write failed")
					s.dropped.Store(true)
					s.shutdown(CloseInternal, "write failed")
				}
				return
			}
		}
	}
}

// shutdown moves the session to StateClosed exactly once: the registry entry
// is removed before the close frame is sent and the context cancelled.
func (s *Session) shutdown(code websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		wasActive := s.State() == StateActive
		s.setState(StateClosed)

		if wasActive && s.registry.Remove(s.key, s) {
			s.logger.Info().Msg("channel: connection removed")
		}

		if err := s.transport.Close(code, reason); err != nil {
			s.logger.Debug().Err(err).Msg("channel: close")
		}

		s.cancelMu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.cancelMu.Unlock()
	})
}
