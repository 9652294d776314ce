package ws

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/gosuda/taskboard/internal/channel"
	"github.com/gosuda/taskboard/internal/domain"
)

// readLimit caps a single inbound frame.
const readLimit = 64 << 10

// Hub accepts card channel connections and fans events out through the
// shared registry.
type Hub struct {
	registry       *channel.Registry
	gate           channel.Gate
	metrics        *channel.Metrics
	opts           channel.Options
	originPatterns []string

	closing   chan struct{}
	closeOnce sync.Once
}

// NewHub creates a new WebSocket hub. originPatterns are host patterns
// accepted for cross-origin handshakes; nil allows same-origin only.
func NewHub(registry *channel.Registry, gate channel.Gate, metrics *channel.Metrics, opts channel.Options, originPatterns []string) *Hub {
	return &Hub{
		registry:       registry,
		gate:           gate,
		metrics:        metrics,
		opts:           opts,
		originPatterns: originPatterns,
		closing:        make(chan struct{}),
	}
}

// Close ends every session served by the hub. Sessions started after Close
// end immediately.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// ServeCard handles WebSocket connections for one card's collaboration
// channel. The credential travels in the "token" query parameter; handshake
// failures are reported with close codes after the upgrade.
func (h *Hub) ServeCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := strconv.ParseInt(chi.URLParam(r, "cardID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid card id", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	// Hijacked connections outlive http.Server.Shutdown, so the session
	// context also ends when the hub closes.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		select {
		case <-h.closing:
			cancel()
		case <-ctx.Done():
		}
	}()

	session := channel.NewSession(cardID, &connTransport{conn: conn}, h.registry, h.metrics, h.opts)
	session.Serve(ctx, r.URL.Query().Get("token"), h.gate)
}

// Publish sends ev to every connection on cardID. It is used by API handlers
// after a mutation has been committed.
func (h *Hub) Publish(cardID int64, ev domain.Event) int {
	return h.registry.Broadcast(cardID, ev, nil)
}

// connTransport adapts a websocket connection to channel.Transport.
type connTransport struct {
	conn *websocket.Conn
}

// Read returns the next text frame. Other frame types yield
// channel.ErrUnsupportedFrame.
func (t *connTransport) Read(ctx context.Context) ([]byte, error) {
	typ, data, err := t.conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ws.connTransport.Read: %w", err)
	}
	if typ != websocket.MessageText {
		return nil, fmt.Errorf("ws.connTransport.Read: %v: %w", typ, channel.ErrUnsupportedFrame)
	}
	return data, nil
}

func (t *connTransport) Write(ctx context.Context, msg []byte) error {
	if err := t.conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return fmt.Errorf("ws.connTransport.Write: %w", err)
	}
	return nil
}

func (t *connTransport) Close(code websocket.StatusCode, reason string) error {
	if err := t.conn.Close(code, reason); err != nil {
		return fmt.Errorf("ws.connTransport.Close: %w", err)
	}
	return nil
}
