package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/kinesim/internal/core/events/bus"
	"github.com/zeusync/kinesim/internal/core/observability/log"
	"github.com/zeusync/kinesim/internal/core/simulation"
)

var (
	ErrHubClosed         = errors.New("stream hub is closed")
	ErrHubAlreadyRunning = errors.New("stream hub is already running")
	ErrInvalidConfig     = errors.New("invalid stream configuration")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type Config struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
	// Buffer is the number of frames queued per viewer before it is dropped.
	Buffer       int           `yaml:"buffer"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		Path:         "/ws",
		Buffer:       64,
		WriteTimeout: time.Second,
	}
}

func (c Config) Validate() error {
	if c.Path == "" || c.Path[0] != '/' {
		return fmt.Errorf("%w: path must start with '/', got %q", ErrInvalidConfig, c.Path)
	}
	if c.Buffer <= 0 {
		return fmt.Errorf("%w: buffer must be positive, got %d", ErrInvalidConfig, c.Buffer)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: write_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Frame is the JSON message sent to viewers.
type Frame struct {
	Type    string `json:"type"`
	Episode string `json:"episode,omitempty"`
	Data    any    `json:"data"`
}

// EpisodeSummary is sent instead of the full result when an episode ends.
type EpisodeSummary struct {
	Controller string  `json:"controller"`
	Ticks      int     `json:"ticks"`
	Collisions int     `json:"collisions"`
	Distance   float64 `json:"distance"`
	Clearance  float64 `json:"clearance"`
}

type viewer struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (v *viewer) close() {
	v.once.Do(func() {
		close(v.done)
		if v.conn != nil {
			_ = v.conn.Close()
		}
	})
}

// Hub fans simulation frames out to websocket viewers. Broadcast never
// blocks: a viewer whose queue is full is disconnected.
type Hub struct {
	cfg    Config
	logger log.Log

	mu      sync.Mutex
	viewers map[*viewer]struct{}
	closed  bool
	server  *http.Server

	sent    atomic.Uint64
	dropped atomic.Uint64
}

func NewHub(cfg Config, logger log.Log) (*Hub, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Provide()
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger.With(log.Component("stream")),
		viewers: make(map[*viewer]struct{}),
	}, nil
}

// Start serves the hub on cfg.Addr until Stop is called.
func (h *Hub) Start() (net.Addr, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	if h.server != nil {
		return nil, ErrHubAlreadyRunning
	}

	ln, err := net.Listen("tcp", h.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", h.cfg.Addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle(h.cfg.Path, h)
	h.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("stream server stopped", log.Error(err))
		}
	}()
	h.logger.Info("stream listening", log.String("addr", ln.Addr().String()), log.String("path", h.cfg.Path))
	return ln.Addr(), nil
}

// Stop disconnects every viewer and shuts the server down.
func (h *Hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	srv := h.server
	viewers := h.viewers
	h.viewers = make(map[*viewer]struct{})
	h.mu.Unlock()

	for v := range viewers {
		v.close()
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ServeHTTP upgrades the request and registers the connection as a viewer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", log.Error(err))
		return
	}

	v := &viewer{conn: conn, send: make(chan []byte, h.cfg.Buffer), done: make(chan struct{})}
	if !h.register(v) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		v.close()
		return
	}
	h.logger.Debug("viewer connected", log.String("remote", conn.RemoteAddr().String()))

	go h.writeLoop(v)
	h.readLoop(v)
}

func (h *Hub) register(v *viewer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.viewers[v] = struct{}{}
	return true
}

func (h *Hub) unregister(v *viewer) {
	h.mu.Lock()
	delete(h.viewers, v)
	h.mu.Unlock()
	v.close()
}

// readLoop discards incoming messages and notices disconnects.
func (h *Hub) readLoop(v *viewer) {
	defer h.unregister(v)
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(v *viewer) {
	defer h.unregister(v)
	for {
		select {
		case <-v.done:
			return
		case msg := <-v.send:
			_ = v.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := v.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("viewer write failed", log.Error(err))
				return
			}
			h.sent.Add(1)
		}
	}
}

// Broadcast queues f for every connected viewer.
func (h *Hub) Broadcast(f Frame) error {
	msg, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", f.Type, err)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	var slow []*viewer
	for v := range h.viewers {
		select {
		case v.send <- msg:
		default:
			slow = append(slow, v)
			delete(h.viewers, v)
		}
	}
	h.mu.Unlock()

	for _, v := range slow {
		h.dropped.Add(1)
		h.logger.Warn("dropping slow viewer")
		v.close()
	}
	return nil
}

// Attach forwards the simulation events published on b to the viewers.
func (h *Hub) Attach(b bus.EventBus) ([]bus.Subscription, error) {
	handler := func(e bus.Event) error {
		episode, _ := e.Metadata()["episode"].(string)
		data := e.Data()
		if res, ok := data.(*simulation.Result); ok {
			data = EpisodeSummary{
				Controller: res.Controller,
				Ticks:      res.Ticks,
				Collisions: res.Collisions,
				Distance:   res.Distance,
				Clearance:  res.Clearance,
			}
		}
		err := h.Broadcast(Frame{Type: e.Type(), Episode: episode, Data: data})
		if errors.Is(err, ErrHubClosed) {
			return nil
		}
		return err
	}

	var subs []bus.Subscription
	for _, typ := range []string{simulation.EventTick, simulation.EventCollision, simulation.EventEpisodeFinished} {
		sub, err := b.Subscribe(typ, handler)
		if err != nil {
			for _, s := range subs {
				_ = s.Cancel()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Stats returns the frames written and the viewers dropped so far.
func (h *Hub) Stats() (sent, dropped uint64) {
	return h.sent.Load(), h.dropped.Load()
}
