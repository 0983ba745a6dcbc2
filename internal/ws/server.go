// Package ws serves a live preview of the strip over websockets and a JSON
// health endpoint.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/ledstrip/internal/effect"
	"github.com/coreman2200/ledstrip/internal/led"
	"github.com/coreman2200/ledstrip/internal/protocol"
	"github.com/coreman2200/ledstrip/internal/render"
)

// DefaultThrottle caps preview updates at about 20 per second.
const DefaultThrottle = 50 * time.Millisecond

// Sources feed the health report. Any of them may be nil.
type Sources struct {
	Render        func() render.Stats
	State         func() protocol.ServerState
	Dropped       func() uint64
	MQTTConnected func() bool
}

// Server is a led.Driver that forwards every frame to the wrapped driver
// and copies a throttled subset to websocket viewers.
type Server struct {
	next     led.Driver
	n        int
	driver   string
	throttle time.Duration
	src      Sources
	log      zerolog.Logger
	start    time.Time
	frames   chan frame

	mu       sync.RWMutex
	frameID  uint64
	lastEmit time.Time
	clients  map[*websocket.Conn]bool
}

type frame struct {
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	RGB     []byte `json:"rgb"`
}

type Option func(*Server)

func WithThrottle(d time.Duration) Option {
	return func(s *Server) { s.throttle = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

func WithSources(src Sources) Option {
	return func(s *Server) { s.src = src }
}

// New wraps next, a driver for n pixels named driverName in reports.
func New(next led.Driver, n int, driverName string, opts ...Option) *Server {
	s := &Server{
		next:     next,
		n:        n,
		driver:   driverName,
		throttle: DefaultThrottle,
		log:      log.Logger,
		start:    time.Now(),
		frames:   make(chan frame, 1),
		clients:  map[*websocket.Conn]bool{},
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With().Str("component", "preview").Logger()
	return s
}

// Write forwards s to the wrapped driver; its error is returned unchanged.
// The preview copy never blocks the caller.
func (s *Server) Write(strip effect.Strip) error {
	if err := s.next.Write(strip); err != nil {
		return err
	}

	s.mu.Lock()
	s.frameID++
	id := s.frameID
	now := time.Now()
	emit := len(s.clients) > 0 && !s.lastEmit.Add(s.throttle).After(now)
	if emit {
		s.lastEmit = now
	}
	s.mu.Unlock()
	if !emit {
		return nil
	}

	f := frame{T: now.UnixNano(), FrameID: id, RGB: led.Packer{}.Pack(make([]byte, 0, 3*len(strip)), strip)}
	select {
	case s.frames <- f:
	default:
		// viewers are behind; drop this frame
	}
	return nil
}

func (s *Server) Close() error { return s.next.Close() }

// Clients is the number of connected viewers.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Run broadcasts frames to viewers until ctx is done, then disconnects them.
func (s *Server) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			for c := range s.clients {
				c.Close()
				delete(s.clients, c)
			}
			s.mu.Unlock()
			return
		case f := <-s.frames:
			s.broadcastFrame(f)
		}
	}
}

func (s *Server) broadcastFrame(f frame) {
	b, err := json.Marshal(f)
	if err != nil {
		s.log.Error().Err(err).Msg("encode frame")
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			s.log.Debug().Err(err).Msg("write frame")
		}
	}
}

// Handler routes /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleFramesWS)
	mux.HandleFunc("/health", s.HandleHealth)
	return mux
}

func (s *Server) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("viewer connected")

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Health is the /health response body.
type Health struct {
	FrameID       uint64            `json:"frame_id"`
	UptimeS       float64           `json:"uptime_s"`
	Count         int               `json:"count"`
	Driver        string            `json:"driver"`
	Viewers       int               `json:"viewers"`
	Render        *render.Stats     `json:"render,omitempty"`
	State         map[string]string `json:"state,omitempty"`
	Dropped       uint64            `json:"dropped_commands"`
	MQTTConnected bool              `json:"mqtt_connected"`
}

func (s *Server) Health() Health {
	s.mu.RLock()
	h := Health{
		FrameID: s.frameID,
		UptimeS: time.Since(s.start).Seconds(),
		Count:   s.n,
		Driver:  s.driver,
		Viewers: len(s.clients),
	}
	s.mu.RUnlock()

	if s.src.Render != nil {
		st := s.src.Render()
		h.Render = &st
	}
	if s.src.State != nil {
		st := s.src.State()
		h.State = map[string]string{}
		for _, f := range protocol.Fields() {
			if b, err := protocol.Encode(st, f); err == nil {
				h.State[f] = string(b)
			}
		}
	}
	if s.src.Dropped != nil {
		h.Dropped = s.src.Dropped()
	}
	if s.src.MQTTConnected != nil {
		h.MQTTConnected = s.src.MQTTConnected()
	}
	return h
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Health())
}

// ListenAndServe serves Handler on addr and runs the broadcaster until ctx
// is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go s.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", addr).Msg("preview listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
