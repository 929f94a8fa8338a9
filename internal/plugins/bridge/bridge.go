// Package bridge streams helper events to web UI clients over WebSocket.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"avva-desktop/internal/config"
	"avva-desktop/internal/plugin"
	"avva-desktop/internal/sidecar"
)

const (
	Name = "bridge"

	clientBuffer = 64
	writeTimeout = 5 * time.Second
)

// Source is the part of the supervisor the bridge needs.
type Source interface {
	Subscribe(buffer int) (<-chan sidecar.Event, func())
	Status() sidecar.Status
}

// Message is the JSON frame sent to clients.
type Message struct {
	Type     string          `json:"type"`
	ClientID string          `json:"client_id,omitempty"`
	Event    *sidecar.Event  `json:"event,omitempty"`
	Status   *sidecar.Status `json:"status,omitempty"`
}

type client struct {
	id      string
	send    chan sidecar.Event
	limiter *rate.Limiter
	dropped int
}

type Plugin struct {
	addr      string
	perSecond int
	logger    *log.Logger

	src       Source
	ln        net.Listener
	srv       *http.Server
	ctx       context.Context
	cancelCtx context.CancelFunc
	unsub     func()
	wg        sync.WaitGroup

	mu      sync.Mutex
	clients map[string]*client
	closed  bool
}

func New(cfg config.BridgeConfig) *Plugin {
	perSecond := cfg.MaxEventsPerSec
	if perSecond <= 0 {
		perSecond = 200
	}
	return &Plugin{
		addr:      cfg.Addr,
		perSecond: perSecond,
		clients:   map[string]*client{},
	}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Init(_ context.Context, host *plugin.Host) error {
	p.logger = host.Logger
	if host.Supervisor == nil {
		return errors.New("bridge needs a running sidecar supervisor")
	}
	return p.start(host.Supervisor)
}

func (p *Plugin) start(src Source) error {
	ln, err := net.Listen("tcp", p.addr)
	if err != nil {
		return err
	}
	p.src = src
	p.ln = ln
	p.ctx, p.cancelCtx = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("/events", p.handleEvents)
	mux.HandleFunc("/healthz", p.handleHealth)
	p.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	events, unsub := src.Subscribe(256)
	p.unsub = unsub

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		if err := p.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logf("bridge: serve stopped: %v", err)
		}
	}()
	go func() {
		defer p.wg.Done()
		p.broadcast(events)
	}()

	p.logf("bridge: listening on %s", ln.Addr())
	return nil
}

// Addr is the bound listen address, useful when configured with port 0.
func (p *Plugin) Addr() string {
	if p.ln == nil {
		return p.addr
	}
	return p.ln.Addr().String()
}

func (p *Plugin) ClientCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

func (p *Plugin) broadcast(events <-chan sidecar.Event) {
	for ev := range events {
		p.mu.Lock()
		for _, c := range p.clients {
			if !c.limiter.Allow() {
				c.dropped++
				continue
			}
			select {
			case c.send <- ev:
			default:
				c.dropped++
			}
		}
		p.mu.Unlock()
	}

	// The helper is gone; tell every client.
	p.mu.Lock()
	p.closed = true
	for id, c := range p.clients {
		close(c.send)
		delete(p.clients, id)
	}
	p.mu.Unlock()
}

func (p *Plugin) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := p.src.Status()
	w.Header().Set("Content-Type", "application/json")
	if !st.Running {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(st)
}

func (p *Plugin) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*", "tauri.localhost"},
	})
	if err != nil {
		p.logf("bridge: accept failed: %v", err)
		return
	}
	defer conn.CloseNow()

	c := &client{
		id:      uuid.NewString(),
		send:    make(chan sidecar.Event, clientBuffer),
		limiter: rate.NewLimiter(rate.Limit(p.perSecond), p.perSecond),
	}

	st := p.src.Status()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = p.write(r.Context(), conn, Message{Type: "status", ClientID: c.id, Status: &st})
		conn.Close(websocket.StatusGoingAway, "sidecar exited")
		return
	}
	p.clients[c.id] = c
	p.mu.Unlock()
	p.logf("bridge: client connected id=%s", c.id)

	defer p.removeClient(c)

	// Clients only listen; CloseRead handles control frames and cancels on disconnect.
	ctx := conn.CloseRead(p.ctx)

	if err := p.write(ctx, conn, Message{Type: "status", ClientID: c.id, Status: &st}); err != nil {
		return
	}
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "sidecar exited")
				return
			}
			if err := p.write(ctx, conn, Message{Type: "event", Event: &ev}); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Plugin) write(ctx context.Context, conn *websocket.Conn, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}

func (p *Plugin) removeClient(c *client) {
	p.mu.Lock()
	if cur, ok := p.clients[c.id]; ok && cur == c {
		delete(p.clients, c.id)
	}
	dropped := c.dropped
	p.mu.Unlock()
	p.logf("bridge: client gone id=%s dropped=%d", c.id, dropped)
}

func (p *Plugin) Close() error {
	if p.srv == nil {
		return nil
	}
	p.unsub()
	p.cancelCtx()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := p.srv.Shutdown(ctx)
	p.wg.Wait()
	p.srv = nil
	return err
}

func (p *Plugin) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
