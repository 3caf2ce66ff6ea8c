package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"

	"relayd.dev/pkg/accept"
	"relayd.dev/pkg/relayinfo"
	"relayd.dev/pkg/store"
)

const (
	// maxMessageSize bounds a single inbound WebSocket frame.
	maxMessageSize = 1 << 20 // 1 MiB
	pongWait       = 60 * time.Second
	pingInterval   = pongWait / 2
)

// Options configures a Server (C9's wiring of C1/C3/C4/C8 into one
// instance), grounded on the teacher's app.Server construction in
// app/main.go's Run.
type Options struct {
	Endpoint   string
	MaxSub     int
	EnableEOSE bool
	Store      store.I
	Accept     accept.Chain
	Info       *relayinfo.T
}

// Server is the Listener (C9): it accepts HTTP connections and routes
// WebSocket upgrades to the connection manager (C5) and every other GET
// to the NIP-11 info responder (C8).
type Server struct {
	Manager    *Manager
	Store      store.I
	Accept     accept.Chain
	MaxSub     int
	EnableEOSE bool
	Endpoint   string
	Info       *relayinfo.T

	publishMu sync.Mutex

	httpSrv      *http.Server
	listener     net.Listener
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// NewServer builds a Server ready to be started with ListenAndServe.
func NewServer(opt Options) *Server {
	return &Server{
		Manager:    NewManager(),
		Store:      opt.Store,
		Accept:     opt.Accept,
		MaxSub:     opt.MaxSub,
		EnableEOSE: opt.EnableEOSE,
		Endpoint:   opt.Endpoint,
		Info:       opt.Info,
	}
}

// ServeHTTP routes a WebSocket upgrade to the connection handler and every
// other GET to the NIP-11 info document, matching spec.md §4.9/§6.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != s.Endpoint {
		http.NotFound(w, r)
		return
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		s.handleWebsocket(w, r)
		return
	}
	s.serveInfo(w, r)
}

// serveInfo implements the NIP-11 Info Responder (C8).
func (s *Server) serveInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(s.Info); err != nil {
		log.E.F("relay: encode NIP-11 info document: %v", err)
	}
}

// handleWebsocket accepts the upgrade, registers the connection (C5), and
// runs its reader loop until the socket closes, matching the teacher's
// app/handle-websocket.go HandleWebsocket.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	remote := remoteAddr(r)
	info := accept.ConnInfo{RemoteAddr: remote}
	if err := s.Accept.CheckConn(info); err != nil {
		log.D.F("relay: refusing upgrade from %s: %v", remote, err)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if chk.E(err) {
		return
	}
	socket.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(r.Context())
	c := newConn(0, remote, socket, s.MaxSub)
	s.Manager.Register(c)

	s.wg.Add(1)
	defer s.wg.Done()

	go c.runWriter(ctx)
	go s.runPinger(ctx, c)

	defer func() {
		cancel()
		s.Manager.Remove(c.ID)
		c.close()
		log.D.F("relay: connection %d from %s closed", c.ID, remote)
	}()

	log.D.F("relay: connection %d from %s opened", c.ID, remote)
	for {
		if !c.isOpen() {
			return
		}
		typ, msg, err := socket.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch status {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway,
				websocket.StatusNoStatusRcvd, websocket.StatusAbnormalClosure,
				websocket.StatusProtocolError:
			default:
				if !isClosedConnErr(err) {
					log.E.F("relay: unexpected read error from %s: %v", remote, err)
				}
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		s.dispatch(ctx, c, msg)
	}
}

func (s *Server) runPinger(ctx context.Context, c *Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.socket.Ping(pctx)
			cancel()
			if err != nil {
				c.markClosing()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func isClosedConnErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "use of closed network connection")
}

func remoteAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ListenAndServe binds host:port and blocks serving HTTP until Shutdown is
// called or a fatal accept error occurs, matching the teacher's
// http.ListenAndServe(addr, l) call in app/main.go's Run.
func (s *Server) ListenAndServe(host string, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("relay: listen: %w", err)
	}
	s.listener = ln
	s.httpSrv = &http.Server{Handler: s}
	log.I.F("relay: listening on %s", ln.Addr())
	err = s.httpSrv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown idempotently closes the listening socket, waits for in-flight
// WebSocket handlers to observe context cancellation, and closes every
// live connection, matching spec.md §4.9's shutdown contract.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.httpSrv != nil {
			err = s.httpSrv.Shutdown(ctx)
		}
		s.Manager.CloseAll()
		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
		}
	})
	return err
}
