package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/net/netutil"

	"github.com/cryguy/jsbridge/internal/codec"
	"github.com/cryguy/jsbridge/internal/core"
)

// Target runs requests. Implementations must be safe for concurrent use;
// the server calls them from one goroutine per request.
type Target interface {
	Call(ctx context.Context, args []any) (any, error)
	Eval(ctx context.Context, script string, global bool) (any, error)
}

// Server accepts WebSocket connections and forwards their requests to a
// Target.
type Server struct {
	target Target
	cfg    core.RemoteConfig
	codec  *codec.Codec
	log    *slog.Logger
}

// NewServer creates a Server.
func NewServer(target Target, cfg core.RemoteConfig, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{target: target, cfg: cfg, codec: codec.New(log), log: log}
}

// ListenAndServe listens on the configured address and serves until ctx
// ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends. A positive MaxClients
// caps the number of open connections.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxClients > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxClients)
	}
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Info("remote listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

// ServeHTTP upgrades the request and serves the connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{CompressionMode: websocket.CompressionDisabled}
	if s.cfg.Compress {
		opts.CompressionMode = websocket.CompressionContextTakeover
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.log.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(MaxMessageBytes)
	s.serveConn(r.Context(), conn, r.RemoteAddr)
}

func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn, peer string) {
	ctx, cancel := context.WithCancel(ctx)
	var (
		wg      sync.WaitGroup
		writeMu sync.Mutex
	)
	defer func() {
		cancel()
		wg.Wait()
		_ = conn.CloseNow()
	}()

	s.log.Debug("remote client connected", "remote", peer)
	for {
		var req Request
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				s.log.Debug("remote read failed", "remote", peer, "error", err)
			}
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := s.handle(ctx, req)
			writeMu.Lock()
			defer writeMu.Unlock()
			if err := wsjson.Write(ctx, conn, resp); err != nil {
				s.log.Debug("remote write failed", "remote", peer, "id", req.ID, "error", err)
			}
		}()
	}
}

func (s *Server) handle(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID}
	res, err := s.run(ctx, req)
	if err == nil {
		var v codec.Value
		if v, err = s.codec.FromHost(res); err == nil {
			resp.Result = &v
			return resp
		}
	}
	s.log.Debug("remote request failed", "id", req.ID, "op", req.Op, "error", err)
	resp.Error = errorBody(err)
	return resp
}

func (s *Server) run(ctx context.Context, req Request) (any, error) {
	switch req.Op {
	case OpCall:
		args := make([]any, len(req.Args))
		for i, a := range req.Args {
			h, err := s.codec.ToHost(a)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i+1, err)
			}
			args[i] = h
		}
		return s.target.Call(ctx, args)
	case OpEval:
		switch req.Mode {
		case "", ModeDirect:
			return s.target.Eval(ctx, req.Script, false)
		case ModeGlobal:
			return s.target.Eval(ctx, req.Script, true)
		}
		return nil, core.Errorf(core.KindUsage, req.Op, "unknown eval mode %q", req.Mode)
	}
	return nil, core.Errorf(core.KindUsage, req.Op, "unknown operation %q", req.Op)
}
