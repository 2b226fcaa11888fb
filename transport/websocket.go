package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/codestate/codestate-core/logger"
	"github.com/codestate/codestate-core/protocol"
)

// WebSocket serves each UI connection as its own request stream.
type WebSocket struct {
	d        Dispatcher
	onChange func(delta float64)
	allowed  []string
	upgrader websocket.Upgrader
}

// WSOption configures a WebSocket handler.
type WSOption func(*WebSocket)

// WithConnectionGauge is called with +1 and -1 as connections open and close.
func WithConnectionGauge(fn func(delta float64)) WSOption {
	return func(w *WebSocket) {
		w.onChange = fn
	}
}

// WithAllowedOrigins admits browser pages from origins other than loopback,
// compared case-insensitively as scheme://host[:port].
func WithAllowedOrigins(origins ...string) WSOption {
	return func(w *WebSocket) {
		w.allowed = append(w.allowed, origins...)
	}
}

// NewWebSocket creates a WebSocket handler dispatching to d.
func NewWebSocket(d Dispatcher, opts ...WSOption) *WebSocket {
	w := &WebSocket{d: d, onChange: func(float64) {}}
	for _, opt := range opts {
		opt(w)
	}
	w.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     w.checkOrigin,
	}
	return w
}

// checkOrigin admits clients that send no Origin (non-browser), loopback
// pages and the configured origins.
func (ws *WebSocket) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range ws.allowed {
		if strings.EqualFold(a, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ServeHTTP upgrades the request and serves the connection until it closes.
// Requests still running when the peer disconnects have their context
// cancelled.
func (ws *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	peer := uuid.NewString()
	log := logger.WithComponent("websocket").With("remote", r.RemoteAddr, "peer", peer)

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade refused", "origin", r.Header.Get("Origin"), "error", err)
		return
	}
	defer conn.Close()

	ws.onChange(1)
	defer ws.onChange(-1)
	log.Info("client connected")

	ctx, cancel := context.WithCancel(protocol.WithPeer(context.WithoutCancel(r.Context()), peer))

	var mu sync.Mutex
	emit := func(resp *protocol.Response) {
		mu.Lock()
		defer mu.Unlock()
		if err := conn.WriteJSON(resp); err != nil {
			log.Debug("write failed", "type", resp.Type, "error", err)
		}
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("connection closed unexpectedly", "error", err)
			} else {
				log.Info("client disconnected")
			}
			return
		}

		var req protocol.Request
		if err := json.Unmarshal(data, &req); err != nil {
			log.Error("JSON parse error", "error", err)
			emit(parseError(err))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			ws.d.Dispatch(ctx, &req, emit)
		}()
	}
}

// Server hosts the WebSocket endpoint and any extra handlers on one
// listener.
type Server struct {
	Addr    string
	WS      *WebSocket
	Metrics http.Handler
	Debug   bool // gin debug mode
}

// Router returns the routes: /ws, /healthz and, when set, /metrics.
func (s *Server) Router() *gin.Engine {
	if !s.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLog())

	router.GET("/ws", gin.WrapH(s.WS))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.Metrics != nil {
		router.GET("/metrics", gin.WrapH(s.Metrics))
	}
	return router
}

// requestLog records each HTTP request at debug level.
func requestLog() gin.HandlerFunc {
	log := logger.WithComponent("server")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	log := logger.WithComponent("server")
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", s.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
