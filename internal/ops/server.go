// Package ops serves the operational HTTP endpoints: health, per-user
// listings and pprof.
package ops

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	supervisor "postbot/internal/runtime/supervisor"
	"postbot/internal/schedule"
	"postbot/internal/task/engine"
	"postbot/internal/task/scheduler"
	logx "postbot/pkg/logx"
)

const DefaultAddr = "127.0.0.1:8081"

var ErrInsecureBind = errors.New("ops: non-loopback address needs a token or allow_insecure")

type Config struct {
	Enabled       bool
	Addr          string
	Token         string
	AllowInsecure bool
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = DefaultAddr
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	return c
}

// Status is the /healthz body. OK=false answers 503.
type Status struct {
	OK          bool                           `json:"ok"`
	StartedAt   time.Time                      `json:"started_at"`
	Supervisors map[string]supervisor.Snapshot `json:"supervisors,omitempty"`
	Tasks       *engine.Snapshot               `json:"tasks,omitempty"`
	Scheduler   *scheduler.Snapshot            `json:"scheduler,omitempty"`
}

type Listings interface {
	ListFor(ctx context.Context, owner int64) schedule.Listing
}

type ChannelLister interface {
	List(ctx context.Context, user int64) []string
}

type Deps struct {
	Status   func() Status
	Posts    Listings
	Channels ChannelLister
}

type Server struct {
	deps Deps
	log  logx.Logger

	mu   sync.Mutex
	cfg  Config
	srv  *http.Server
	ln   net.Listener
	addr string
}

func New(deps Deps, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{deps: deps, log: log.With(logx.String("comp", "ops"))}
}

// Apply starts, restarts or stops the listener to match cfg.
func (s *Server) Apply(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !cfg.Enabled {
		s.stopLocked(ctx)
		return nil
	}
	if !isLoopback(cfg.Addr) && cfg.Token == "" && !cfg.AllowInsecure {
		s.stopLocked(ctx)
		return ErrInsecureBind
	}
	if s.srv != nil && s.cfg == cfg {
		return nil
	}
	s.stopLocked(ctx)
	return s.startLocked(cfg)
}

func (s *Server) startLocked(cfg Config) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		s.log.Warn("ops listen failed", logx.String("addr", cfg.Addr), logx.Err(err))
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(cfg.Token),
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	s.cfg = cfg
	s.srv = srv
	s.ln = ln
	s.addr = ln.Addr().String()

	addr := s.addr
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("ops server error", logx.String("addr", addr), logx.Err(err))
		}
	}()
	s.log.Info("ops server listening", logx.String("addr", addr), logx.Bool("auth", cfg.Token != ""))
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Server) stopLocked(ctx context.Context) {
	if s.srv == nil {
		return
	}
	srv, ln, addr := s.srv, s.ln, s.addr
	s.srv, s.ln, s.addr = nil, nil, ""
	s.cfg = Config{}

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("ops shutdown error", logx.String("addr", addr), logx.Err(err))
	}
	_ = ln.Close()
	s.log.Info("ops server stopped", logx.String("addr", addr))
}

// Addr reports the bound address, or "" when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler builds the router. An empty token disables auth.
func (s *Server) Handler(token string) http.Handler {
	r := gin.New()
	r.Use(s.recover(), s.requestLog(), bearer(token))

	r.GET("/healthz", s.health)
	v1 := r.Group("/v1/users/:id")
	v1.GET("/scheduled", s.scheduled)
	v1.GET("/channels", s.channels)
	r.GET("/debug/pprof/*name", profile)
	return r
}

func (s *Server) recover() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, rec any) {
		s.log.Error("ops handler panic", logx.String("path", c.Request.URL.Path), logx.Any("panic", rec))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("ops request",
			logx.String("method", c.Request.Method),
			logx.String("path", c.FullPath()),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("dur", time.Since(start)),
		)
	}
}

func bearer(token string) gin.HandlerFunc {
	want := []byte("Bearer " + token)
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := []byte(c.GetHeader("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.Header("WWW-Authenticate", `Bearer realm="postbot"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	st := Status{OK: true}
	if s.deps.Status != nil {
		st = s.deps.Status()
	}
	code := http.StatusOK
	if !st.OK {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, st)
}

func userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}

type scheduledView struct {
	FireAt            string   `json:"fire_at"`
	State             string   `json:"state"`
	Success           int      `json:"success,omitempty"`
	Total             int      `json:"total,omitempty"`
	Variant           string   `json:"variant"`
	LinkText          string   `json:"link_text"`
	SupplementaryLink string   `json:"supplementary_link,omitempty"`
	Channels          []string `json:"channels"`
	JobID             string   `json:"job_id"`
}

func viewsOf(in []schedule.ScheduledPost) []scheduledView {
	out := make([]scheduledView, 0, len(in))
	for _, p := range in {
		out = append(out, scheduledView{
			FireAt:            p.FireAt.Format(time.RFC3339),
			State:             string(p.Status.State),
			Success:           p.Status.Success,
			Total:             p.Status.Total,
			Variant:           string(p.Content.Variant),
			LinkText:          p.Content.LinkText,
			SupplementaryLink: p.SupplementaryLink,
			Channels:          p.Channels,
			JobID:             p.JobID,
		})
	}
	return out
}

func (s *Server) scheduled(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	if s.deps.Posts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "schedule store unavailable"})
		return
	}
	l := s.deps.Posts.ListFor(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{
		"user_id": id,
		"posted":  viewsOf(l.Posted),
		"pending": viewsOf(l.Pending),
	})
}

func (s *Server) channels(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	if s.deps.Channels == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "channel registry unavailable"})
		return
	}
	list := s.deps.Channels.List(c.Request.Context(), id)
	if list == nil {
		list = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"user_id": id, "channels": list})
}

var (
	pprofCmdline = gin.WrapF(pprof.Cmdline)
	pprofProfile = gin.WrapF(pprof.Profile)
	pprofSymbol  = gin.WrapF(pprof.Symbol)
	pprofTrace   = gin.WrapF(pprof.Trace)
	pprofIndex   = gin.WrapF(pprof.Index)
)

// profile dispatches /debug/pprof/*name. Index serves named profiles
// (heap, goroutine, ...) from the request path itself.
func profile(c *gin.Context) {
	switch strings.TrimPrefix(c.Param("name"), "/") {
	case "cmdline":
		pprofCmdline(c)
	case "profile":
		pprofProfile(c)
	case "symbol":
		pprofSymbol(c)
	case "trace":
		pprofTrace(c)
	default:
		pprofIndex(c)
	}
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
