package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/phonebook/internal/chardev"
	"github.com/danmuck/phonebook/internal/observability"
	"github.com/danmuck/phonebook/internal/phonebook"
	"github.com/danmuck/phonebook/internal/strbuf"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

// HTTP exposes the device over a small JSON API. Every request opens the
// device for its own duration.
type HTTP struct {
	addr    string
	dev     *chardev.Device
	chunk   int
	started time.Time
	opts    options
	router  *gin.Engine
	srv     *http.Server
}

func NewHTTP(addr string, dev *chardev.Device, chunk int, corsOrigins []string, opts ...Option) *HTTP {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger, "/health", "/metrics"))
	r.Use(observability.RequestMetrics(dev.Name()))
	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: corsOrigins,
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &HTTP{
		addr:    addr,
		dev:     dev,
		chunk:   chunk,
		started: time.Now(),
		opts:    buildOptions(opts),
		router:  r,
	}
	s.registerRoutes()
	return s
}

func (s *HTTP) Router() *gin.Engine {
	return s.router
}

func (s *HTTP) registerRoutes() {
	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.POST("/command", s.command)
	s.router.GET("/response", s.response)
}

// Serve listens on the configured address until ctx is done, then shuts
// down within timeout.
func (s *HTTP) Serve(ctx context.Context, timeout time.Duration) error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		TLSConfig:         s.opts.tls,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", s.addr).
			Str("device", s.dev.Name()).
			Bool("tls", s.opts.tls != nil).
			Msg("http listening")
		if s.opts.tls != nil {
			errc <- s.srv.ListenAndServeTLS("", "")
			return
		}
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type commandResponse struct {
	Op       string `json:"op"`
	Status   string `json:"status"`
	Code     uint8  `json:"code"`
	Consumed int    `json:"consumed"`
	Output   string `json:"output"`
	Error    string `json:"error,omitempty"`
}

func (s *HTTP) health(c *gin.Context) {
	surnames, contacts := s.dev.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"uptime":      time.Since(s.started).String(),
		"device":      s.dev.Name(),
		"version":     version,
		"surnames":    surnames,
		"contacts":    contacts,
		"outstanding": strbuf.Outstanding(),
	})
}

// command applies the request body as one command and returns the whole
// response.
func (s *HTTP) command(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h, ok := s.open(c)
	if !ok {
		return
	}
	defer h.Close()

	out, _, applyErr := h.Apply(body)
	text, err := s.drain(h)
	if err != nil {
		s.deviceError(c, err)
		return
	}
	resp := commandResponse{
		Op:       out.Op.String(),
		Status:   out.Status.String(),
		Code:     uint8(out.Status),
		Consumed: out.Consumed,
		Output:   string(text),
	}
	if applyErr != nil {
		resp.Error = applyErr.Error()
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	c.JSON(httpStatus(out.Status), resp)
}

// response reads the current response without applying anything. With
// max set it returns at most one chunk of that size and advances the read
// cursor, so repeated calls page through the response.
func (s *HTTP) response(c *gin.Context) {
	max := 0
	if raw := c.Query("max"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max must be a positive integer"})
			return
		}
		max = v
	}
	h, ok := s.open(c)
	if !ok {
		return
	}
	defer h.Close()

	st, err := h.Status()
	if err != nil {
		s.deviceError(c, err)
		return
	}
	if max > 0 {
		data, final, err := h.Next(max)
		if err != nil {
			s.deviceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": st.String(), "output": string(data), "final": final})
		return
	}
	text, err := s.drain(h)
	if err != nil {
		s.deviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": st.String(), "output": string(text), "final": true})
}

func (s *HTTP) open(c *gin.Context) (*chardev.Handle, bool) {
	h, err := s.dev.Open()
	if err != nil {
		s.deviceError(c, err)
		return nil, false
	}
	return h, true
}

// drain reads chunks until the end of the response. Reading past the end
// rewinds the cursor, so a later read starts from the beginning.
func (s *HTTP) drain(h *chardev.Handle) ([]byte, error) {
	var out []byte
	for {
		data, final, err := h.Next(s.chunk)
		if err != nil {
			return nil, err
		}
		if final {
			return out, nil
		}
		out = append(out, data...)
	}
}

func (s *HTTP) deviceError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, chardev.ErrBusy):
		code = http.StatusConflict
	case errors.Is(err, chardev.ErrDown):
		code = http.StatusServiceUnavailable
	}
	_ = c.Error(err)
	c.JSON(code, gin.H{"error": err.Error()})
}

func httpStatus(st phonebook.Status) int {
	switch st {
	case phonebook.StatusSurnameNotFound, phonebook.StatusNameNotFound:
		return http.StatusNotFound
	case phonebook.StatusInvalidOperation, phonebook.StatusArgumentTooLong,
		phonebook.StatusMissingSurname, phonebook.StatusMissingName:
		return http.StatusBadRequest
	default:
		return http.StatusOK
	}
}
