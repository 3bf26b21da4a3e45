package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/USA-RedDragon/crashula/internal/config"
	"github.com/USA-RedDragon/crashula/internal/events"
	"github.com/USA-RedDragon/crashula/internal/metrics"
	"github.com/USA-RedDragon/crashula/internal/server/forms"
	"github.com/USA-RedDragon/crashula/internal/sessions"
	"github.com/USA-RedDragon/crashula/internal/storage"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Dependencies are shared with every request through the gin context.
// Storage holds crash log attachments. Events and Metrics may be nil.
type Dependencies struct {
	DB      *gorm.DB
	Metrics *metrics.Metrics
	Events  *events.EventBus
	Storage storage.Storage
	Revoker sessions.Revoker
}

type Server struct {
	ipv4Server        *http.Server
	ipv6Server        *http.Server
	metricsIPV4Server *http.Server
	metricsIPV6Server *http.Server
	stopped           atomic.Bool
	config            *config.Config
}

const defTimeout = 120 * time.Second

// NewRouter builds the application's gin engine without binding a listener.
func NewRouter(config *config.Config, deps Dependencies) *gin.Engine {
	forms.Setup()
	if deps.Revoker == nil {
		deps.Revoker = sessions.NewMemoryRevoker()
	}

	r := gin.New()
	r.RedirectTrailingSlash = true
	r.RedirectFixedPath = false
	r.MaxMultipartMemory = 8 << 20
	r.SetHTMLTemplate(loadTemplates())

	if config.HTTP.PProf.Enabled {
		pprof.Register(r)
	}

	applyMiddleware(r, config, "crashula", deps)
	r.Use(loadSession(config, deps.DB, deps.Revoker))
	applyRoutes(r, config)
	return r
}

func NewServer(config *config.Config, deps Dependencies) *Server {
	gin.SetMode(gin.ReleaseMode)
	if config.HTTP.PProf.Enabled {
		gin.SetMode(gin.DebugMode)
	}

	r := NewRouter(config, deps)

	var metricsIPV4Server *http.Server
	var metricsIPV6Server *http.Server

	if config.HTTP.Metrics.Enabled {
		metricsRouter := gin.New()
		applyMiddleware(metricsRouter, config, "metrics", deps)

		metricsRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))
		metricsIPV4Server = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", config.HTTP.Metrics.IPV4Host, config.HTTP.Metrics.Port),
			ReadHeaderTimeout: defTimeout,
			WriteTimeout:      defTimeout,
			Handler:           metricsRouter,
		}
		metricsIPV6Server = &http.Server{
			Addr:              fmt.Sprintf("[%s]:%d", config.HTTP.Metrics.IPV6Host, config.HTTP.Metrics.Port),
			ReadHeaderTimeout: defTimeout,
			WriteTimeout:      defTimeout,
			Handler:           metricsRouter,
		}
	}

	return &Server{
		ipv4Server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", config.HTTP.IPV4Host, config.HTTP.Port),
			ReadHeaderTimeout: defTimeout,
			WriteTimeout:      defTimeout,
			Handler:           r,
		},
		ipv6Server: &http.Server{
			Addr:              fmt.Sprintf("[%s]:%d", config.HTTP.IPV6Host, config.HTTP.Port),
			ReadHeaderTimeout: defTimeout,
			WriteTimeout:      defTimeout,
			Handler:           r,
		},
		metricsIPV4Server: metricsIPV4Server,
		metricsIPV6Server: metricsIPV6Server,
		config:            config,
	}
}

func (s *Server) serve(name, network string, srv *http.Server) error {
	if srv == nil {
		return nil
	}
	listener, err := net.Listen(network, srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen for %s on %s: %w", name, srv.Addr, err)
	}
	go func() {
		if err := srv.Serve(listener); err != nil && !s.stopped.Load() {
			slog.Error("Server error", "server", name, "error", err.Error())
		}
	}()
	return nil
}

func (s *Server) Start() error {
	if err := s.serve("HTTP IPv4", "tcp4", s.ipv4Server); err != nil {
		return err
	}
	if err := s.serve("HTTP IPv6", "tcp6", s.ipv6Server); err != nil {
		return err
	}
	slog.Info("HTTP server started", "ipv4", s.config.HTTP.IPV4Host, "ipv6", s.config.HTTP.IPV6Host, "port", s.config.HTTP.Port)

	if s.config.HTTP.Metrics.Enabled {
		if err := s.serve("metrics IPv4", "tcp4", s.metricsIPV4Server); err != nil {
			return err
		}
		if err := s.serve("metrics IPv6", "tcp6", s.metricsIPV6Server); err != nil {
			return err
		}
		slog.Info("Metrics server started", "ipv4", s.config.HTTP.Metrics.IPV4Host, "ipv6", s.config.HTTP.Metrics.IPV6Host, "port", s.config.HTTP.Metrics.Port)
	}
	return nil
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 240*time.Second)
	defer cancel()

	s.stopped.Store(true)

	errGrp := errgroup.Group{}
	if s.ipv4Server != nil {
		errGrp.Go(func() error {
			return s.ipv4Server.Shutdown(ctx)
		})
	}
	if s.ipv6Server != nil {
		errGrp.Go(func() error {
			return s.ipv6Server.Shutdown(ctx)
		})
	}
	if s.metricsIPV4Server != nil {
		errGrp.Go(func() error {
			return s.metricsIPV4Server.Shutdown(ctx)
		})
	}
	if s.metricsIPV6Server != nil {
		errGrp.Go(func() error {
			return s.metricsIPV6Server.Shutdown(ctx)
		})
	}

	return errGrp.Wait()
}
