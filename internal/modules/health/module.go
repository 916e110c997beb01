package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"fx_bot/internal/metrics"
	"fx_bot/internal/modules/config"
	"fx_bot/internal/modules/health/service"
	"fx_bot/internal/state"
	"fx_bot/pkg/logger"
)

type Config struct {
	Addr string // например ":8080"
}

func NewConfig(cfg *config.Config) Config {
	return Config{Addr: fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.Service.AdminPort)}
}

// PositionState: пики, cooldown и кеш прибыли для /healthz.
type PositionState interface {
	Snapshot(now time.Time) state.Snapshot
}

type healthResponse struct {
	service.Snapshot
	Positions state.Snapshot `json:"positions"`
}

func NewRouter(st *service.State, store *state.Store) http.Handler {
	return newRouter(st, store)
}

func newRouter(st *service.State, positions PositionState) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	// liveness: процесс жив
	r.GET("/livez", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.GET("/readyz", func(c *gin.Context) {
		if !st.Ready() {
			c.String(http.StatusServiceUnavailable, "not ready")
			return
		}
		c.String(http.StatusOK, "ready")
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, healthResponse{
			Snapshot:  st.Snapshot(),
			Positions: positions.Snapshot(time.Now()),
		})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg Config, h http.Handler) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			logger.Info("[HEALTH] слушаем %s", ln.Addr())
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("[HEALTH] http: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewConfig,
			NewRouter,
		),
		fx.Invoke(RunHTTP),
	)
}
