package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/adapters/repository"
	app "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/config"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("ARENA_ADDR", ":8080")
			_ = os.Setenv("ARENA_MATCH_BOOK_SIZE", "1000")
			_ = os.Setenv("ARENA_ALLOW_SELF_JUDGING", "true")
			defer func() {
				_ = os.Unsetenv("ARENA_ADDR")
				_ = os.Unsetenv("ARENA_MATCH_BOOK_SIZE")
				_ = os.Unsetenv("ARENA_ALLOW_SELF_JUDGING")
			}()

			convey.Convey("Then configuration should map onto service options", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")

				svc := app.New(serviceOptions(cfg, logger.Get(), repository.NopJournal{})...)
				stats := svc.GetStats()
				convey.So(stats["matchBookSize"], convey.ShouldEqual, 1000)
				convey.So(stats["allowSelfJudging"], convey.ShouldEqual, true)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.Convey("Then metrics manager should be creatable", func() {
				manager := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
				convey.So(manager, convey.ShouldNotBeNil)
			})

			convey.Convey("Then configuration should drive the global manager", func() {
				cfg := config.New()
				cfg.MetricsEnabled = false
				cfg.MetricsRefreshSeconds = 2
				defer metrics.Init()

				manager := initMetrics(cfg)
				convey.So(manager.Enabled(), convey.ShouldBeFalse)
				convey.So(manager.RefreshInterval(), convey.ShouldEqual, 2*time.Second)
			})
		})
	})
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given a started service and its mux", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.RateLimitRPS = 0
		svc := app.New(serviceOptions(cfg, logger.Get(), repository.NopJournal{})...)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()
		mux := newMux(ctx, cfg, svc)

		for _, path := range []string{"/healthz", "/stats", "/metrics", "/leaderboard", "/teams", "/api-docs", "/openapi.yaml"} {
			convey.Convey("Then GET "+path+" should be served", func() {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest("GET", path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})
		}

		convey.Convey("Then protected routes should require a token", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("GET", "/matches/next", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusUnauthorized)
		})
	})

	convey.Convey("Given a configured rate limit", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.RateLimitRPS = 0.001
		cfg.RateLimitBurst = 1
		svc := app.New(serviceOptions(cfg, logger.Get(), repository.NopJournal{})...)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()
		mux := newMux(ctx, cfg, svc)

		convey.Convey("Then the mux should throttle clients", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("GET", "/leaderboard", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)

			w = httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("GET", "/leaderboard", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusTooManyRequests)
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing system metrics updater", func() {
			convey.Convey("Then it should return once the context ends", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx, 10*time.Millisecond)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing service metrics updater", func() {
			svc := app.New()
			convey.So(svc.Start(context.Background()), convey.ShouldBeNil)

			convey.Convey("Then it should return once the service stops", func() {
				done := make(chan struct{})
				go func() {
					startServiceMetricsUpdater(context.Background(), svc, 10*time.Millisecond)
					close(done)
				}()
				svc.Stop()

				select {
				case <-done:
				case <-time.After(time.Second):
					convey.So("updater still running", convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(func() {
					updateSystemMetrics()
				}, convey.ShouldNotPanic)
			})
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When testing invalid configuration", func() {
			_ = os.Setenv("ARENA_ADDR", "")
			defer func() { _ = os.Unsetenv("ARENA_ADDR") }()

			convey.Convey("Then configuration loading should fail", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the storage driver is unknown", func() {
			_, err := repository.OpenJournal(context.Background(), "mongo", "x")

			convey.Convey("Then opening storage should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
