package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/raksha/internal/auth"
	"github.com/geocoder89/raksha/internal/cache"
	"github.com/geocoder89/raksha/internal/config"
	apphttp "github.com/geocoder89/raksha/internal/http"
	"github.com/geocoder89/raksha/internal/http/handlers"
	"github.com/geocoder89/raksha/internal/notifications"
	"github.com/geocoder89/raksha/internal/observability"
	"github.com/geocoder89/raksha/internal/redisclient"
	"github.com/geocoder89/raksha/internal/sos"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-only-secret"
		log.Warn("JWT_SECRET not set, using an insecure development secret")
	}

	ctx := context.Background()

	if cfg.OTelEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, cfg.OTelServiceName, cfg.OTelEndpoint)
		if err != nil {
			log.Error("tracer init failed", "err", err)
		} else {
			defer func() {
				sctx, cancel := config.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTracer(sctx)
			}()
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	st, err := openStore(ctx, cfg, prom, log)
	if err != nil {
		log.Error("store init failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer st.close()

	checks := map[string]handlers.PingFunc{"store": st.ping}

	var zoneCache cache.Store = cache.New(cfg.ZoneCacheTTL())
	if cfg.RedisAddr != "" {
		rc := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rc.Close()

		pctx, cancel := config.WithTimeout(ctx, 2*time.Second)
		if err := rc.Ping(pctx); err != nil {
			log.Warn("redis unreachable at startup, cache reads will miss", "addr", cfg.RedisAddr, "err", err)
		}
		cancel()

		zoneCache = cache.NewRedis(rc.Redis(), cfg.ZoneCacheTTL(), log)
		checks["redis"] = rc.Ping
	}

	var sms notifications.SMSSender = notifications.NewLogSMS(log)
	if cfg.TwilioEnabled() {
		sms = notifications.NewTwilioSMS(notifications.TwilioConfig{
			AccountSid:          cfg.TwilioAccountSid,
			AuthToken:           cfg.TwilioAuthToken,
			MessagingServiceSid: cfg.TwilioMessagingServiceSid,
		}, log)
		log.Info("twilio sms enabled")
	}

	push := notifications.NewProtectedPushSender(
		notifications.NewExpoClient(cfg.ExpoPushURL, cfg.PushTimeout()),
		notifications.ProtectedPushConfig{Timeout: cfg.PushTimeout()},
	)

	sosService := sos.NewService(sos.Deps{
		Users: st.users,
		SMS:   sms,
		Email: notifications.NewLogEmail(log),
		Push:  push,
		Prom:  prom,
		Log:   log,
	})

	router := apphttp.NewRouter(log, apphttp.Deps{
		Env:                cfg.Env,
		ServiceName:        cfg.OTelServiceName,
		Users:              st.users,
		Zones:              st.zones,
		ZoneCache:          zoneCache,
		Tokens:             auth.NewManager(cfg.JWTSecret, cfg.JWTTTL()),
		SOS:                sosService,
		Prom:               prom,
		Gatherer:           reg,
		Checks:             checks,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxBodyBytes:       cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// SOS waits on the push provider
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		sctx, cancel := config.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")
	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
