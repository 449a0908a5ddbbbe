package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"shuttle_tracker/internal/config"
	"shuttle_tracker/internal/controllers"
	"shuttle_tracker/internal/events"
	"shuttle_tracker/internal/hub"
	"shuttle_tracker/internal/livecache"
	"shuttle_tracker/internal/logger"
	"shuttle_tracker/internal/metrics"
	"shuttle_tracker/internal/middleware"
	"shuttle_tracker/internal/notify"
	"shuttle_tracker/internal/routes"
	"shuttle_tracker/internal/services"
	"shuttle_tracker/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration.")
	}

	accessLog, err := logger.Setup(cfg.Log)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up logging.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, accessLog); err != nil {
		logrus.WithError(err).Fatal("Server stopped with error.")
	}
	logrus.Info("Server stopped.")
}

func openStore(cfg config.Config) (store.Store, error) {
	if cfg.Database.Driver == "memory" {
		logrus.Warn("Using in-memory store; data is lost on restart.")
		return store.NewMemoryStore(), nil
	}
	db, err := config.OpenDB(cfg.Database, logger.GormLogger())
	if err != nil {
		return nil, err
	}
	return store.NewGormStore(db), nil
}

// sinks holds the optional event sinks so they can be closed on shutdown.
type sinks struct {
	redis *livecache.RedisGeo
	kafka *events.KafkaPublisher
	nats  *events.NATSPublisher
}

func (s *sinks) close() {
	if s.kafka != nil {
		if err := s.kafka.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close Kafka writer.")
		}
	}
	if s.nats != nil {
		s.nats.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close Redis client.")
		}
	}
}

// openSinks connects every configured sink. A sink that cannot be reached at
// startup is skipped so the tracker still serves requests.
func openSinks(ctx context.Context, cfg config.Config, pub *events.Multi, m *metrics.Collector) *sinks {
	s := &sinks{}

	if cfg.Redis.Addr != "" {
		r := livecache.NewRedisGeo(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.GeoKey)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := r.Ping(pingCtx)
		cancel()
		if err != nil {
			logrus.WithError(err).WithField("addr", cfg.Redis.Addr).Warn("Redis unreachable, nearby search falls back to the database.")
			_ = r.Close()
		} else {
			s.redis = r
			pub.Add("redis", r)
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		s.kafka = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, m)
		pub.Add("kafka", s.kafka)
	}

	if cfg.NATS.URL != "" {
		n, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			logrus.WithError(err).WithField("url", cfg.NATS.URL).Warn("NATS unreachable, skipping sink.")
		} else {
			s.nats = n
			pub.Add("nats", n)
		}
	}
	return s
}

func run(ctx context.Context, cfg config.Config, accessLog io.Writer) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	if cfg.SeedSampleData {
		seeded, err := store.Seed(ctx, st, services.HashPassword)
		if err != nil {
			return err
		}
		if seeded {
			logrus.Info("Sample data seeded.")
		}
	}

	m := metrics.NewCollector()
	liveFeed := hub.New(m)
	pub := events.NewMulti(m).Add("hub", liveFeed)
	extra := openSinks(ctx, cfg, pub, m)
	defer extra.close()

	var sender notify.Sender = notify.LogSender{}
	if cfg.Twilio.Enabled() {
		sender = notify.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber)
	} else {
		logrus.Info("Twilio not configured, SMS notifications are logged only.")
	}
	dispatcher := notify.NewDispatcher(sender, cfg.NotifyTimeout, m)

	locations := services.NewLocationService(st, pub, m)
	if extra.redis != nil {
		locations.WithNearbyIndex(extra.redis)
	}
	eta := services.NewETAService(st, cfg.DefaultSpeedMps, cfg.RouteCacheSize, cfg.RouteCacheTTL)

	ctl := &controllers.Controller{
		Auth:         services.NewAuthService(st),
		Locations:    locations,
		WaitRequests: services.NewWaitRequestService(st, dispatcher, pub, m),
		ETA:          eta,
		Admin:        services.NewAdminService(st, eta),
		Tokens:       middleware.NewTokens(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL),
		Hub:          liveFeed,
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: routes.SetupRouter(ctl, routes.Options{
			Metrics:     m,
			AccessLog:   accessLog,
			CORSOrigins: cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", cfg.HTTPAddr).Info("Server running.")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logrus.Info("Shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	liveFeed.Close()
	dispatcher.Wait()
	return err
}
