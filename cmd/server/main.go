package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"parkncharge/registration/internal/config"
	"parkncharge/registration/internal/db"
	healthhandler "parkncharge/registration/internal/health/handler"
	"parkncharge/registration/internal/logging"
	"parkncharge/registration/internal/metrics"
	"parkncharge/registration/internal/otp"
	registrationhandler "parkncharge/registration/internal/registration/handler"
	"parkncharge/registration/internal/registration/repository"
	"parkncharge/registration/internal/registration/service"
	"parkncharge/registration/internal/security"
	"parkncharge/registration/internal/server"
	"parkncharge/registration/internal/server/middleware"
	"parkncharge/registration/internal/sms"
	"parkncharge/registration/internal/telemetry"
	telemetryotel "parkncharge/registration/internal/telemetry/otel"
	"parkncharge/registration/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", "")
		bootLog.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.LogLevel, cfg.Env)

	ctx := context.Background()

	otelProviders, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, "parkncharge-registration", cfg.OTLPInsecure, log)
	if err != nil {
		log.Fatal().Err(err).Msg("otel")
	}
	otelProviders.SetGlobal()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	database, err := db.Open(openCtx, cfg.DatabaseURL, db.DefaultPool)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}

	codec, err := security.NewCodec(cfg.FieldKey())
	if err != nil {
		log.Fatal().Err(err).Msg("field codec")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	repo := repository.NewPostgresRepository(database, security.NewHasher(cfg.BcryptCost), cfg.OTPTTL())
	svc := service.NewRegistrationService(repo, codec, otp.Random{}, newDispatcher(cfg, log), log, m)

	events, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.RegistrationEventsTopic)
	if err != nil {
		log.Fatal().Err(err).Msg("kafka producer")
	}
	var emitter telemetry.EventEmitter
	if events != nil {
		emitter = events
		log.Info().Strs("brokers", cfg.KafkaBrokersList()).Str("topic", cfg.RegistrationEventsTopic).Msg("registration events enabled")
	}

	verifier, err := newVerifier(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("api client key")
	}
	if verifier == nil {
		log.Warn().Msg("API_CLIENT_PUBLIC_KEY not set; registration routes are unauthenticated")
	}

	health := healthhandler.NewServer(database)
	router := server.NewRouter(server.Deps{
		Registration: registrationhandler.New(svc, log, emitter),
		Health:       health,
		Verifier:     verifier,
		Metrics:      m,
		Gatherer:     reg,
		Logger:       log,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("grpc listen")
	}
	grpcSrv := server.NewGRPCServer(health)

	go func() {
		log.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC health server listening")
		if err := grpcSrv.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("grpc serve")
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http serve")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	grpcSrv.GracefulStop()

	// Let in-flight async event emits finish before closing the producer.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := events.Close(); err != nil {
		log.Warn().Err(err).Msg("kafka producer close")
	}
	if err := otelProviders.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	closeDB(database, log)
	log.Info().Msg("stopped")
}

// newDispatcher returns the SMS gateway client, or the logging dispatcher in
// development when no gateway key is configured.
func newDispatcher(cfg *config.Config, log zerolog.Logger) sms.Dispatcher {
	if cfg.SMSAPIKey == "" && !cfg.IsProduction() {
		log.Warn().Msg("SMS_API_KEY not set; SMS messages are logged instead of sent")
		return sms.LogDispatcher{Logger: log}
	}
	return sms.NewClient(cfg.SMSAPIKey, cfg.SMSBaseURL, cfg.SMSSource, cfg.SMSRequestTimeout())
}

func newVerifier(cfg *config.Config) (middleware.TokenVerifier, error) {
	if cfg.APIClientPublicKey == "" {
		return nil, nil
	}
	pub, err := security.ParsePublicKey(cfg.APIClientPublicKey)
	if err != nil {
		return nil, err
	}
	return security.NewClientVerifier(pub, cfg.APIClientIssuer, cfg.APIClientAudience), nil
}

func closeDB(database *sql.DB, log zerolog.Logger) {
	if err := database.Close(); err != nil {
		log.Warn().Err(err).Msg("db close")
	}
}
