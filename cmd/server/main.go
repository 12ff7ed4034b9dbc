package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resqride/backend/internal/audit"
	auditrepo "resqride/backend/internal/audit/repository"
	"resqride/backend/internal/blacklist"
	"resqride/backend/internal/config"
	"resqride/backend/internal/db"
	"resqride/backend/internal/identity/provider"
	"resqride/backend/internal/identity/service"
	"resqride/backend/internal/platform/rbac"
	"resqride/backend/internal/policy/engine"
	"resqride/backend/internal/security"
	"resqride/backend/internal/server"
	sessionrepo "resqride/backend/internal/session/repository"
	"resqride/backend/internal/telemetry"
	"resqride/backend/internal/telemetry/otel"
	"resqride/backend/internal/telemetry/producer"
	userrepo "resqride/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	pool, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	codec, err := security.NewTokenCodec(
		cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer,
		cfg.AccessTTL(), cfg.RefreshTTL(),
	)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Security event pipeline: OTel and Kafka emitters are both optional.
	var emitters telemetry.MultiEmitter
	if cfg.OTLPEndpoint != "" {
		providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "resqride-backend", cfg.OTLPInsecure)
		if err != nil {
			log.Fatalf("otel: %v", err)
		}
		defer providers.Shutdown(context.Background())
		emitters = append(emitters, otel.NewEventEmitter(providers.LoggerProvider))
	}
	if kp := producer.NewKafkaProducer(cfg.SecurityKafkaBrokersList(), cfg.SecurityKafkaTopic); kp != nil {
		defer kp.Close()
		emitters = append(emitters, kp)
	}

	auditLog := audit.NewLogger(auditrepo.NewPostgresRepository(pool), emitters)
	users := userrepo.NewPostgresRepository(pool)
	sessions := sessionrepo.NewPostgresRepository(pool)
	revoked := blacklist.New(cfg.BlacklistTTL())
	hasher := security.NewHasher(cfg.BcryptCost)

	var idp provider.Provider
	if cfg.IdentityProviderURL != "" {
		idp = provider.NewHTTPProvider(cfg.IdentityProviderURL, cfg.IdentityProviderClientID, cfg.IdentityProviderClientSecret)
	}

	auth := service.NewAuthService(users, sessions, codec, hasher, revoked, auditLog, idp, cfg.RetentionTTL())
	tokens := service.NewTokenLifecycleManager(users, sessions, codec, revoked, auditLog, cfg.RetentionTTL())

	evaluator := engine.NewOPAEvaluator()
	if err := evaluator.HealthCheck(ctx); err != nil {
		log.Fatalf("policy: %v", err)
	}
	guard := rbac.NewGuard(auditLog, evaluator)

	go revoked.Run(ctx, cfg.SweepEvery())
	go tokens.Run(ctx, cfg.SweepEvery())

	handler := server.NewHandler(auth, tokens, guard, revoked, auditLog)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.NewRouter(handler, tokens, cfg.CORSOriginList()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("http server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down http server...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	time.Sleep(telemetry.ShutdownDrainDuration)
	log.Println("http server stopped")
}
