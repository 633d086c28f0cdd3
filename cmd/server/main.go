package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	adminhandler "minderdesk/internal/admin/handler"
	adminservice "minderdesk/internal/admin/service"
	apphandler "minderdesk/internal/application/handler"
	appservice "minderdesk/internal/application/service"
	appstore "minderdesk/internal/application/store"
	"minderdesk/internal/contact"
	emphandler "minderdesk/internal/employee/handler"
	employeeservice "minderdesk/internal/employee/service"
	empstore "minderdesk/internal/employee/store"
	memberhandler "minderdesk/internal/member/handler"
	memberservice "minderdesk/internal/member/service"
	memberstore "minderdesk/internal/member/store"
	"minderdesk/internal/notify"
	"minderdesk/internal/platform/config"
	"minderdesk/internal/platform/httpserver"
	"minderdesk/internal/platform/logger"
	"minderdesk/internal/platform/metrics"
	"minderdesk/internal/platform/middleware"
	platformpg "minderdesk/internal/platform/postgres"
	platformredis "minderdesk/internal/platform/redis"
	"minderdesk/internal/postcode"
	refhandler "minderdesk/internal/reference/handler"
	refservice "minderdesk/internal/reference/service"
	refstore "minderdesk/internal/reference/store"
	scanhandler "minderdesk/internal/scanner/handler"
	scanservice "minderdesk/internal/scanner/service"
	httptransport "minderdesk/internal/transport/http"
	"minderdesk/pkg/platform/audit"
	auditkafka "minderdesk/pkg/platform/audit/kafka"
	auditmemory "minderdesk/pkg/platform/audit/memory"
	auditpg "minderdesk/pkg/platform/audit/postgres"
)

// Store unions so one variable serves every service that shares a
// backing table.
type memberStore interface {
	memberservice.Store
	scanservice.MemberStore
	employeeservice.MemberStore
}

type applicationStore interface {
	appservice.Store
	employeeservice.ApplicationStore
}

type referenceStore interface {
	refservice.Store
	employeeservice.OwnedDeleter
}

func main() {
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash for an admin password and exit")
	flag.Parse()
	if *hashPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*hashPassword), bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintln(os.Stderr, "hash generation failed:", err)
			os.Exit(1)
		}
		fmt.Println(string(hash))
		return
	}

	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()
	ctx := context.Background()

	var (
		applications applicationStore
		employees    employeeservice.Store
		members      memberStore
		references   referenceStore
		auditStore   audit.Store
		db           *sql.DB
	)

	if cfg.DatabaseURL != "" {
		conn, err := platformpg.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		if err := platformpg.RunMigrations(ctx, conn, cfg.MigrationsPath); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		applications = appstore.NewPostgres(conn)
		employees = empstore.NewPostgres(conn)
		members = memberstore.NewPostgres(conn)
		references = refstore.NewPostgres(conn)
		auditStore = auditpg.New(conn)
		db = conn
		log.Info("using postgres stores")
	} else {
		applications = appstore.NewInMemory()
		employees = empstore.NewInMemory()
		members = memberstore.NewInMemory()
		references = refstore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := auditkafka.New(cfg.KafkaBrokers, cfg.AuditTopic, auditStore, log)
		if err != nil {
			log.Error("kafka audit publisher unavailable, using local store only", "error", err)
		} else {
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := publisher.Close(closeCtx); err != nil {
					log.Error("kafka close failed", "error", err)
				}
			}()
			auditStore = publisher
			log.Info("audit events publishing to kafka", "topic", cfg.AuditTopic)
		}
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable, falling back to local cache and limits", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var limiter middleware.Limiter
	if redisClient != nil {
		limiter = platformredis.NewFixedWindowLimiter(redisClient, cfg.PublicRateLimit, cfg.PublicRateWindow)
	} else {
		limiter = middleware.NewMemoryLimiter(cfg.PublicRateLimit, cfg.PublicRateWindow)
	}

	mailer := buildMailer(ctx, cfg, log)
	dispatcher := notify.NewDispatcher(mailer, log, m)

	employeeSvc := employeeservice.New(employees, applications, members, references, auditStore, log)
	applicationSvc := appservice.New(applications, employeeSvc, auditStore, m, log)
	resolver := contact.NewResolver(applicationSvc, employeeSvc)
	memberSvc := memberservice.New(members, dispatcher, resolver, auditStore, log, cfg.AppBaseURL)
	referenceSvc := refservice.New(references, dispatcher, resolver, auditStore, m, log, cfg.AppBaseURL)
	scannerSvc := scanservice.New(members, dispatcher, resolver, auditStore, m, log, cfg.BirthdayHorizonDays)

	authenticator := adminservice.NewAuthenticator(cfg.AdminEmail, cfg.AdminPasswordHash, cfg.JWTSigningKey, cfg.SessionDuration)
	aggregator := adminservice.NewAggregator(memberSvc, cfg.OverdueAfter)

	applicationH := apphandler.New(applicationSvc, log)
	employeeH := emphandler.New(employeeSvc, log)
	memberH := memberhandler.New(memberSvc, log)
	referenceH := refhandler.New(referenceSvc, log)
	scannerH := scanhandler.New(scannerSvc, log)
	adminH := adminhandler.New(authenticator, aggregator, auditStore, log)
	postcodeH := postcode.NewHandler(
		postcode.NewClient(cfg.PostcodeAPIBaseURL, redisClient, cfg.PostcodeCacheTTL, log), log)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:        log,
		Metrics:       m,
		Validator:     authenticator,
		DB:            db,
		PublicLimiter: limiter,
		Public:        []httptransport.PublicRegistrar{applicationH, memberH, referenceH, postcodeH},
		AdminPublic:   []httptransport.PublicRegistrar{adminH},
		Admin: []httptransport.AdminRegistrar{
			applicationH, employeeH, memberH, referenceH, scannerH, adminH,
		},
	})

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("minderdesk listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

func buildMailer(ctx context.Context, cfg config.Config, log *slog.Logger) notify.Mailer {
	if cfg.FromEmail == "" {
		log.Warn("SES_FROM_EMAIL not set, email sending disabled")
		return &notify.DisabledMailer{Logger: log}
	}
	mailer, err := notify.NewSESMailer(ctx, cfg.AWSRegion, cfg.FromEmail, cfg.FromName)
	if err != nil {
		log.Error("SES unavailable, email sending disabled", "error", err)
		return &notify.DisabledMailer{Logger: log}
	}
	log.Info("email sending via SES", "from", cfg.FromEmail, "region", cfg.AWSRegion)
	return mailer
}
