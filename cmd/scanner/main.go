// Command scanner runs one 16th-birthday scan and prints the summary as
// JSON. Schedule it daily (cron, systemd timer); the admin API exposes
// the same scan for on-demand runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	appservice "minderdesk/internal/application/service"
	"minderdesk/internal/application/store"
	"minderdesk/internal/contact"
	employeeservice "minderdesk/internal/employee/service"
	empstore "minderdesk/internal/employee/store"
	memberstore "minderdesk/internal/member/store"
	"minderdesk/internal/notify"
	"minderdesk/internal/platform/config"
	"minderdesk/internal/platform/logger"
	platformpg "minderdesk/internal/platform/postgres"
	refstore "minderdesk/internal/reference/store"
	scanservice "minderdesk/internal/scanner/service"
	auditpg "minderdesk/pkg/platform/audit/postgres"
	"minderdesk/pkg/requestcontext"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if cfg.DatabaseURL == "" {
		log.Error("DATABASE_URL is required for the scanner")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = requestcontext.WithTime(ctx, time.Now())

	db, err := platformpg.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	members := memberstore.NewPostgres(db)
	auditStore := auditpg.New(db)

	var mailer notify.Mailer
	if cfg.FromEmail == "" {
		log.Warn("SES_FROM_EMAIL not set, email sending disabled")
		mailer = &notify.DisabledMailer{Logger: log}
	} else {
		mailer, err = notify.NewSESMailer(ctx, cfg.AWSRegion, cfg.FromEmail, cfg.FromName)
		if err != nil {
			log.Error("SES setup failed", "error", err)
			os.Exit(1)
		}
	}
	dispatcher := notify.NewDispatcher(mailer, log, nil)

	applications := store.NewPostgres(db)
	employees := empstore.NewPostgres(db)
	references := refstore.NewPostgres(db)
	employeeSvc := employeeservice.New(employees, applications, members, references, auditStore, log)
	applicationSvc := appservice.New(applications, employeeSvc, auditStore, nil, log)
	resolver := contact.NewResolver(applicationSvc, employeeSvc)

	scanner := scanservice.New(members, dispatcher, resolver, auditStore, nil, log, cfg.BirthdayHorizonDays)
	summary, err := scanner.Run(ctx)
	if err != nil {
		log.Error("birthday scan failed", "error", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Error("summary encoding failed", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
