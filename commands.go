package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"tablebook-backend/config"
	"tablebook-backend/models"
	"tablebook-backend/repositories"
	"tablebook-backend/routes"
	"tablebook-backend/services"
	"tablebook-backend/utils"
)

const schedulerLockKey = "tablebook:reminder-tick"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the reminder scheduler",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := config.ConnectDB(cfg, log)
		if err != nil {
			return err
		}
		defer closeDB(db, log)

		if err := config.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info().Msg("migration complete")
		return nil
	},
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Run a single reminder scheduler tick and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		report := a.scheduler.RunTick(cmd.Context())
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

var (
	tokenStaffID   uint
	tokenTTL       time.Duration
	tokenNewSecret bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a staff bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenNewSecret {
			secret, err := utils.GenerateJWTSecret()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		}
		if tokenStaffID == 0 {
			return errors.New("--staff-id is required")
		}
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		token, err := utils.GenerateToken(tokenStaffID, tokenTTL, cfg.JWTSecret)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().UintVar(&tokenStaffID, "staff-id", 0, "staff member id stored in the sub claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	tokenCmd.Flags().BoolVar(&tokenNewSecret, "new-secret", false, "print a fresh random JWT_SECRET instead")
}

func loadConfig() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, config.NopLogger(), err
	}
	return cfg, config.NewLogger(cfg.AppEnv), nil
}

// app holds the wired service graph shared by serve and remind.
type app struct {
	cfg          config.Config
	log          zerolog.Logger
	db           *gorm.DB
	redis        *redis.Client
	settings     *services.SettingsService
	mailer       *services.MailGateway
	reservations *services.ReservationService
	scheduler    *services.ReminderScheduler
}

func newApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := config.ConnectDB(cfg, log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, db: db}

	reservationRepo := repositories.NewReservationRepository(db)
	reminderLogRepo := repositories.NewReminderLogRepository(db)
	settingRepo := repositories.NewSettingRepository(db)

	smtpDefaults := models.SMTPSettings{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Secure:   cfg.SMTPSecure,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}
	a.settings = services.NewSettingsService(settingRepo, smtpDefaults, log)
	a.mailer = services.NewMailGateway(a.settings, smtpDefaults, cfg.ReminderSendTimeout, log)
	a.reservations = services.NewReservationService(reservationRepo, reminderLogRepo, a.settings, a.mailer, cfg.SiteName, cfg.Location, log)

	var guard services.TickGuard = &services.LocalTickGuard{}
	if cfg.SchedulerLock == "redis" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		guard = services.NewRedisTickGuard(a.redis, schedulerLockKey, cfg.SchedulerLockTTL, log)
	}

	a.scheduler = services.NewReminderScheduler(reservationRepo, reminderLogRepo, a.settings, a.mailer, guard, services.ReminderSchedulerOptions{
		Interval:    cfg.ReminderPollInterval,
		SendTimeout: cfg.ReminderSendTimeout,
		SiteName:    cfg.SiteName,
		Location:    cfg.Location,
	}, log)
	if sms := services.NewSMSNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, cfg.TwilioWhatsAppNumber, log); sms != nil {
		a.scheduler.WithTextSender(sms)
	}
	return a, nil
}

func (a *app) close() {
	if a.mailer != nil {
		a.mailer.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	closeDB(a.db, a.log)
}

func closeDB(db *gorm.DB, log zerolog.Logger) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close database")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := config.Migrate(a.db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	router := routes.SetupRouter(routes.Dependencies{
		Config:        a.cfg,
		Log:           a.log,
		DB:            sqlDB,
		Reservations:  a.reservations,
		Overview:      a.reservations,
		Notifications: a.settings,
		Verifier:      a.mailer,
	})
	printRoutes(router, a.log)

	if err := a.scheduler.Start(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Msg("starting api server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			a.log.Error().Err(err).Msg("server error")
		}
	}

	select {
	case <-a.scheduler.Stop():
	case <-time.After(a.cfg.ReminderSendTimeout + 5*time.Second):
		a.log.Warn().Msg("reminder tick still running at shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("shutdown error")
	}
	a.log.Info().Msg("server stopped")
	return nil
}
