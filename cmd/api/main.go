package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	app "github.com/mark3748/helpdesk-ans/cmd/api/app"
	attachmentspkg "github.com/mark3748/helpdesk-ans/cmd/api/attachments"
	authpkg "github.com/mark3748/helpdesk-ans/cmd/api/auth"
	eventspkg "github.com/mark3748/helpdesk-ans/cmd/api/events"
	metricspkg "github.com/mark3748/helpdesk-ans/cmd/api/metrics"
	"github.com/mark3748/helpdesk-ans/cmd/api/migrations"
	slaspkg "github.com/mark3748/helpdesk-ans/cmd/api/slas"
	ticketspkg "github.com/mark3748/helpdesk-ans/cmd/api/tickets"
	"github.com/mark3748/helpdesk-ans/internal/holidays"
	"github.com/mark3748/helpdesk-ans/internal/ratelimit"
	"github.com/mark3748/helpdesk-ans/internal/s3"
	"github.com/mark3748/helpdesk-ans/internal/sla"
)

func main() {
	_ = godotenv.Load()
	cfg := app.GetConfig()
	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer pool.Close()

	// Migrate (embedded goose) using pgx stdlib driver
	sqldb, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("sql open for goose")
	}
	if err := migrations.Up(ctx, sqldb); err != nil {
		log.Fatal().Err(err).Msg("migrate up")
	}
	_ = sqldb.Close()

	var keyf jwt.Keyfunc
	if cfg.JWKSURL != "" {
		keyf, err = jwksKeyfunc(ctx, cfg.JWKSURL, 10*time.Minute)
		if err != nil {
			log.Fatal().Err(err).Str("jwks_url", cfg.JWKSURL).Msg("jwks")
		}
	}

	var store *s3.Service
	if cfg.MinIOEndpoint != "" {
		mc, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccess, cfg.MinIOSecret, ""),
			Secure: cfg.MinIOUseSSL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("minio init")
		}
		store = &s3.Service{Client: mc, Bucket: cfg.MinIOBucket, MaxTTL: time.Hour}
	}

	// Redis client (optional)
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error().Err(err).Msg("redis ping")
		}
		defer rdb.Close()
	}

	a := app.NewApp(cfg, pool, keyf, store, rdb)
	if cfg.SLACalendarID != "" {
		cal, err := sla.LoadCalendar(ctx, pool, cfg.SLACalendarID)
		if err != nil {
			log.Fatal().Err(err).Str("calendar_id", cfg.SLACalendarID).Msg("load calendar")
		}
		useCalendar(a, cal)
	}
	registerRoutes(a)

	srv := &http.Server{
		Addr:           cfg.Addr,
		Handler:        a.R,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("addr", cfg.Addr).Str("tz", a.Calendar.Location.String()).Msg("api listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("listen")
	}
}

// useCalendar replaces the configured work window and adds the calendar's
// extra holidays on top of the national ones.
func useCalendar(a *app.App, cal *sla.Calendar) {
	a.Calendar = cal.Work
	var cache redis.Cmdable
	if a.Q != nil {
		cache = a.Q
	}
	r := holidays.NewResolver(cal.Extra, cache, a.Cfg.HolidayCacheTTL)
	r.Prefix = "holidays:" + a.Cfg.SLACalendarID + ":"
	a.Holidays = r
}

func registerRoutes(a *app.App) {
	a.R.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	a.R.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := a.R.Group("/")
	auth.Use(authpkg.Middleware(a))
	auth.GET("/me", authpkg.Me)

	intake := []gin.HandlerFunc{}
	if a.Q != nil && a.Cfg.IntakeLimitPerMin > 0 {
		rl := ratelimit.New(a.Q, a.Cfg.IntakeLimitPerMin, time.Minute, "intake")
		intake = append(intake, rl.Middleware(ticketspkg.UserKey))
	}
	auth.POST("/tickets", append(intake, ticketspkg.Create(a))...)
	auth.GET("/tickets", ticketspkg.List(a))
	auth.GET("/tickets/:id", ticketspkg.Get(a))
	auth.GET("/tickets/:id/events", eventspkg.List(a))
	auth.GET("/tickets/:id/attachments", attachmentspkg.List(a))
	auth.POST("/tickets/:id/attachments/presign", attachmentspkg.PresignUpload(a))
	auth.GET("/tickets/:id/attachments/:att/presign", attachmentspkg.PresignDownload(a))

	auth.GET("/slas/tiers", slaspkg.Tiers(a))
	auth.POST("/slas/assess", slaspkg.Assess(a))
	auth.GET("/holidays/:year", slaspkg.Holidays(a))
	auth.DELETE("/holidays/:year", authpkg.RequireRole("admin"), slaspkg.InvalidateHolidays(a))
	auth.GET("/metrics/sla", authpkg.RequireRole("agent"), metricspkg.SLA(a))
}
