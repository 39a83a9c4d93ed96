package main

import (
	"context"
	"database/sql"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/juliensalinas/userhub/internal/account"
	"github.com/juliensalinas/userhub/internal/api"
	"github.com/juliensalinas/userhub/internal/auth"
	"github.com/juliensalinas/userhub/internal/config"
	"github.com/juliensalinas/userhub/internal/mailer"
	"github.com/juliensalinas/userhub/internal/store"
	"github.com/juliensalinas/userhub/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer closeLog()

	ctx := context.Background()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	repo := store.NewManager(db)
	repo.MustValidate()

	tokens := auth.NewTokenService([]byte(cfg.SecretKey), "userhub")
	mail := mailer.NewMailer(cfg.SMTP, logger.With().Str("component", "mailer").Logger())

	svc := account.NewService(repo, tokens, mail,
		logger.With().Str("component", "account").Logger(),
		account.Options{
			BaseURL:          cfg.BaseURL,
			UserFoldersPath:  cfg.UserFoldersPath,
			EmailTokenMaxAge: cfg.EmailTokenMaxAge(),
		})

	app := newApp(cfg, svc, repo, tokens, logger)

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	logger.Info().Str("addr", cfg.HTTPAddr).Msg("server started")

	waitExitSignal()

	if err := app.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}

func newApp(cfg *config.Config, svc *account.Service, repo store.Manager, tokens *auth.TokenService, logger zerolog.Logger) *fiber.App {
	engine := django.New("./views", ".html")

	app := fiber.New(fiber.Config{
		Views:        engine,
		ErrorHandler: errorHandler(logger),
	})

	sessions := web.NewSessionManager(tokens, repo.Users(),
		logger.With().Str("component", "session").Logger())
	app.Use(sessions.LoadUser())

	controller := web.NewController(svc, sessions,
		logger.With().Str("component", "web").Logger(), cfg.Debug)
	controller.RegisterRoutes(app)

	guard := api.NewGuard(svc, logger.With().Str("component", "api").Logger())
	upload := api.NewUploadHandler(cfg.UserFoldersPath,
		logger.With().Str("component", "api").Logger())
	upload.RegisterRoutes(app, guard)

	return app
}

func openDatabase(ctx context.Context, cfg *config.Config) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := store.CreateSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// newLogger writes pretty output to the console during development and
// appends to <LOG_FILE_PATH>/all.log in production.
func newLogger(cfg *config.Config) (zerolog.Logger, func(), error) {
	level := zerolog.WarnLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}

	closeLog := func() {}
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}

	if cfg.LogFilePath != "" {
		f, err := os.OpenFile(
			filepath.Join(cfg.LogFilePath, "all.log"),
			os.O_CREATE|os.O_APPEND|os.O_WRONLY,
			0o644,
		)
		if err != nil {
			return zerolog.Logger{}, nil, err
		}
		out = f
		closeLog = func() { f.Close() }
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, closeLog, nil
}

func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		}

		return c.Status(code).SendString(err.Error())
	}
}

func waitExitSignal() os.Signal {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	return <-sigs
}
