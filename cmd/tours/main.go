package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-tours"
	"github.com/goliatone/go-tours/config"
	"github.com/goliatone/go-tours/mailer"
	"github.com/goliatone/go-tours/middleware/ratelimit"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type App struct {
	config *config.Config
	bunDB  *bun.DB
	mongo  *mongo.Client
	repo   tours.RepositoryManager
	hasher tours.PasswordAuthenticator
	zap    *zap.Logger
	logger tours.Logger
}

func (a *App) GetLogger(name string) tours.Logger {
	return tours.WrapZap(a.zap.Named(name))
}

func main() {
	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	app := &App{
		config: cfg,
		hasher: tours.NewPasswordHasher(cfg.HasherName),
		zap:    tours.NewZapLogger(cfg.IsProduction()),
	}
	defer app.zap.Sync()
	zap.ReplaceGlobals(app.zap)

	app.logger = app.GetLogger("app")

	ctx := context.Background()
	if err := WithPersistence(ctx, app); err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	switch cmd {
	case "serve":
		err = Serve(ctx, app)
	case "seed":
		err = Seed(ctx, app, args)
	default:
		err = fmt.Errorf("unknown command %q, expected serve or seed", cmd)
	}

	if err != nil {
		app.logger.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, app.config.Database.DSN)
	if err != nil {
		return err
	}

	app.bunDB = bun.NewDB(sqldb, sqlitedialect.New())

	if err := tours.CreateSchema(ctx, app.bunDB); err != nil {
		return err
	}

	opts := []tours.ManagerOption{}
	if app.config.Database.Driver == config.DriverMongo {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(app.config.Database.MongoURI))
		if err != nil {
			return err
		}
		app.mongo = client

		docs := client.Database(app.config.Database.MongoDB)
		if err := tours.EnsureIndexes(ctx, docs); err != nil {
			return err
		}
		opts = append(opts, tours.WithDocumentStore(docs))
	}

	app.repo = tours.NewRepositoryManager(app.bunDB, opts...)
	app.repo.MustValidate()

	app.logger.Info("persistence ready", "driver", app.config.Database.Driver)

	return nil
}

func (a *App) Close() {
	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.mongo.Disconnect(ctx); err != nil {
			a.logger.Warn("mongo disconnect failed", "error", err)
		}
	}

	if a.bunDB != nil {
		a.bunDB.Close()
	}
}

func Serve(ctx context.Context, app *App) error {
	cfg := app.config

	activity := tours.LoggerActivitySink(app.GetLogger("activity"))

	auther := tours.NewAuthenticator(app.repo.Users(), cfg).
		WithLogger(app.GetLogger("auth")).
		WithPasswordHasher(app.hasher).
		WithActivitySink(activity)

	httpAuth := tours.NewHTTPAuthenticator(auther, cfg).
		WithActivitySink(activity)

	limit := ratelimit.Config{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	}
	if cfg.Redis.URL != "" {
		storage, err := ratelimit.NewRedisStorageFromURL(cfg.Redis.URL, "natours:ratelimit:")
		if err != nil {
			return err
		}
		defer storage.Close()
		limit.Storage = storage
	}

	svc := tours.ServicesFromManager(app.repo, newMailer(cfg, app.zap))
	svc.Logger = app.GetLogger("http")
	svc.Activity = activity

	srv := tours.NewServer(tours.ServerConfig{
		Production: cfg.IsProduction(),
		BodyLimit:  cfg.Server.BodyLimit,
		CORSOrigin: cfg.Server.CORSOrigin,
		RateLimit:  limit,
		Logger:     app.GetLogger("server"),

		ProxyHeader:    cfg.Server.ProxyHeader,
		TrustedProxies: cfg.Server.TrustedProxies,
	}, httpAuth, svc)

	errc := make(chan error, 1)
	go func() {
		app.logger.Info("listening", "port", cfg.Server.Port, "env", cfg.Env)
		errc <- srv.Serve(":" + cfg.Server.Port)
	}()

	select {
	case err := <-errc:
		return err
	case sig := <-exitSignal():
		app.logger.Info("shutting down", "signal", sig.String())
	}

	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return srv.Shutdown(sctx)
}

func Seed(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	file := fs.String("file", "data/fixtures.yml", "fixtures file")
	purge := fs.Bool("delete", false, "delete existing tours, users and reviews first")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *purge {
		if err := app.repo.Purge(ctx); err != nil {
			return err
		}
		app.logger.Info("data deleted")
	}

	fixtures, err := tours.LoadFixtures(*file)
	if err != nil {
		return err
	}

	report, err := tours.NewSeeder(app.repo.Users(), app.repo.Tours(), app.repo.Reviews()).
		WithPasswordHasher(app.hasher).
		WithLogger(app.GetLogger("seed")).
		Seed(ctx, fixtures)
	if err != nil {
		return err
	}

	fmt.Printf("seeded %d tours, %d users, %d reviews\n", report.Tours, report.Users, report.Reviews)
	return nil
}

func newMailer(cfg *config.Config, logger *zap.Logger) tours.Mailer {
	if cfg.Email.Host == "" {
		return mailer.NewDev(logger)
	}

	return mailer.NewSMTP(mailer.Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	})
}

func exitSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return ch
}
