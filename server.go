package tours

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tours/middleware/ratelimit"
)

// DefaultBodyLimit caps request bodies at 10 kB
const DefaultBodyLimit = 10 * 1024

// ServerConfig holds the HTTP level options of the application
type ServerConfig struct {
	Production bool
	BodyLimit  int
	CORSOrigin string
	RateLimit  ratelimit.Config
	// ProxyHeader is read for the client IP only on requests coming from
	// TrustedProxies. With no trusted proxies the socket address is used.
	ProxyHeader    string
	TrustedProxies []string
	// RequestLog enables the fiber request logger, on by default outside
	// production
	RequestLog *bool
	Logger     Logger
}

// NewServer builds the HTTP server: the fiber app with its global
// middleware, the rate limiter on /api and every route. Requests no
// route matches are answered 404 by the error handler.
func NewServer(cfg ServerConfig, auth *RouteAuthenticator, svc Services) router.Server[*fiber.App] {
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = DefaultBodyLimit
	}

	if cfg.Logger == nil {
		cfg.Logger = defaultLogger("server")
	}

	if svc.Logger == nil {
		svc.Logger = cfg.Logger
	}

	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		return newFiberApp(cfg)
	})

	RegisterRoutes(srv.Router(), auth, svc)

	return srv
}

func newFiberApp(cfg ServerConfig) *fiber.App {
	// fiber trusts the proxy header from any peer unless the proxy
	// check is on, so the header is only honoured behind known proxies
	proxyHeader := ""
	if len(cfg.TrustedProxies) > 0 {
		proxyHeader = cfg.ProxyHeader
	}

	app := fiber.New(fiber.Config{
		AppName:                 "natours",
		BodyLimit:               cfg.BodyLimit,
		ProxyHeader:             proxyHeader,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          cfg.TrustedProxies,
		EnableIPValidation:      true,
		ErrorHandler: NewErrorHandler(ErrorHandlerConfig{
			Production: cfg.Production,
			Logger:     cfg.Logger,
		}),
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: !cfg.Production,
	}))
	app.Use(helmet.New())
	app.Use(cors.New(corsConfig(cfg.CORSOrigin)))

	requestLog := !cfg.Production
	if cfg.RequestLog != nil {
		requestLog = *cfg.RequestLog
	}
	if requestLog {
		app.Use(fiberlogger.New())
	}

	app.Use("/api", ratelimit.New(cfg.RateLimit))

	return app
}

func corsConfig(origin string) cors.Config {
	if origin == "" || origin == "*" {
		return cors.Config{AllowOrigins: "*"}
	}
	return cors.Config{
		AllowOrigins:     origin,
		AllowCredentials: true,
	}
}
