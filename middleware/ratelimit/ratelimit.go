package ratelimit

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/utils"
)

// DefaultMessage is returned once a client used up its window
const DefaultMessage = "Too many requests from this IP, please try again in an hour!"

// Config defines the config for the limiter
type Config struct {
	// Max number of requests per Window. Default 100
	Max int
	// Window length. Default one hour
	Window time.Duration
	// Message sent with the 429 response
	Message string
	// Storage keeps the counters, in memory when nil
	Storage fiber.Storage
	// KeyGenerator identifies the client, a copy of c.IP() by default
	KeyGenerator func(c *fiber.Ctx) string
	// Skip defines a function to skip this middleware when returned true
	Skip func(c *fiber.Ctx) bool
}

// ConfigDefault is the default config
var ConfigDefault = Config{
	Max:     100,
	Window:  time.Hour,
	Message: DefaultMessage,
}

// New creates a per client sliding window limiter. Exhausted clients get a
// *fiber.Error with status 429 so the app error handler formats it.
func New(config ...Config) fiber.Handler {
	cfg := configDefault(config...)

	return limiter.New(limiter.Config{
		Next:              cfg.Skip,
		Max:               cfg.Max,
		Expiration:        cfg.Window,
		KeyGenerator:      cfg.KeyGenerator,
		Storage:           cfg.Storage,
		LimiterMiddleware: limiter.SlidingWindow{},
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, cfg.Message)
		},
	})
}

func configDefault(config ...Config) Config {
	if len(config) < 1 {
		cfg := ConfigDefault
		cfg.KeyGenerator = clientIP
		return cfg
	}

	cfg := config[0]

	if cfg.Max <= 0 {
		cfg.Max = ConfigDefault.Max
	}

	if cfg.Window <= 0 {
		cfg.Window = ConfigDefault.Window
	}

	if cfg.Message == "" {
		cfg.Message = ConfigDefault.Message
	}

	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = clientIP
	}

	return cfg
}

// clientIP keys on c.IP(), which only reads the proxy header for
// trusted proxies. The copy outlives the pooled request buffer that
// the limiter storage would otherwise alias.
func clientIP(c *fiber.Ctx) string {
	return utils.CopyString(c.IP())
}
