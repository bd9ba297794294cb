package middleware

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// Config customises the middleware registration pipeline.
type Config struct {
	Logger *zerolog.Logger
	// AccessLog adds fiber's plain-text access log next to the structured request log.
	AccessLog bool
	// AllowedOrigins is a comma separated CORS origin list. Empty allows any origin.
	AllowedOrigins string
}

const accessLogFormat = "${time} ${locals:correlation_id} ${status} ${method} ${path} ${latency}\n"

// Register installs the pipeline shared by both surfaces. Order matters: the
// correlation id has to exist before the request logger and panics recovered
// by the outermost handler still get a 500 envelope.
func Register(app *fiber.App, cfg Config) {
	base := zerolog.New(io.Discard)
	if cfg.Logger != nil {
		base = *cfg.Logger
	}

	origins := cfg.AllowedOrigins
	if origins == "" {
		origins = "*"
	}

	handlers := []fiber.Handler{
		recover.New(recover.Config{EnableStackTrace: cfg.AccessLog}),
		CorrelationID(),
		Observability(base),
	}
	if cfg.AccessLog {
		handlers = append(handlers, logger.New(logger.Config{Format: accessLogFormat}))
	}
	handlers = append(handlers, cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + HeaderCorrelationID,
		AllowMethods:  "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		ExposeHeaders: "Content-Disposition, " + HeaderCorrelationID,
	}))

	for _, handler := range handlers {
		app.Use(handler)
	}
}
