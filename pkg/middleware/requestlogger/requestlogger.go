package requestlogger

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"

	"github.com/standard-charity/indexer/pkg/logger"
	"github.com/standard-charity/indexer/pkg/middleware/requestcontext"
)

type Config struct {
	// Disable drops the INFO-level request log lines; errors still log.
	Disable bool `mapstructure:"disable"`
}

// New logs one line per completed request with request and response groups.
func New(config Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Continue stack
		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()

		baseAttrs := []slog.Attr{
			slog.String("event", "api_request"),
			slog.Int64("latency", latency.Milliseconds()),
			slog.String("latencyHuman", latency.String()),
		}
		requestAttrs := []slog.Attr{
			slog.Time("time", start),
			slog.String("method", c.Method()),
			slog.String("host", c.Hostname()),
			slog.String("path", c.Path()),
			slog.String("route", c.Route().Path),
			slog.String("ip", requestcontext.GetClientIP(c.UserContext())),
			slog.String("user-agent", string(c.Context().UserAgent())),
			slog.Int("length", len(c.Body())),
		}
		responseAttrs := []slog.Attr{
			slog.Int("status", status),
			slog.Int("length", len(c.Response().Body())),
		}

		level := slog.LevelInfo
		if err != nil || status >= http.StatusInternalServerError {
			level = slog.LevelError

			logErr := err
			if logErr == nil {
				logErr = fiber.NewError(status)
			}
			baseAttrs = append(baseAttrs, slog.Any("error", logErr))
		}

		if config.Disable && level == slog.LevelInfo {
			return errors.WithStack(err)
		}

		logger.FromContext(c.UserContext()).LogAttrs(c.UserContext(), level, "Request Completed",
			append([]slog.Attr{
				{Key: "request", Value: slog.GroupValue(requestAttrs...)},
				{Key: "response", Value: slog.GroupValue(responseAttrs...)},
			}, baseAttrs...)...,
		)

		return errors.WithStack(err)
	}
}
