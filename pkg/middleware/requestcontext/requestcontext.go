package requestcontext

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/standard-charity/indexer/pkg/logger"
	"github.com/standard-charity/indexer/pkg/logger/slogx"
)

type Option func(ctx context.Context, c *fiber.Ctx) (context.Context, error)

// New applies the given options to every request's user context before the
// rest of the stack runs.
func New(opts ...Option) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var err error
		ctx := c.UserContext()
		for i, opt := range opts {
			ctx, err = opt(ctx, c)
			if err != nil {
				logger.ErrorContext(ctx, "failed to extract request context",
					slogx.Error(err),
					slogx.Int("optionIndex", i),
				)
				return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
					"ok":    false,
					"error": "Internal Server Error",
				})
			}
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}
