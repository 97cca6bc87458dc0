package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/internal/config"
	"github.com/standard-charity/indexer/internal/redisdb"
	"github.com/standard-charity/indexer/modules/charity"
	"github.com/standard-charity/indexer/pkg/automaxprocs"
	"github.com/standard-charity/indexer/pkg/errorhandler"
	"github.com/standard-charity/indexer/pkg/logger"
	"github.com/standard-charity/indexer/pkg/logger/slogx"
	"github.com/standard-charity/indexer/pkg/middleware/requestcontext"
	"github.com/standard-charity/indexer/pkg/middleware/requestlogger"
)

func NewRunCommand() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the StandardCharity indexer service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := automaxprocs.Init(); err != nil {
				logger.Error("Failed to set GOMAXPROCS", slogx.Error(err))
			}
			return runHandler(cmd, args)
		},
	}

	// Add local flags
	flags := runCmd.Flags()
	flags.Bool("api-only", false, "Run only API server")

	// Bind flags to configuration
	config.BindPFlag("api_only", flags.Lookup("api-only"))

	return runCmd
}

const shutdownTimeout = 60 * time.Second

func runHandler(cmd *cobra.Command, _ []string) error {
	conf := config.Load()

	// Validate inputs and configurations
	{
		if conf.EthereumNode.Endpoint == "" {
			return errors.Wrap(errs.ArgumentRequired, "ethereum node endpoint is not configured")
		}
		if conf.EthereumNode.WebsocketURL == "" {
			return errors.Wrap(errs.ArgumentRequired, "ethereum node websocket url is not configured")
		}
	}

	// Initialize application process context
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	injector := do.New()
	do.ProvideValue(injector, conf)
	do.ProvideValue(injector, ctx)

	// Initialize Ethereum RPC client
	do.Provide(injector, func(i do.Injector) (*ethclient.Client, error) {
		conf := do.MustInvoke[config.Config](i)

		start := time.Now()
		logger.InfoContext(ctx, "Connecting to Ethereum node...", slogx.String("endpoint", conf.EthereumNode.Endpoint))
		client, err := ethclient.DialContext(ctx, conf.EthereumNode.Endpoint)
		if err != nil {
			return nil, errors.Wrapf(err, "can't connect to Ethereum node %q", conf.EthereumNode.Endpoint)
		}
		chainID, err := client.ChainID(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "can't query Ethereum node chain id")
		}
		logger.InfoContext(ctx, "Connected to Ethereum node",
			slog.Duration("latency", time.Since(start)),
			slogx.Stringer("chainId", chainID),
		)

		return client, nil
	})

	// Initialize Redis client
	do.Provide(injector, func(i do.Injector) (*goredis.Client, error) {
		conf := do.MustInvoke[config.Config](i)

		client, err := redisdb.New(ctx, conf.Redis)
		if err != nil {
			return nil, errors.Wrap(err, "can't connect to Redis")
		}
		return client, nil
	})

	// Initialize HTTP server
	do.Provide(injector, func(i do.Injector) (*fiber.App, error) {
		app := fiber.New(fiber.Config{
			AppName:      "StandardCharity Indexer",
			ErrorHandler: errorhandler.NewHTTPErrorHandler(),
		})
		app.
			Use(favicon.New()).
			Use(cors.New()).
			Use(requestid.New()).
			Use(requestcontext.New(
				requestcontext.WithRequestId(),
				requestcontext.WithClientIP(conf.HTTPServer.RequestIP),
			)).
			Use(requestlogger.New(conf.HTTPServer.Logger)).
			Use(fiberrecover.New(fiberrecover.Config{
				EnableStackTrace: true,
				StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
					buf := make([]byte, 1024)
					buf = buf[:runtime.Stack(buf, false)]
					logger.ErrorContext(c.UserContext(), "Something went wrong, panic in http handler", slogx.Any("panic", e), slog.String("stacktrace", string(buf)))
				},
			})).
			Use(compress.New(compress.Config{
				Level: compress.LevelDefault,
			}))

		// Health check
		app.Get("/", func(c *fiber.Ctx) error {
			return errors.WithStack(c.SendStatus(http.StatusOK))
		})

		return app, nil
	})

	// Initialize worker context to separate worker's lifecycle from main process
	ctxWorker, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	ctxWorker = logger.WithContext(ctxWorker, slogx.String("module", "charity"))

	module, err := charity.New(injector)
	if err != nil {
		return errors.Wrap(err, "can't init charity module")
	}

	// Run reconciliation engine
	if !conf.APIOnly {
		go func() {
			// stop main process if the engine stopped
			defer stop()

			logger.InfoContext(ctxWorker, "Starting reconciliation engine")
			if err := module.Run(ctxWorker); err != nil && !errors.Is(err, context.Canceled) {
				logger.PanicContext(ctxWorker, "Something went wrong, error during running engine", slogx.Error(err))
			}
		}()
	}

	// Run API server
	httpServer := do.MustInvoke[*fiber.App](injector)
	go func() {
		// stop main process if API stopped
		defer stop()

		logger.InfoContext(ctx, "Started HTTP server", slog.Int("port", conf.HTTPServer.Port))
		if err := httpServer.Listen(fmt.Sprintf(":%d", conf.HTTPServer.Port)); err != nil {
			logger.PanicContext(ctx, "Something went wrong, error during running HTTP server", slogx.Error(err))
		}
	}()

	logger.InfoContext(ctx, "StandardCharity indexer started")

	// Wait for interrupt signal to gracefully stop the server
	<-ctx.Done()
	stopWorker()

	// Force shutdown if timeout exceeded or got signal again
	go func() {
		defer os.Exit(1)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		select {
		case <-ctx.Done():
			logger.FatalContext(ctx, "Received exit signal again. Force shutdown...")
		case <-time.After(shutdownTimeout + 15*time.Second):
			logger.FatalContext(ctx, "Shutdown timeout exceeded. Force shutdown...")
		}
	}()

	if err := httpServer.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.PanicContext(ctx, "Failed while gracefully shutting down", slogx.Error(err))
	}

	return nil
}
