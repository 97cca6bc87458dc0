package charity

import (
	"context"

	"github.com/cockroachdb/errors"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gofiber/fiber/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/do/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/internal/config"
	"github.com/standard-charity/indexer/modules/charity/api/httphandler"
	"github.com/standard-charity/indexer/modules/charity/contract"
	"github.com/standard-charity/indexer/modules/charity/ledger"
	charityredis "github.com/standard-charity/indexer/modules/charity/repository/redis"
	"github.com/standard-charity/indexer/modules/charity/usecase"
	"github.com/standard-charity/indexer/pkg/coingecko"
	"github.com/standard-charity/indexer/pkg/logger"
)

const Version = "v1.0.0"

// Module bundles the reconciliation engine and the refund sweep scheduler;
// the HTTP API is mounted on the shared fiber app during construction.
type Module struct {
	processor *Processor
	sweeper   *RefundSweeper
}

func New(injector do.Injector) (*Module, error) {
	ctx := do.MustInvoke[context.Context](injector)
	conf := do.MustInvoke[config.Config](injector)
	eth := do.MustInvoke[*ethclient.Client](injector)
	redisClient := do.MustInvoke[*goredis.Client](injector)

	if conf.Contract.Address == "" {
		return nil, errors.Wrap(errs.ArgumentRequired, "contract address is not configured")
	}
	binding, err := contract.New(ethcommon.HexToAddress(conf.Contract.Address))
	if err != nil {
		return nil, errors.Wrap(err, "can't bind StandardCharity contract")
	}

	cache := charityredis.NewRepository(redisClient)
	ledgerClient, err := ledger.NewClient(eth, binding, ledger.Options{
		OwnerPrivateKey: conf.Contract.OwnerPrivateKey,
		ChainID:         conf.Contract.ChainID,
		Timeout:         conf.Workflow.RPCTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "can't create ledger client")
	}
	subscriber := ledger.NewSubscriber(conf.EthereumNode.WebsocketURL, binding)

	processor := NewProcessor(cache, ledgerClient, binding, subscriber, conf.Workflow)
	sweeper := NewRefundSweeper(cache, ledgerClient, conf.Workflow.RefundWindow, conf.Workflow.RefundSweepInterval)

	priceFeed, err := coingecko.New()
	if err != nil {
		return nil, errors.Wrap(err, "can't create price feed client")
	}

	// Mount API
	httpServer := do.MustInvoke[*fiber.App](injector)
	charityUsecase := usecase.New(cache, ledgerClient, sweeper, priceFeed)
	charityHandler := httphandler.New(charityUsecase)
	if err := charityHandler.Mount(httpServer); err != nil {
		return nil, errors.Wrap(err, "can't mount API")
	}
	logger.InfoContext(ctx, "Mounted charity API")

	return &Module{
		processor: processor,
		sweeper:   sweeper,
	}, nil
}

// Run rebuilds the cache from the ledger, then consumes the event stream
// and the refund schedule until ctx is done.
func (m *Module) Run(ctx context.Context) error {
	if err := m.processor.Bootstrap(ctx); err != nil {
		return errors.Wrap(err, "cache bootstrap failed")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return m.processor.Run(groupCtx) })
	group.Go(func() error { return m.sweeper.Run(groupCtx) })
	return errors.WithStack(group.Wait())
}
