package charity

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/standard-charity/indexer/internal/config"
	"github.com/standard-charity/indexer/modules/charity/contract"
	"github.com/standard-charity/indexer/modules/charity/datagateway"
	"github.com/standard-charity/indexer/modules/charity/entity"
	"github.com/standard-charity/indexer/modules/charity/ledger"
	"github.com/standard-charity/indexer/pkg/logger"
	"github.com/standard-charity/indexer/pkg/logger/slogx"
)

// Processor is the reconciliation engine: it consumes the contract's event
// stream over a websocket subscription and folds every event into the cache,
// driving the expenditure-allocation and refund workflows forward one queued
// ledger write at a time.
//
// Events are handled strictly in delivery order on a single goroutine, so
// the workflow lock in the cache is the only cross-process guard needed.
type Processor struct {
	cache      datagateway.CacheStorage
	ledger     datagateway.LedgerDataGateway
	binding    *contract.Binding
	subscriber *ledger.Subscriber
	fetcher    *fetcher
	allocator  *allocator

	reconnectDelay time.Duration
	settleDelay    time.Duration
}

func NewProcessor(
	cache datagateway.CacheStorage,
	ledgerDg datagateway.LedgerDataGateway,
	binding *contract.Binding,
	subscriber *ledger.Subscriber,
	conf config.Workflow,
) *Processor {
	return &Processor{
		cache:      cache,
		ledger:     ledgerDg,
		binding:    binding,
		subscriber: subscriber,
		fetcher:    newFetcher(ledgerDg, conf.FetchRetries, conf.FetchRetryDelay),
		allocator: &allocator{
			cache:  cache,
			ledger: ledgerDg,
		},
		reconnectDelay: conf.ReconnectDelay,
		settleDelay:    conf.RefundSettleDelay,
	}
}

// Run connects to the node's websocket endpoint and consumes the event
// stream until ctx is done. A dropped connection or subscription error
// tears the session down and reconnects after the configured delay;
// in-flight workflow state survives in the cache across reconnects.
func (p *Processor) Run(ctx context.Context) error {
	for {
		session, err := p.subscriber.Connect(ctx)
		if err != nil {
			logger.WarnContext(ctx, "can't connect event subscription, will retry",
				slogx.Error(err),
				slogx.Duration("delay", p.reconnectDelay),
			)
		} else {
			err = p.consume(ctx, session)
			session.Close()
			if err != nil {
				logger.WarnContext(ctx, "event subscription dropped, will reconnect",
					slogx.Error(err),
					slogx.Duration("delay", p.reconnectDelay),
				)
			}
		}

		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-time.After(p.reconnectDelay):
		}
	}
}

func (p *Processor) consume(ctx context.Context, session *ledger.Session) error {
	for {
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case head := <-session.Heads:
			if head != nil {
				logger.DebugContext(ctx, "new block", slogx.Uint64("height", head.Number.Uint64()))
			}
		case log := <-session.Logs:
			p.dispatch(ctx, log)
		case err := <-session.HeadsErr:
			return errors.Wrap(err, "new heads subscription failed")
		case err := <-session.LogsErr:
			return errors.Wrap(err, "logs subscription failed")
		}
	}
}

// dispatch routes one log to its handler by topic. Unknown topics and
// undecodable payloads are dropped with a log line; handler failures are
// equally terminal for that event only. Nothing here ever stops the engine.
func (p *Processor) dispatch(ctx context.Context, log types.Log) {
	if len(log.Topics) == 0 {
		logger.WarnContext(ctx, "dropping log without topics", slogx.Stringer("tx", log.TxHash))
		return
	}

	name, ok := p.binding.EventName(log.Topics[0])
	if !ok {
		logger.WarnContext(ctx, "dropping log with unknown topic",
			slogx.Stringer("topic", log.Topics[0]),
			slogx.Stringer("tx", log.TxHash),
		)
		return
	}
	ctx = logger.WithContext(ctx, slogx.String("event", name), slogx.Stringer("tx", log.TxHash))

	var err error
	switch name {
	case contract.EventNewDonation:
		event, decodeErr := p.binding.DecodeNewDonation(log)
		if decodeErr != nil {
			logger.WarnContext(ctx, "dropping undecodable donation event", slogx.Error(decodeErr))
			return
		}
		err = p.handleNewDonation(ctx, event)
	case contract.EventNewExpenditure:
		event, decodeErr := p.binding.DecodeNewExpenditure(log)
		if decodeErr != nil {
			// The expenditure lock was taken before the transaction was
			// submitted; a confirmation that can't be decoded must give
			// it back.
			logger.WarnContext(ctx, "dropping undecodable expenditure event", slogx.Error(decodeErr))
			p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
			return
		}
		err = p.handleNewExpenditure(ctx, event)
	case contract.EventNewExpendedDonation:
		event, decodeErr := p.binding.DecodeNewExpendedDonation(log)
		if decodeErr != nil {
			logger.WarnContext(ctx, "dropping undecodable expended donation event", slogx.Error(decodeErr))
			p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
			return
		}
		err = p.handleNewExpendedDonation(ctx, event)
	case contract.EventNewRefund:
		event, decodeErr := p.binding.DecodeNewRefund(log)
		if decodeErr != nil {
			logger.WarnContext(ctx, "dropping undecodable refund event", slogx.Error(decodeErr))
			p.releaseWorkflow(ctx, entity.WorkflowRefunds)
			return
		}
		err = p.handleNewRefund(ctx, event)
	}
	if err != nil {
		logger.ErrorContext(ctx, "event handler failed, abandoning event", slogx.Error(err))
	}
}

// releaseWorkflow gives a held lock back and logs if even that fails; at
// that point only the bootstrap or an operator can recover the lock.
func (p *Processor) releaseWorkflow(ctx context.Context, state entity.WorkflowState) {
	if err := p.cache.ReleaseWorkflow(ctx, state); err != nil {
		logger.ErrorContext(ctx, "can't release workflow lock",
			slogx.Stringer("workflow", state),
			slogx.Error(err),
		)
	}
}
