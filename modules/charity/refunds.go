package charity

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/modules/charity/datagateway"
	"github.com/standard-charity/indexer/modules/charity/entity"
	"github.com/standard-charity/indexer/pkg/logger"
	"github.com/standard-charity/indexer/pkg/logger/slogx"
)

// RefundSweeper recomputes the set of donations owed a refund: every cached
// donation older than the retention window whose unexpended, unrefunded
// remainder is nonzero. A sweep replaces the whole pending-refund queue, it
// never appends to a previous run's leftovers.
type RefundSweeper struct {
	cache    datagateway.CacheStorage
	ledger   datagateway.LedgerDataGateway
	window   time.Duration
	interval time.Duration
}

func NewRefundSweeper(cache datagateway.CacheStorage, ledgerDg datagateway.LedgerDataGateway, window, interval time.Duration) *RefundSweeper {
	return &RefundSweeper{
		cache:    cache,
		ledger:   ledgerDg,
		window:   window,
		interval: interval,
	}
}

// Sweep takes the refund workflow lock, rebuilds the pending-refund queue
// and submits the first refund. An empty eligible set releases the lock
// immediately without touching the ledger. Returns errs.WorkflowBusy when
// another workflow holds the lock.
func (s *RefundSweeper) Sweep(ctx context.Context) error {
	won, err := s.cache.AcquireWorkflow(ctx, entity.WorkflowRefunds)
	if err != nil {
		return errors.Wrap(err, "can't acquire refund workflow")
	}
	if !won {
		return errors.Wrap(errs.WorkflowBusy, "another workflow is in progress")
	}

	donations, err := s.cache.GetAllDonations(ctx)
	if err != nil {
		s.release(ctx)
		return errors.Wrap(err, "can't read donations")
	}

	cutoff := time.Now().Add(-s.window).Unix()
	eligible := lo.Filter(donations, func(donation entity.Donation, _ int) bool {
		return donation.Timestamp < cutoff && donation.Available().Sign() != 0
	})

	refunds := lo.Map(eligible, func(donation entity.Donation, _ int) entity.PendingRefund {
		return entity.PendingRefund{
			Address:          donation.Donator,
			DonationNumber:   donation.DonationNumber,
			ValueETHToRefund: donation.Available(),
		}
	})
	if err := s.cache.ReplacePendingRefunds(ctx, refunds); err != nil {
		s.release(ctx)
		return errors.Wrap(err, "can't replace pending refunds")
	}

	if len(refunds) == 0 {
		s.release(ctx)
		logger.InfoContext(ctx, "refund sweep found nothing to refund")
		return nil
	}

	// Oldest first; the confirmation event drains the rest of the queue.
	first, err := s.cache.PeekPendingRefund(ctx)
	if err != nil {
		s.release(ctx)
		return errors.Wrap(err, "can't peek pending refunds")
	}
	txHash, err := s.ledger.RefundDonation(ctx, first)
	if err != nil {
		s.release(ctx)
		return errors.Wrap(err, "can't submit first refund")
	}

	logger.InfoContext(ctx, "refund sweep started",
		slogx.Int("pendingRefunds", len(refunds)),
		slogx.Stringer("donator", first.Address),
		slogx.Uint64("donationNumber", first.DonationNumber),
		slogx.Stringer("tx", txHash),
	)
	return nil
}

// Run triggers a sweep on the configured interval until ctx is done. A busy
// workflow just skips that round.
func (s *RefundSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				if errors.Is(err, errs.WorkflowBusy) {
					logger.InfoContext(ctx, "skipping scheduled refund sweep, workflow busy")
					continue
				}
				logger.ErrorContext(ctx, "scheduled refund sweep failed", slogx.Error(err))
			}
		}
	}
}

func (s *RefundSweeper) release(ctx context.Context) {
	if err := s.cache.ReleaseWorkflow(ctx, entity.WorkflowRefunds); err != nil {
		logger.ErrorContext(ctx, "can't release refund workflow lock", slogx.Error(err))
	}
}
