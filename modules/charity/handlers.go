package charity

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/modules/charity/contract"
	"github.com/standard-charity/indexer/modules/charity/entity"
	"github.com/standard-charity/indexer/pkg/logger"
	"github.com/standard-charity/indexer/pkg/logger/slogx"
)

// handleNewDonation folds a confirmed donation into the cache: the fresh
// record, its tracker entry and the donation-side aggregates. Aggregates are
// re-read from the ledger's own views rather than incremented locally, so a
// missed event can't make them drift permanently.
func (p *Processor) handleNewDonation(ctx context.Context, event contract.NewDonationEvent) error {
	donation, err := p.fetcher.fetchDonation(ctx, event.Donator, event.DonationNumber.Uint64())
	if err != nil {
		return errors.Wrap(err, "can't fetch new donation")
	}
	if err := p.cache.PushDonation(ctx, donation); err != nil {
		return errors.Wrap(err, "can't push donation")
	}

	trackerItem, err := p.fetcher.fetchDonationTracker(ctx, event.OverallDonationNum.Uint64())
	if err != nil {
		return errors.Wrap(err, "can't fetch donation tracker entry")
	}
	if err := p.cache.PushDonationTrackerItem(ctx, trackerItem); err != nil {
		return errors.Wrap(err, "can't push donation tracker entry")
	}

	if err := p.refreshDonationAggregates(ctx); err != nil {
		return errors.Wrap(err, "can't refresh donation aggregates")
	}

	logger.InfoContext(ctx, "indexed new donation",
		slogx.Stringer("donator", donation.Donator),
		slogx.Uint64("donationNumber", donation.DonationNumber),
		slogx.Stringer("value", donation.Value),
	)
	return nil
}

// handleNewExpenditure confirms the expenditure the HTTP API submitted
// (which already holds the workflow lock), caches it and starts allocating
// its value across donations. Any failure on the way releases the lock.
func (p *Processor) handleNewExpenditure(ctx context.Context, event contract.NewExpenditureEvent) error {
	expenditureNumber := event.ExpenditureNumber.Uint64()

	expenditure, err := p.fetcher.fetchExpenditure(ctx, expenditureNumber)
	if err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		return errors.Wrap(err, "can't fetch new expenditure")
	}

	// Re-delivered confirmation: the expenditure was already allocated once,
	// allocating again would double-spend donation remainders.
	cached, err := p.cache.GetAllExpenditures(ctx)
	if err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		return errors.Wrap(err, "can't read cached expenditures")
	}
	if lo.ContainsBy(cached, func(e entity.Expenditure) bool { return e.ExpenditureNumber == expenditureNumber }) {
		logger.WarnContext(ctx, "expenditure already indexed, dropping re-delivered event",
			slogx.Uint64("expenditureNumber", expenditureNumber),
		)
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		return nil
	}

	if err := p.cache.PushExpenditure(ctx, expenditure); err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		return errors.Wrap(err, "can't push expenditure")
	}
	if err := p.refreshExpenditureAggregates(ctx); err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		return errors.Wrap(err, "can't refresh expenditure aggregates")
	}

	queued, err := p.allocator.allocate(ctx, expenditure)
	if err != nil {
		// The queue only ever holds the running expenditure's items; a later
		// run must not inherit this one's stale head.
		if queued > 0 {
			if clearErr := p.cache.ReplacePendingExpendedDonations(ctx, nil); clearErr != nil {
				logger.ErrorContext(ctx, "can't discard partially queued allocations", slogx.Error(clearErr))
			} else {
				logger.WarnContext(ctx, "discarded partially queued allocations",
					slogx.Int("queuedAllocations", queued),
				)
			}
		}
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		return errors.Wrapf(err, "allocation failed after queueing %d items", queued)
	}
	if queued == 0 {
		logger.InfoContext(ctx, "expenditure produced no allocations",
			slogx.Uint64("expenditureNumber", expenditureNumber),
		)
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		return nil
	}

	// Submit the oldest queued item; its confirmation event drives the next
	// step, the lock stays held until the queue drains.
	if err := p.submitNextPendingExpendedDonation(ctx); err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		return errors.Wrap(err, "can't submit first pending expended donation")
	}

	logger.InfoContext(ctx, "indexed new expenditure, allocation started",
		slogx.Uint64("expenditureNumber", expenditureNumber),
		slogx.Int("queuedAllocations", queued),
	)
	return nil
}

// handleNewExpendedDonation confirms one allocation step: caches the new
// record, refreshes the mutated donation, consumes the queue head and either
// continues with the next item, issues the deferred pointer write, or ends
// the workflow.
func (p *Processor) handleNewExpendedDonation(ctx context.Context, event contract.NewExpendedDonationEvent) error {
	expendedDonation, err := p.fetcher.fetchExpendedDonation(ctx, event.ExpendedDonationNumber.Uint64())
	if err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		return errors.Wrap(err, "can't fetch new expended donation")
	}
	if err := p.cache.PushExpendedDonation(ctx, expendedDonation); err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		return errors.Wrap(err, "can't push expended donation")
	}

	// The donation's expended balance changed on-chain, swap in the fresh copy.
	donation, err := p.fetcher.fetchDonation(ctx, event.Donator, event.DonationNumber.Uint64())
	if err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		return errors.Wrap(err, "can't re-fetch expended-against donation")
	}
	if err := p.cache.ReplaceDonation(ctx, donation); err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		return errors.Wrap(err, "can't replace donation")
	}

	if err := p.cache.DeletePendingExpendedDonation(ctx, event.Donator, event.DonationNumber.Uint64()); err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		return errors.Wrap(err, "can't consume pending expended donation")
	}

	if err := p.refreshExpendedDonationAggregates(ctx); err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		return errors.Wrap(err, "can't refresh expended donation aggregates")
	}

	// Queue not drained yet: keep going, lock stays held.
	_, err = p.cache.PeekPendingExpendedDonation(ctx)
	if err == nil {
		if err := p.submitNextPendingExpendedDonation(ctx); err != nil {
			p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
			return errors.Wrap(err, "can't submit next pending expended donation")
		}
		return nil
	}
	if !errors.Is(err, errs.NotFound) {
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		return errors.Wrap(err, "can't peek pending expended donations")
	}

	// Queue drained. If the run moved the pointer past the ledger-confirmed
	// value, issue the single deferred pointer write now. No event fires for
	// it, so confirmation is by receipt polling.
	pendingPointer, err := p.cache.GetPendingNextDonationToExpend(ctx)
	switch {
	case err == nil:
		if err := p.submitPointerAdvance(ctx, pendingPointer); err != nil {
			p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
			return errors.Wrap(err, "can't advance ledger donation pointer")
		}
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		logger.InfoContext(ctx, "expenditure allocation complete, pointer advanced",
			slogx.Uint64("nextDonationToExpend", pendingPointer),
		)
		return nil
	case errors.Is(err, errs.NotFound):
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		logger.InfoContext(ctx, "expenditure allocation complete")
		return nil
	default:
		p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
		return errors.Wrap(err, "can't read pending donation pointer")
	}
}

// handleNewRefund confirms one refund: refreshes the refunded donation,
// consumes the queue head and either submits the next refund or ends the
// sweep. The refunded balance is observed to lag event emission more than
// other state, hence the settle delay before re-reading.
func (p *Processor) handleNewRefund(ctx context.Context, event contract.NewRefundEvent) error {
	select {
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	case <-time.After(p.settleDelay):
	}

	donation, err := p.fetcher.fetchDonation(ctx, event.Donator, event.DonationNumber.Uint64())
	if err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowRefunds)
		return errors.Wrap(err, "can't re-fetch refunded donation")
	}
	if err := p.cache.ReplaceDonation(ctx, donation); err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowRefunds)
		return errors.Wrap(err, "can't replace donation")
	}

	if err := p.cache.DeletePendingRefund(ctx, event.Donator, event.DonationNumber.Uint64()); err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowRefunds)
		return errors.Wrap(err, "can't consume pending refund")
	}

	if err := p.refreshContractBalance(ctx); err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowRefunds)
		return errors.Wrap(err, "can't refresh contract balance")
	}

	next, err := p.cache.PeekPendingRefund(ctx)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			p.releaseWorkflow(ctx, entity.WorkflowRefunds)
			logger.InfoContext(ctx, "refund sweep complete")
			return nil
		}
		p.releaseWorkflow(ctx, entity.WorkflowRefunds)
		return errors.Wrap(err, "can't peek pending refunds")
	}

	txHash, err := p.ledger.RefundDonation(ctx, next)
	if err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowRefunds)
		return errors.Wrap(err, "can't submit next refund")
	}
	logger.InfoContext(ctx, "submitted next refund",
		slogx.Stringer("donator", next.Address),
		slogx.Uint64("donationNumber", next.DonationNumber),
		slogx.Stringer("tx", txHash),
	)
	return nil
}

// submitNextPendingExpendedDonation sends the queue head to the ledger
// without waiting for it to mine; the confirmation event continues the
// workflow.
func (p *Processor) submitNextPendingExpendedDonation(ctx context.Context) error {
	item, err := p.cache.PeekPendingExpendedDonation(ctx)
	if err != nil {
		return errors.Wrap(err, "can't peek pending expended donations")
	}

	txHash, err := p.ledger.CreateExpendedDonation(ctx, item)
	if err != nil {
		return errors.Wrap(err, "can't submit expended donation")
	}
	logger.InfoContext(ctx, "submitted pending expended donation",
		slogx.Stringer("donator", item.Donator),
		slogx.Uint64("donationNumber", item.DonationNumber),
		slogx.Stringer("tx", txHash),
	)
	return nil
}

// submitPointerAdvance issues the terminal pointer write and polls its
// receipt; the scratch value is cleared only once the write mined.
func (p *Processor) submitPointerAdvance(ctx context.Context, pointer uint64) error {
	txHash, err := p.ledger.SetNextDonationToExpend(ctx, pointer)
	if err != nil {
		return errors.Wrap(err, "can't submit pointer advance")
	}
	if err := p.ledger.WaitMined(ctx, txHash); err != nil {
		return errors.Wrap(err, "pointer advance not mined")
	}
	if err := p.cache.ClearPendingNextDonationToExpend(ctx); err != nil {
		return errors.Wrap(err, "can't clear pending donation pointer")
	}
	return nil
}

// refreshDonationAggregates re-reads the donation-side aggregate views.
func (p *Processor) refreshDonationAggregates(ctx context.Context) error {
	totalNum, err := p.ledger.GetTotalNumDonations(ctx)
	if err != nil {
		return errors.Wrap(err, "can't get total donation count")
	}
	if err := p.cache.SetTotalNumDonations(ctx, totalNum); err != nil {
		return errors.Wrap(err, "can't set total donation count")
	}

	maxDonation, err := p.ledger.GetMaxDonation(ctx)
	if err != nil {
		return errors.Wrap(err, "can't get max donation")
	}
	if err := p.cache.SetMaxDonation(ctx, maxDonation); err != nil {
		return errors.Wrap(err, "can't set max donation")
	}

	latestDonation, err := p.ledger.GetLatestDonation(ctx)
	if err != nil {
		return errors.Wrap(err, "can't get latest donation")
	}
	if err := p.cache.SetLatestDonation(ctx, latestDonation); err != nil {
		return errors.Wrap(err, "can't set latest donation")
	}

	totalDonated, err := p.ledger.GetTotalDonationsETH(ctx)
	if err != nil {
		return errors.Wrap(err, "can't get total donated wei")
	}
	if err := p.cache.SetTotalDonationsETH(ctx, totalDonated); err != nil {
		return errors.Wrap(err, "can't set total donated wei")
	}

	return p.refreshContractBalance(ctx)
}

// refreshExpenditureAggregates re-reads the expenditure-side aggregate views.
func (p *Processor) refreshExpenditureAggregates(ctx context.Context) error {
	totalNum, err := p.ledger.GetTotalNumExpenditures(ctx)
	if err != nil {
		return errors.Wrap(err, "can't get total expenditure count")
	}
	if err := p.cache.SetTotalNumExpenditures(ctx, totalNum); err != nil {
		return errors.Wrap(err, "can't set total expenditure count")
	}

	totalExpendedETH, err := p.ledger.GetTotalExpendedETH(ctx)
	if err != nil {
		return errors.Wrap(err, "can't get total expended wei")
	}
	if err := p.cache.SetTotalExpendedETH(ctx, totalExpendedETH); err != nil {
		return errors.Wrap(err, "can't set total expended wei")
	}

	totalExpendedUSD, err := p.ledger.GetTotalExpendedUSD(ctx)
	if err != nil {
		return errors.Wrap(err, "can't get total expended cents")
	}
	if err := p.cache.SetTotalExpendedUSD(ctx, totalExpendedUSD); err != nil {
		return errors.Wrap(err, "can't set total expended cents")
	}

	totalPlates, err := p.ledger.GetTotalPlatesDeployed(ctx)
	if err != nil {
		return errors.Wrap(err, "can't get total plates deployed")
	}
	if err := p.cache.SetTotalPlatesDeployed(ctx, totalPlates); err != nil {
		return errors.Wrap(err, "can't set total plates deployed")
	}

	return p.refreshContractBalance(ctx)
}

func (p *Processor) refreshExpendedDonationAggregates(ctx context.Context) error {
	totalNum, err := p.ledger.GetTotalNumExpendedDonations(ctx)
	if err != nil {
		return errors.Wrap(err, "can't get total expended donation count")
	}
	if err := p.cache.SetTotalNumExpendedDonations(ctx, totalNum); err != nil {
		return errors.Wrap(err, "can't set total expended donation count")
	}
	return nil
}

func (p *Processor) refreshContractBalance(ctx context.Context) error {
	balance, err := p.ledger.GetContractBalance(ctx)
	if err != nil {
		return errors.Wrap(err, "can't get contract balance")
	}
	if err := p.cache.SetContractBalance(ctx, balance); err != nil {
		return errors.Wrap(err, "can't set contract balance")
	}
	return nil
}
