package charity

import (
	"context"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/modules/charity/entity"
	"github.com/standard-charity/indexer/pkg/logger"
	"github.com/standard-charity/indexer/pkg/logger/slogx"
)

// bootstrapSnapshot carries the cache state that must outlive the flush:
// the durable work queues, the workflow lock and the pointer scratch value.
// Everything else is rebuilt from the ledger.
type bootstrapSnapshot struct {
	pendingExpendedDonations []entity.PendingExpendedDonation
	pendingRefunds           []entity.PendingRefund
	workflowState            entity.WorkflowState
	pendingPointer           uint64
	hasPendingPointer        bool
}

// Bootstrap rebuilds the whole cache from the ledger's current state. The
// pending queues and the workflow lock are snapshotted first and restored
// after the rebuild, so an in-flight allocation or refund sweep survives a
// restart; if one was mid-flight, its next queued write is re-submitted.
func (p *Processor) Bootstrap(ctx context.Context) error {
	snapshot, err := p.snapshotWorkflowState(ctx)
	if err != nil {
		return errors.Wrap(err, "can't snapshot workflow state")
	}

	if err := p.cache.Flush(ctx); err != nil {
		return errors.Wrap(err, "can't flush cache")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return p.rebuildDonations(groupCtx) })
	group.Go(func() error { return p.rebuildExpenditures(groupCtx) })
	group.Go(func() error { return p.rebuildExpendedDonations(groupCtx) })
	group.Go(func() error { return p.rebuildAggregates(groupCtx) })
	if err := group.Wait(); err != nil {
		return errors.Wrap(err, "can't rebuild cache from ledger")
	}

	if err := p.restoreWorkflowState(ctx, snapshot); err != nil {
		return errors.Wrap(err, "can't restore workflow state")
	}

	logger.InfoContext(ctx, "cache bootstrap complete",
		slogx.Stringer("workflow", snapshot.workflowState),
		slogx.Int("pendingExpendedDonations", len(snapshot.pendingExpendedDonations)),
		slogx.Int("pendingRefunds", len(snapshot.pendingRefunds)),
	)
	return nil
}

func (p *Processor) snapshotWorkflowState(ctx context.Context) (bootstrapSnapshot, error) {
	var snapshot bootstrapSnapshot
	var err error

	if snapshot.pendingExpendedDonations, err = p.cache.GetAllPendingExpendedDonations(ctx); err != nil {
		return snapshot, errors.Wrap(err, "can't read pending expended donations")
	}
	if snapshot.pendingRefunds, err = p.cache.GetAllPendingRefunds(ctx); err != nil {
		return snapshot, errors.Wrap(err, "can't read pending refunds")
	}
	if snapshot.workflowState, err = p.cache.GetWorkflowState(ctx); err != nil {
		return snapshot, errors.Wrap(err, "can't read workflow state")
	}

	snapshot.pendingPointer, err = p.cache.GetPendingNextDonationToExpend(ctx)
	if err != nil && !errors.Is(err, errs.NotFound) {
		return snapshot, errors.Wrap(err, "can't read pending donation pointer")
	}
	snapshot.hasPendingPointer = err == nil

	return snapshot, nil
}

// rebuildDonations walks the gap-free global donation index, repopulating
// the tracker list and the donation list oldest-first.
func (p *Processor) rebuildDonations(ctx context.Context) error {
	total, err := p.ledger.GetTotalNumDonations(ctx)
	if err != nil {
		return errors.Wrap(err, "can't get total donation count")
	}

	for overallNum := uint64(1); overallNum <= total; overallNum++ {
		trackerItem, err := p.ledger.GetDonationTracker(ctx, overallNum)
		if err != nil {
			return errors.Wrapf(err, "can't get donation tracker entry %d", overallNum)
		}
		if err := p.cache.PushDonationTrackerItem(ctx, trackerItem); err != nil {
			return errors.Wrap(err, "can't push donation tracker entry")
		}

		donation, err := p.ledger.GetDonation(ctx, trackerItem.Address, trackerItem.AddressDonationNum)
		if err != nil {
			return errors.Wrapf(err, "can't get donation %s #%d",
				trackerItem.Address.Hex(), trackerItem.AddressDonationNum)
		}
		if err := p.cache.PushDonation(ctx, donation); err != nil {
			return errors.Wrap(err, "can't push donation")
		}
	}
	return nil
}

func (p *Processor) rebuildExpenditures(ctx context.Context) error {
	total, err := p.ledger.GetTotalNumExpenditures(ctx)
	if err != nil {
		return errors.Wrap(err, "can't get total expenditure count")
	}

	for number := uint64(1); number <= total; number++ {
		expenditure, err := p.ledger.GetExpenditure(ctx, number)
		if err != nil {
			return errors.Wrapf(err, "can't get expenditure %d", number)
		}
		if err := p.cache.PushExpenditure(ctx, expenditure); err != nil {
			return errors.Wrap(err, "can't push expenditure")
		}
	}
	return nil
}

func (p *Processor) rebuildExpendedDonations(ctx context.Context) error {
	total, err := p.ledger.GetTotalNumExpendedDonations(ctx)
	if err != nil {
		return errors.Wrap(err, "can't get total expended donation count")
	}

	for number := uint64(1); number <= total; number++ {
		expendedDonation, err := p.ledger.GetExpendedDonation(ctx, number)
		if err != nil {
			return errors.Wrapf(err, "can't get expended donation %d", number)
		}
		if err := p.cache.PushExpendedDonation(ctx, expendedDonation); err != nil {
			return errors.Wrap(err, "can't push expended donation")
		}
	}
	return nil
}

func (p *Processor) rebuildAggregates(ctx context.Context) error {
	if err := p.refreshDonationAggregates(ctx); err != nil {
		return err
	}
	if err := p.refreshExpenditureAggregates(ctx); err != nil {
		return err
	}
	if err := p.refreshExpendedDonationAggregates(ctx); err != nil {
		return err
	}

	pointer, err := p.ledger.GetNextDonationToExpend(ctx)
	if err != nil {
		return errors.Wrap(err, "can't get next donation to expend")
	}
	if err := p.cache.SetNextDonationToExpend(ctx, pointer); err != nil {
		return errors.Wrap(err, "can't set next donation to expend")
	}
	return nil
}

// restoreWorkflowState puts the snapshotted queues and lock back and, when
// a workflow was mid-flight, re-submits its next queued write so the event
// loop can pick the confirmation up. A held lock with nothing left to do is
// a leftover from a crash between the last confirmation and the release;
// it is cleared here.
func (p *Processor) restoreWorkflowState(ctx context.Context, snapshot bootstrapSnapshot) error {
	if err := p.cache.ReplacePendingExpendedDonations(ctx, snapshot.pendingExpendedDonations); err != nil {
		return errors.Wrap(err, "can't restore pending expended donations")
	}
	if err := p.cache.ReplacePendingRefunds(ctx, snapshot.pendingRefunds); err != nil {
		return errors.Wrap(err, "can't restore pending refunds")
	}
	if snapshot.hasPendingPointer {
		if err := p.cache.SetPendingNextDonationToExpend(ctx, snapshot.pendingPointer); err != nil {
			return errors.Wrap(err, "can't restore pending donation pointer")
		}
		// The rebuilt pointer reflects the not-yet-advanced ledger value;
		// the scratch value is further along.
		if err := p.cache.SetNextDonationToExpend(ctx, snapshot.pendingPointer); err != nil {
			return errors.Wrap(err, "can't restore next donation to expend")
		}
	}

	if snapshot.workflowState == entity.WorkflowIdle {
		return nil
	}
	won, err := p.cache.AcquireWorkflow(ctx, snapshot.workflowState)
	if err != nil {
		return errors.Wrap(err, "can't restore workflow lock")
	}
	if !won {
		return errors.Wrapf(errs.ConflictSetting, "workflow lock taken during bootstrap")
	}

	switch snapshot.workflowState {
	case entity.WorkflowExpenditure:
		return p.resumeExpenditureWorkflow(ctx, snapshot)
	case entity.WorkflowRefunds:
		return p.resumeRefundWorkflow(ctx, snapshot)
	}
	return nil
}

func (p *Processor) resumeExpenditureWorkflow(ctx context.Context, snapshot bootstrapSnapshot) error {
	if len(snapshot.pendingExpendedDonations) > 0 {
		logger.InfoContext(ctx, "resuming expenditure allocation after restart",
			slogx.Int("pendingExpendedDonations", len(snapshot.pendingExpendedDonations)),
		)
		if err := p.submitNextPendingExpendedDonation(ctx); err != nil {
			p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
			return errors.Wrap(err, "can't resume expenditure allocation")
		}
		return nil
	}

	if snapshot.hasPendingPointer {
		logger.InfoContext(ctx, "resuming deferred pointer advance after restart",
			slogx.Uint64("nextDonationToExpend", snapshot.pendingPointer),
		)
		if err := p.submitPointerAdvance(ctx, snapshot.pendingPointer); err != nil {
			p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
			return errors.Wrap(err, "can't resume pointer advance")
		}
	}
	p.releaseWorkflow(ctx, entity.WorkflowExpenditure)
	return nil
}

func (p *Processor) resumeRefundWorkflow(ctx context.Context, snapshot bootstrapSnapshot) error {
	if len(snapshot.pendingRefunds) == 0 {
		p.releaseWorkflow(ctx, entity.WorkflowRefunds)
		return nil
	}

	next, err := p.cache.PeekPendingRefund(ctx)
	if err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowRefunds)
		return errors.Wrap(err, "can't peek pending refunds")
	}
	txHash, err := p.ledger.RefundDonation(ctx, next)
	if err != nil {
		p.releaseWorkflow(ctx, entity.WorkflowRefunds)
		return errors.Wrap(err, "can't resume refund sweep")
	}
	logger.InfoContext(ctx, "resuming refund sweep after restart",
		slogx.Int("pendingRefunds", len(snapshot.pendingRefunds)),
		slogx.Stringer("tx", txHash),
	)
	return nil
}
