package charity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standard-charity/indexer/modules/charity/entity"
)

func TestBootstrapRebuildsFromLedger(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	ledger := newMemLedger()
	p := newTestProcessor(t, cache, ledger)

	ledger.donations[donationKey{donatorA, 1}] = entity.Donation{
		Donator:          donatorA,
		Value:            wei(600),
		Timestamp:        1000,
		ValueExpendedETH: wei(0),
		ValueRefundedETH: wei(0),
		DonationNumber:   1,
	}
	ledger.donations[donationKey{donatorB, 1}] = entity.Donation{
		Donator:          donatorB,
		Value:            wei(500),
		Timestamp:        1001,
		ValueExpendedETH: wei(0),
		ValueRefundedETH: wei(0),
		DonationNumber:   1,
	}
	ledger.trackerItems[1] = entity.DonationTrackerItem{OverallDonationNum: 1, AddressDonationNum: 1, Address: donatorA}
	ledger.trackerItems[2] = entity.DonationTrackerItem{OverallDonationNum: 2, AddressDonationNum: 1, Address: donatorB}
	ledger.expenditures[1] = entity.Expenditure{
		ExpenditureNumber:        1,
		ValueExpendedETH:         wei(400),
		Timestamp:                2000,
		ValueExpendedByDonations: wei(400),
	}
	ledger.expendedDonations[1] = entity.ExpendedDonation{
		ExpendedDonationNumber: 1,
		Donator:                donatorA,
		ValueExpendedETH:       wei(400),
		ExpenditureNumber:      1,
		DonationNumber:         1,
	}
	ledger.nextDonationToExpend = 1
	ledger.contractBalance = wei(700)
	ledger.totalDonationsETH = wei(1100)
	ledger.totalExpendedETH = wei(400)

	// Stale pre-flush state that must not survive the rebuild.
	require.NoError(t, cache.SetTotalNumDonations(ctx, 99))

	require.NoError(t, p.Bootstrap(ctx))

	donations, err := cache.GetAllDonations(ctx)
	require.NoError(t, err)
	require.Len(t, donations, 2)

	trackerItems, err := cache.GetAllDonationTrackerItems(ctx)
	require.NoError(t, err)
	require.Len(t, trackerItems, 2)

	expenditures, err := cache.GetAllExpenditures(ctx)
	require.NoError(t, err)
	require.Len(t, expenditures, 1)

	expendedDonations, err := cache.GetAllExpendedDonations(ctx)
	require.NoError(t, err)
	require.Len(t, expendedDonations, 1)

	totalNum, err := cache.GetTotalNumDonations(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), totalNum)

	pointer, err := cache.GetNextDonationToExpend(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), pointer)

	balance, err := cache.GetContractBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, wei(700), balance)

	assert.Equal(t, entity.WorkflowIdle, cache.workflow)
	assert.Empty(t, ledger.submitted)
}

func TestBootstrapResumesExpenditureQueue(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	ledger := newMemLedger()
	p := newTestProcessor(t, cache, ledger)

	cache.workflow = entity.WorkflowExpenditure
	require.NoError(t, cache.ReplacePendingExpendedDonations(ctx, []entity.PendingExpendedDonation{
		{Donator: donatorA, ValueExpendedETH: wei(600), ExpenditureNumber: 1, DonationNumber: 1},
	}))

	require.NoError(t, p.Bootstrap(ctx))

	// The queue survived the flush and its head went back out to the ledger;
	// the lock is held again for the confirmation event.
	items, err := cache.GetAllPendingExpendedDonations(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Len(t, ledger.submitted, 1)
	assert.Equal(t, "createExpendedDonation", ledger.submitted[0].method)
	assert.Equal(t, donatorA, ledger.submitted[0].item.Donator)
	assert.Equal(t, entity.WorkflowExpenditure, cache.workflow)
}

func TestBootstrapResumesDeferredPointerAdvance(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	ledger := newMemLedger()
	p := newTestProcessor(t, cache, ledger)

	// Crash happened after the last queued item confirmed but before the
	// terminal pointer write went out: only the scratch value is left.
	cache.workflow = entity.WorkflowExpenditure
	require.NoError(t, cache.SetPendingNextDonationToExpend(ctx, 3))

	require.NoError(t, p.Bootstrap(ctx))

	require.Len(t, ledger.submitted, 1)
	assert.Equal(t, "setNextDonationToExpend", ledger.submitted[0].method)
	assert.Equal(t, uint64(3), ledger.submitted[0].value)
	assert.Equal(t, entity.WorkflowIdle, cache.workflow)
}

func TestBootstrapClearsLeftoverLock(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	ledger := newMemLedger()
	p := newTestProcessor(t, cache, ledger)

	// Held lock, empty queue, no scratch value: crash landed between the
	// final confirmation and the release.
	cache.workflow = entity.WorkflowExpenditure

	require.NoError(t, p.Bootstrap(ctx))

	assert.Equal(t, entity.WorkflowIdle, cache.workflow)
	assert.Empty(t, ledger.submitted)
}

func TestBootstrapResumesRefundSweep(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	ledger := newMemLedger()
	p := newTestProcessor(t, cache, ledger)

	cache.workflow = entity.WorkflowRefunds
	require.NoError(t, cache.ReplacePendingRefunds(ctx, []entity.PendingRefund{
		{Address: donatorB, DonationNumber: 1, ValueETHToRefund: wei(250)},
		{Address: donatorA, DonationNumber: 1, ValueETHToRefund: wei(600)},
	}))

	require.NoError(t, p.Bootstrap(ctx))

	refunds, err := cache.GetAllPendingRefunds(ctx)
	require.NoError(t, err)
	require.Len(t, refunds, 2)

	// The oldest queued refund is re-submitted, not the newest.
	require.Len(t, ledger.submitted, 1)
	assert.Equal(t, "refundDonation", ledger.submitted[0].method)
	assert.Equal(t, donatorA, ledger.submitted[0].refund.Address)
	assert.Equal(t, entity.WorkflowRefunds, cache.workflow)
}

func TestBootstrapReleasesEmptyRefundWorkflow(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	ledger := newMemLedger()
	p := newTestProcessor(t, cache, ledger)

	cache.workflow = entity.WorkflowRefunds

	require.NoError(t, p.Bootstrap(ctx))

	assert.Equal(t, entity.WorkflowIdle, cache.workflow)
	assert.Empty(t, ledger.submitted)
}
