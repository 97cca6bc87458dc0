package charity

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/modules/charity/contract"
	"github.com/standard-charity/indexer/modules/charity/entity"
)

var contractAddress = common.HexToAddress("0x4aFcD6385804bf4d61e1cEd21Ca7d5558b02264c")

func newTestProcessor(t *testing.T, cache *memCache, ledger *memLedger) *Processor {
	t.Helper()
	binding, err := contract.New(contractAddress)
	require.NoError(t, err)
	return NewProcessor(cache, ledger, binding, nil, testWorkflowConfig())
}

// packEventLog builds a log the way the node would emit it: the event's topic
// hash plus the ABI-encoded non-indexed arguments.
func packEventLog(t *testing.T, binding *contract.Binding, name string, args ...any) types.Log {
	t.Helper()
	event, ok := binding.ABI().Events[name]
	require.True(t, ok)
	data, err := event.Inputs.Pack(args...)
	require.NoError(t, err)
	return types.Log{
		Address: contractAddress,
		Topics:  []common.Hash{event.ID},
		Data:    data,
		TxHash:  common.HexToHash("0xfeed"),
	}
}

func TestHandleNewDonation(t *testing.T) {
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
	ledger.trackerItems[1] = entity.DonationTrackerItem{
		OverallDonationNum: 1,
		AddressDonationNum: 1,
		Address:            donatorA,
	}
	ledger.contractBalance = wei(600)
	ledger.totalDonationsETH = wei(600)
	ledger.maxDonation = entity.SpotlightDonation{Donator: donatorA, Value: wei(600), Timestamp: 1000}
	ledger.latestDonation = ledger.maxDonation

	err := p.handleNewDonation(ctx, contract.NewDonationEvent{
		Donator:            donatorA,
		DonationNumber:     big.NewInt(1),
		Value:              big.NewInt(600),
		OverallDonationNum: big.NewInt(1),
	})
	require.NoError(t, err)

	donations, err := cache.GetAllDonations(ctx)
	require.NoError(t, err)
	require.Len(t, donations, 1)
	assert.Equal(t, donatorA, donations[0].Donator)

	trackerItems, err := cache.GetAllDonationTrackerItems(ctx)
	require.NoError(t, err)
	require.Len(t, trackerItems, 1)

	totalNum, err := cache.GetTotalNumDonations(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), totalNum)

	balance, err := cache.GetContractBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, wei(600), balance)

	// Donations never touch the workflow lock.
	assert.Equal(t, entity.WorkflowIdle, cache.workflow)
}

func TestDispatchMalformedExpenditureReleasesLock(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	ledger := newMemLedger()
	p := newTestProcessor(t, cache, ledger)

	won, err := cache.AcquireWorkflow(ctx, entity.WorkflowExpenditure)
	require.NoError(t, err)
	require.True(t, won)

	// Correct topic, garbage payload.
	event := p.binding.ABI().Events[contract.EventNewExpenditure]
	p.dispatch(ctx, types.Log{
		Address: contractAddress,
		Topics:  []common.Hash{event.ID},
		Data:    []byte{0xde, 0xad, 0xbe},
		TxHash:  common.HexToHash("0xfeed"),
	})

	assert.Equal(t, entity.WorkflowIdle, cache.workflow)
	assert.Empty(t, cache.expenditures)
	assert.Empty(t, ledger.submitted)
}

func TestDispatchZeroSequenceExpenditureReleasesLock(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	ledger := newMemLedger()
	p := newTestProcessor(t, cache, ledger)

	won, err := cache.AcquireWorkflow(ctx, entity.WorkflowExpenditure)
	require.NoError(t, err)
	require.True(t, won)

	// Decodes cleanly but carries sequence zero, which the contract never
	// emits.
	log := packEventLog(t, p.binding, contract.EventNewExpenditure, big.NewInt(0), big.NewInt(500))
	p.dispatch(ctx, log)

	assert.Equal(t, entity.WorkflowIdle, cache.workflow)
	assert.Empty(t, cache.expenditures)
}

func TestDispatchDropsUnknownTopic(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	p := newTestProcessor(t, cache, newMemLedger())

	p.dispatch(ctx, types.Log{
		Topics: []common.Hash{common.HexToHash("0x123456")},
		TxHash: common.HexToHash("0xfeed"),
	})
	p.dispatch(ctx, types.Log{TxHash: common.HexToHash("0xfeed")})

	assert.Equal(t, entity.WorkflowIdle, cache.workflow)
	assert.Empty(t, cache.donations)
}

func TestHandleNewExpenditureStartsAllocation(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	ledger := newMemLedger()
	p := newTestProcessor(t, cache, ledger)

	seedDonation(t, cache, 1, entity.Donation{
		Donator:          donatorA,
		Value:            wei(600),
		Timestamp:        1000,
		ValueExpendedETH: wei(0),
		ValueRefundedETH: wei(0),
		DonationNumber:   1,
	})
	require.NoError(t, cache.SetNextDonationToExpend(ctx, 1))

	ledger.expenditures[1] = entity.Expenditure{
		ExpenditureNumber:        1,
		ValueExpendedETH:         wei(400),
		ValueExpendedUSD:         800,
		Timestamp:                2000,
		ValueExpendedByDonations: wei(0),
		PlatesDeployed:           2,
	}
	ledger.nextDonationToExpend = 1

	won, err := cache.AcquireWorkflow(ctx, entity.WorkflowExpenditure)
	require.NoError(t, err)
	require.True(t, won)

	log := packEventLog(t, p.binding, contract.EventNewExpenditure, big.NewInt(1), big.NewInt(400))
	p.dispatch(ctx, log)

	expenditures, err := cache.GetAllExpenditures(ctx)
	require.NoError(t, err)
	require.Len(t, expenditures, 1)

	// One allocation queued and its ledger write already in flight; the lock
	// stays held until the queue drains.
	items, err := cache.GetAllPendingExpendedDonations(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, wei(400), items[0].ValueExpendedETH)
	assert.Equal(t, []string{"createExpendedDonation"}, ledger.submittedMethods())
	assert.Equal(t, entity.WorkflowExpenditure, cache.workflow)
}

func TestHandleNewExpenditureAllocationFailureDiscardsQueue(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	ledger := newMemLedger()
	p := newTestProcessor(t, cache, ledger)

	// One 100-wei donation cannot cover a 500-wei expenditure: allocation
	// queues one item, then fails walking past the last tracker entry.
	seedDonation(t, cache, 1, entity.Donation{
		Donator:          donatorA,
		Value:            wei(100),
		Timestamp:        1000,
		ValueExpendedETH: wei(0),
		ValueRefundedETH: wei(0),
		DonationNumber:   1,
	})
	require.NoError(t, cache.SetNextDonationToExpend(ctx, 1))

	ledger.expenditures[1] = entity.Expenditure{
		ExpenditureNumber:        1,
		ValueExpendedETH:         wei(500),
		Timestamp:                2000,
		ValueExpendedByDonations: wei(0),
	}

	won, err := cache.AcquireWorkflow(ctx, entity.WorkflowExpenditure)
	require.NoError(t, err)
	require.True(t, won)

	err = p.handleNewExpenditure(ctx, contract.NewExpenditureEvent{
		ExpenditureNumber: big.NewInt(1),
		ValueExpendedETH:  big.NewInt(500),
	})
	require.ErrorIs(t, err, errs.NotFound)

	// The partially-built queue is discarded with the lock, so the next
	// expenditure starts from a clean queue instead of this run's stale head.
	assert.Empty(t, cache.pendingExpended)
	assert.Empty(t, ledger.submitted)
	assert.Equal(t, entity.WorkflowIdle, cache.workflow)
}

func TestHandleNewExpenditureRedelivery(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	ledger := newMemLedger()
	p := newTestProcessor(t, cache, ledger)

	expenditure := entity.Expenditure{
		ExpenditureNumber:        1,
		ValueExpendedETH:         wei(400),
		Timestamp:                2000,
		ValueExpendedByDonations: wei(0),
	}
	require.NoError(t, cache.PushExpenditure(ctx, expenditure))
	ledger.expenditures[1] = expenditure

	won, err := cache.AcquireWorkflow(ctx, entity.WorkflowExpenditure)
	require.NoError(t, err)
	require.True(t, won)

	// A confirmation for an expenditure that was already allocated once must
	// not allocate again.
	err = p.handleNewExpenditure(ctx, contract.NewExpenditureEvent{
		ExpenditureNumber: big.NewInt(1),
		ValueExpendedETH:  big.NewInt(400),
	})
	require.NoError(t, err)

	expenditures, err := cache.GetAllExpenditures(ctx)
	require.NoError(t, err)
	assert.Len(t, expenditures, 1)
	assert.Empty(t, cache.pendingExpended)
	assert.Empty(t, ledger.submitted)
	assert.Equal(t, entity.WorkflowIdle, cache.workflow)
}

func TestHandleNewExpendedDonationContinuesQueue(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	ledger := newMemLedger()
	p := newTestProcessor(t, cache, ledger)

	cache.workflow = entity.WorkflowExpenditure
	require.NoError(t, cache.ReplacePendingExpendedDonations(ctx, []entity.PendingExpendedDonation{
		{Donator: donatorB, ValueExpendedETH: wei(400), ExpenditureNumber: 1, DonationNumber: 1},
		{Donator: donatorA, ValueExpendedETH: wei(600), ExpenditureNumber: 1, DonationNumber: 1},
	}))

	ledger.expendedDonations[1] = entity.ExpendedDonation{
		ExpendedDonationNumber: 1,
		Donator:                donatorA,
		ValueExpendedETH:       wei(600),
		ExpenditureNumber:      1,
		DonationNumber:         1,
	}
	ledger.donations[donationKey{donatorA, 1}] = entity.Donation{
		Donator:          donatorA,
		Value:            wei(600),
		Timestamp:        1000,
		ValueExpendedETH: wei(600),
		ValueRefundedETH: wei(0),
		DonationNumber:   1,
	}

	err := p.handleNewExpendedDonation(ctx, contract.NewExpendedDonationEvent{
		Donator:                donatorA,
		DonationNumber:         big.NewInt(1),
		ExpenditureNumber:      big.NewInt(1),
		ExpendedDonationNumber: big.NewInt(1),
	})
	require.NoError(t, err)

	// The confirmed head is gone, the next item went out, the lock is held.
	require.Len(t, cache.pendingExpended, 1)
	assert.Equal(t, donatorB, cache.pendingExpended[0].Donator)
	require.Len(t, ledger.submitted, 1)
	assert.Equal(t, "createExpendedDonation", ledger.submitted[0].method)
	assert.Equal(t, donatorB, ledger.submitted[0].item.Donator)
	assert.Equal(t, entity.WorkflowExpenditure, cache.workflow)

	// The expended-against donation was swapped for the fresh ledger copy.
	donations, err := cache.GetAllDonations(ctx)
	require.NoError(t, err)
	require.Len(t, donations, 1)
	assert.Equal(t, wei(600), donations[0].ValueExpendedETH)
}

func TestHandleNewExpendedDonationFinishesWithPointerAdvance(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	ledger := newMemLedger()
	p := newTestProcessor(t, cache, ledger)

	cache.workflow = entity.WorkflowExpenditure
	require.NoError(t, cache.ReplacePendingExpendedDonations(ctx, []entity.PendingExpendedDonation{
		{Donator: donatorA, ValueExpendedETH: wei(600), ExpenditureNumber: 1, DonationNumber: 1},
	}))
	require.NoError(t, cache.SetPendingNextDonationToExpend(ctx, 2))

	ledger.expendedDonations[1] = entity.ExpendedDonation{
		ExpendedDonationNumber: 1,
		Donator:                donatorA,
		ValueExpendedETH:       wei(600),
	}
	ledger.donations[donationKey{donatorA, 1}] = entity.Donation{
		Donator:          donatorA,
		Value:            wei(600),
		Timestamp:        1000,
		ValueExpendedETH: wei(600),
		ValueRefundedETH: wei(0),
		DonationNumber:   1,
	}

	err := p.handleNewExpendedDonation(ctx, contract.NewExpendedDonationEvent{
		Donator:                donatorA,
		DonationNumber:         big.NewInt(1),
		ExpenditureNumber:      big.NewInt(1),
		ExpendedDonationNumber: big.NewInt(1),
	})
	require.NoError(t, err)

	// Queue drained: the deferred pointer write goes out, the scratch key is
	// cleared once it mines and the lock comes back.
	require.Len(t, ledger.submitted, 1)
	assert.Equal(t, "setNextDonationToExpend", ledger.submitted[0].method)
	assert.Equal(t, uint64(2), ledger.submitted[0].value)
	_, err = cache.GetPendingNextDonationToExpend(ctx)
	require.ErrorIs(t, err, errs.NotFound)
	assert.Equal(t, entity.WorkflowIdle, cache.workflow)
}

func TestHandleNewRefundContinuesQueue(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	ledger := newMemLedger()
	p := newTestProcessor(t, cache, ledger)

	cache.workflow = entity.WorkflowRefunds
	require.NoError(t, cache.ReplacePendingRefunds(ctx, []entity.PendingRefund{
		{Address: donatorB, DonationNumber: 1, ValueETHToRefund: wei(250)},
		{Address: donatorA, DonationNumber: 1, ValueETHToRefund: wei(600)},
	}))

	ledger.donations[donationKey{donatorA, 1}] = entity.Donation{
		Donator:          donatorA,
		Value:            wei(600),
		Timestamp:        1000,
		ValueExpendedETH: wei(0),
		ValueRefundedETH: wei(600),
		DonationNumber:   1,
	}

	err := p.handleNewRefund(ctx, contract.NewRefundEvent{
		Donator:          donatorA,
		DonationNumber:   big.NewInt(1),
		ValueETHRefunded: big.NewInt(600),
	})
	require.NoError(t, err)

	require.Len(t, cache.pendingRefunds, 1)
	assert.Equal(t, donatorB, cache.pendingRefunds[0].Address)
	require.Len(t, ledger.submitted, 1)
	assert.Equal(t, "refundDonation", ledger.submitted[0].method)
	assert.Equal(t, donatorB, ledger.submitted[0].refund.Address)
	assert.Equal(t, entity.WorkflowRefunds, cache.workflow)
}

func TestHandleNewRefundCompletesSweep(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	ledger := newMemLedger()
	p := newTestProcessor(t, cache, ledger)

	cache.workflow = entity.WorkflowRefunds
	require.NoError(t, cache.ReplacePendingRefunds(ctx, []entity.PendingRefund{
		{Address: donatorA, DonationNumber: 1, ValueETHToRefund: wei(600)},
	}))

	ledger.donations[donationKey{donatorA, 1}] = entity.Donation{
		Donator:          donatorA,
		Value:            wei(600),
		Timestamp:        1000,
		ValueExpendedETH: wei(0),
		ValueRefundedETH: wei(600),
		DonationNumber:   1,
	}

	err := p.handleNewRefund(ctx, contract.NewRefundEvent{
		Donator:          donatorA,
		DonationNumber:   big.NewInt(1),
		ValueETHRefunded: big.NewInt(600),
	})
	require.NoError(t, err)

	assert.Empty(t, cache.pendingRefunds)
	assert.Empty(t, ledger.submitted)
	assert.Equal(t, entity.WorkflowIdle, cache.workflow)
}
