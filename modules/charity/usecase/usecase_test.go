package usecase

import (
	"context"
	"math/big"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/modules/charity/datagateway"
	"github.com/standard-charity/indexer/modules/charity/entity"
)

var (
	donatorA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	donatorB = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// stubCache overrides only what a test needs; calls falling through to the
// nil embedded interface panic, which flags an unexpected cache touch.
type stubCache struct {
	datagateway.CacheStorage
	workflow  entity.WorkflowState
	donations []entity.Donation
}

func (s *stubCache) AcquireWorkflow(_ context.Context, target entity.WorkflowState) (bool, error) {
	if s.workflow != entity.WorkflowIdle {
		return false, nil
	}
	s.workflow = target
	return true, nil
}

func (s *stubCache) ReleaseWorkflow(_ context.Context, current entity.WorkflowState) error {
	if s.workflow == current {
		s.workflow = entity.WorkflowIdle
	}
	return nil
}

func (s *stubCache) GetAllDonations(_ context.Context) ([]entity.Donation, error) {
	return s.donations, nil
}

type stubLedger struct {
	datagateway.LedgerDataGateway
	submitErr     error
	submittedWei  *big.Int
	submittedUSD  int64
	submittedOnce bool
}

func (s *stubLedger) CreateExpenditure(_ context.Context, valueWei *big.Int, valueUSD int64, _, _ string, _ uint64) (common.Hash, error) {
	if s.submitErr != nil {
		return common.Hash{}, s.submitErr
	}
	s.submittedOnce = true
	s.submittedWei = valueWei
	s.submittedUSD = valueUSD
	return common.HexToHash("0x1"), nil
}

type stubSweeper struct {
	err    error
	called bool
}

func (s *stubSweeper) Sweep(_ context.Context) error {
	s.called = true
	return s.err
}

func TestCreateExpenditureRejectsNonPositiveValue(t *testing.T) {
	cache := &stubCache{workflow: entity.WorkflowIdle}
	u := New(cache, &stubLedger{}, &stubSweeper{}, nil)

	for _, value := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		_, err := u.CreateExpenditure(context.Background(), CreateExpenditureParams{ValueWei: value, ValueUSDCents: 100})
		require.Error(t, err)
	}
	// Rejected before the lock is even attempted.
	assert.Equal(t, entity.WorkflowIdle, cache.workflow)
}

func TestCreateExpenditureSubmitsAndHoldsLock(t *testing.T) {
	cache := &stubCache{workflow: entity.WorkflowIdle}
	ledger := &stubLedger{}
	u := New(cache, ledger, &stubSweeper{}, nil)

	txHash, err := u.CreateExpenditure(context.Background(), CreateExpenditureParams{
		ValueWei:       big.NewInt(1000),
		ValueUSDCents:  5000,
		VideoHash:      "QmVideo",
		ReceiptHash:    "QmReceipt",
		PlatesDeployed: 10,
	})
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, txHash)
	assert.True(t, ledger.submittedOnce)
	assert.Equal(t, big.NewInt(1000), ledger.submittedWei)
	assert.Equal(t, int64(5000), ledger.submittedUSD)

	// The confirmation event releases the lock, not this call.
	assert.Equal(t, entity.WorkflowExpenditure, cache.workflow)
}

func TestCreateExpenditureWhenWorkflowBusy(t *testing.T) {
	cache := &stubCache{workflow: entity.WorkflowRefunds}
	ledger := &stubLedger{}
	u := New(cache, ledger, &stubSweeper{}, nil)

	_, err := u.CreateExpenditure(context.Background(), CreateExpenditureParams{
		ValueWei:      big.NewInt(1000),
		ValueUSDCents: 5000,
	})
	require.ErrorIs(t, err, errs.WorkflowBusy)
	assert.False(t, ledger.submittedOnce)
	assert.Equal(t, entity.WorkflowRefunds, cache.workflow)
}

func TestCreateExpenditureReleasesLockOnSubmitFailure(t *testing.T) {
	cache := &stubCache{workflow: entity.WorkflowIdle}
	ledger := &stubLedger{submitErr: errors.New("nonce too low")}
	u := New(cache, ledger, &stubSweeper{}, nil)

	_, err := u.CreateExpenditure(context.Background(), CreateExpenditureParams{
		ValueWei:      big.NewInt(1000),
		ValueUSDCents: 5000,
	})
	require.Error(t, err)
	assert.Equal(t, entity.WorkflowIdle, cache.workflow)
}

func TestTriggerRefundSweep(t *testing.T) {
	sweeper := &stubSweeper{}
	u := New(&stubCache{}, &stubLedger{}, sweeper, nil)

	require.NoError(t, u.TriggerRefundSweep(context.Background()))
	assert.True(t, sweeper.called)
}

func TestTriggerRefundSweepWhenBusy(t *testing.T) {
	sweeper := &stubSweeper{err: errors.Wrap(errs.WorkflowBusy, "another workflow is in progress")}
	u := New(&stubCache{}, &stubLedger{}, sweeper, nil)

	err := u.TriggerRefundSweep(context.Background())
	require.ErrorIs(t, err, errs.WorkflowBusy)
}

func TestGetDonationsGroupedByDonator(t *testing.T) {
	cache := &stubCache{donations: []entity.Donation{
		{Donator: donatorA, DonationNumber: 2, Value: big.NewInt(300)},
		{Donator: donatorB, DonationNumber: 1, Value: big.NewInt(500)},
		{Donator: donatorA, DonationNumber: 1, Value: big.NewInt(600)},
	}}
	u := New(cache, &stubLedger{}, &stubSweeper{}, nil)

	grouped, err := u.GetDonationsGroupedByDonator(context.Background())
	require.NoError(t, err)
	require.Len(t, grouped, 2)
	assert.Len(t, grouped[donatorA.Hex()], 2)
	assert.Len(t, grouped[donatorB.Hex()], 1)
}
