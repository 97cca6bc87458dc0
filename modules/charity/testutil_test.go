package charity

import (
	"context"
	"math/big"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/internal/config"
	"github.com/standard-charity/indexer/modules/charity/datagateway"
	"github.com/standard-charity/indexer/modules/charity/entity"
)

func testWorkflowConfig() config.Workflow {
	return config.Workflow{
		FetchRetries:        10,
		FetchRetryDelay:     time.Millisecond,
		RefundSettleDelay:   time.Millisecond,
		ReconnectDelay:      time.Millisecond,
		RPCTimeout:          time.Second,
		RefundWindow:        27 * 24 * time.Hour,
		RefundSweepInterval: time.Hour,
	}
}

func wei(v int64) *big.Int {
	return big.NewInt(v)
}

// memCache is an in-memory CacheStorage with the same absent-key and
// queue-order semantics as the Redis repository. Lists are newest-first.
// Not locked: the only concurrent caller is the bootstrap's rebuild group,
// whose goroutines write disjoint fields.
type memCache struct {
	donations         []entity.Donation
	trackerItems      []entity.DonationTrackerItem
	expenditures      []entity.Expenditure
	expendedDonations []entity.ExpendedDonation
	pendingExpended   []entity.PendingExpendedDonation
	pendingRefunds    []entity.PendingRefund

	scalars  map[string]uint64
	bigInts  map[string]*big.Int
	ints     map[string]int64
	maxDon   *entity.SpotlightDonation
	latest   *entity.SpotlightDonation
	workflow entity.WorkflowState
}

var _ datagateway.CacheStorage = (*memCache)(nil)

func newMemCache() *memCache {
	return &memCache{
		scalars:  make(map[string]uint64),
		bigInts:  make(map[string]*big.Int),
		ints:     make(map[string]int64),
		workflow: entity.WorkflowIdle,
	}
}

func (m *memCache) Flush(_ context.Context) error {
	*m = *newMemCache()
	return nil
}

func (m *memCache) getScalar(key string) (uint64, error) {
	value, ok := m.scalars[key]
	if !ok {
		return 0, errors.Wrapf(errs.NotFound, "key %q is not set", key)
	}
	return value, nil
}

func (m *memCache) GetTotalNumDonations(_ context.Context) (uint64, error) {
	return m.getScalar("totalNumDonations")
}

func (m *memCache) SetTotalNumDonations(_ context.Context, value uint64) error {
	m.scalars["totalNumDonations"] = value
	return nil
}

func (m *memCache) GetTotalNumExpenditures(_ context.Context) (uint64, error) {
	return m.getScalar("totalNumExpenditures")
}

func (m *memCache) SetTotalNumExpenditures(_ context.Context, value uint64) error {
	m.scalars["totalNumExpenditures"] = value
	return nil
}

func (m *memCache) GetTotalNumExpendedDonations(_ context.Context) (uint64, error) {
	return m.getScalar("totalNumExpendedDonations")
}

func (m *memCache) SetTotalNumExpendedDonations(_ context.Context, value uint64) error {
	m.scalars["totalNumExpendedDonations"] = value
	return nil
}

func (m *memCache) GetTotalPlatesDeployed(_ context.Context) (uint64, error) {
	return m.getScalar("totalPlatesDeployed")
}

func (m *memCache) SetTotalPlatesDeployed(_ context.Context, value uint64) error {
	m.scalars["totalPlatesDeployed"] = value
	return nil
}

func (m *memCache) getBigInt(key string) (*big.Int, error) {
	value, ok := m.bigInts[key]
	if !ok {
		return nil, errors.Wrapf(errs.NotFound, "key %q is not set", key)
	}
	return value, nil
}

func (m *memCache) GetContractBalance(_ context.Context) (*big.Int, error) {
	return m.getBigInt("contractBalance")
}

func (m *memCache) SetContractBalance(_ context.Context, value *big.Int) error {
	m.bigInts["contractBalance"] = value
	return nil
}

func (m *memCache) GetTotalDonationsETH(_ context.Context) (*big.Int, error) {
	return m.getBigInt("totalDonationsEth")
}

func (m *memCache) SetTotalDonationsETH(_ context.Context, value *big.Int) error {
	m.bigInts["totalDonationsEth"] = value
	return nil
}

func (m *memCache) GetTotalExpendedETH(_ context.Context) (*big.Int, error) {
	return m.getBigInt("totalExpendedEth")
}

func (m *memCache) SetTotalExpendedETH(_ context.Context, value *big.Int) error {
	m.bigInts["totalExpendedEth"] = value
	return nil
}

func (m *memCache) GetTotalExpendedUSD(_ context.Context) (int64, error) {
	value, ok := m.ints["totalExpendedUsd"]
	if !ok {
		return 0, errors.Wrap(errs.NotFound, "totalExpendedUsd is not set")
	}
	return value, nil
}

func (m *memCache) SetTotalExpendedUSD(_ context.Context, value int64) error {
	m.ints["totalExpendedUsd"] = value
	return nil
}

func (m *memCache) GetMaxDonation(_ context.Context) (entity.SpotlightDonation, error) {
	if m.maxDon == nil {
		return entity.SpotlightDonation{}, errors.Wrap(errs.NotFound, "maxDonation is not set")
	}
	return *m.maxDon, nil
}

func (m *memCache) SetMaxDonation(_ context.Context, donation entity.SpotlightDonation) error {
	m.maxDon = &donation
	return nil
}

func (m *memCache) GetLatestDonation(_ context.Context) (entity.SpotlightDonation, error) {
	if m.latest == nil {
		return entity.SpotlightDonation{}, errors.Wrap(errs.NotFound, "latestDonation is not set")
	}
	return *m.latest, nil
}

func (m *memCache) SetLatestDonation(_ context.Context, donation entity.SpotlightDonation) error {
	m.latest = &donation
	return nil
}

func (m *memCache) GetNextDonationToExpend(_ context.Context) (uint64, error) {
	return m.getScalar("nextDonationToExpend")
}

func (m *memCache) SetNextDonationToExpend(_ context.Context, overallDonationNum uint64) error {
	m.scalars["nextDonationToExpend"] = overallDonationNum
	return nil
}

func (m *memCache) GetPendingNextDonationToExpend(_ context.Context) (uint64, error) {
	return m.getScalar("pendingNextDonationToExpend")
}

func (m *memCache) SetPendingNextDonationToExpend(_ context.Context, overallDonationNum uint64) error {
	m.scalars["pendingNextDonationToExpend"] = overallDonationNum
	return nil
}

func (m *memCache) ClearPendingNextDonationToExpend(_ context.Context) error {
	delete(m.scalars, "pendingNextDonationToExpend")
	return nil
}

func (m *memCache) GetWorkflowState(_ context.Context) (entity.WorkflowState, error) {
	return m.workflow, nil
}

func (m *memCache) AcquireWorkflow(_ context.Context, target entity.WorkflowState) (bool, error) {
	if m.workflow != entity.WorkflowIdle {
		return false, nil
	}
	m.workflow = target
	return true, nil
}

func (m *memCache) ReleaseWorkflow(_ context.Context, current entity.WorkflowState) error {
	if m.workflow == current {
		m.workflow = entity.WorkflowIdle
	}
	return nil
}

func (m *memCache) PushDonation(_ context.Context, donation entity.Donation) error {
	m.donations = append([]entity.Donation{donation}, m.donations...)
	return nil
}

func (m *memCache) ReplaceDonation(_ context.Context, donation entity.Donation) error {
	kept := []entity.Donation{donation}
	for _, existing := range m.donations {
		if !existing.Is(donation.Donator, donation.DonationNumber) {
			kept = append(kept, existing)
		}
	}
	m.donations = kept
	return nil
}

func (m *memCache) GetAllDonations(_ context.Context) ([]entity.Donation, error) {
	return m.donations, nil
}

func (m *memCache) PushDonationTrackerItem(_ context.Context, item entity.DonationTrackerItem) error {
	m.trackerItems = append([]entity.DonationTrackerItem{item}, m.trackerItems...)
	return nil
}

func (m *memCache) GetAllDonationTrackerItems(_ context.Context) ([]entity.DonationTrackerItem, error) {
	return m.trackerItems, nil
}

func (m *memCache) PushExpenditure(_ context.Context, expenditure entity.Expenditure) error {
	m.expenditures = append([]entity.Expenditure{expenditure}, m.expenditures...)
	return nil
}

func (m *memCache) GetAllExpenditures(_ context.Context) ([]entity.Expenditure, error) {
	return m.expenditures, nil
}

func (m *memCache) PushExpendedDonation(_ context.Context, expendedDonation entity.ExpendedDonation) error {
	m.expendedDonations = append([]entity.ExpendedDonation{expendedDonation}, m.expendedDonations...)
	return nil
}

func (m *memCache) GetAllExpendedDonations(_ context.Context) ([]entity.ExpendedDonation, error) {
	return m.expendedDonations, nil
}

func (m *memCache) EnqueuePendingExpendedDonation(_ context.Context, item entity.PendingExpendedDonation) error {
	m.pendingExpended = append([]entity.PendingExpendedDonation{item}, m.pendingExpended...)
	return nil
}

func (m *memCache) PeekPendingExpendedDonation(_ context.Context) (entity.PendingExpendedDonation, error) {
	if len(m.pendingExpended) == 0 {
		return entity.PendingExpendedDonation{}, errors.Wrap(errs.NotFound, "queue is empty")
	}
	return m.pendingExpended[len(m.pendingExpended)-1], nil
}

func (m *memCache) DeletePendingExpendedDonation(_ context.Context, donator common.Address, donationNumber uint64) error {
	kept := make([]entity.PendingExpendedDonation, 0, len(m.pendingExpended))
	for _, item := range m.pendingExpended {
		if !item.Is(donator, donationNumber) {
			kept = append(kept, item)
		}
	}
	m.pendingExpended = kept
	return nil
}

func (m *memCache) GetAllPendingExpendedDonations(_ context.Context) ([]entity.PendingExpendedDonation, error) {
	return m.pendingExpended, nil
}

func (m *memCache) ReplacePendingExpendedDonations(_ context.Context, items []entity.PendingExpendedDonation) error {
	m.pendingExpended = items
	return nil
}

func (m *memCache) PeekPendingRefund(_ context.Context) (entity.PendingRefund, error) {
	if len(m.pendingRefunds) == 0 {
		return entity.PendingRefund{}, errors.Wrap(errs.NotFound, "queue is empty")
	}
	return m.pendingRefunds[len(m.pendingRefunds)-1], nil
}

func (m *memCache) DeletePendingRefund(_ context.Context, address common.Address, donationNumber uint64) error {
	kept := make([]entity.PendingRefund, 0, len(m.pendingRefunds))
	for _, refund := range m.pendingRefunds {
		if !refund.Is(address, donationNumber) {
			kept = append(kept, refund)
		}
	}
	m.pendingRefunds = kept
	return nil
}

func (m *memCache) GetAllPendingRefunds(_ context.Context) ([]entity.PendingRefund, error) {
	return m.pendingRefunds, nil
}

func (m *memCache) ReplacePendingRefunds(_ context.Context, refunds []entity.PendingRefund) error {
	m.pendingRefunds = refunds
	return nil
}

type donationKey struct {
	donator common.Address
	number  uint64
}

type submittedTx struct {
	method string
	refund entity.PendingRefund
	item   entity.PendingExpendedDonation
	value  uint64
}

// memLedger is an in-memory LedgerDataGateway. Missing records come back as
// zero values (the way an Ethereum node answers reads of unset mapping
// slots), not as errors.
type memLedger struct {
	donations            map[donationKey]entity.Donation
	trackerItems         map[uint64]entity.DonationTrackerItem
	expenditures         map[uint64]entity.Expenditure
	expendedDonations    map[uint64]entity.ExpendedDonation
	nextDonationToExpend uint64
	contractBalance      *big.Int
	totalDonationsETH    *big.Int
	totalExpendedETH     *big.Int
	totalExpendedUSD     int64
	maxDonation          entity.SpotlightDonation
	latestDonation       entity.SpotlightDonation

	submitted   []submittedTx
	submitErr   error
	waitMineErr error
}

var _ datagateway.LedgerDataGateway = (*memLedger)(nil)

func newMemLedger() *memLedger {
	return &memLedger{
		donations:         make(map[donationKey]entity.Donation),
		trackerItems:      make(map[uint64]entity.DonationTrackerItem),
		expenditures:      make(map[uint64]entity.Expenditure),
		expendedDonations: make(map[uint64]entity.ExpendedDonation),
		contractBalance:   new(big.Int),
		totalDonationsETH: new(big.Int),
		totalExpendedETH:  new(big.Int),
	}
}

func (m *memLedger) GetDonation(_ context.Context, donator common.Address, donationNumber uint64) (entity.Donation, error) {
	donation, ok := m.donations[donationKey{donator, donationNumber}]
	if !ok {
		return entity.Donation{
			Value:            new(big.Int),
			ValueExpendedETH: new(big.Int),
			ValueRefundedETH: new(big.Int),
		}, nil
	}
	return donation, nil
}

func (m *memLedger) GetDonationTracker(_ context.Context, overallDonationNum uint64) (entity.DonationTrackerItem, error) {
	item, ok := m.trackerItems[overallDonationNum]
	if !ok {
		return entity.DonationTrackerItem{}, errors.Wrapf(errs.NotFound, "no tracker entry at %d", overallDonationNum)
	}
	return item, nil
}

func (m *memLedger) GetExpenditure(_ context.Context, expenditureNumber uint64) (entity.Expenditure, error) {
	expenditure, ok := m.expenditures[expenditureNumber]
	if !ok {
		return entity.Expenditure{
			ValueExpendedETH:         new(big.Int),
			ValueExpendedByDonations: new(big.Int),
		}, nil
	}
	return expenditure, nil
}

func (m *memLedger) GetExpendedDonation(_ context.Context, expendedDonationNumber uint64) (entity.ExpendedDonation, error) {
	expendedDonation, ok := m.expendedDonations[expendedDonationNumber]
	if !ok {
		return entity.ExpendedDonation{ValueExpendedETH: new(big.Int)}, nil
	}
	return expendedDonation, nil
}

func (m *memLedger) GetTotalNumDonations(_ context.Context) (uint64, error) {
	return uint64(len(m.donations)), nil
}

func (m *memLedger) GetTotalNumExpenditures(_ context.Context) (uint64, error) {
	return uint64(len(m.expenditures)), nil
}

func (m *memLedger) GetTotalNumExpendedDonations(_ context.Context) (uint64, error) {
	return uint64(len(m.expendedDonations)), nil
}

func (m *memLedger) GetContractBalance(_ context.Context) (*big.Int, error) {
	return m.contractBalance, nil
}

func (m *memLedger) GetMaxDonation(_ context.Context) (entity.SpotlightDonation, error) {
	return m.maxDonation, nil
}

func (m *memLedger) GetLatestDonation(_ context.Context) (entity.SpotlightDonation, error) {
	return m.latestDonation, nil
}

func (m *memLedger) GetNextDonationToExpend(_ context.Context) (uint64, error) {
	return m.nextDonationToExpend, nil
}

func (m *memLedger) GetTotalDonationsETH(_ context.Context) (*big.Int, error) {
	return m.totalDonationsETH, nil
}

func (m *memLedger) GetTotalExpendedETH(_ context.Context) (*big.Int, error) {
	return m.totalExpendedETH, nil
}

func (m *memLedger) GetTotalExpendedUSD(_ context.Context) (int64, error) {
	return m.totalExpendedUSD, nil
}

func (m *memLedger) GetTotalPlatesDeployed(_ context.Context) (uint64, error) {
	var total uint64
	for _, expenditure := range m.expenditures {
		total += expenditure.PlatesDeployed
	}
	return total, nil
}

func (m *memLedger) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (m *memLedger) CreateExpenditure(_ context.Context, valueWei *big.Int, valueUSD int64, videoHash, receiptHash string, platesDeployed uint64) (common.Hash, error) {
	if m.submitErr != nil {
		return common.Hash{}, m.submitErr
	}
	m.submitted = append(m.submitted, submittedTx{method: "createExpenditure"})
	return common.HexToHash("0x1"), nil
}

func (m *memLedger) CreateExpendedDonation(_ context.Context, item entity.PendingExpendedDonation) (common.Hash, error) {
	if m.submitErr != nil {
		return common.Hash{}, m.submitErr
	}
	m.submitted = append(m.submitted, submittedTx{method: "createExpendedDonation", item: item})
	return common.HexToHash("0x2"), nil
}

func (m *memLedger) SetNextDonationToExpend(_ context.Context, overallDonationNum uint64) (common.Hash, error) {
	if m.submitErr != nil {
		return common.Hash{}, m.submitErr
	}
	m.submitted = append(m.submitted, submittedTx{method: "setNextDonationToExpend", value: overallDonationNum})
	return common.HexToHash("0x3"), nil
}

func (m *memLedger) RefundDonation(_ context.Context, refund entity.PendingRefund) (common.Hash, error) {
	if m.submitErr != nil {
		return common.Hash{}, m.submitErr
	}
	m.submitted = append(m.submitted, submittedTx{method: "refundDonation", refund: refund})
	return common.HexToHash("0x4"), nil
}

func (m *memLedger) WaitMined(_ context.Context, _ common.Hash) error {
	return m.waitMineErr
}

func (m *memLedger) submittedMethods() []string {
	methods := make([]string, 0, len(m.submitted))
	for _, tx := range m.submitted {
		methods = append(methods, tx.method)
	}
	return methods
}
