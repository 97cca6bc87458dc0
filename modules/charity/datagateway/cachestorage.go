package datagateway

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/standard-charity/indexer/modules/charity/entity"
)

// CacheStorage is the process-external cache mirroring contract state.
// Scalar aggregates are whole-value set/get; record lists are pushed
// newest-first; the pending queues are consumed oldest-first, one item at a
// time. Get methods return errs.NotFound when the key or item is absent.
type CacheStorage interface {
	// Flush drops the entire cache. Used by the bootstrap before a full
	// rebuild from the ledger.
	Flush(ctx context.Context) error

	GetTotalNumDonations(ctx context.Context) (uint64, error)
	SetTotalNumDonations(ctx context.Context, value uint64) error
	GetTotalNumExpenditures(ctx context.Context) (uint64, error)
	SetTotalNumExpenditures(ctx context.Context, value uint64) error
	GetTotalNumExpendedDonations(ctx context.Context) (uint64, error)
	SetTotalNumExpendedDonations(ctx context.Context, value uint64) error
	GetTotalPlatesDeployed(ctx context.Context) (uint64, error)
	SetTotalPlatesDeployed(ctx context.Context, value uint64) error

	GetContractBalance(ctx context.Context) (*big.Int, error)
	SetContractBalance(ctx context.Context, value *big.Int) error
	GetTotalDonationsETH(ctx context.Context) (*big.Int, error)
	SetTotalDonationsETH(ctx context.Context, value *big.Int) error
	GetTotalExpendedETH(ctx context.Context) (*big.Int, error)
	SetTotalExpendedETH(ctx context.Context, value *big.Int) error
	GetTotalExpendedUSD(ctx context.Context) (int64, error)
	SetTotalExpendedUSD(ctx context.Context, value int64) error

	GetMaxDonation(ctx context.Context) (entity.SpotlightDonation, error)
	SetMaxDonation(ctx context.Context, donation entity.SpotlightDonation) error
	GetLatestDonation(ctx context.Context) (entity.SpotlightDonation, error)
	SetLatestDonation(ctx context.Context, donation entity.SpotlightDonation) error

	GetNextDonationToExpend(ctx context.Context) (uint64, error)
	SetNextDonationToExpend(ctx context.Context, overallDonationNum uint64) error
	GetPendingNextDonationToExpend(ctx context.Context) (uint64, error)
	SetPendingNextDonationToExpend(ctx context.Context, overallDonationNum uint64) error
	ClearPendingNextDonationToExpend(ctx context.Context) error

	// GetWorkflowState returns the current workflow lock state
	// (WorkflowIdle if the key is unset).
	GetWorkflowState(ctx context.Context) (entity.WorkflowState, error)
	// AcquireWorkflow atomically transitions idle -> target. Returns false
	// without error if another workflow currently holds the lock.
	AcquireWorkflow(ctx context.Context, target entity.WorkflowState) (bool, error)
	// ReleaseWorkflow atomically transitions current -> idle. Releasing a
	// lock held by the other workflow is a no-op.
	ReleaseWorkflow(ctx context.Context, current entity.WorkflowState) error

	PushDonation(ctx context.Context, donation entity.Donation) error
	// ReplaceDonation removes every cached copy matching the donation's
	// identity, then pushes the fresh copy, so the cache never holds two
	// versions of the same donation.
	ReplaceDonation(ctx context.Context, donation entity.Donation) error
	GetAllDonations(ctx context.Context) ([]entity.Donation, error)

	PushDonationTrackerItem(ctx context.Context, item entity.DonationTrackerItem) error
	GetAllDonationTrackerItems(ctx context.Context) ([]entity.DonationTrackerItem, error)

	PushExpenditure(ctx context.Context, expenditure entity.Expenditure) error
	GetAllExpenditures(ctx context.Context) ([]entity.Expenditure, error)

	PushExpendedDonation(ctx context.Context, expendedDonation entity.ExpendedDonation) error
	GetAllExpendedDonations(ctx context.Context) ([]entity.ExpendedDonation, error)

	EnqueuePendingExpendedDonation(ctx context.Context, item entity.PendingExpendedDonation) error
	// PeekPendingExpendedDonation returns the oldest queued item without
	// removing it.
	PeekPendingExpendedDonation(ctx context.Context) (entity.PendingExpendedDonation, error)
	DeletePendingExpendedDonation(ctx context.Context, donator common.Address, donationNumber uint64) error
	GetAllPendingExpendedDonations(ctx context.Context) ([]entity.PendingExpendedDonation, error)
	ReplacePendingExpendedDonations(ctx context.Context, items []entity.PendingExpendedDonation) error

	PeekPendingRefund(ctx context.Context) (entity.PendingRefund, error)
	DeletePendingRefund(ctx context.Context, address common.Address, donationNumber uint64) error
	GetAllPendingRefunds(ctx context.Context) ([]entity.PendingRefund, error)
	// ReplacePendingRefunds atomically swaps the whole queue; the refund
	// sweep recomputes the full eligible set each run.
	ReplacePendingRefunds(ctx context.Context, refunds []entity.PendingRefund) error
}
