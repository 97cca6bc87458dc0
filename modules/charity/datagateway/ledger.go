package datagateway

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/standard-charity/indexer/modules/charity/entity"
)

// LedgerDataGateway reads and writes the StandardCharity contract through an
// Ethereum node. Reads are eth_call against the latest block; writes build,
// sign and submit a transaction and return its hash without waiting for it
// to mine. The node's read path can lag its write path by roughly one block
// for freshly-mined state, so callers fetching event-derived records go
// through the retrying fetcher instead of calling these directly.
type LedgerDataGateway interface {
	GetDonation(ctx context.Context, donator common.Address, donationNumber uint64) (entity.Donation, error)
	GetDonationTracker(ctx context.Context, overallDonationNum uint64) (entity.DonationTrackerItem, error)
	GetExpenditure(ctx context.Context, expenditureNumber uint64) (entity.Expenditure, error)
	GetExpendedDonation(ctx context.Context, expendedDonationNumber uint64) (entity.ExpendedDonation, error)

	GetTotalNumDonations(ctx context.Context) (uint64, error)
	GetTotalNumExpenditures(ctx context.Context) (uint64, error)
	GetTotalNumExpendedDonations(ctx context.Context) (uint64, error)
	GetContractBalance(ctx context.Context) (*big.Int, error)
	GetMaxDonation(ctx context.Context) (entity.SpotlightDonation, error)
	GetLatestDonation(ctx context.Context) (entity.SpotlightDonation, error)
	GetNextDonationToExpend(ctx context.Context) (uint64, error)
	GetTotalDonationsETH(ctx context.Context) (*big.Int, error)
	GetTotalExpendedETH(ctx context.Context) (*big.Int, error)
	GetTotalExpendedUSD(ctx context.Context) (int64, error)
	GetTotalPlatesDeployed(ctx context.Context) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	CreateExpenditure(ctx context.Context, valueWei *big.Int, valueUSD int64, videoHash, receiptHash string, platesDeployed uint64) (common.Hash, error)
	CreateExpendedDonation(ctx context.Context, item entity.PendingExpendedDonation) (common.Hash, error)
	SetNextDonationToExpend(ctx context.Context, overallDonationNum uint64) (common.Hash, error)
	RefundDonation(ctx context.Context, refund entity.PendingRefund) (common.Hash, error)

	// WaitMined polls for the receipt of a submitted transaction and
	// returns once it is mined (or fails with the context).
	WaitMined(ctx context.Context, txHash common.Hash) error
}
