package charity

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sethvargo/go-retry"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/modules/charity/datagateway"
	"github.com/standard-charity/indexer/modules/charity/entity"
)

// fetcher re-reads event-derived records from the ledger until the node's
// read path has caught up with the freshly-mined state. A zero-valued record
// counts as "not there yet" the same as an RPC error: both are retried on a
// constant backoff until the attempt budget runs out, which yields
// errs.NotYetAvailable.
type fetcher struct {
	ledger   datagateway.LedgerDataGateway
	attempts uint64
	delay    time.Duration
}

func newFetcher(ledger datagateway.LedgerDataGateway, attempts uint64, delay time.Duration) *fetcher {
	if attempts == 0 {
		attempts = 1
	}
	return &fetcher{
		ledger:   ledger,
		attempts: attempts,
		delay:    delay,
	}
}

func fetch[T any](ctx context.Context, f *fetcher, what string, read func(ctx context.Context) (T, bool, error)) (T, error) {
	var out T
	backoff := retry.WithMaxRetries(f.attempts-1, retry.NewConstant(f.delay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		result, settled, err := read(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		if !settled {
			return retry.RetryableError(errors.Wrapf(errs.NotYetAvailable, "%s not yet readable", what))
		}
		out = result
		return nil
	})
	if err != nil {
		return out, errors.Wrapf(errs.NotYetAvailable, "%s still unreadable after %d attempts: %v", what, f.attempts, err)
	}
	return out, nil
}

// fetchDonation reads a donation until it carries a real value.
func (f *fetcher) fetchDonation(ctx context.Context, donator common.Address, donationNumber uint64) (entity.Donation, error) {
	return fetch(ctx, f, "donation", func(ctx context.Context) (entity.Donation, bool, error) {
		donation, err := f.ledger.GetDonation(ctx, donator, donationNumber)
		if err != nil {
			return entity.Donation{}, false, err
		}
		settled := donation.Value != nil && donation.Value.Sign() > 0 && donation.Timestamp > 0
		return donation, settled, nil
	})
}

// fetchDonationTracker reads a tracker entry until the slot is populated.
func (f *fetcher) fetchDonationTracker(ctx context.Context, overallDonationNum uint64) (entity.DonationTrackerItem, error) {
	return fetch(ctx, f, "donation tracker entry", func(ctx context.Context) (entity.DonationTrackerItem, bool, error) {
		item, err := f.ledger.GetDonationTracker(ctx, overallDonationNum)
		if err != nil {
			return entity.DonationTrackerItem{}, false, err
		}
		return item, true, nil
	})
}

// fetchExpenditure reads an expenditure until it carries a timestamp.
func (f *fetcher) fetchExpenditure(ctx context.Context, expenditureNumber uint64) (entity.Expenditure, error) {
	return fetch(ctx, f, "expenditure", func(ctx context.Context) (entity.Expenditure, bool, error) {
		expenditure, err := f.ledger.GetExpenditure(ctx, expenditureNumber)
		if err != nil {
			return entity.Expenditure{}, false, err
		}
		settled := expenditure.Timestamp > 0 && expenditure.ValueExpendedETH != nil && expenditure.ValueExpendedETH.Sign() > 0
		return expenditure, settled, nil
	})
}

// fetchExpendedDonation reads an expended donation until it carries a value.
func (f *fetcher) fetchExpendedDonation(ctx context.Context, expendedDonationNumber uint64) (entity.ExpendedDonation, error) {
	return fetch(ctx, f, "expended donation", func(ctx context.Context) (entity.ExpendedDonation, bool, error) {
		expendedDonation, err := f.ledger.GetExpendedDonation(ctx, expendedDonationNumber)
		if err != nil {
			return entity.ExpendedDonation{}, false, err
		}
		settled := expendedDonation.ValueExpendedETH != nil && expendedDonation.ValueExpendedETH.Sign() > 0
		return expendedDonation, settled, nil
	})
}
