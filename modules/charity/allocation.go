package charity

import (
	"context"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/modules/charity/datagateway"
	"github.com/standard-charity/indexer/modules/charity/entity"
)

// allocator splits one expenditure's value across donations in global
// donation order, draining each donation's unexpended remainder before
// moving the next-donation pointer forward. It reads and writes only the
// cache; the queued items are submitted to the ledger one at a time by the
// event handlers.
type allocator struct {
	cache  datagateway.CacheStorage
	ledger datagateway.LedgerDataGateway
}

// allocate covers expenditure.ValueExpendedETH by enqueueing pending
// expended donations, returning how many items it queued. USD cents and
// plates are split proportionally to each donation's wei share of the
// original expenditure value. The cache pointer only moves forward; the
// terminal pointer value additionally lands in the pending scratch key when
// it differs from the pointer confirmed on the ledger, so the whole run
// costs at most one on-chain pointer write.
func (a *allocator) allocate(ctx context.Context, expenditure entity.Expenditure) (int, error) {
	if expenditure.ValueExpendedETH == nil || expenditure.ValueExpendedETH.Sign() <= 0 {
		return 0, errors.Wrapf(errs.InvalidArgument, "expenditure %d has no value to allocate", expenditure.ExpenditureNumber)
	}

	pointer, err := a.cache.GetNextDonationToExpend(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "can't read next donation to expend")
	}

	trackerItems, err := a.cache.GetAllDonationTrackerItems(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "can't read donation tracker items")
	}
	donations, err := a.cache.GetAllDonations(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "can't read donations")
	}

	weiOriginal := new(big.Int).Set(expenditure.ValueExpendedETH)
	weiRemaining := new(big.Int).Set(weiOriginal)
	queued := 0

	for weiRemaining.Sign() > 0 {
		trackerItem, found := lo.Find(trackerItems, func(item entity.DonationTrackerItem) bool {
			return item.OverallDonationNum == pointer
		})
		if !found {
			return queued, errors.Wrapf(errs.NotFound, "no more donations to expend: no tracker entry at %d", pointer)
		}

		donation, found := lo.Find(donations, func(d entity.Donation) bool {
			return d.Is(trackerItem.Address, trackerItem.AddressDonationNum)
		})
		if !found {
			return queued, errors.Wrapf(errs.NotFound, "donation %s #%d missing from cache",
				trackerItem.Address.Hex(), trackerItem.AddressDonationNum)
		}

		available := donation.Available()
		if available.Sign() <= 0 {
			// Exhausted donation, skip it without consuming any wei.
			pointer++
			if err := a.cache.SetNextDonationToExpend(ctx, pointer); err != nil {
				return queued, errors.Wrap(err, "can't advance next donation to expend")
			}
			continue
		}

		take := new(big.Int).Set(weiRemaining)
		if take.Cmp(available) > 0 {
			take.Set(available)
		}
		usdToTake := proportionOf(expenditure.ValueExpendedUSD, take, weiOriginal)
		platesToTake := uint64(proportionOf(int64(expenditure.PlatesDeployed), take, weiOriginal))

		if err := a.cache.EnqueuePendingExpendedDonation(ctx, entity.PendingExpendedDonation{
			Donator:           donation.Donator,
			ValueExpendedETH:  take,
			ValueExpendedUSD:  usdToTake,
			ExpenditureNumber: expenditure.ExpenditureNumber,
			DonationNumber:    donation.DonationNumber,
			PlatesDeployed:    platesToTake,
		}); err != nil {
			return queued, errors.Wrap(err, "can't enqueue pending expended donation")
		}
		queued++

		switch weiRemaining.Cmp(available) {
		case 1:
			// Donation drained, more wei to place: move on.
			pointer++
			if err := a.cache.SetNextDonationToExpend(ctx, pointer); err != nil {
				return queued, errors.Wrap(err, "can't advance next donation to expend")
			}
			weiRemaining.Sub(weiRemaining, take)
		case 0:
			// Exact drain: the next expenditure starts on the next donation.
			return queued, a.markTerminal(ctx, pointer+1)
		default:
			// Donation outlives the expenditure: the next expenditure keeps
			// consuming this donation's leftover capacity.
			return queued, a.markTerminal(ctx, pointer)
		}
	}

	// Unreachable for a positive-valued expenditure, but keeps the loop
	// total even if remaining hits zero through cache drift.
	return queued, a.markTerminal(ctx, pointer)
}

// markTerminal persists the run's final pointer value. The on-chain mirror
// lags: when the cache value moved past the ledger-confirmed one, the new
// value waits in the pending scratch key for the single deferred ledger
// write issued after the last queued item confirms.
func (a *allocator) markTerminal(ctx context.Context, pointer uint64) error {
	if err := a.cache.SetNextDonationToExpend(ctx, pointer); err != nil {
		return errors.Wrap(err, "can't persist next donation to expend")
	}

	confirmed, err := a.ledger.GetNextDonationToExpend(ctx)
	if err != nil {
		return errors.Wrap(err, "can't read ledger next donation to expend")
	}
	if confirmed != pointer {
		if err := a.cache.SetPendingNextDonationToExpend(ctx, pointer); err != nil {
			return errors.Wrap(err, "can't persist pending next donation to expend")
		}
	}
	return nil
}

// proportionOf returns round(total * part/whole) with half-up rounding.
func proportionOf(total int64, part, whole *big.Int) int64 {
	if total == 0 || whole.Sign() == 0 {
		return 0
	}
	return decimal.NewFromInt(total).
		Mul(decimal.NewFromBigInt(part, 0)).
		Div(decimal.NewFromBigInt(whole, 0)).
		Round(0).
		IntPart()
}
