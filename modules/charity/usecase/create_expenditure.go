package usecase

import (
	"context"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/modules/charity/entity"
	"github.com/standard-charity/indexer/pkg/logger"
	"github.com/standard-charity/indexer/pkg/logger/slogx"
)

var weiPerETH = decimal.New(1, 18)

type CreateExpenditureParams struct {
	// ValueWei is the expenditure value to allocate across donations.
	ValueWei *big.Int

	// ValueUSDCents is the USD leg of the expenditure. Zero means derive it
	// from the current ETH spot price.
	ValueUSDCents int64

	VideoHash      string
	ReceiptHash    string
	PlatesDeployed uint64
}

// CreateExpenditure takes the expenditure workflow lock and submits the
// createExpenditure transaction. The lock stays held on success: the
// reconciliation engine releases it once the confirmation event has driven
// the allocation workflow to its end.
func (u *Usecase) CreateExpenditure(ctx context.Context, params CreateExpenditureParams) (common.Hash, error) {
	if params.ValueWei == nil || params.ValueWei.Sign() <= 0 {
		return common.Hash{}, errs.NewPublicError("expenditure value must be a positive wei amount")
	}

	won, err := u.cache.AcquireWorkflow(ctx, entity.WorkflowExpenditure)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "can't acquire expenditure workflow")
	}
	if !won {
		return common.Hash{}, errs.WithPublicMessage(errs.WorkflowBusy, "can't create expenditure")
	}

	valueUSDCents := params.ValueUSDCents
	if valueUSDCents == 0 {
		valueUSDCents, err = u.spotValueUSDCents(ctx, params.ValueWei)
		if err != nil {
			u.releaseExpenditureWorkflow(ctx)
			return common.Hash{}, errors.Wrap(err, "can't derive USD value from spot price")
		}
	}

	txHash, err := u.ledger.CreateExpenditure(ctx, params.ValueWei, valueUSDCents, params.VideoHash, params.ReceiptHash, params.PlatesDeployed)
	if err != nil {
		u.releaseExpenditureWorkflow(ctx)
		return common.Hash{}, errors.Wrap(err, "can't submit expenditure")
	}

	logger.InfoContext(ctx, "submitted expenditure",
		slogx.Stringer("valueWei", params.ValueWei),
		slogx.Int64("valueUSDCents", valueUSDCents),
		slogx.Stringer("tx", txHash),
	)
	return txHash, nil
}

// TriggerRefundSweep runs one refund sweep; the sweeper owns its own lock
// handling.
func (u *Usecase) TriggerRefundSweep(ctx context.Context) error {
	if err := u.sweeper.Sweep(ctx); err != nil {
		if errors.Is(err, errs.WorkflowBusy) {
			return errs.WithPublicMessage(errs.WorkflowBusy, "can't start refund sweep")
		}
		return errors.Wrap(err, "error during Sweep")
	}
	return nil
}

func (u *Usecase) spotValueUSDCents(ctx context.Context, valueWei *big.Int) (int64, error) {
	price, err := u.priceFeed.GetETHPriceUSD(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "can't get ETH spot price")
	}
	cents := decimal.NewFromBigInt(valueWei, 0).
		Div(weiPerETH).
		Mul(price).
		Mul(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
	return cents, nil
}

func (u *Usecase) releaseExpenditureWorkflow(ctx context.Context) {
	if err := u.cache.ReleaseWorkflow(ctx, entity.WorkflowExpenditure); err != nil {
		logger.ErrorContext(ctx, "can't release expenditure workflow lock", slogx.Error(err))
	}
}
