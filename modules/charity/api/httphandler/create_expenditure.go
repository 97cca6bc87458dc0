package httphandler

import (
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/modules/charity/usecase"
)

type createExpenditureRequest struct {
	// ValueWei is a decimal string, the payable value of the expenditure.
	ValueWei string `json:"valueWei"`

	// ValueUSDCents is optional; zero derives the USD leg from the current
	// ETH spot price.
	ValueUSDCents int64 `json:"valueUSDCents"`

	VideoHash      string `json:"videoHash"`
	ReceiptHash    string `json:"receiptHash"`
	PlatesDeployed uint64 `json:"platesDeployed"`
}

type createExpenditureResult struct {
	TxHash string `json:"txHash"`
}

func (h *HttpHandler) CreateExpenditure(ctx *fiber.Ctx) (err error) {
	var req createExpenditureRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errs.NewPublicError("invalid request body")
	}
	valueWei, valid := new(big.Int).SetString(req.ValueWei, 10)
	if !valid {
		return errs.NewPublicError("valueWei must be a decimal wei amount")
	}

	txHash, err := h.usecase.CreateExpenditure(ctx.UserContext(), usecase.CreateExpenditureParams{
		ValueWei:       valueWei,
		ValueUSDCents:  req.ValueUSDCents,
		VideoHash:      req.VideoHash,
		ReceiptHash:    req.ReceiptHash,
		PlatesDeployed: req.PlatesDeployed,
	})
	if err != nil {
		return errors.Wrap(err, "error during CreateExpenditure")
	}

	return errors.WithStack(ctx.JSON(ok(createExpenditureResult{
		TxHash: txHash.Hex(),
	})))
}

func (h *HttpHandler) CheckRefunds(ctx *fiber.Ctx) (err error) {
	if err := h.usecase.TriggerRefundSweep(ctx.UserContext()); err != nil {
		return errors.Wrap(err, "error during TriggerRefundSweep")
	}
	return errors.WithStack(ctx.JSON(ok(struct{}{})))
}
