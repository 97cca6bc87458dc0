package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
)

func (h *HttpHandler) GetContractBalance(ctx *fiber.Ctx) (err error) {
	balance, err := h.usecase.GetContractBalance(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetContractBalance")
	}
	return errors.WithStack(ctx.JSON(ok(balance.String())))
}

func (h *HttpHandler) GetNextDonationToExpend(ctx *fiber.Ctx) (err error) {
	pointer, err := h.usecase.GetNextDonationToExpend(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetNextDonationToExpend")
	}
	return errors.WithStack(ctx.JSON(ok(pointer)))
}

func (h *HttpHandler) GetPendingRefunds(ctx *fiber.Ctx) (err error) {
	refunds, err := h.usecase.GetPendingRefunds(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetPendingRefunds")
	}
	return errors.WithStack(ctx.JSON(ok(refunds)))
}

func (h *HttpHandler) GetGasPrice(ctx *fiber.Ctx) (err error) {
	gasPrice, err := h.usecase.GetGasPrice(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetGasPrice")
	}
	return errors.WithStack(ctx.JSON(ok(gasPrice.String())))
}

func (h *HttpHandler) GetETHPrice(ctx *fiber.Ctx) (err error) {
	price, err := h.usecase.GetETHPriceUSD(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetETHPriceUSD")
	}
	return errors.WithStack(ctx.JSON(ok(price.String())))
}
