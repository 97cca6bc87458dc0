package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
)

func (h *HttpHandler) GetExpenditures(ctx *fiber.Ctx) (err error) {
	expenditures, err := h.usecase.GetExpenditures(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetExpenditures")
	}
	return errors.WithStack(ctx.JSON(ok(expenditures)))
}

func (h *HttpHandler) GetTotalNumExpenditures(ctx *fiber.Ctx) (err error) {
	total, err := h.usecase.GetTotalNumExpenditures(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetTotalNumExpenditures")
	}
	return errors.WithStack(ctx.JSON(ok(total)))
}

func (h *HttpHandler) GetTotalExpendedETH(ctx *fiber.Ctx) (err error) {
	total, err := h.usecase.GetTotalExpendedETH(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetTotalExpendedETH")
	}
	return errors.WithStack(ctx.JSON(ok(total.String())))
}

func (h *HttpHandler) GetTotalExpendedUSD(ctx *fiber.Ctx) (err error) {
	total, err := h.usecase.GetTotalExpendedUSD(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetTotalExpendedUSD")
	}
	return errors.WithStack(ctx.JSON(ok(total)))
}

func (h *HttpHandler) GetTotalPlatesDeployed(ctx *fiber.Ctx) (err error) {
	total, err := h.usecase.GetTotalPlatesDeployed(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetTotalPlatesDeployed")
	}
	return errors.WithStack(ctx.JSON(ok(total)))
}

func (h *HttpHandler) GetExpendedDonations(ctx *fiber.Ctx) (err error) {
	expendedDonations, err := h.usecase.GetExpendedDonations(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetExpendedDonations")
	}
	return errors.WithStack(ctx.JSON(ok(expendedDonations)))
}

func (h *HttpHandler) GetPendingExpendedDonations(ctx *fiber.Ctx) (err error) {
	items, err := h.usecase.GetPendingExpendedDonations(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetPendingExpendedDonations")
	}
	return errors.WithStack(ctx.JSON(ok(items)))
}
