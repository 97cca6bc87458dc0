package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
)

func (h *HttpHandler) GetDonations(ctx *fiber.Ctx) (err error) {
	donations, err := h.usecase.GetDonations(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetDonations")
	}
	return errors.WithStack(ctx.JSON(ok(donations)))
}

func (h *HttpHandler) GetDonationsGroupedByDonator(ctx *fiber.Ctx) (err error) {
	grouped, err := h.usecase.GetDonationsGroupedByDonator(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetDonationsGroupedByDonator")
	}
	return errors.WithStack(ctx.JSON(ok(grouped)))
}

func (h *HttpHandler) GetMaxDonation(ctx *fiber.Ctx) (err error) {
	donation, err := h.usecase.GetMaxDonation(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetMaxDonation")
	}
	return errors.WithStack(ctx.JSON(ok(donation)))
}

func (h *HttpHandler) GetLatestDonation(ctx *fiber.Ctx) (err error) {
	donation, err := h.usecase.GetLatestDonation(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetLatestDonation")
	}
	return errors.WithStack(ctx.JSON(ok(donation)))
}

func (h *HttpHandler) GetTotalNumDonations(ctx *fiber.Ctx) (err error) {
	total, err := h.usecase.GetTotalNumDonations(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetTotalNumDonations")
	}
	return errors.WithStack(ctx.JSON(ok(total)))
}

func (h *HttpHandler) GetTotalDonationsETH(ctx *fiber.Ctx) (err error) {
	total, err := h.usecase.GetTotalDonationsETH(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetTotalDonationsETH")
	}
	return errors.WithStack(ctx.JSON(ok(total.String())))
}
