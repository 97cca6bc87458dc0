package httphandler

import (
	"github.com/gofiber/fiber/v2"
)

func (h *HttpHandler) Mount(router fiber.Router) error {
	r := router.Group("/v1")

	r.Get("/donations", h.GetDonations)
	r.Get("/donations/max", h.GetMaxDonation)
	r.Get("/donations/latest", h.GetLatestDonation)
	r.Get("/donations/total-number", h.GetTotalNumDonations)
	r.Get("/donations/total-eth", h.GetTotalDonationsETH)
	r.Get("/donations/grouped-by-donator", h.GetDonationsGroupedByDonator)

	r.Post("/expenditures", h.CreateExpenditure)
	r.Get("/expenditures", h.GetExpenditures)
	r.Get("/expenditures/total-number", h.GetTotalNumExpenditures)
	r.Get("/expenditures/total-eth", h.GetTotalExpendedETH)
	r.Get("/expenditures/total-usd", h.GetTotalExpendedUSD)
	r.Get("/expenditures/plates-deployed", h.GetTotalPlatesDeployed)

	r.Get("/expended-donations", h.GetExpendedDonations)
	r.Get("/expended-donations/pending", h.GetPendingExpendedDonations)

	r.Post("/refunds/check", h.CheckRefunds)
	r.Get("/refunds/pending", h.GetPendingRefunds)

	r.Get("/contract/balance", h.GetContractBalance)
	r.Get("/contract/next-donation-to-expend", h.GetNextDonationToExpend)

	r.Get("/utils/gas-price", h.GetGasPrice)
	r.Get("/utils/eth-price", h.GetETHPrice)
	return nil
}
