package models

import "github.com/shopspring/decimal"

// Account is the brokerage account view the position sizer needs: how much
// capital exists and how much cash is free to deploy.
type Account struct {
	Cash           decimal.Decimal `json:"cash"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	BuyingPower    decimal.Decimal `json:"buying_power"`
}

// AvailableCash returns cash after holding back the configured reserve
// fraction of portfolio value.
func (a Account) AvailableCash(reservePct float64) decimal.Decimal {
	reserve := a.PortfolioValue.Mul(decimal.NewFromFloat(reservePct))
	available := a.Cash.Sub(reserve)
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}
