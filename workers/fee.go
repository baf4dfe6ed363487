package workers

import "github.com/shopspring/decimal"

// deductFee keeps feePercentage percent of amount and rounds the rest to 3 places
func deductFee(amount decimal.Decimal, feePercentage int) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(100 - feePercentage))).Shift(-2).Round(3)
}
