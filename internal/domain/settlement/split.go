package settlement

import "github.com/shopspring/decimal"

const bpsDenominator = 10000

var bpsDivisor = decimal.NewFromInt(bpsDenominator)

// Split computes the platform fee as round(amount*feeBps/10000), rounding half
// away from zero, and gives the remainder to the doctor.
func Split(amountMinor int64, feeBps int) (platformFee, doctorEarning int64) {
	fee := decimal.NewFromInt(amountMinor).
		Mul(decimal.NewFromInt(int64(feeBps))).
		Div(bpsDivisor).
		Round(0).
		IntPart()
	return fee, amountMinor - fee
}
