package domain

import "time"

// Opportunity is a detected yes/no pair whose buffered combined cost is below
// the payout of 1 per side. It is immutable once produced and consumed at
// most once by the executor.
type Opportunity struct {
	PriceYes float64 // worst ask price touched filling the yes leg
	PriceNo  float64 // worst ask price touched filling the no leg
	VWAPYes  float64 // diagnostics only; not used for gating
	VWAPNo   float64

	RawCost      float64 // PriceYes + PriceNo
	BufferedCost float64 // RawCost * (1 + safety buffer)
	Size         float64

	ExpectedProfit  float64 // 2*Size - BufferedCost*Size
	TotalInvestment float64 // BufferedCost * Size
	ProfitPct       float64 // (1 - BufferedCost) * 100

	DetectedAt time.Time
}
