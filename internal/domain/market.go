package domain

// MarketToken is one outcome token of a binary market.
type MarketToken struct {
	TokenID string
	Outcome string // "Yes" or "No"
}

// Market is a discovered binary market with its two outcome tokens resolved.
type Market struct {
	Slug       string
	Question   string
	YesTokenID string
	NoTokenID  string
}

// Binary reports whether both outcome tokens were resolved.
func (m Market) Binary() bool {
	return m.YesTokenID != "" && m.NoTokenID != ""
}
