package postprocess

// Positions recommended by an Analysis.
const (
	PositionLong    = "LONG"
	PositionShort   = "SHORT"
	PositionNeutral = "NEUTRAL"
)

// Confidence levels of an Analysis.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// Analysis is a position recommendation merged from prediction market
// events and coin sentiment.
type Analysis struct {
	Keyword        string `json:"keyword"`
	Position       string `json:"position"`
	Rationale      string `json:"rationale"`
	Score          int    `json:"score"`
	MarketScore    int    `json:"marketScore"`
	SentimentScore int    `json:"sentimentScore"`
	Confidence     string `json:"confidence"`

	Markets   *MarketSignals    `json:"markets,omitempty"`
	Sentiment *SentimentSignals `json:"sentiment,omitempty"`

	// Reasons explain each score contribution, market signals first.
	Reasons []string `json:"reasons"`

	// Sources maps each source tool to "ok" or the kind of its failure.
	Sources map[string]string `json:"sources"`
}

// MarketSignals summarize prediction market events. Prices are outcome
// probabilities in [0, 1].
type MarketSignals struct {
	Events       int     `json:"events"`
	TotalVolume  float64 `json:"totalVolume"`
	AveragePrice float64 `json:"averagePrice"`
	Bullish      int     `json:"bullish"`
	Bearish      int     `json:"bearish"`
}

// SentimentSignals summarize coin sentiment.
type SentimentSignals struct {
	Coins              int     `json:"coins"`
	AverageGalaxyScore float64 `json:"averageGalaxyScore"`
	AverageChange24h   float64 `json:"averageChange24h"`
	Bullish            int     `json:"bullish"`
	Bearish            int     `json:"bearish"`
}
