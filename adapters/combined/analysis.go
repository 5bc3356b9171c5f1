package combined

import (
	"fmt"

	"github.com/jonwraymond/toolquery/postprocess"
)

// Signal thresholds.
const (
	NeutralPrice    = 0.5
	BullishPrice    = 0.6
	BearishPrice    = 0.4
	HighVolume      = 500_000
	NeutralGalaxy   = 50
	StrongGalaxy    = 75
	StrongChangePct = 2
)

// Inputs are the source records an analysis is computed from.
type Inputs struct {
	Events []Event
	Coins  []Coin
}

// Analyze scores the market and sentiment signals in in and recommends a
// position. A total score of 3 or more is a strong LONG, 1 or more a
// moderate LONG, and symmetrically for SHORT; anything between is NEUTRAL.
// Confidence grows with the number of signals that contributed a reason.
func Analyze(keyword string, in Inputs) *postprocess.Analysis {
	an := &postprocess.Analysis{Keyword: keyword, Reasons: []string{}}

	if len(in.Events) > 0 {
		m := marketSignals(in.Events)
		an.Markets = &m
		an.MarketScore = scoreMarkets(m, &an.Reasons)
	}
	if len(in.Coins) > 0 {
		s := sentimentSignals(in.Coins)
		an.Sentiment = &s
		an.SentimentScore = scoreSentiment(s, &an.Reasons)
	}

	an.Score = an.MarketScore + an.SentimentScore
	switch total := an.Score; {
	case total >= 3:
		an.Position = postprocess.PositionLong
		an.Rationale = fmt.Sprintf("Strong bullish signals from prediction markets and sentiment (score %+d)", total)
	case total >= 1:
		an.Position = postprocess.PositionLong
		an.Rationale = fmt.Sprintf("Moderate bullish signals (score %+d)", total)
	case total <= -3:
		an.Position = postprocess.PositionShort
		an.Rationale = fmt.Sprintf("Strong bearish signals from prediction markets and sentiment (score %+d)", total)
	case total <= -1:
		an.Position = postprocess.PositionShort
		an.Rationale = fmt.Sprintf("Moderate bearish signals (score %+d)", total)
	default:
		an.Position = postprocess.PositionNeutral
		an.Rationale = fmt.Sprintf("Mixed signals, no clear direction (score %+d)", total)
	}

	switch n := len(an.Reasons); {
	case n >= 6:
		an.Confidence = postprocess.ConfidenceHigh
	case n >= 3:
		an.Confidence = postprocess.ConfidenceMedium
	default:
		an.Confidence = postprocess.ConfidenceLow
	}
	return an
}

func marketSignals(events []Event) postprocess.MarketSignals {
	m := postprocess.MarketSignals{Events: len(events)}
	var prices float64
	for _, ev := range events {
		p := NeutralPrice
		if ev.Price != nil {
			p = *ev.Price
		}
		prices += p
		m.TotalVolume += float64(ev.Volume)
		switch {
		case p > BullishPrice:
			m.Bullish++
		case p < BearishPrice:
			m.Bearish++
		}
	}
	m.AveragePrice = prices / float64(len(events))
	return m
}

func sentimentSignals(coins []Coin) postprocess.SentimentSignals {
	s := postprocess.SentimentSignals{Coins: len(coins)}
	var galaxy, change float64
	for _, c := range coins {
		g := float64(NeutralGalaxy)
		if c.GalaxyScore != nil {
			g = *c.GalaxyScore
		}
		galaxy += g
		pc := float64(c.PercentChange24h)
		change += pc
		switch {
		case pc > 0:
			s.Bullish++
		case pc < 0:
			s.Bearish++
		}
	}
	s.AverageGalaxyScore = galaxy / float64(len(coins))
	s.AverageChange24h = change / float64(len(coins))
	return s
}

func scoreMarkets(m postprocess.MarketSignals, reasons *[]string) int {
	score := 0
	add := func(delta int, format string, args ...any) {
		score += delta
		*reasons = append(*reasons, fmt.Sprintf(format, args...))
	}

	switch {
	case m.AveragePrice > BullishPrice:
		add(2, "Prediction markets lean bullish (avg price %.2f)", m.AveragePrice)
	case m.AveragePrice < BearishPrice:
		add(-2, "Prediction markets lean bearish (avg price %.2f)", m.AveragePrice)
	default:
		add(0, "Prediction markets are neutral (avg price %.2f)", m.AveragePrice)
	}
	if m.TotalVolume > HighVolume {
		add(1, "High market volume shows strong interest ($%.0f)", m.TotalVolume)
	}
	switch {
	case m.Bullish > m.Bearish:
		add(1, "More bullish than bearish events (%d vs %d)", m.Bullish, m.Bearish)
	case m.Bearish > m.Bullish:
		add(-1, "More bearish than bullish events (%d vs %d)", m.Bearish, m.Bullish)
	}
	return score
}

func scoreSentiment(s postprocess.SentimentSignals, reasons *[]string) int {
	score := 0
	add := func(delta int, format string, args ...any) {
		score += delta
		*reasons = append(*reasons, fmt.Sprintf(format, args...))
	}

	switch {
	case s.AverageGalaxyScore > StrongGalaxy:
		add(2, "High galaxy score shows strong sentiment (avg %.1f)", s.AverageGalaxyScore)
	case s.AverageGalaxyScore < NeutralGalaxy:
		add(-1, "Low galaxy score shows weak sentiment (avg %.1f)", s.AverageGalaxyScore)
	default:
		add(0, "Moderate galaxy score (avg %.1f)", s.AverageGalaxyScore)
	}
	switch c := s.AverageChange24h; {
	case c > StrongChangePct:
		add(2, "Strong positive price momentum (%+.2f%%)", c)
	case c > 0:
		add(1, "Positive price momentum (%+.2f%%)", c)
	case c < -StrongChangePct:
		add(-2, "Strong negative price momentum (%+.2f%%)", c)
	case c < 0:
		add(-1, "Negative price momentum (%+.2f%%)", c)
	}
	switch {
	case s.Bullish > s.Bearish:
		add(1, "More coins up than down (%d vs %d)", s.Bullish, s.Bearish)
	case s.Bearish > s.Bullish:
		add(-1, "More coins down than up (%d vs %d)", s.Bearish, s.Bullish)
	}
	return score
}

// summary is the one-line description shown with the analysis.
func summary(an *postprocess.Analysis) string {
	return fmt.Sprintf("%s (score %+d, %s confidence): %s",
		an.Position, an.Score, an.Confidence, an.Rationale)
}
