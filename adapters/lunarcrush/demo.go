package lunarcrush

import (
	"cmp"
	"slices"

	"github.com/jonwraymond/toolquery/tool"
)

// demoCoins is served when no API key is configured.
var demoCoins = []item{
	{ID: "bitcoin", Title: "Bitcoin", Symbol: "BTC", Price: 67234.50, MarketCap: 1325678900000, PercentChange24h: 2.45, GalaxyScore: 85.2, AltRank: 1, Volume: 28450000000, Sentiment: "Bullish"},
	{ID: "ethereum", Title: "Ethereum", Symbol: "ETH", Price: 2687.32, MarketCap: 323456789000, PercentChange24h: 1.87, GalaxyScore: 82.7, AltRank: 2, Volume: 15230000000, Sentiment: "Bullish"},
	{ID: "cardano", Title: "Cardano", Symbol: "ADA", Price: 0.372, MarketCap: 13127000000, PercentChange24h: -0.85, GalaxyScore: 71.3, AltRank: 8, Volume: 287000000, Sentiment: "Neutral"},
	{ID: "solana", Title: "Solana", Symbol: "SOL", Price: 143.67, MarketCap: 67890123000, PercentChange24h: 4.23, GalaxyScore: 78.9, AltRank: 5, Volume: 1890000000, Sentiment: "Bullish"},
	{ID: "binancecoin", Title: "BNB", Symbol: "BNB", Price: 586.42, MarketCap: 85234567000, PercentChange24h: 1.12, GalaxyScore: 76.4, AltRank: 4, Volume: 1234000000, Sentiment: "Neutral"},
	{ID: "ripple", Title: "XRP", Symbol: "XRP", Price: 0.5234, MarketCap: 29876543000, PercentChange24h: -1.45, GalaxyScore: 69.2, AltRank: 6, Volume: 987000000, Sentiment: "Bearish"},
	{ID: "dogecoin", Title: "Dogecoin", Symbol: "DOGE", Price: 0.1234, MarketCap: 17654321000, PercentChange24h: 8.76, GalaxyScore: 64.8, AltRank: 9, Volume: 543000000, Sentiment: "Bullish"},
	{ID: "avalanche", Title: "Avalanche", Symbol: "AVAX", Price: 27.89, MarketCap: 11234567000, PercentChange24h: 2.34, GalaxyScore: 73.6, AltRank: 11, Volume: 234000000, Sentiment: "Bullish"},
	{ID: "chainlink", Title: "Chainlink", Symbol: "LINK", Price: 11.67, MarketCap: 7123456000, PercentChange24h: 0.89, GalaxyScore: 75.2, AltRank: 13, Volume: 189000000, Sentiment: "Neutral"},
	{ID: "polygon", Title: "Polygon", Symbol: "MATIC", Price: 0.4567, MarketCap: 4567890000, PercentChange24h: -2.11, GalaxyScore: 71.8, AltRank: 15, Volume: 156000000, Sentiment: "Neutral"},
}

// demoItems returns up to n demo coins ordered by sort.
func demoItems(sort string, n int) []item {
	coins := slices.Clone(demoCoins)
	key := func(c item) float64 {
		switch sort {
		case "v":
			return c.Volume
		case "p":
			return c.Price
		case "pc":
			return c.PercentChange24h
		case "gs":
			return c.GalaxyScore
		case "ar":
			return -c.AltRank
		default:
			return c.MarketCap
		}
	}
	slices.SortStableFunc(coins, func(a, b item) int {
		return cmp.Compare(key(b), key(a))
	})

	if n < len(coins) {
		coins = coins[:n]
	}
	for i := range coins {
		coins[i].Category = string(tool.CategoryCrypto)
		coins[i].Source = Namespace + "_demo"
	}
	return coins
}
