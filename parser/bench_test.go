package parser

import "testing"

func BenchmarkParse_Exact(b *testing.B) {
	p := newTestParser(b)
	b.ReportAllocs()
	for b.Loop() {
		_ = p.Parse("Show 3 Trump election markets")
	}
}

func BenchmarkParse_Fuzzy(b *testing.B) {
	p := newTestParser(b)
	b.ReportAllocs()
	for b.Loop() {
		_ = p.Parse("latest bitcon news for this week")
	}
}

func BenchmarkSimilarity(b *testing.B) {
	for b.Loop() {
		_ = Similarity("championship", "champoinship")
	}
}
