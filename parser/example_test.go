package parser_test

import (
	"fmt"

	"github.com/jonwraymond/toolquery/parser"
)

func ExampleParser_Parse() {
	p, err := parser.New(parser.DefaultVocabulary(), parser.Config{})
	if err != nil {
		panic(err)
	}

	q := p.Parse("Show 3 Trump election markets")
	fmt.Println(q.Category, q.Limit, q.Offset, q.Terms)

	q = p.Parse("any poltics events offset 10")
	fmt.Println(q.Category, q.Limit, q.Offset, q.Terms)
	// Output:
	// politics 3 0 [trump election]
	// politics 5 10 [poltics events]
}

func ExampleSimilarity() {
	fmt.Printf("%.2f\n", parser.Similarity("cryptp", "crypto"))
	// Output: 0.83
}
