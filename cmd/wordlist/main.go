// Command wordlist loads a moderation word list (.txt, .csv or .xlsx) the
// way the server does and reports what it contains. Extra arguments are run
// through the gate so a list can be checked before it is deployed.
//
//	wordlist -file words.xlsx -threshold 0.95 "sample message" ...
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/omis-2025/strangerwave-sub000/internal/moderation"
)

func main() {
	file := flag.String("file", os.Getenv("MODERATION_WORDLIST"), "word list path")
	threshold := flag.Float64("threshold", 0.95, "auto-ban toxicity threshold")
	flag.Parse()

	if *file == "" {
		log.Fatal("no word list: pass -file or set MODERATION_WORDLIST")
	}

	terms, err := moderation.LoadWordList(*file)
	if err != nil {
		log.Fatal(err)
	}

	severe := 0
	for _, t := range terms {
		if t.Severe {
			severe++
		}
	}
	fmt.Printf("Terms: %d (%d severe)\n", len(terms), severe)

	for i, t := range terms {
		if i > 5 {
			break
		}
		fmt.Printf("Term %d: %q severe=%v\n", i, t.Word, t.Severe)
	}

	gate := moderation.NewKeywordGate(terms, *threshold)
	for _, text := range flag.Args() {
		v, err := gate.Evaluate(context.Background(), 0, text)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%q: flagged=%v score=%.2f autoban=%v\n", text, v.Flagged, v.ToxicityScore, v.ShouldAutoBan)
	}
}
