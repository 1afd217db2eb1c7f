package moderation

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/omis-2025/strangerwave-sub000/pkg/utils"
)

// Term is one blocked word. Severe terms ban on the first use.
type Term struct {
	Word   string
	Severe bool
}

// Scores assigned by the word list gate
const (
	firstHitScore = 0.6
	extraHitScore = 0.2
)

type KeywordGate struct {
	terms            map[string]bool
	autoBanThreshold float64
}

func NewKeywordGate(terms []Term, autoBanThreshold float64) *KeywordGate {
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		w := utils.NormalizeText(t.Word)
		if w == "" {
			continue
		}
		set[w] = set[w] || t.Severe
	}
	if autoBanThreshold <= 0 {
		autoBanThreshold = 1
	}
	return &KeywordGate{terms: set, autoBanThreshold: autoBanThreshold}
}

func (g *KeywordGate) Evaluate(ctx context.Context, senderID uint, content string) (Verdict, error) {
	words := strings.FieldsFunc(utils.NormalizeText(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	hits := 0
	severe := false
	for _, w := range words {
		s, blocked := g.terms[w]
		if !blocked {
			continue
		}
		hits++
		severe = severe || s
	}
	if hits == 0 {
		return Verdict{}, nil
	}

	score := firstHitScore + extraHitScore*float64(hits-1)
	if severe || score > 1 {
		score = 1
	}
	return Verdict{
		Flagged:       true,
		ToxicityScore: score,
		ShouldAutoBan: score >= g.autoBanThreshold,
		Reason:        fmt.Sprintf("%d blocked word(s)", hits),
	}, nil
}

// LoadWordList reads blocked words from a .txt, .csv or .xlsx file. The first
// column holds the word; a second column of "severe" marks instant-ban words.
func LoadWordList(path string) ([]Term, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return loadXLSX(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open word list: %w", err)
		}
		defer f.Close()
		return parseCSV(f)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open word list: %w", err)
		}
		defer f.Close()
		return parseText(f)
	}
}

func parseText(r io.Reader) ([]Term, error) {
	var terms []Term
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		terms = append(terms, termFromRow(fields))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read word list: %w", err)
	}
	return terms, nil
}

func parseCSV(r io.Reader) ([]Term, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read word list: %w", err)
	}
	return termsFromRows(rows), nil
}

func loadXLSX(path string) ([]Term, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()

	var rows [][]string
	for _, sheet := range f.GetSheetList() {
		sheetRows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		rows = append(rows, sheetRows...)
	}
	return termsFromRows(rows), nil
}

func termsFromRows(rows [][]string) []Term {
	terms := make([]Term, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		// header row
		if i == 0 && strings.EqualFold(strings.TrimSpace(row[0]), "word") {
			continue
		}
		terms = append(terms, termFromRow(row))
	}
	return terms
}

func termFromRow(row []string) Term {
	t := Term{Word: strings.ToLower(strings.TrimSpace(row[0]))}
	if len(row) > 1 {
		switch strings.ToLower(strings.TrimSpace(row[1])) {
		case "severe", "ban", "true", "1":
			t.Severe = true
		}
	}
	return t
}
