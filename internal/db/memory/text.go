package memory

import (
	"math"
	"strings"
	"unicode"

	"github.com/kailas-cloud/annosearch/internal/db"
	"github.com/kailas-cloud/annosearch/internal/domain/search/scope"
)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true, "but": true,
	"by": true, "for": true, "if": true, "in": true, "into": true, "is": true, "it": true, "no": true,
	"not": true, "of": true, "on": true, "or": true, "such": true, "that": true, "the": true,
	"their": true, "then": true, "there": true, "these": true, "they": true, "this": true, "to": true,
	"was": true, "will": true, "with": true,
}

// tokenize lowercases text and splits it into words, dropping stopwords.
func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := words[:0]
	for _, w := range words {
		if !stopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

// textFields returns the TEXT field keys a query searches.
func textFields(idx *db.IndexDefinition, field scope.Scope) ([]string, error) {
	if !field.IsZero() {
		key := db.FieldKey(field)
		f, ok := idx.Field(key)
		if !ok || f.Type != db.IndexFieldText {
			return nil, &db.Error{Op: db.OpSearch, Err: errUnknownField(key)}
		}
		return []string{key}, nil
	}
	var keys []string
	for i := range idx.Fields {
		if idx.Fields[i].Type == db.IndexFieldText {
			keys = append(keys, idx.Fields[i].Key())
		}
	}
	return keys, nil
}

// scoreText scores the candidates that contain every query term.
// Statistics come from all documents of the index, so scores do not
// depend on the filter. Every returned score is strictly positive.
func scoreText(all, candidates []entry, fieldKeys []string, terms []string) map[string]float64 {
	scores := make(map[string]float64)
	if len(terms) == 0 || len(fieldKeys) == 0 {
		return scores
	}

	type stats struct {
		tf     map[string]int
		length int
	}
	analyze := func(e entry) stats {
		st := stats{tf: make(map[string]int)}
		for _, k := range fieldKeys {
			for _, v := range e.fields[k] {
				for _, w := range tokenize(v.(string)) {
					st.tf[w]++
					st.length++
				}
			}
		}
		return st
	}

	docFreq := make(map[string]int, len(terms))
	totalLen := 0
	for _, e := range all {
		st := analyze(e)
		totalLen += st.length
		for _, t := range terms {
			if st.tf[t] > 0 {
				docFreq[t]++
			}
		}
	}
	n := float64(len(all))
	avgLen := float64(totalLen) / math.Max(n, 1)
	if avgLen == 0 {
		avgLen = 1
	}

	for _, e := range candidates {
		st := analyze(e)
		score := 0.0
		matchedAll := true
		for _, t := range terms {
			tf := float64(st.tf[t])
			if tf == 0 {
				matchedAll = false
				break
			}
			df := float64(docFreq[t])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			score += idf * tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(st.length)/avgLen))
		}
		if matchedAll {
			scores[e.key] = score
		}
	}
	return scores
}
