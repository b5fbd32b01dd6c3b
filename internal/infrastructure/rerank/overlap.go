package rerank

import (
	"context"
	"strings"
	"unicode"
)

// stopwords are common German function words that carry no topical signal.
var stopwords = map[string]struct{}{
	"der": {}, "die": {}, "das": {}, "den": {}, "dem": {}, "des": {},
	"ein": {}, "eine": {}, "einen": {}, "einem": {}, "einer": {},
	"und": {}, "oder": {}, "ist": {}, "sind": {}, "bin": {}, "wird": {},
	"ich": {}, "mein": {}, "meine": {}, "wie": {}, "was": {}, "wer": {},
	"wo": {}, "wann": {}, "kann": {}, "muss": {}, "für": {}, "mit": {},
	"bei": {}, "von": {}, "zu": {}, "zur": {}, "zum": {}, "im": {},
	"in": {}, "an": {}, "auf": {}, "es": {}, "nicht": {}, "auch": {},
}

// OverlapScorer scores passages by the share of query terms they contain.
// It needs no external service and is used when no cross-encoder is set.
type OverlapScorer struct{}

func NewOverlapScorer() *OverlapScorer {
	return &OverlapScorer{}
}

func (s *OverlapScorer) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryTokens := toTokenSet(query)
	scores := make([]float64, len(passages))
	for i, passage := range passages {
		passageTokens := toTokenSet(passage)
		scores[i] = 0.9*tokenOverlap(queryTokens, passageTokens) + 0.1*prefixHit(queryTokens, passageTokens)
	}
	return scores, nil
}

func tokenOverlap(query, passage map[string]struct{}) float64 {
	if len(query) == 0 || len(passage) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := passage[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

// prefixHit is 1 when some query term is a prefix of a passage term, which
// catches German compounds such as "Zahn" in "Zahnersatz".
func prefixHit(query, passage map[string]struct{}) float64 {
	for q := range query {
		if len([]rune(q)) < 4 {
			continue
		}
		for p := range passage {
			if p != q && strings.HasPrefix(p, q) {
				return 1
			}
		}
	}
	return 0
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitWordsLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if _, stop := stopwords[token]; stop {
			continue
		}
		out[token] = struct{}{}
	}
	return out
}

func splitWordsLower(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
