// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package social

import (
	"context"
	"strings"
	"unicode"
)

const (
	intensifierFactor = 1.3
	// negationWindow is how many following tokens a negator reaches.
	negationWindow = 3
)

var positiveWords = map[string]float64{
	"good": 0.6, "great": 0.8, "excellent": 0.9, "amazing": 0.9, "awesome": 0.8,
	"fantastic": 0.9, "wonderful": 0.8, "perfect": 0.9, "best": 0.8, "nice": 0.5,
	"love": 0.8, "loved": 0.8, "loving": 0.7, "like": 0.3, "happy": 0.7,
	"glad": 0.6, "pleased": 0.6, "delighted": 0.8, "excited": 0.6, "proud": 0.6,
	"thank": 0.5, "thanks": 0.5, "grateful": 0.7, "loyal": 0.5, "recommend": 0.6,
	"satisfied": 0.6, "friendly": 0.6, "helpful": 0.6, "reliable": 0.6, "quality": 0.4,
	"fresh": 0.4, "affordable": 0.4, "fast": 0.3, "success": 0.7, "successful": 0.7,
	"growing": 0.5, "expanding": 0.5, "new": 0.2, "open": 0.2, "welcome": 0.4,
	"celebrate": 0.6, "win": 0.6, "award": 0.6, "trusted": 0.6, "beautiful": 0.7,
}

var negativeWords = map[string]float64{
	"bad": -0.6, "terrible": -0.9, "awful": -0.9, "horrible": -0.9, "worst": -0.9,
	"poor": -0.6, "hate": -0.8, "hated": -0.8, "angry": -0.7, "upset": -0.6,
	"disappointed": -0.7, "disappointing": -0.7, "unhappy": -0.7, "sad": -0.6, "rude": -0.7,
	"dirty": -0.6, "broken": -0.6, "slow": -0.4, "late": -0.4, "expensive": -0.3,
	"overpriced": -0.5, "scam": -1.0, "fraud": -1.0, "cheated": -0.9, "complaint": -0.5,
	"problem": -0.5, "problems": -0.5, "issue": -0.3, "issues": -0.3, "fail": -0.7,
	"failed": -0.7, "failing": -0.7, "loss": -0.5, "losses": -0.5, "debt": -0.5,
	"struggling": -0.6, "closed": -0.3, "closing": -0.4, "refund": -0.3, "waste": -0.5,
	"avoid": -0.6, "worse": -0.7, "crisis": -0.7, "shortage": -0.4,
}

var negators = map[string]bool{"not": true, "no": true, "never": true}

var intensifiers = map[string]bool{"very": true, "really": true, "extremely": true}

// LexiconBackend scores text with a word-level polarity lexicon. Negators
// flip the next scored word within a short window; intensifiers scale it.
type LexiconBackend struct {
	words map[string]float64
}

// NewLexiconBackend returns the built-in English lexicon.
func NewLexiconBackend() *LexiconBackend {
	words := make(map[string]float64, len(positiveWords)+len(negativeWords))
	for w, v := range positiveWords {
		words[w] = v
	}
	for w, v := range negativeWords {
		words[w] = v
	}
	return &LexiconBackend{words: words}
}

func (l *LexiconBackend) Name() string { return "lexicon" }

// Polarity returns the mean polarity of scored words, or 0 when no word
// is in the lexicon.
func (l *LexiconBackend) Polarity(_ context.Context, text string) (float64, error) {
	var sum float64
	var scored int
	negateLeft := 0
	boost := 1.0

	for _, tok := range tokenize(text) {
		if isNegator(tok) {
			negateLeft = negationWindow
			continue
		}
		if intensifiers[tok] {
			boost *= intensifierFactor
			continue
		}

		v, ok := l.words[tok]
		if !ok {
			if negateLeft > 0 {
				negateLeft--
			}
			continue
		}

		v *= boost
		if negateLeft > 0 {
			v = -v
		}
		sum += clamp(v)
		scored++
		negateLeft = 0
		boost = 1.0
	}

	if scored == 0 {
		return 0, nil
	}
	return clamp(sum / float64(scored)), nil
}

func isNegator(tok string) bool {
	return negators[tok] || strings.HasSuffix(tok, "n't")
}

// tokenize lowercases text and splits it into words, keeping apostrophes
// so contractions such as "isn't" survive.
func tokenize(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "’", "'")
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}
