package codec

import (
	"fmt"
	"strings"
	"unicode"

	"inferd/pkg/types"
)

const (
	defaultMaxTokens = 512
	padID            = 0
	unknownID        = 1
)

// text tokenizes, maps tokens through the vocabulary and pads or truncates to
// a fixed sequence length.
type text struct {
	vocab  map[string]int
	maxLen int
}

func newText(cfg types.ModelConfig) text {
	maxLen := defaultMaxTokens
	if n := len(cfg.InputShape); n > 0 && cfg.InputShape[n-1] > 0 {
		maxLen = cfg.InputShape[n-1]
	}
	return text{vocab: cfg.Vocabulary, maxLen: maxLen}
}

func (t text) Preprocess(raw Raw) (Tensor, error) {
	var ids []float32
	switch {
	case raw.Text != "":
		for _, tok := range Tokenize(raw.Text) {
			id, ok := t.vocab[tok]
			if !ok {
				id = unknownID
			}
			ids = append(ids, float32(id))
		}
	case len(raw.Values) > 0:
		ids = raw.Values
	default:
		return Tensor{}, fmt.Errorf("text input is empty")
	}

	out := make([]float32, t.maxLen)
	for i := range out {
		out[i] = padID
	}
	copy(out, ids)
	return Tensor{Shape: []int{1, t.maxLen}, Data: out}, nil
}

// Tokenize lowercases s, treats anything but letters, digits and underscores
// as a separator, and returns the remaining words.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
}
