package llmutils

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/tiktoken-go/tokenizer"
)

var cl100k = sync.OnceValues(func() (tokenizer.Codec, error) {
	return tokenizer.Get(tokenizer.Cl100kBase)
})

// TextTokens returns the number of cl100k_base tokens in the text.
func TextTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	codec, err := cl100k()
	if err != nil {
		return 0, errors.Wrap(err, "failed to load tokenizer")
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, errors.Wrap(err, "failed to encode text")
	}
	return len(ids), nil
}
