// Package tokens provides client-side token estimation for prompts.
package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// defaultEncodingModel is used when the configured model has no known
// tiktoken encoding (gateway model aliases like "sonnet" never do).
const defaultEncodingModel = "gpt-4o"

// Counter estimates token counts with a tiktoken encoding. Counts are
// estimates only; the gateway's usage report is authoritative.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

func NewCounter(model string) (*Counter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.EncodingForModel(defaultEncodingModel)
		if err != nil {
			return nil, fmt.Errorf("failed to get default encoding: %w", err)
		}
	}
	return &Counter{encoding: encoding}, nil
}

// Count returns the estimated number of tokens in text.
func (c *Counter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}
