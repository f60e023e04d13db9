// Package tokens counts tokens in text under a model-specific scheme.
// Two schemes exist: the remote model family's BPE encoding and a subword
// tokenizer for locally hosted models. The scheme is fixed at construction.
package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"github.com/hanbit-ai/chatmemory-go/internal/logger"
)

// DefaultEncoding is the BPE encoding used for the remote model family.
const DefaultEncoding = "cl100k_base"

// Counter reports how many tokens a piece of text costs. Implementations
// must be deterministic and perform no per-call I/O.
type Counter interface {
	Count(text string) int
}

// Options select the counting scheme.
type Options struct {
	// UseLocalModel switches from the remote model's BPE encoding to the
	// subword tokenizer of the locally hosted model family.
	UseLocalModel bool

	// Encoding is the tiktoken encoding name for the remote scheme.
	// Defaults to cl100k_base.
	Encoding string

	// TokenizerPath is the tokenizer.json file for the local scheme.
	// Required when UseLocalModel is set.
	TokenizerPath string
}

// New builds the counter for the configured scheme. A vocabulary or model
// file that cannot be loaded is a construction failure, not a per-call one.
func New(opts Options) (Counter, error) {
	if opts.UseLocalModel {
		if opts.TokenizerPath == "" {
			return nil, fmt.Errorf("tokens: local scheme requires a tokenizer path")
		}
		tk, err := pretrained.FromFile(opts.TokenizerPath)
		if err != nil {
			return nil, fmt.Errorf("tokens: load local tokenizer %s: %w", opts.TokenizerPath, err)
		}
		return &subwordCounter{tk: tk}, nil
	}

	name := opts.Encoding
	if name == "" {
		name = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("tokens: load encoding %s: %w", name, err)
	}
	return &bpeCounter{enc: enc}, nil
}

// bpeCounter counts with the remote model family's byte-pair encoding.
type bpeCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *bpeCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// subwordCounter counts with a pretrained subword tokenizer loaded from disk.
type subwordCounter struct {
	tk *tokenizer.Tokenizer
}

func (c *subwordCounter) Count(text string) int {
	en, err := c.tk.EncodeSingle(text)
	if err != nil {
		// Encoding plain text should not fail once the vocabulary loaded;
		// a zero count keeps the contract non-negative.
		logger.L.Warn("tokens: encode failed", "error", err)
		return 0
	}
	return len(en.Tokens)
}
