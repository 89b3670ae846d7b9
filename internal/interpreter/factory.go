package interpreter

import (
	"context"
	"fmt"

	"github.com/thomasluizon/orbit-api-sub001/internal/config"
	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
)

// NewCompleter builds the named provider wrapped in the retry policy.
func NewCompleter(ctx context.Context, provider string, cfg config.LLMConfig) (Completer, error) {
	var c Completer
	switch provider {
	case config.ProviderGemini:
		g, err := NewGemini(ctx, cfg.Gemini)
		if err != nil {
			return nil, err
		}
		c = g
	case config.ProviderOllama:
		c = NewOllama(cfg.Ollama)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
	return NewRetrying(c, cfg.MaxRetries, config.Duration(cfg.RetryBackoff, constants.DefaultRetryBackoff)), nil
}

// New builds the interpreter and the fact extractor. They are routed
// independently: extraction always uses llm.extract_provider, whichever
// provider serves interpretation.
func New(ctx context.Context, cfg config.LLMConfig) (*LLMInterpreter, *LLMExtractor, error) {
	ic, err := NewCompleter(ctx, cfg.InterpretProvider, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("interpreter: %w", err)
	}
	ec := ic
	if cfg.ExtractProvider != cfg.InterpretProvider {
		ec, err = NewCompleter(ctx, cfg.ExtractProvider, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("fact extractor: %w", err)
		}
	}
	return NewLLMInterpreter(ic), NewLLMExtractor(ec), nil
}
