// Package llm wraps the chat model providers used for submission screening.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Errors returned by providers.
var (
	ErrEmptyAPIKey     = errors.New("llm: api key cannot be empty")
	ErrUnknownProvider = errors.New("llm: unknown provider")
	ErrEmptyCompletion = errors.New("llm: empty completion")
)

// DefaultMaxTokens caps completions when Request.MaxTokens is unset.
const DefaultMaxTokens = 256

const defaultTimeout = 30 * time.Second

// Request is a single prompt with an optional system message.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Client completes prompts.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	// Provider names the backing service, used as a metric label.
	Provider() string
	Model() string
}

// Config configures a provider client.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// Factory builds a Client for one provider.
type Factory func(Config) (Client, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// RegisterFactory makes a provider available to New. Registering a name
// twice replaces the earlier factory.
func RegisterFactory(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Providers lists registered provider names.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New builds the client for cfg.Provider and wraps it in mws, outermost first.
func New(cfg Config, mws ...Middleware) (Client, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c, err := f(cfg)
	if err != nil {
		return nil, err
	}
	return Chain(c, mws...), nil
}
