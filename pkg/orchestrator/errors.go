package orchestrator

import (
	"errors"
	"fmt"
)

// ErrNoProviderAvailable is returned when every provider in the routing
// chain is missing or failed.
var ErrNoProviderAvailable = errors.New("no LLM provider available")

// ErrEnsembleAllFailed is returned when ensemble mode produced no
// successful response.
var ErrEnsembleAllFailed = errors.New("all providers failed in ensemble mode")

// ProviderError wraps a provider failure. Transport-level details stay
// inside Reason; callers never see provider transport types.
type ProviderError struct {
	Provider string
	Reason   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Provider, e.Reason)
}

func (e *ProviderError) Unwrap() error {
	return e.Reason
}

func providerErr(name string, err error) *ProviderError {
	return &ProviderError{Provider: name, Reason: err}
}
