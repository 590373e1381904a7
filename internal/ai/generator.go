// Package ai wraps the hosted text generation providers behind one interface.
package ai

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("AI generation is not configured")

// Generator produces text for a prompt, either in one piece or as a stream of
// deltas.
//
// Stream returns a channel of text deltas that is closed when generation ends
// and an error channel that yields at most one error before it is closed.
// Cancelling ctx stops the stream.
type Generator interface {
	Available() bool
	Generate(ctx context.Context, system, prompt string) (string, error)
	Stream(ctx context.Context, system, prompt string) (<-chan string, <-chan error)
}

// failedStream returns an already finished stream carrying err.
func failedStream(err error) (<-chan string, <-chan error) {
	out := make(chan string)
	errs := make(chan error, 1)
	close(out)
	errs <- err
	close(errs)
	return out, errs
}

// Collect drains a stream into a single string.
func Collect(deltas <-chan string, errs <-chan error) (string, error) {
	var text string
	for d := range deltas {
		text += d
	}
	if err := <-errs; err != nil {
		return text, err
	}
	return text, nil
}
