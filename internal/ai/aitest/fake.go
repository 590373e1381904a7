// Package aitest provides a scripted ai.Generator for tests.
package aitest

import (
	"context"
	"sync"
)

// Fake returns canned text. Stream splits the text into the configured
// chunks; when Block is set, Stream waits for ctx to be cancelled after the
// chunks are sent.
type Fake struct {
	mu      sync.Mutex
	Text    string
	Chunks  []string
	Err     error
	Block   bool
	Prompts []string
	Systems []string
}

func (f *Fake) Available() bool { return true }

func (f *Fake) Generate(ctx context.Context, system, prompt string) (string, error) {
	f.record(system, prompt)
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}

func (f *Fake) Stream(ctx context.Context, system, prompt string) (<-chan string, <-chan error) {
	f.record(system, prompt)

	f.mu.Lock()
	chunks := append([]string(nil), f.Chunks...)
	if len(chunks) == 0 && f.Text != "" {
		chunks = []string{f.Text}
	}
	failure, block := f.Err, f.Block
	f.mu.Unlock()

	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(out)
		for _, c := range chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if block {
			<-ctx.Done()
			errs <- ctx.Err()
			return
		}
		if failure != nil {
			errs <- failure
		}
	}()
	return out, errs
}

// LastPrompt returns the most recent prompt, or "" when none was sent.
func (f *Fake) LastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Prompts) == 0 {
		return ""
	}
	return f.Prompts[len(f.Prompts)-1]
}

func (f *Fake) record(system, prompt string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prompts = append(f.Prompts, prompt)
	f.Systems = append(f.Systems, system)
}
