// Package shelltest provides an in-memory shell.Commander for tests.
package shelltest

import (
	"context"
	"strings"
	"sync"

	"github.com/codex-k8s/kindctl/internal/shell"
)

// Response is a canned result returned by Fake for a matching command line.
type Response struct {
	Output string
	Err    error
}

// Fake is an in-memory shell.Commander used by tests. Commands are matched by
// prefix against their rendered command line; the longest prefix wins.
type Fake struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []string
}

// NewFake returns an empty Fake where every command succeeds with no output.
func NewFake() *Fake {
	return &Fake{responses: map[string]Response{}}
}

// On registers the response for command lines starting with prefix.
func (f *Fake) On(prefix string, resp Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = resp
	return f
}

// Calls returns the rendered command lines in invocation order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Called reports whether any invocation started with prefix.
func (f *Fake) Called(prefix string) bool {
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// Run records cmd and returns the registered error, if any.
func (f *Fake) Run(_ context.Context, cmd shell.Command) error {
	return f.lookup(cmd).Err
}

// Output records cmd and returns the registered output and error.
func (f *Fake) Output(_ context.Context, cmd shell.Command) (string, error) {
	resp := f.lookup(cmd)
	if resp.Err != nil {
		return "", resp.Err
	}
	return strings.TrimSpace(resp.Output), nil
}

func (f *Fake) lookup(cmd shell.Command) Response {
	line := cmd.String()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, line)

	best := -1
	var resp Response
	for prefix, r := range f.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > best {
			best = len(prefix)
			resp = r
		}
	}
	return resp
}
