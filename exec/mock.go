package exec

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MockResponse is the canned result of a mocked command.
type MockResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error
}

// CommandMatcher decides whether a rule applies to a command.
type CommandMatcher func(dir, name string, args []string) bool

// MockRule pairs a matcher with its response.
type MockRule struct {
	Match    CommandMatcher
	Response MockResponse
}

// MockCall records one invocation.
type MockCall struct {
	Dir  string
	Name string
	Args []string
}

// String renders the call as a command line.
func (c MockCall) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// MockExecutor answers commands from registered rules, first match wins.
// Unmatched commands go to the fallback, or succeed with no output.
type MockExecutor struct {
	mu       sync.RWMutex
	rules    []MockRule
	calls    []MockCall
	fallback CommandExecutor
}

// NewMockExecutor creates a MockExecutor. fallback may be nil.
func NewMockExecutor(fallback CommandExecutor) *MockExecutor {
	return &MockExecutor{fallback: fallback}
}

// AddRule registers a rule.
func (e *MockExecutor) AddRule(match CommandMatcher, response MockResponse) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, MockRule{Match: match, Response: response})
}

// AddExactMatch registers a rule matching name and args exactly.
func (e *MockExecutor) AddExactMatch(name string, args []string, response MockResponse) {
	e.AddRule(func(_ string, n string, a []string) bool {
		return n == name && slices.Equal(a, args)
	}, response)
}

// AddPrefixMatch registers a rule matching name and a leading run of args.
func (e *MockExecutor) AddPrefixMatch(name string, prefixArgs []string, response MockResponse) {
	e.AddRule(func(_ string, n string, a []string) bool {
		return n == name && len(a) >= len(prefixArgs) && slices.Equal(a[:len(prefixArgs)], prefixArgs)
	}, response)
}

// GetCalls returns a copy of the recorded invocations.
func (e *MockExecutor) GetCalls() []MockCall {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.calls)
}

// CountCalls returns how many recorded calls start with name and prefixArgs.
func (e *MockExecutor) CountCalls(name string, prefixArgs ...string) int {
	n := 0
	for _, c := range e.GetCalls() {
		if c.Name == name && len(c.Args) >= len(prefixArgs) && slices.Equal(c.Args[:len(prefixArgs)], prefixArgs) {
			n++
		}
	}
	return n
}

// ClearCalls forgets recorded invocations.
func (e *MockExecutor) ClearCalls() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = nil
}

func (e *MockExecutor) lookup(dir, name string, args []string) *MockResponse {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, MockCall{Dir: dir, Name: name, Args: args})
	for _, rule := range e.rules {
		if rule.Match(dir, name, args) {
			resp := rule.Response
			return &resp
		}
	}
	return nil
}

// Run executes a mocked command.
func (e *MockExecutor) Run(ctx context.Context, dir string, name string, args ...string) (stdout, stderr []byte, err error) {
	if resp := e.lookup(dir, name, args); resp != nil {
		return resp.Stdout, resp.Stderr, resp.Err
	}
	if e.fallback != nil {
		return e.fallback.Run(ctx, dir, name, args...)
	}
	return nil, nil, nil
}

// Output executes a mocked command.
func (e *MockExecutor) Output(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	if resp := e.lookup(dir, name, args); resp != nil {
		if resp.Err != nil {
			return resp.Stdout, &CommandError{Name: name, Args: args, Stderr: strings.TrimSpace(string(resp.Stderr)), Err: resp.Err}
		}
		return resp.Stdout, nil
	}
	if e.fallback != nil {
		return e.fallback.Output(ctx, dir, name, args...)
	}
	return nil, nil
}

// CombinedOutput executes a mocked command.
func (e *MockExecutor) CombinedOutput(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	if resp := e.lookup(dir, name, args); resp != nil {
		combined := append(slices.Clone(resp.Stdout), resp.Stderr...)
		return combined, resp.Err
	}
	if e.fallback != nil {
		return e.fallback.CombinedOutput(ctx, dir, name, args...)
	}
	return nil, nil
}

// Start returns a handle that completes immediately with the mocked response.
func (e *MockExecutor) Start(ctx context.Context, dir string, name string, args ...string) (CommandHandle, error) {
	if resp := e.lookup(dir, name, args); resp != nil {
		return mockCommandHandle{response: *resp}, nil
	}
	if e.fallback != nil {
		return e.fallback.Start(ctx, dir, name, args...)
	}
	return mockCommandHandle{}, nil
}

type mockCommandHandle struct {
	response MockResponse
}

func (h mockCommandHandle) Wait() (stdout, stderr []byte, err error) {
	return h.response.Stdout, h.response.Stderr, h.response.Err
}

func (h mockCommandHandle) Pid() int { return 0 }

var _ CommandExecutor = (*MockExecutor)(nil)
var _ CommandHandle = mockCommandHandle{}
