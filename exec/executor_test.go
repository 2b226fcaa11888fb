package exec

import (
	"context"
	"errors"
	"testing"
)

var ctx = context.Background()

func TestRealExecutor_Run(t *testing.T) {
	executor := NewRealExecutor()

	stdout, stderr, err := executor.Run(ctx, "", "echo", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(stdout) != "hello\n" {
		t.Errorf("expected 'hello\\n', got %q", string(stdout))
	}
	if len(stderr) != 0 {
		t.Errorf("expected empty stderr, got %q", string(stderr))
	}
}

func TestRealExecutor_OutputIncludesStderr(t *testing.T) {
	executor := NewRealExecutor()

	_, err := executor.Output(ctx, "", "sh", "-c", "echo broken >&2; exit 3")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	var ce *CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CommandError, got %T", err)
	}
	if ce.Stderr != "broken" {
		t.Errorf("expected stderr 'broken', got %q", ce.Stderr)
	}
}

func TestRealExecutor_StartAndWait(t *testing.T) {
	executor := NewRealExecutor()

	handle, err := executor.Start(ctx, "", "echo", "started")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handle.Pid() == 0 {
		t.Error("expected a real pid")
	}
	stdout, _, err := handle.Wait()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(stdout) != "started\n" {
		t.Errorf("expected 'started\\n', got %q", string(stdout))
	}
}

func TestIsNotFound(t *testing.T) {
	executor := NewRealExecutor()

	_, err := executor.Output(ctx, "", "codestate-definitely-missing-binary")
	if !IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
	if IsNotFound(errors.New("exit status 1")) {
		t.Error("plain error should not be reported as not found")
	}
}

func TestMockExecutor_ExactMatch(t *testing.T) {
	mock := NewMockExecutor(nil)
	mock.AddExactMatch("git", []string{"status", "--porcelain"}, MockResponse{
		Stdout: []byte(" M main.go\n"),
	})

	out, err := mock.Output(ctx, "/repo", "git", "status", "--porcelain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != " M main.go\n" {
		t.Errorf("unexpected output %q", string(out))
	}

	calls := mock.GetCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Dir != "/repo" || calls[0].String() != "git status --porcelain" {
		t.Errorf("unexpected call %+v", calls[0])
	}
}

func TestMockExecutor_PrefixMatchAndCount(t *testing.T) {
	mock := NewMockExecutor(nil)
	mock.AddPrefixMatch("git", []string{"rev-parse"}, MockResponse{Stdout: []byte("abc123")})

	for _, args := range [][]string{{"rev-parse", "HEAD"}, {"rev-parse", "--verify", "main"}, {"status"}} {
		if _, _, err := mock.Run(ctx, "", "git", args...); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := mock.CountCalls("git", "rev-parse"); got != 2 {
		t.Errorf("expected 2 rev-parse calls, got %d", got)
	}
	if got := mock.CountCalls("git"); got != 3 {
		t.Errorf("expected 3 git calls, got %d", got)
	}

	mock.ClearCalls()
	if len(mock.GetCalls()) != 0 {
		t.Error("expected calls to be cleared")
	}
}

func TestMockExecutor_OutputWrapsError(t *testing.T) {
	mock := NewMockExecutor(nil)
	failure := errors.New("exit status 1")
	mock.AddExactMatch("git", []string{"checkout", "nope"}, MockResponse{
		Stderr: []byte("error: pathspec 'nope' did not match\n"),
		Err:    failure,
	})

	_, err := mock.Output(ctx, "", "git", "checkout", "nope")
	var ce *CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CommandError, got %v", err)
	}
	if !errors.Is(err, failure) {
		t.Error("expected wrapped error to match")
	}
	if ce.Stderr != "error: pathspec 'nope' did not match" {
		t.Errorf("unexpected stderr %q", ce.Stderr)
	}
}

func TestMockExecutor_CombinedOutput(t *testing.T) {
	mock := NewMockExecutor(nil)
	mock.AddExactMatch("cmd", []string{"test"}, MockResponse{
		Stdout: []byte("out"),
		Stderr: []byte("err"),
	})

	output, err := mock.CombinedOutput(ctx, "", "cmd", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(output) != "outerr" {
		t.Errorf("expected 'outerr', got %q", string(output))
	}
}

func TestMockExecutor_StartReturnsResponse(t *testing.T) {
	mock := NewMockExecutor(nil)
	mock.AddExactMatch("npm", []string{"start"}, MockResponse{Stdout: []byte("listening")})

	handle, err := mock.Start(ctx, "/app", "npm", "start")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stdout, _, err := handle.Wait()
	if err != nil || string(stdout) != "listening" {
		t.Errorf("unexpected wait result %q, %v", string(stdout), err)
	}
	if handle.Pid() != 0 {
		t.Error("mock handle should report pid 0")
	}
}

func TestMockExecutor_Fallback(t *testing.T) {
	mock := NewMockExecutor(NewRealExecutor())
	mock.AddPrefixMatch("git", nil, MockResponse{Stdout: []byte("mocked")})

	stdout, _, err := mock.Run(ctx, "", "git", "status")
	if err != nil || string(stdout) != "mocked" {
		t.Errorf("expected mocked git, got %q, %v", string(stdout), err)
	}

	stdout, _, err = mock.Run(ctx, "", "echo", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(stdout) != "hello\n" {
		t.Errorf("expected fallback output, got %q", string(stdout))
	}
}

func TestMockExecutor_AddRuleByDir(t *testing.T) {
	mock := NewMockExecutor(nil)
	mock.AddRule(func(dir, name string, args []string) bool {
		return dir == "/special/dir"
	}, MockResponse{Stdout: []byte("special")})

	stdout, _, _ := mock.Run(ctx, "/special/dir", "any")
	if string(stdout) != "special" {
		t.Errorf("expected 'special', got %q", string(stdout))
	}
	stdout, _, _ = mock.Run(ctx, "/other/dir", "any")
	if len(stdout) != 0 {
		t.Errorf("expected empty output, got %q", string(stdout))
	}
}

func TestTailBuffer(t *testing.T) {
	tests := []struct {
		name   string
		writes []string
		want   string
	}{
		{"under limit", []string{"ab", "cd"}, "abcd"},
		{"drops oldest", []string{"abc", "def"}, "cdef"},
		{"single large write", []string{"x", "0123456789"}, "6789"},
		{"exactly limit", []string{"wxyz"}, "wxyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &tailBuffer{max: 4}
			for _, w := range tt.writes {
				n, err := b.Write([]byte(w))
				if err != nil || n != len(w) {
					t.Fatalf("Write(%q) = %d, %v", w, n, err)
				}
			}
			if got := string(b.Bytes()); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRealExecutor_StartKeepsOutputTail(t *testing.T) {
	executor := NewRealExecutor()

	handle, err := executor.Start(ctx, "", "sh", "-c", "head -c 300000 /dev/zero | tr '\\0' x; echo end")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stdout, _, err := handle.Wait()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stdout) != StartOutputLimit {
		t.Errorf("kept %d bytes, want %d", len(stdout), StartOutputLimit)
	}
	if got := string(stdout[len(stdout)-4:]); got != "end\n" {
		t.Errorf("tail = %q, want the last output", got)
	}
}
