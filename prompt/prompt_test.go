package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/protocol"
	"github.com/codestate/codestate-core/reconcile"
)

var ctx = context.Background()

func TestFixed(t *testing.T) {
	p := CommitWith("wip").Prompts()
	d, err := p.Decide(ctx, "/repo")
	if err != nil || d != reconcile.Commit {
		t.Errorf("Decide = %q, %v, want commit", d, err)
	}
	msg, err := p.PromptMessage(ctx, "/repo")
	if err != nil || msg == nil || *msg != "wip" {
		t.Errorf("PromptMessage = %v, %v, want wip", msg, err)
	}

	p = Refuse().Prompts()
	if d, _ = p.Decide(ctx, "/repo"); d != reconcile.Cancel {
		t.Errorf("Decide = %q, want cancel", d)
	}
	if msg, _ = p.PromptMessage(ctx, "/repo"); msg != nil {
		t.Errorf("PromptMessage = %q, want nil", *msg)
	}
}

// uiStub captures notifications and lets the test answer them.
type uiStub struct {
	sent chan *protocol.Response
}

func newUIStub() *uiStub {
	return &uiStub{sent: make(chan *protocol.Response, 4)}
}

func (u *uiStub) emit(r *protocol.Response) {
	u.sent <- r
}

func (u *uiStub) next(t *testing.T) *protocol.Response {
	t.Helper()
	select {
	case r := <-u.sent:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no notification emitted")
		return nil
	}
}

func TestBroker_DecisionRoundTrip(t *testing.T) {
	b := NewBroker()
	ui := newUIStub()
	p := b.Prompts(ui.emit)

	type result struct {
		d   reconcile.Decision
		err error
	}
	done := make(chan result, 1)
	go func() {
		d, err := p.Decide(ctx, "/repo")
		done <- result{d, err}
	}()

	n := ui.next(t)
	if n.Type != protocol.TypeGitDecisionRequest || n.ID == "" {
		t.Fatalf("notification = %+v", n)
	}
	req, ok := n.Payload.(DecisionRequest)
	if !ok {
		t.Fatalf("Payload = %#v", n.Payload)
	}
	if req.Path != "/repo" {
		t.Errorf("Path = %q", req.Path)
	}
	if !slices.Equal(req.Options, []reconcile.Decision{reconcile.Commit, reconcile.Cancel}) {
		t.Errorf("Options = %v", req.Options)
	}
	if b.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", b.Pending())
	}

	if err := b.Deliver(ctx, n.ID, json.RawMessage(`{"decision":"commit"}`)); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	r := <-done
	if r.err != nil || r.d != reconcile.Commit {
		t.Errorf("Decide = %q, %v, want commit", r.d, r.err)
	}
	if b.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", b.Pending())
	}
}

func TestBroker_MessageReplies(t *testing.T) {
	tests := []struct {
		name    string
		payload json.RawMessage
		want    *string
	}{
		{"message", json.RawMessage(`{"message":"wip"}`), strPtr("wip")},
		{"dismissed", json.RawMessage(`{"message":null}`), nil},
		{"empty payload", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBroker()
			ui := newUIStub()
			p := b.Prompts(ui.emit)

			type result struct {
				msg *string
				err error
			}
			done := make(chan result, 1)
			go func() {
				msg, err := p.PromptMessage(ctx, "/repo")
				done <- result{msg, err}
			}()

			n := ui.next(t)
			if n.Type != protocol.TypeGitMessageRequest {
				t.Errorf("Type = %q", n.Type)
			}
			if err := b.Deliver(ctx, n.ID, tt.payload); err != nil {
				t.Fatalf("Deliver failed: %v", err)
			}
			r := <-done
			if r.err != nil {
				t.Fatalf("PromptMessage failed: %v", r.err)
			}
			if (r.msg == nil) != (tt.want == nil) || (r.msg != nil && *r.msg != *tt.want) {
				t.Errorf("message = %v, want %v", r.msg, tt.want)
			}
		})
	}
}

func strPtr(s string) *string { return &s }

func TestBroker_ContextEndsWait(t *testing.T) {
	b := NewBroker()
	ui := newUIStub()
	cctx, cancel := context.WithCancel(ctx)

	done := make(chan error, 1)
	go func() {
		_, err := b.Prompts(ui.emit).Decide(cctx, "/repo")
		done <- err
	}()
	n := ui.next(t)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Decide error = %v, want context.Canceled", err)
	}
	if b.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", b.Pending())
	}
	if got := failure.KindOf(b.Deliver(ctx, n.ID, nil)); got != failure.InvalidRequest {
		t.Errorf("late reply kind = %q, want InvalidRequest", got)
	}
}

func TestBroker_UnknownID(t *testing.T) {
	err := NewBroker().Deliver(ctx, "nope", json.RawMessage(`{}`))
	if got := failure.KindOf(err); got != failure.InvalidRequest {
		t.Errorf("KindOf = %q, want InvalidRequest", got)
	}
}

func TestBroker_MalformedReply(t *testing.T) {
	b := NewBroker()
	ui := newUIStub()

	done := make(chan error, 1)
	go func() {
		_, err := b.Prompts(ui.emit).Decide(ctx, "/repo")
		done <- err
	}()
	n := ui.next(t)
	if err := b.Deliver(ctx, n.ID, json.RawMessage(`"commit"`)); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if got := failure.KindOf(<-done); got != failure.InvalidRequest {
		t.Errorf("KindOf = %q, want InvalidRequest", got)
	}
}

func TestTerminal_Prompts(t *testing.T) {
	term := NewTerminal(nil, nil, true)
	p := term.Prompts()
	if p.Decide == nil || p.PromptMessage == nil {
		t.Error("terminal prompts should answer both questions")
	}
}

func TestBroker_ReplyFromOtherConnectionRejected(t *testing.T) {
	b := NewBroker()
	ui := newUIStub()
	asker := protocol.WithPeer(ctx, "conn-a")

	type result struct {
		d   reconcile.Decision
		err error
	}
	done := make(chan result, 1)
	go func() {
		d, err := b.Prompts(ui.emit).Decide(asker, "/repo")
		done <- result{d, err}
	}()
	n := ui.next(t)

	err := b.Deliver(protocol.WithPeer(ctx, "conn-b"), n.ID, json.RawMessage(`{"decision":"commit"}`))
	if got := failure.KindOf(err); got != failure.InvalidRequest {
		t.Errorf("reply from conn-b kind = %q, want InvalidRequest", got)
	}
	if b.Pending() != 1 {
		t.Fatalf("question should still wait for its own connection, pending = %d", b.Pending())
	}

	if err := b.Deliver(protocol.WithPeer(ctx, "conn-a"), n.ID, json.RawMessage(`{"decision":"cancel"}`)); err != nil {
		t.Fatalf("Deliver from conn-a failed: %v", err)
	}
	r := <-done
	if r.err != nil || r.d != reconcile.Cancel {
		t.Errorf("Decide = %q, %v, want cancel", r.d, r.err)
	}
}
