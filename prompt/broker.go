package prompt

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/logger"
	"github.com/codestate/codestate-core/protocol"
	"github.com/codestate/codestate-core/reconcile"
)

// DecisionRequest is the payload of a decision request notification.
type DecisionRequest struct {
	Path    string               `json:"path"`
	Options []reconcile.Decision `json:"options"`
}

// DecisionReply is the payload of a decision reply.
type DecisionReply struct {
	Decision reconcile.Decision `json:"decision"`
}

// MessageRequest is the payload of a commit message request notification.
type MessageRequest struct {
	Path string `json:"path"`
}

// MessageReply is the payload of a commit message reply. A null message
// means the dialog was dismissed.
type MessageReply struct {
	Message *string `json:"message"`
}

// Broker asks the UI for decisions and commit messages. Each question is
// sent as a notification with a fresh correlation id; Deliver resolves it
// when the UI replies. Only the connection the question was sent on may
// answer it. Questions never time out, they end with the reply or with the
// caller's context.
type Broker struct {
	mu      sync.Mutex
	pending map[string]question
	newID   func() string
}

type question struct {
	peer  string
	reply chan json.RawMessage
}

// NewBroker creates a Broker.
func NewBroker() *Broker {
	return &Broker{
		pending: make(map[string]question),
		newID:   uuid.NewString,
	}
}

// Pending returns the number of unanswered questions.
func (b *Broker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// ask emits a notification and blocks for the reply payload.
func (b *Broker) ask(ctx context.Context, emit func(*protocol.Response), typ string, payload any) (json.RawMessage, error) {
	id := b.newID()
	q := question{peer: protocol.PeerFrom(ctx), reply: make(chan json.RawMessage, 1)}

	b.mu.Lock()
	b.pending[id] = q
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	logger.WithComponent("prompt").Debug("asking UI", "type", typ, "correlation", id, "peer", q.peer)
	emit(protocol.Notification(typ, id, payload))

	select {
	case reply := <-q.reply:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Deliver hands a reply to the waiting question with the same id. The reply
// must arrive on the connection tagged in ctx that the question was sent on.
func (b *Broker) Deliver(ctx context.Context, id string, payload json.RawMessage) error {
	peer := protocol.PeerFrom(ctx)

	b.mu.Lock()
	q, ok := b.pending[id]
	if ok && q.peer == peer {
		delete(b.pending, id)
	}
	b.mu.Unlock()

	if !ok || q.peer != peer {
		return failure.New(failure.InvalidRequest, "No pending prompt with id %s", id)
	}
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	q.reply <- payload
	return nil
}

// Prompts returns reconciler callbacks that ask through emit.
func (b *Broker) Prompts(emit func(*protocol.Response)) reconcile.Prompts {
	return reconcile.Prompts{
		Decide: func(ctx context.Context, path string) (reconcile.Decision, error) {
			raw, err := b.ask(ctx, emit, protocol.TypeGitDecisionRequest, DecisionRequest{
				Path:    path,
				Options: []reconcile.Decision{reconcile.Commit, reconcile.Cancel},
			})
			if err != nil {
				return "", err
			}
			var reply DecisionReply
			if err := json.Unmarshal(raw, &reply); err != nil {
				return "", failure.Wrap(failure.InvalidRequest, err, "Invalid decision reply")
			}
			return reply.Decision, nil
		},
		PromptMessage: func(ctx context.Context, path string) (*string, error) {
			raw, err := b.ask(ctx, emit, protocol.TypeGitMessageRequest, MessageRequest{Path: path})
			if err != nil {
				return nil, err
			}
			var reply MessageReply
			if err := json.Unmarshal(raw, &reply); err != nil {
				return nil, failure.Wrap(failure.InvalidRequest, err, "Invalid commit message reply")
			}
			return reply.Message, nil
		},
	}
}
