package agent

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bugbase/bugbase/internal/domain"
)

// ApprovalState is the lifecycle state of a gated operation
type ApprovalState string

const (
	StateProposed         ApprovalState = "PROPOSED"
	StateAwaitingApproval ApprovalState = "AWAITING_APPROVAL"
	StateApproved         ApprovalState = "APPROVED"
	StateDenied           ApprovalState = "DENIED"
	StateExecuting        ApprovalState = "EXECUTING"
	StateCompleted        ApprovalState = "COMPLETED"
	StateFailed           ApprovalState = "FAILED"
)

// Terminal reports whether no further transitions are possible
func (s ApprovalState) Terminal() bool {
	return s == StateDenied || s == StateCompleted || s == StateFailed
}

// PendingOperation is one gated tool call waiting for, or resolved by, a
// human decision. Input is kept verbatim so what the operator approved is
// exactly what executes.
type PendingOperation struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id,omitempty"`
	Tool       string          `json:"tool"`
	Input      json.RawMessage `json:"input"`
	State      ApprovalState   `json:"state"`
	Result     interface{}     `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
}

// ApprovalEvent is emitted on every state transition, for streaming to
// connected operators.
type ApprovalEvent struct {
	OperationID string        `json:"operation_id"`
	Tool        string        `json:"tool"`
	State       ApprovalState `json:"state"`
}

// executor runs the underlying tool once its operation is approved
type executor func(ctx context.Context, tool string, input json.RawMessage) (interface{}, error)

// ApprovalGate holds gated operations in memory for the lifetime of the
// process. Operations do not survive a restart; an unresolved operation is
// simply lost and the agent proposes it again.
type ApprovalGate struct {
	mu         sync.Mutex
	ops        map[string]*PendingOperation
	exec       executor
	production bool

	// OnEvent, when set, receives every state transition. Called outside
	// the gate lock.
	OnEvent func(ApprovalEvent)
}

// NewApprovalGate creates an empty gate backed by the given executor. In
// production, failure messages stored on operations are redacted.
func NewApprovalGate(exec executor, production bool) *ApprovalGate {
	return &ApprovalGate{
		ops:        make(map[string]*PendingOperation),
		exec:       exec,
		production: production,
	}
}

func (g *ApprovalGate) emit(op *PendingOperation) {
	if g.OnEvent != nil {
		g.OnEvent(ApprovalEvent{OperationID: op.ID, Tool: op.Tool, State: op.State})
	}
}

// Propose registers a gated tool call and parks it awaiting a decision
func (g *ApprovalGate) Propose(sessionID, tool string, input json.RawMessage) *PendingOperation {
	op := &PendingOperation{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Tool:      tool,
		Input:     append(json.RawMessage(nil), input...),
		State:     StateProposed,
		CreatedAt: time.Now().UTC(),
	}

	g.mu.Lock()
	g.ops[op.ID] = op
	op.State = StateAwaitingApproval
	snapshot := *op
	g.mu.Unlock()

	g.emit(&snapshot)
	return &snapshot
}

// Get returns a copy of one operation
func (g *ApprovalGate) Get(id string) (*PendingOperation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	op, ok := g.ops[id]
	if !ok {
		return nil, domain.NewNotFoundError("operation", id)
	}
	snapshot := *op
	return &snapshot, nil
}

// List returns copies of all operations, newest first
func (g *ApprovalGate) List() []PendingOperation {
	g.mu.Lock()
	out := make([]PendingOperation, 0, len(g.ops))
	for _, op := range g.ops {
		out = append(out, *op)
	}
	g.mu.Unlock()

	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// Resolve applies a human decision to an awaiting operation. An operation can
// be resolved exactly once: a second decision, in either direction, is a
// validation error. Denial is terminal and executes nothing. Approval runs
// the operation synchronously; the returned copy carries the final
// COMPLETED or FAILED state along with the result or error.
func (g *ApprovalGate) Resolve(ctx context.Context, id string, approved bool) (*PendingOperation, error) {
	g.mu.Lock()
	op, ok := g.ops[id]
	if !ok {
		g.mu.Unlock()
		return nil, domain.NewNotFoundError("operation", id)
	}
	if op.State != StateAwaitingApproval {
		g.mu.Unlock()
		return nil, domain.NewValidationError("operation %s already resolved (state %s)", id, op.State)
	}

	now := time.Now().UTC()
	op.ResolvedAt = &now

	if !approved {
		op.State = StateDenied
		snapshot := *op
		g.mu.Unlock()
		g.emit(&snapshot)
		return &snapshot, nil
	}

	op.State = StateApproved
	approvedSnap := *op
	op.State = StateExecuting
	executingSnap := *op
	tool, input := op.Tool, op.Input
	g.mu.Unlock()

	g.emit(&approvedSnap)
	g.emit(&executingSnap)

	result, err := g.exec(ctx, tool, input)

	g.mu.Lock()
	if err != nil {
		op.State = StateFailed
		op.Error = domain.Sanitize(err, g.production)
	} else {
		op.State = StateCompleted
		op.Result = result
	}
	snapshot := *op
	g.mu.Unlock()

	g.emit(&snapshot)
	return &snapshot, nil
}
