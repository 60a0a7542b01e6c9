// Package simulated is an in-memory stand-in for the out-of-scope remote
// metadata service RemoteDriver talks to. It exists so pkg/transfer and
// the CLI's deploy/retrieve commands can be exercised end to end without
// a live org.
package simulated

import (
	"context"
	"sync"

	"github.com/google/uuid"

	mdpackerrors "github.com/architect-io/mdpack/pkg/errors"
	"github.com/architect-io/mdpack/pkg/transfer"
)

// Outcome scripts how an operation resolves once polled enough times.
type Outcome struct {
	// PollsBeforeDone is how many CheckStatus calls return InProgress
	// before the operation reaches a terminal state.
	PollsBeforeDone int
	FinalStatus     transfer.State
	Details         transfer.StatusDetails
	// CancelAfterPolls, if non-zero, makes Cancel report done=true only
	// once Cancel has been called this many times, otherwise done=false.
	CancelAfterPolls int
}

type operation struct {
	mu          sync.Mutex
	outcome     Outcome
	polls       int
	cancelCalls int
	canceled    bool
}

// Driver is a transfer.RemoteDriver backed by a script of Outcomes,
// looked up by a caller-chosen key so a test can script several
// concurrent operations independently.
type Driver struct {
	mu         sync.Mutex
	outcomes   map[string]Outcome
	defaultOut Outcome
	ops        map[string]*operation
}

// New constructs a Driver. outcomes maps a deploy/retrieve's requested
// key (see WithKey) to the Outcome it should resolve to; operations
// requested without a matching key use defaultOutcome.
func New(defaultOutcome Outcome, outcomes map[string]Outcome) *Driver {
	return &Driver{defaultOut: defaultOutcome, outcomes: outcomes, ops: map[string]*operation{}}
}

type keyContext struct{}

// WithKey attaches a lookup key to ctx so Deploy/Retrieve can select a
// scripted Outcome other than the Driver's default.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, keyContext{}, key)
}

func keyFrom(ctx context.Context) string {
	if k, ok := ctx.Value(keyContext{}).(string); ok {
		return k
	}
	return ""
}

func (d *Driver) startOp(ctx context.Context) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	outcome := d.defaultOut
	if o, ok := d.outcomes[keyFrom(ctx)]; ok {
		outcome = o
	}

	id := uuid.NewString()
	d.ops[id] = &operation{outcome: outcome}
	return id
}

func (d *Driver) Deploy(ctx context.Context, _ []byte, _ transfer.DeployOptions) (string, error) {
	return d.startOp(ctx), nil
}

func (d *Driver) Retrieve(ctx context.Context, _ []byte) (string, error) {
	return d.startOp(ctx), nil
}

func (d *Driver) CheckStatus(_ context.Context, id string, _ bool) (*transfer.StatusResult, error) {
	d.mu.Lock()
	op, ok := d.ops[id]
	d.mu.Unlock()
	if !ok {
		return nil, mdpackerrors.RequestFailure("check_status", errUnknownOperation(id))
	}

	op.mu.Lock()
	defer op.mu.Unlock()
	if op.canceled {
		return &transfer.StatusResult{Status: transfer.StateCanceled}, nil
	}
	op.polls++
	if op.polls <= op.outcome.PollsBeforeDone {
		return &transfer.StatusResult{Status: transfer.StateInProgress}, nil
	}

	success := op.outcome.FinalStatus == transfer.StateSucceeded
	return &transfer.StatusResult{
		Status:  op.outcome.FinalStatus,
		Success: success,
		Details: op.outcome.Details,
	}, nil
}

func (d *Driver) Cancel(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	op, ok := d.ops[id]
	d.mu.Unlock()
	if !ok {
		return false, mdpackerrors.RequestFailure("cancel", errUnknownOperation(id))
	}

	op.mu.Lock()
	defer op.mu.Unlock()
	op.cancelCalls++
	if op.outcome.CancelAfterPolls == 0 || op.cancelCalls >= op.outcome.CancelAfterPolls {
		op.canceled = true
		return true, nil
	}
	return false, nil
}

type errUnknownOperation string

func (e errUnknownOperation) Error() string { return "unknown operation: " + string(e) }
