package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy. Every failure surfaced by the coordinator or the bulk
// executor unwraps to exactly one of these.
var (
	// ErrValidation is returned before any request when a decision is incomplete.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when the record id does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrTransport covers network failures, timeouts and server faults.
	ErrTransport = errors.New("transport error")
	// ErrServerRejected is returned when the backend refuses the transition.
	ErrServerRejected = errors.New("rejected by server")
)

// Action is the verdict a reviewer applies.
type Action string

const (
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionRequestChanges Action = "requestChanges"
)

// String returns a human-readable form of the action.
func (a Action) String() string {
	switch a {
	case ActionApprove:
		return "approve"
	case ActionReject:
		return "reject"
	case ActionRequestChanges:
		return "request changes"
	default:
		return string(a)
	}
}

// Decision is a moderation verdict with its supporting reason and comment.
type Decision struct {
	Action  Action
	Reason  string
	Comment string
}

// Approve returns an approve decision.
func Approve() Decision { return Decision{Action: ActionApprove} }

// Reject returns a reject decision.
func Reject(reason, comment string) Decision {
	return Decision{Action: ActionReject, Reason: reason, Comment: comment}
}

// RequestChanges returns a request-changes decision.
func RequestChanges(reason, comment string) Decision {
	return Decision{Action: ActionRequestChanges, Reason: reason, Comment: comment}
}

// Validate checks field presence only. Whether the transition is legal from
// the record's current state is decided by the server.
func (d Decision) Validate() error {
	switch d.Action {
	case ActionApprove:
		return nil
	case ActionReject, ActionRequestChanges:
		if strings.TrimSpace(d.Reason) == "" {
			return fmt.Errorf("%w: %s requires a reason", ErrValidation, d.Action)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown action %q", ErrValidation, d.Action)
	}
}

// DecisionError attributes a failed decision to a record.
type DecisionError struct {
	ID     int64
	Action Action
	Err    error
}

func (e *DecisionError) Error() string {
	return fmt.Sprintf("%s record %d: %v", e.Action, e.ID, e.Err)
}

func (e *DecisionError) Unwrap() error { return e.Err }

// Kind returns the taxonomy sentinel err unwraps to, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrServerRejected, ErrTransport} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Backend is the remote moderation service.
type Backend interface {
	ListRecords(ctx context.Context, c Criteria) (*Page, error)
	GetRecord(ctx context.Context, id int64) (*RecordDetail, error)
	Approve(ctx context.Context, id int64) error
	Reject(ctx context.Context, id int64, d Decision) error
	RequestChanges(ctx context.Context, id int64, d Decision) error
	StatsSummary(ctx context.Context, period StatsPeriod) (*StatsSummary, error)
}

// Submit sends d for record id through the matching backend call.
func Submit(ctx context.Context, b Backend, id int64, d Decision) error {
	switch d.Action {
	case ActionApprove:
		return b.Approve(ctx, id)
	case ActionReject:
		return b.Reject(ctx, id, d)
	case ActionRequestChanges:
		return b.RequestChanges(ctx, id, d)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrValidation, d.Action)
	}
}
