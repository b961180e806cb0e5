package command

import (
	"errors"
	"fmt"

	"github.com/locogo/server/internal/company"
	"github.com/locogo/server/internal/messages"
	"github.com/locogo/server/internal/world"
)

// ErrFailed matches every command failure via errors.Is.
var ErrFailed = errors.New("command failed")

// Reason classifies a failure.
type Reason uint8

const (
	ReasonValidation Reason = iota
	ReasonOwnership
	ReasonPauseBlocked
	ReasonPoolExhausted
	ReasonInsufficientFunds
	ReasonUnbound
)

func (r Reason) String() string {
	switch r {
	case ReasonValidation:
		return "validation"
	case ReasonOwnership:
		return "ownership"
	case ReasonPauseBlocked:
		return "pause_blocked"
	case ReasonPoolExhausted:
		return "pool_exhausted"
	case ReasonInsufficientFunds:
		return "insufficient_funds"
	case ReasonUnbound:
		return "unbound"
	default:
		return fmt.Sprintf("Reason(%d)", uint8(r))
	}
}

// Failure is the tagged error every failed command produces. Simple failures
// carry a Message; ownership failures carry the contested element (nil when
// unknown) and the owning company instead.
type Failure struct {
	Reason    Reason
	Message   messages.StringID
	Args      messages.Args
	Contested *world.ElementRef
	Owner     company.ID
	Err       error
}

func (f *Failure) Error() string {
	switch {
	case f.Reason == ReasonOwnership && f.Contested != nil:
		return fmt.Sprintf("command failed: %s owned by %s", f.Contested.Kind, f.Owner)
	case f.Reason == ReasonOwnership:
		return fmt.Sprintf("command failed: belongs to %s", f.Owner)
	case f.Err != nil:
		return fmt.Sprintf("command failed: %s: %s: %v", f.Reason, f.Message, f.Err)
	default:
		return fmt.Sprintf("command failed: %s: %s", f.Reason, f.Message)
	}
}

func (f *Failure) Is(target error) bool { return target == ErrFailed }

func (f *Failure) Unwrap() error { return f.Err }

// Fail builds a simple validation failure.
func Fail(msg messages.StringID) *Failure {
	return &Failure{Reason: ReasonValidation, Message: msg, Owner: company.Null}
}

// FailWith builds a simple failure with a reason and message arguments.
func FailWith(reason Reason, msg messages.StringID, args messages.Args) *Failure {
	return &Failure{Reason: reason, Message: msg, Args: args, Owner: company.Null}
}

// FailOwnership reports that owner controls the contested element.
func FailOwnership(owner company.ID, contested *world.ElementRef) *Failure {
	return &Failure{Reason: ReasonOwnership, Message: messages.Null, Contested: contested, Owner: owner}
}

// CheckOwnership fails when the acting company differs from the owner and
// neither side is the neutral company.
func CheckOwnership(acting, owner company.ID, contested *world.ElementRef) error {
	if acting == owner || acting.IsNeutral() || owner.IsNeutral() {
		return nil
	}
	return FailOwnership(owner, contested)
}

// AsFailure converts any handler error into a Failure. Plain errors become
// validation failures wrapping the cause.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Reason: ReasonValidation, Message: messages.Null, Owner: company.Null, Err: err}
}
