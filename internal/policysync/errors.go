package policysync

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/genericsim/tribectl/internal/model"
)

// Error kinds surfaced by the controller. All of them are recovered into the
// error status; none is fatal.
var (
	ErrTribeListLoadFailed   = eris.New("tribe list load failed")
	ErrTribePolicyLoadFailed = eris.New("tribe policy load failed")
	ErrValidationFailed      = eris.New("policy validation failed")
	ErrPolicyUpdateFailed    = eris.New("policy update failed")
)

// Misuse of the controller API.
var (
	ErrNoTribeSelected = eris.New("no tribe selected")
	ErrPolicyNotLoaded = eris.New("policy not loaded for the selected tribe")
	ErrRequestInFlight = eris.New("a request is already in flight")
	ErrSuperseded      = eris.New("result discarded: selection changed")
	ErrUnknownField    = model.ErrUnknownField
	ErrInvalidValue    = model.ErrInvalidValue
)

// User-facing messages shown with the error and success statuses.
const (
	MsgTribeListLoadFailed   = "Failed to load tribes. Make sure the backend is running."
	MsgTribePolicyLoadFailed = "Failed to load tribe policy"
	MsgPolicyUpdateFailed    = "Failed to update policy. Please try again."
	MsgPolicyUpdated         = "Policy updated successfully!"
)

// kindError tags cause with one of the error kinds above.
func kindError(kind, cause error) error {
	return fmt.Errorf("%w: %w", kind, cause)
}

// ValidationError carries every violation found in a draft.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	return "policy validation failed: " + JoinViolations(e.Violations)
}

// Is makes errors.Is(err, ErrValidationFailed) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
