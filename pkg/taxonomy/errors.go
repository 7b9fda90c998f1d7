package taxonomy

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrDuplicateSlug       = errors.New("duplicate slug")
	ErrCyclicParent        = errors.New("cyclic parent")
	ErrParentNotFound      = errors.New("parent not found")
	ErrHasDependents       = errors.New("category has dependents")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrInvalidTemplate     = errors.New("invalid template")
	ErrInvalidSlug         = errors.New("invalid slug")
	ErrInvalidCategory     = errors.New("invalid category")
	ErrDepthExceeded       = errors.New("maximum category depth exceeded")
	ErrStructuralAnomaly   = errors.New("structural anomaly in category hierarchy")
	ErrUnknownDeletePolicy = errors.New("unknown delete policy")
)

// ViolationError is a rejected mutation: Err is one of the sentinels above,
// CategoryID the category the violation was found on.
type ViolationError struct {
	Err        error
	CategoryID string
	Detail     string
}

func (e *ViolationError) Error() string {
	msg := e.Err.Error()
	if e.CategoryID != "" {
		msg = fmt.Sprintf("%s (category %s)", msg, e.CategoryID)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ViolationError) Unwrap() error {
	return e.Err
}

func violation(err error, categoryID, format string, args ...any) error {
	return &ViolationError{Err: err, CategoryID: categoryID, Detail: fmt.Sprintf(format, args...)}
}
