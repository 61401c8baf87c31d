package visual

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrSchemaMismatch indicates a visual bound to a column that is no
	// longer in the working dataset, or no longer numeric where it must be.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrInvalidBinding indicates a structurally impossible binding.
	ErrInvalidBinding = errors.New("invalid binding")
	// ErrNotFound indicates an id that was never issued.
	ErrNotFound = errors.New("visual not found")
	// ErrDeleted indicates an id whose visual has been deleted.
	ErrDeleted = errors.New("visual deleted")
	// ErrUnsupported indicates a setting the chart kind does not have.
	ErrUnsupported = errors.New("not supported for this chart kind")
	// ErrNoColumns indicates a visual cannot be created without data.
	ErrNoColumns = errors.New("working dataset has no columns")
)

// ValidationError reports why a visual configuration was rejected.
type ValidationError struct {
	VisualID ID
	Field    string // "category", "value", "size", "facet", "parent", "bins", "sort", ...
	Reason   string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.VisualID, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, reason string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(reason, args...), Err: ErrInvalidBinding}
}

func unsupported(field string, k Kind) *ValidationError {
	return &ValidationError{Field: field, Reason: "is not available for " + k.Title() + " charts", Err: ErrUnsupported}
}

func mismatch(field, column string) *ValidationError {
	return &ValidationError{
		Field:  field,
		Reason: fmt.Sprintf("references %q, which is not in the working dataset", column),
		Err:    ErrSchemaMismatch,
	}
}

func retyped(field, column string, t fmt.Stringer) *ValidationError {
	return &ValidationError{
		Field:  field,
		Reason: fmt.Sprintf("references %q, which is now %s and must be numeric", column, t),
		Err:    ErrSchemaMismatch,
	}
}

// withID stamps the visual id on a ValidationError.
func withID(err error, id ID) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		ve.VisualID = id
	}
	return err
}
