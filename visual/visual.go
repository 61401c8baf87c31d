package visual

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tiendc/go-deepcopy"

	"github.com/spektr-org/chartdeck/engine"
)

// ============================================================================
// VISUAL — One configured chart instance
// ============================================================================

// ID identifies a visual. Ids come from a monotonic counter and are never
// reused.
type ID int

func (id ID) String() string { return "chart_" + strconv.Itoa(int(id)) }

// ParseID accepts "chart_3" or "3".
func ParseID(s string) (ID, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), "chart_"))
	if err != nil || n < 0 {
		return 0, errors.Wrapf(ErrNotFound, "malformed visual id %q", s)
	}
	return ID(n), nil
}

func (id ID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ID) UnmarshalText(b []byte) error {
	v, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// State tracks the visual lifecycle:
// Unconfigured → Configured → (Configured ⇄ Editing) → Deleted.
type State int

const (
	Unconfigured State = iota
	Configured
	Editing
	Deleted
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Configured:
		return "configured"
	case Editing:
		return "editing"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// Visual is a chart definition: kind-specific shape, own filters and style.
type Visual struct {
	ID      ID                `json:"id"`
	State   State             `json:"-"`
	Shape   Shape             `json:"-"`
	Filters engine.FilterSpec `json:"filters,omitempty"`
	Style   Style             `json:"style"`
}

// Kind returns the chart kind.
func (v *Visual) Kind() Kind { return v.Shape.Kind() }

// Bindings returns the flattened shape settings.
func (v *Visual) Bindings() Bindings { return v.Shape.Bindings() }

// Clone returns a deep, independent copy.
func (v *Visual) Clone() (*Visual, error) {
	out := &Visual{
		ID:      v.ID,
		State:   v.State,
		Shape:   cloneShape(v.Shape),
		Filters: v.Filters.Clone(),
	}
	if err := deepcopy.Copy(&out.Style, &v.Style); err != nil {
		return nil, errors.Wrapf(err, "copy style of %s", v.ID)
	}
	return out, nil
}

// Ptr returns a pointer to v, for building a Patch.
func Ptr[T any](v T) *T { return &v }
