package visual

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/spektr-org/chartdeck/schema"
)

// ============================================================================
// STORE — Visual configuration control plane
// ============================================================================
// Owns id → visual, creation order, the layout and the editing pointer.
// Every mutation works on a clone and commits only after validation, so a
// rejected call leaves the store exactly as it was. Not safe for concurrent
// use; callers serialise access per session.
// ============================================================================

// StoreOption configures a Store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	log        *logrus.Entry
	autoRepair bool
	columns    int
	palette    string
}

// WithLogger sets the store logger.
func WithLogger(log *logrus.Entry) StoreOption {
	return func(c *storeConfig) { c.log = log }
}

// WithAutoRepair makes Rebind rebind broken visuals to default columns
// instead of only flagging them.
func WithAutoRepair(on bool) StoreOption {
	return func(c *storeConfig) { c.autoRepair = on }
}

// WithGridColumns sets the layout width.
func WithGridColumns(n int) StoreOption {
	return func(c *storeConfig) { c.columns = n }
}

// WithDefaultPalette sets the palette of new visuals.
func WithDefaultPalette(name string) StoreOption {
	return func(c *storeConfig) { c.palette = name }
}

// Store holds every visual of one session.
type Store struct {
	cfg     storeConfig
	schema  *schema.Schema
	visuals map[ID]*Visual
	order   []ID
	next    ID
	layout  *Layout
}

// Issue is a visual that no longer matches the schema.
type Issue struct {
	ID       ID
	Problems []*ValidationError
	Repaired bool
	Err      error // set when a repair was attempted and failed
}

// NewStore creates an empty store bound to sch.
func NewStore(sch *schema.Schema, opts ...StoreOption) *Store {
	cfg := storeConfig{columns: DefaultGridColumns, palette: DefaultPalette}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{
		cfg:     cfg,
		schema:  sch,
		visuals: make(map[ID]*Visual),
		layout:  NewLayout(cfg.columns),
	}
}

// Schema returns the schema the store validates against.
func (s *Store) Schema() *schema.Schema { return s.schema }

// Layout returns a snapshot of placements and the editing pointer.
func (s *Store) Layout() *Layout { return s.layout.clone() }

// Len returns the number of live visuals.
func (s *Store) Len() int { return len(s.order) }

// NextID returns the id the next Create will assign.
func (s *Store) NextID() ID { return s.next }

// lookup resolves id, distinguishing deleted from never-issued ids.
func (s *Store) lookup(id ID) (*Visual, error) {
	if v, ok := s.visuals[id]; ok {
		return v, nil
	}
	if id >= 0 && id < s.next {
		return nil, errors.Wrapf(ErrDeleted, "%s", id)
	}
	return nil, errors.Wrapf(ErrNotFound, "%s", id)
}

// ============================================================================
// CREATE / READ
// ============================================================================

// Create adds a visual of kind k configured from the schema defaults, with
// optional patches applied on top. Nothing is created when validation
// fails.
func (s *Store) Create(k Kind, patches ...Patch) (ID, error) {
	if !k.valid() {
		return 0, invalid("kind", "is unknown")
	}
	b, err := defaultBindings(k, s.schema)
	if err != nil {
		return 0, errors.Wrapf(err, "create %s", k)
	}
	shape, err := NewShape(k, b)
	if err != nil {
		return 0, err
	}
	v := &Visual{
		ID:    s.next,
		State: Unconfigured,
		Shape: shape,
		Style: defaultStyle(k, b, s.schema, s.cfg.palette),
	}
	for _, p := range patches {
		if err := p.apply(v, s.schema); err != nil {
			return 0, withID(err, v.ID)
		}
	}
	if err := s.validate(v); err != nil {
		return 0, err
	}

	v.State = Configured
	s.commitNew(v)
	s.layout.place(v.ID)
	s.cfg.log.Infof("➕ Visual: created %s (%s)", v.ID, k)
	return v.ID, nil
}

func (s *Store) commitNew(v *Visual) {
	s.visuals[v.ID] = v
	s.order = append(s.order, v.ID)
	if v.ID >= s.next {
		s.next = v.ID + 1
	}
}

// Get returns a copy of the visual.
func (s *Store) Get(id ID) (*Visual, error) {
	v, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return v.Clone()
}

// List returns live ids in creation order.
func (s *Store) List() []ID {
	return append([]ID(nil), s.order...)
}

// Visuals returns copies of every live visual in creation order.
func (s *Store) Visuals() ([]*Visual, error) {
	out := make([]*Visual, 0, len(s.order))
	for _, id := range s.order {
		v, err := s.visuals[id].Clone()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ============================================================================
// MUTATION
// ============================================================================

// Update applies p to the visual. The update is all-or-nothing.
func (s *Store) Update(id ID, p Patch) error {
	cur, err := s.lookup(id)
	if err != nil {
		return err
	}
	next, err := cur.Clone()
	if err != nil {
		return err
	}
	if err := p.apply(next, s.schema); err != nil {
		s.cfg.log.Warnf("⚠️ Visual: rejected update of %s: %v", id, err)
		return withID(err, id)
	}
	if err := s.validate(next); err != nil {
		s.cfg.log.Warnf("⚠️ Visual: rejected update of %s: %v", id, err)
		return err
	}
	s.visuals[id] = next
	return nil
}

func (s *Store) validate(v *Visual) error {
	if err := Validate(v.Shape, s.schema); err != nil {
		return withID(err, v.ID)
	}
	if err := v.Style.validate(v.Kind()); err != nil {
		return withID(err, v.ID)
	}
	return nil
}

// Duplicate deep-copies a visual under a new id. Filters, style and every
// binding are carried over; nothing is shared with the original.
func (s *Store) Duplicate(id ID) (ID, error) {
	cur, err := s.lookup(id)
	if err != nil {
		return 0, err
	}
	cp, err := cur.Clone()
	if err != nil {
		return 0, err
	}
	cp.ID = s.next
	cp.State = Configured

	s.commitNew(cp)
	s.layout.place(cp.ID)
	s.cfg.log.Infof("📋 Visual: duplicated %s as %s", id, cp.ID)
	return cp.ID, nil
}

// Delete removes a visual and its layout entry. Deleting an absent id is a
// no-op.
func (s *Store) Delete(id ID) {
	v, ok := s.visuals[id]
	if !ok {
		return
	}
	v.State = Deleted
	delete(s.visuals, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.layout.remove(id)
	s.cfg.log.Infof("🗑 Visual: deleted %s", id)
}

// Move places a visual explicitly on the grid.
func (s *Store) Move(id ID, p Placement) error {
	if _, err := s.lookup(id); err != nil {
		return err
	}
	return errors.Wrapf(s.layout.set(id, p), "move %s", id)
}

// ============================================================================
// EDITING POINTER
// ============================================================================

// BeginEdit marks id as the visual being edited. Any other visual in the
// Editing state returns to Configured.
func (s *Store) BeginEdit(id ID) error {
	v, err := s.lookup(id)
	if err != nil {
		return err
	}
	if prev, ok := s.layout.Editing(); ok && prev != id {
		if pv, ok := s.visuals[prev]; ok {
			pv.State = Configured
		}
	}
	v.State = Editing
	s.layout.setEditing(id)
	return nil
}

// EndEdit returns id to Configured.
func (s *Store) EndEdit(id ID) error {
	v, err := s.lookup(id)
	if err != nil {
		return err
	}
	v.State = Configured
	if cur, ok := s.layout.Editing(); ok && cur == id {
		s.layout.clearEditing()
	}
	return nil
}

// State returns the lifecycle state of id. Deleted and never-issued ids
// report Deleted with the corresponding error.
func (s *Store) State(id ID) (State, error) {
	v, err := s.lookup(id)
	if err != nil {
		return Deleted, err
	}
	return v.State, nil
}

// ============================================================================
// SCHEMA CHANGES
// ============================================================================

// Rebind switches the store to a new schema and reports every visual whose
// bindings no longer resolve. With auto-repair on, broken visuals are
// rebound to default columns.
func (s *Store) Rebind(sch *schema.Schema) []Issue {
	s.schema = sch
	var issues []Issue
	for _, id := range s.order {
		problems := Check(s.visuals[id].Shape, sch)
		if len(problems) == 0 {
			continue
		}
		for _, p := range problems {
			p.VisualID = id
		}
		issue := Issue{ID: id, Problems: problems}
		if s.cfg.autoRepair {
			issue.Err = s.Repair(id)
			issue.Repaired = issue.Err == nil
		}
		if !issue.Repaired {
			s.cfg.log.Warnf("⚠️ Visual: %s flagged, %s", id, problems[0].Reason)
		}
		issues = append(issues, issue)
	}
	return issues
}

// Check returns an ErrSchemaMismatch error when id references a column that
// is not in the current schema.
func (s *Store) Check(id ID) error {
	v, err := s.lookup(id)
	if err != nil {
		return err
	}
	problems := Check(v.Shape, s.schema)
	if len(problems) == 0 {
		return nil
	}
	problems[0].VisualID = id
	return problems[0]
}

// Repair rebinds every missing or incompatible field of id to the schema
// defaults.
func (s *Store) Repair(id ID) error {
	cur, err := s.lookup(id)
	if err != nil {
		return err
	}
	next, err := cur.Clone()
	if err != nil {
		return err
	}
	b, err := fillDefaults(next.Kind(), next.Bindings(), s.schema)
	if err != nil {
		return withID(err, id)
	}
	if next.Shape, err = NewShape(next.Kind(), b); err != nil {
		return err
	}
	if err := s.validate(next); err != nil {
		return err
	}
	s.visuals[id] = next
	s.cfg.log.Infof("🔧 Visual: repaired %s", id)
	return nil
}

// ============================================================================
// BULK
// ============================================================================

// Restore replaces every visual and placement at once. A visual keeps its
// id when that id is live or was never issued; an id that was deleted is
// never revived, so such visuals get fresh ids and their placements follow.
// All visuals are validated first; on error the store is unchanged. The id
// counter never moves backwards.
func (s *Store) Restore(visuals []*Visual, placements map[ID]Placement) error {
	seen := make(map[ID]bool, len(visuals))
	next := s.next
	for _, v := range visuals {
		if v.ID < 0 {
			return invalid("id", "must not be negative")
		}
		if seen[v.ID] {
			return errors.Newf("duplicate visual id %s", v.ID)
		}
		seen[v.ID] = true
		if err := s.validate(v); err != nil {
			return err
		}
		if v.ID >= next {
			next = v.ID + 1
		}
	}

	ids := make(map[ID]ID, len(visuals))
	for _, v := range visuals {
		if _, err := s.lookup(v.ID); errors.Is(err, ErrDeleted) {
			ids[v.ID] = next
			next++
			continue
		}
		ids[v.ID] = v.ID
	}

	layout := NewLayout(s.layout.Columns())
	for id, p := range placements {
		to, ok := ids[id]
		if !ok {
			continue
		}
		if err := layout.set(to, p); err != nil {
			return errors.Wrapf(err, "restore %s", id)
		}
	}

	nextVisuals := make(map[ID]*Visual, len(visuals))
	order := make([]ID, 0, len(visuals))
	for _, v := range visuals {
		cp, err := v.Clone()
		if err != nil {
			return err
		}
		if to := ids[v.ID]; to != v.ID {
			s.cfg.log.Warnf("⚠️ Visual: %s was deleted, restoring it as %s", v.ID, to)
			cp.ID = to
		}
		cp.State = Configured
		nextVisuals[cp.ID] = cp
		order = append(order, cp.ID)
	}

	s.visuals, s.order, s.next, s.layout = nextVisuals, order, next, layout
	for _, id := range order {
		if _, ok := layout.Get(id); !ok {
			layout.place(id)
		}
	}
	s.cfg.log.Infof("📥 Visual: restored %d visuals", len(order))
	return nil
}

// Clear removes every visual but keeps the id counter.
func (s *Store) Clear() {
	s.visuals = make(map[ID]*Visual)
	s.order = nil
	s.layout = NewLayout(s.layout.Columns())
}
