package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/deplist/deplist/pkg/depspec"
)

const tracerName = "github.com/deplist/deplist/pkg/engine"

// DepList builds an ordered merge list from dependency specifications.
// It is not safe for concurrent use.
type DepList struct {
	db      PackageDatabase
	env     Environment
	parser  Parser
	opts    Options
	logger  zerolog.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer

	// list is the merge list. Entries are owned by the DepList and only
	// reachable through copies from Entries.
	list []*Entry

	// cursor is the entry before which new entries are inserted. nil
	// means the end of the list.
	cursor *Entry

	// current is the entry whose dependencies are being expanded, nil at
	// the top level.
	current *Entry

	checkOnly  bool
	matchFound bool

	depth    int
	maxDepth int
}

// New creates a DepList reading packages from db and flags from env.
func New(db PackageDatabase, env Environment, opts ...Option) *DepList {
	d := &DepList{
		db:      db,
		env:     env,
		parser:  depspec.NewParser(),
		opts:    DefaultOptions(),
		logger:  zerolog.Nop(),
		metrics: nopMetrics{},
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Add resolves spec and everything it transitively requires into the merge
// list. On error the merge list is left exactly as it was before the call.
func (d *DepList) Add(ctx context.Context, spec depspec.Spec) error {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "deplist.Add",
		trace.WithAttributes(attribute.String("deplist.spec", spec.String())))
	defer span.End()

	before := len(d.list)
	saved := d.snapshot()
	d.cursor = nil
	d.current = nil
	d.maxDepth = 0

	err := d.addRaw(ctx, spec)
	if err == nil {
		err = d.sweep(ctx)
	}

	d.metrics.ObserveStackDepth(d.maxDepth)
	if err != nil {
		d.restore(saved)
		d.metrics.RecordRollback("add")
		d.metrics.RecordResolutionError(string(KindOf(err)))
		d.metrics.RecordResolution("failed", time.Since(start), 0)
		d.logger.Debug().Err(err).Str("spec", spec.String()).Msg("resolution failed, merge list restored")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	added := len(d.list) - before
	d.metrics.RecordResolution("succeeded", time.Since(start), added)
	span.SetAttributes(attribute.Int("deplist.entries_added", added))
	span.SetStatus(codes.Ok, "")
	d.logger.Debug().
		Str("spec", spec.String()).
		Int("added", added).
		Int("entries", len(d.list)).
		Dur("duration", time.Since(start)).
		Msg("resolution complete")
	return nil
}

// AddString parses text as a DEPEND-class expression and adds it.
func (d *DepList) AddString(ctx context.Context, text string) error {
	spec, err := d.parser.Parse(text, depspec.DependClass)
	if err != nil {
		return fmt.Errorf("failed to parse %q: %w", text, err)
	}
	return d.Add(ctx, spec)
}

// Entries returns a copy of the merge list in merge order.
func (d *DepList) Entries() []Entry {
	out := make([]Entry, len(d.list))
	for i, e := range d.list {
		out[i] = *e
	}
	return out
}

// Len returns the number of entries in the merge list.
func (d *DepList) Len() int {
	return len(d.list)
}

// sweep expands the deferred RDEPEND and PDEPEND of every entry, including
// entries appended while sweeping.
func (d *DepList) sweep(ctx context.Context) error {
	d.cursor = nil
	for i := 0; i < len(d.list); {
		e := d.list[i]
		switch {
		case d.opts.DropAll:
			i++
		case !e.HasPreDeps:
			return NewInternalError("HasPreDeps not set for "+e.String(), nil)
		case !e.HasTryPreDeps:
			if err := d.addRole(ctx, e, RoleRDepend); err != nil {
				return err
			}
			e.HasTryPreDeps = true
		case !e.HasPostDeps:
			if err := d.addRole(ctx, e, RolePDepend); err != nil {
				return err
			}
			e.HasPostDeps = true
		default:
			i++
		}
	}
	return nil
}

// addRole expands one dependency variable of e with e as the current
// package.
func (d *DepList) addRole(ctx context.Context, e *Entry, role DependencyRole) error {
	tree, err := d.parser.Parse(e.Metadata.Text(role), depspec.DependClass)
	if err != nil {
		return fmt.Errorf("failed to parse %s of %s: %w", role, e, err)
	}

	savedCurrent := d.current
	d.current = e
	defer func() { d.current = savedCurrent }()

	if err := d.addRaw(ctx, tree); err != nil {
		return withContext(err, "When adding "+string(role)+":")
	}
	return nil
}

// addRaw is one nested descent: it enforces the depth limit and undoes its
// own insertions if the descent fails.
func (d *DepList) addRaw(ctx context.Context, spec depspec.Spec) error {
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > d.maxDepth {
		d.maxDepth = d.depth
	}
	if d.depth > d.opts.MaxStackDepth {
		return NewStackTooDeepError(d.depth)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	checkpoint := append([]*Entry(nil), d.list...)
	err := d.visit(ctx, spec)
	if err != nil && !IsInternal(err) {
		d.list = checkpoint
	}
	return err
}

func (d *DepList) visit(ctx context.Context, spec depspec.Spec) error {
	switch s := spec.(type) {
	case *depspec.AllOf:
		for _, c := range s.Children {
			var err error
			if _, nested := c.(*depspec.AllOf); nested {
				err = d.addRaw(ctx, c)
			} else {
				err = d.visit(ctx, c)
			}
			if err != nil {
				return err
			}
		}
		return nil

	case *depspec.Conditional:
		if !d.conditionHolds(s) {
			return nil
		}
		for _, c := range s.Children {
			if err := d.addRaw(ctx, c); err != nil {
				return err
			}
		}
		return nil

	case *depspec.AnyOf:
		return d.visitAnyOf(ctx, s)

	case *depspec.PackageAtom:
		return d.visitPackage(ctx, s)

	case *depspec.BlockAtom:
		return d.visitBlock(ctx, s)

	case *depspec.PlainText:
		return NewInternalError(fmt.Sprintf("Got unexpected plain text '%s'", s.Text), nil)

	default:
		return NewInternalError(fmt.Sprintf("Got unexpected node %T", spec), nil)
	}
}

func (d *DepList) conditionHolds(c *depspec.Conditional) bool {
	return d.useFunc(d.current)(c.Flag) != c.Inverse
}

// useFunc answers USE queries in the context of pkg, which may be nil.
func (d *DepList) useFunc(pkg *Entry) depspec.UseFunc {
	var id *PackageID
	if pkg != nil {
		pid := pkg.ID()
		id = &pid
	}
	return func(flag string) bool {
		return d.env.QueryUse(flag, id)
	}
}

// find returns the first entry matching atom.
func (d *DepList) find(atom *depspec.PackageAtom) *Entry {
	for _, e := range d.list {
		if e.Matches(atom) {
			return e
		}
	}
	return nil
}

func (d *DepList) indexOf(e *Entry) int {
	for i, x := range d.list {
		if x == e {
			return i
		}
	}
	return -1
}

// insertAt inserts e at position i.
func (d *DepList) insertAt(i int, e *Entry) {
	d.list = append(d.list, nil)
	copy(d.list[i+1:], d.list[i:])
	d.list[i] = e
}

// insertBeforeCursor inserts e before the cursor, or at the end.
func (d *DepList) insertBeforeCursor(e *Entry) {
	i := len(d.list)
	if d.cursor != nil {
		if ci := d.indexOf(d.cursor); ci >= 0 {
			i = ci
		}
	}
	d.insertAt(i, e)
}

func (d *DepList) snapshot() []Entry {
	return d.Entries()
}

func (d *DepList) restore(saved []Entry) {
	d.list = make([]*Entry, len(saved))
	for i := range saved {
		e := saved[i]
		d.list[i] = &e
	}
	d.cursor = nil
	d.current = nil
}

func (d *DepList) qa(format string, args ...interface{}) {
	d.logger.Warn().Bool("qa", true).Msgf(format, args...)
}
