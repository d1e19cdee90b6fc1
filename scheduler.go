package sched_go

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ConflictPolicy selects how a rebuild treats two units that write the same
// tag without an explicit order or alongside exemption.
type ConflictPolicy int

const (
	// ConflictFail rejects the rebuild with a *ConflictError.
	ConflictFail ConflictPolicy = iota
	// ConflictOrderByRegistration logs a warning and runs the unit that was
	// registered first before the other. Opt-in only.
	ConflictOrderByRegistration
)

func (p ConflictPolicy) String() string {
	switch p {
	case ConflictFail:
		return "fail"
	case ConflictOrderByRegistration:
		return "order-by-registration"
	default:
		return "unknown"
	}
}

// SchedulerConfig holds tunable parameters for a Scheduler instance.
type SchedulerConfig struct {
	// MaxLayerConcurrency caps the goroutines running one layer. Zero means one
	// goroutine per unit. Default: 0.
	MaxLayerConcurrency int

	// ErrorBuffer is the capacity of the Errors channel. Structural errors that
	// do not fit are logged and counted by DroppedErrors. Default: 100.
	ErrorBuffer int

	// ConflictPolicy decides what happens on an unresolved write/write
	// conflict. Default: ConflictFail.
	ConflictPolicy ConflictPolicy

	// SerialExecution runs units one at a time in topological order instead of
	// layer by layer. Meant for debugging data races between units. Default: false.
	SerialExecution bool
}

// DefaultSchedulerConfig returns a SchedulerConfig populated with defaults:
//   - MaxLayerConcurrency: 0 (unbounded)
//   - ErrorBuffer:         100
//   - ConflictPolicy:      ConflictFail
//   - SerialExecution:     false
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxLayerConcurrency: 0,
		ErrorBuffer:         100,
		ConflictPolicy:      ConflictFail,
		SerialExecution:     false,
	}
}

// SchedulerOption is a functional-option type for NewSchedulerWithOptions.
type SchedulerOption func(*Scheduler)

// WithMaxLayerConcurrency bounds the number of units of one layer that run at
// the same time.
func WithMaxLayerConcurrency(n int) SchedulerOption {
	return func(s *Scheduler) {
		s.Config.MaxLayerConcurrency = n
	}
}

// WithErrorBuffer sets the capacity of the Errors channel.
func WithErrorBuffer(n int) SchedulerOption {
	return func(s *Scheduler) {
		s.Config.ErrorBuffer = n
	}
}

// WithLenientConflicts switches unresolved write/write conflicts from a hard
// failure to a logged warning plus registration-order tie-break.
func WithLenientConflicts() SchedulerOption {
	return func(s *Scheduler) {
		s.Config.ConflictPolicy = ConflictOrderByRegistration
	}
}

// WithSerialExecution makes ProcessTick run units one at a time.
func WithSerialExecution() SchedulerOption {
	return func(s *Scheduler) {
		s.Config.SerialExecution = true
	}
}

// Scheduler owns a set of units and the layered plan derived from their
// declared access.
//
// Registration and ticking follow a single-writer discipline: Add, Remove and
// Close take the write lock and ProcessTick holds the read lock for the whole
// tick. A unit must therefore never call Add or Remove from its own Update.
type Scheduler struct {
	// ID is the unique identifier assigned at creation time (UUID v4).
	ID string

	// Config holds the parameters active for this scheduler.
	Config SchedulerConfig

	// Errors receives every structural error raised by Add, Remove and Close.
	// Sends never block; see DroppedErrors.
	Errors *SafeChannel[error]

	entries []*entry // registration order
	byUnit  map[Unit]*entry
	byKind  map[Kind]*entry

	graph      *Graph[Unit]
	layers     [][]Unit
	serial     []Unit
	layerOf    map[Unit]int
	generation uint64

	errLogs       []*systemError
	droppedErrors atomic.Int64
	ticks         atomic.Uint64
	closed        bool

	mu sync.RWMutex // guards everything above except the atomics
}

// NewScheduler returns a Scheduler with DefaultSchedulerConfig.
func NewScheduler() *Scheduler {
	return NewSchedulerWithConfig(DefaultSchedulerConfig())
}

// NewSchedulerWithConfig returns a Scheduler using the supplied config.
func NewSchedulerWithConfig(config SchedulerConfig) *Scheduler {
	s := &Scheduler{Config: config}
	s.init()
	return s
}

// NewSchedulerWithOptions returns a Scheduler with DefaultSchedulerConfig and
// then applies each option in order.
func NewSchedulerWithOptions(options ...SchedulerOption) *Scheduler {
	s := &Scheduler{Config: DefaultSchedulerConfig()}
	for _, option := range options {
		option(s)
	}
	s.init()
	return s
}

func (s *Scheduler) init() {
	if s.Config.ErrorBuffer < 0 {
		s.Config.ErrorBuffer = 0
	}
	s.ID = uuid.NewString()
	s.Errors = NewSafeChannelGen[error](s.Config.ErrorBuffer)
	s.byUnit = make(map[Unit]*entry)
	s.byKind = make(map[Kind]*entry)
	s.graph = NewGraph[Unit](WithLabeler(unitLabel))
	s.layerOf = make(map[Unit]int)
}

func (s *Scheduler) logger() *logrus.Entry {
	return Log.WithField("scheduler_id", s.ID)
}

// reportError delivers err to the Errors channel without blocking. When the
// channel is full or closed the error is logged and counted instead.
func (s *Scheduler) reportError(err error) {
	if !s.Errors.Send(err) {
		s.droppedErrors.Add(1)
		s.logger().WithError(err).Warn("error channel full or closed; dropping error")
	}
}

// record appends err to the structural error log and reports it.
func (s *Scheduler) record(op ErrorType, err error) error {
	s.errLogs = append(s.errLogs, &systemError{op, err})
	s.reportError(err)
	return err
}

// Add registers u and rebuilds the plan. Registration is all-or-nothing: if
// the rebuild fails (cycle, conflict, self dependency) u is not added and the
// previous plan stays in force.
func (s *Scheduler) Add(u Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logErr := func(err error) error {
		return s.record(AddUnit, err)
	}

	if s.closed {
		return logErr(fmt.Errorf("add: %w", ErrSchedulerClosed))
	}
	if u == nil {
		return logErr(fmt.Errorf("add: nil unit: %w", ErrInvalidKind))
	}
	kind := u.Kind()
	if !validKind(kind) {
		return logErr(fmt.Errorf("add %T: %w", u, ErrInvalidKind))
	}
	if !hashable(u) {
		return logErr(fmt.Errorf("add %s: %T: %w", kind, u, ErrUnitNotComparable))
	}
	if _, exists := s.byUnit[u]; exists {
		return logErr(fmt.Errorf("add %s: %w", kind, ErrDuplicateRegistration))
	}
	if other, exists := s.byKind[kind]; exists {
		return logErr(fmt.Errorf("add %s: kind already held by %T: %w", kind, other.unit, ErrDuplicateRegistration))
	}

	e := newEntry(u)
	e.TransitionState(UnitStateUnregistered, UnitStateRegistered)

	candidate := append(s.unitsLocked(), u)
	p, err := buildPlan(candidate, s.Config.ConflictPolicy)
	if err != nil {
		e.TransitionState(UnitStateRegistered, UnitStateUnregistered)
		return logErr(fmt.Errorf("add %s: %w", kind, err))
	}

	s.entries = append(s.entries, e)
	s.byUnit[u] = e
	s.byKind[kind] = e
	s.commit(p)

	s.logger().WithFields(logrus.Fields{
		"unit":       kind,
		"generation": s.generation,
		"layers":     len(s.layers),
	}).Info("unit added")
	return nil
}

// Remove unregisters u, rebuilds the plan and runs u's teardown hook when it
// implements Teardowner. A teardown failure is returned but u stays removed.
func (s *Scheduler) Remove(u Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logErr := func(err error) error {
		return s.record(RemoveUnit, err)
	}

	if s.closed {
		return logErr(fmt.Errorf("remove: %w", ErrSchedulerClosed))
	}
	if u == nil {
		return logErr(fmt.Errorf("remove: nil unit: %w", ErrUnitNotFound))
	}
	if !hashable(u) {
		return logErr(fmt.Errorf("remove %s: %T: %w", u.Kind(), u, ErrUnitNotFound))
	}
	e, ok := s.byUnit[u]
	if !ok {
		return logErr(fmt.Errorf("remove %s: %w", u.Kind(), ErrUnitNotFound))
	}

	remaining := make([]*entry, 0, len(s.entries)-1)
	candidate := make([]Unit, 0, len(s.entries)-1)
	for _, other := range s.entries {
		if other != e {
			remaining = append(remaining, other)
			candidate = append(candidate, other.unit)
		}
	}

	p, err := buildPlan(candidate, s.Config.ConflictPolicy)
	if err != nil {
		return s.record(Rebuild, fmt.Errorf("remove %s: %w", e.kind, err))
	}

	s.entries = remaining
	delete(s.byUnit, u)
	delete(s.byKind, e.kind)
	e.TransitionState(UnitStateScheduled, UnitStateUnregistered)
	s.commit(p)

	s.logger().WithFields(logrus.Fields{
		"unit":       e.kind,
		"generation": s.generation,
		"layers":     len(s.layers),
	}).Info("unit removed")

	if td, ok := u.(Teardowner); ok {
		if err := td.Teardown(); err != nil {
			return logErr(fmt.Errorf("remove %s: teardown: %w", e.kind, err))
		}
	}
	return nil
}

// commit installs a freshly built plan and marks every entry Scheduled.
func (s *Scheduler) commit(p *plan) {
	layerOf := make(map[Unit]int, p.graph.Len())
	for i, layer := range p.layers {
		for _, u := range layer {
			layerOf[u] = i
		}
	}

	s.graph = p.graph
	s.layers = p.layers
	s.serial = p.serial
	s.layerOf = layerOf
	s.generation++

	for _, e := range s.entries {
		e.TransitionState(UnitStateRegistered, UnitStateScheduled)
	}
}

// hashable reports whether u can be used as a map key without panicking. It
// checks the dynamic value, so interface fields holding slices are caught too.
func hashable(u Unit) bool {
	return reflect.ValueOf(u).Comparable()
}

func (s *Scheduler) unitsLocked() []Unit {
	out := make([]Unit, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.unit
	}
	return out
}

// ExecutionOrder returns a copy of the current layered plan. Order inside a
// layer is unspecified.
func (s *Scheduler) ExecutionOrder() [][]Unit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([][]Unit, len(s.layers))
	for i, layer := range s.layers {
		out[i] = append([]Unit(nil), layer...)
	}
	return out
}

// SerialOrder returns the topological order used by SerialExecution.
func (s *Scheduler) SerialOrder() []Unit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Unit(nil), s.serial...)
}

// Units returns the registered units in registration order.
func (s *Scheduler) Units() []Unit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unitsLocked()
}

// Len returns the number of registered units.
func (s *Scheduler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Lookup returns the registered unit of the given kind.
func (s *Scheduler) Lookup(kind Kind) (Unit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byKind[kind]
	if !ok {
		return nil, false
	}
	return e.unit, true
}

// State returns u's lifecycle state. Unknown units are Unregistered.
func (s *Scheduler) State(u Unit) UnitState {
	if u == nil || !hashable(u) {
		return UnitStateUnregistered
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.byUnit[u]; ok {
		return e.State()
	}
	return UnitStateUnregistered
}

// Generation counts committed rebuilds. It changes every time the plan does.
func (s *Scheduler) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Ticks returns the number of ticks that completed without error.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

// DroppedErrors returns how many structural errors did not fit in Errors.
func (s *Scheduler) DroppedErrors() int64 {
	return s.droppedErrors.Load()
}

// CollectErrors drains and returns the errors buffered in Errors.
func (s *Scheduler) CollectErrors() []error {
	return s.Errors.Drain()
}

// ErrLogs returns every structural error recorded so far, oldest first.
func (s *Scheduler) ErrLogs() []error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]error, len(s.errLogs))
	for i, se := range s.errLogs {
		out[i] = se
	}
	return out
}

// Close tears down every unit in reverse registration order, drops the plan
// and closes Errors. Teardown errors are joined and returned.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("close: %w", ErrSchedulerClosed)
	}

	var errs []error
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		e.TransitionState(UnitStateScheduled, UnitStateUnregistered)
		if td, ok := e.unit.(Teardowner); ok {
			if err := td.Teardown(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: teardown: %w", e.kind, err))
			}
		}
	}

	s.entries = nil
	s.byUnit = make(map[Unit]*entry)
	s.byKind = make(map[Kind]*entry)
	s.graph = NewGraph[Unit](WithLabeler(unitLabel))
	s.layers = nil
	s.serial = nil
	s.layerOf = make(map[Unit]int)
	s.closed = true

	err := errors.Join(errs...)
	if err != nil {
		s.errLogs = append(s.errLogs, &systemError{CloseScheduler, err})
		s.reportError(err)
	}
	_ = s.Errors.Close()
	s.logger().Info("scheduler closed")
	return err
}

func (e *systemError) Error() string {
	return fmt.Sprintf("%s: %v", e.errorType, e.reason)
}

func (e *systemError) Unwrap() error {
	return e.reason
}
