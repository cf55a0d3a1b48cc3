// Package policysync implements the tribe policy edit-and-sync workflow: load
// a tribe's policy, track local edits against the server baseline, validate,
// submit, and reconcile with what the server reports back.
package policysync

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/genericsim/tribectl/internal/journal"
	"github.com/genericsim/tribectl/internal/model"
)

// Status is the workflow status. Exactly one is active at a time.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusLoading    Status = "loading"
	StatusSubmitting Status = "submitting"
	StatusError      Status = "error"
	StatusSuccess    Status = "success"
)

// UpdateMode selects the payload sent on submit.
type UpdateMode string

const (
	// UpdateFull sends every draft field.
	UpdateFull UpdateMode = "full"
	// UpdateDiff sends only the fields that differ from the baseline.
	UpdateDiff UpdateMode = "diff"
)

// ParseUpdateMode maps a config value to an UpdateMode. Empty means full.
func ParseUpdateMode(s string) (UpdateMode, error) {
	switch UpdateMode(s) {
	case "", UpdateFull:
		return UpdateFull, nil
	case UpdateDiff:
		return UpdateDiff, nil
	default:
		return "", eris.Errorf("policysync: unknown update mode %q", s)
	}
}

// Outcome describes what Submit did.
type Outcome int

const (
	// OutcomeNoChanges means the draft matched the baseline; nothing was sent.
	OutcomeNoChanges Outcome = iota
	// OutcomeRejected means local validation failed; nothing was sent.
	OutcomeRejected
	// OutcomeFailed means the backend refused or could not be reached.
	OutcomeFailed
	// OutcomeUpdated means the backend accepted the update.
	OutcomeUpdated
	// OutcomeRefused means Submit could not start: nothing selected or
	// loaded, or a request already in flight.
	OutcomeRefused
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoChanges:
		return "no changes"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	case OutcomeUpdated:
		return "updated"
	case OutcomeRefused:
		return "refused"
	default:
		return "unknown"
	}
}

// Service is the part of the tribe backend the controller talks to.
type Service interface {
	ListTribes(ctx context.Context) ([]model.Tribe, error)
	GetTribeState(ctx context.Context, id int64) (*model.TribeState, error)
	UpdatePolicy(ctx context.Context, id int64, update model.PolicyUpdate) (*model.TribeState, error)
}

// Recorder receives a journal entry for every submit that reaches validation.
type Recorder interface {
	Record(ctx context.Context, e *journal.Entry) error
}

// Snapshot is a consistent copy of the view model.
type Snapshot struct {
	Version    uint64
	Tribes     []model.Tribe
	SelectedID int64
	// Tribe is the tribe whose policy is held as the baseline.
	Tribe          *model.Tribe
	Baseline       *model.Policy
	Draft          model.Policy
	Status         Status
	Message        string
	Violations     []Violation
	PendingChanges bool
	ChangedFields  []string
}

// Option configures a Controller.
type Option func(*Controller)

// WithUpdateMode sets the submit payload mode.
func WithUpdateMode(m UpdateMode) Option {
	return func(c *Controller) { c.mode = m }
}

// WithRecorder journals submit attempts.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// Controller owns the view model for one policy editing session. It is safe
// for concurrent use; service calls are made without holding the lock.
type Controller struct {
	svc      Service
	recorder Recorder
	mode     UpdateMode

	mu         sync.Mutex
	version    uint64
	generation uint64
	tribes     []model.Tribe
	selected   int64
	loaded     *model.Tribe
	baseline   *model.Policy
	draft      model.Policy
	status     Status
	message    string
	violations []Violation
	loading    bool
	submitting bool
	listeners  []func(Snapshot)

	wg sync.WaitGroup
}

// New creates a controller bound to svc.
func New(svc Service, opts ...Option) *Controller {
	c := &Controller{
		svc:    svc,
		mode:   UpdateFull,
		status: StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers fn to receive a snapshot after every view-model change.
// Snapshots may arrive out of order across goroutines; compare Version.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Snapshot returns the current view model.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Version:    c.version,
		Tribes:     slices.Clone(c.tribes),
		SelectedID: c.selected,
		Draft:      c.draft,
		Status:     c.status,
		Message:    c.message,
		Violations: slices.Clone(c.violations),
	}
	if c.loaded != nil {
		t := *c.loaded
		s.Tribe = &t
	}
	if c.baseline != nil {
		b := *c.baseline
		s.Baseline = &b
		s.PendingChanges = c.draft != b
		s.ChangedFields = c.draft.ChangedFields(b)
	}
	return s
}

// mutate applies fn under the lock and notifies listeners afterwards.
func (c *Controller) mutate(fn func()) {
	_ = c.mutateIf(func() error {
		fn()
		return nil
	})
}

// mutateIf applies fn under the lock. When fn returns an error nothing is
// published and the error is returned.
func (c *Controller) mutateIf(fn func() error) error {
	c.mu.Lock()
	if err := fn(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.version++
	snap := c.snapshotLocked()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
	return nil
}

// Wait blocks until every background load started by SelectTribe finishes.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// LoadTribes fetches the tribe list. When nothing is selected yet the first
// tribe is selected and its policy loaded before returning; a failure of that
// load is returned alongside the list.
func (c *Controller) LoadTribes(ctx context.Context) ([]model.Tribe, error) {
	tribes, err := c.svc.ListTribes(ctx)
	if err != nil {
		zap.L().Warn("policysync: list tribes failed", zap.Error(err))
		c.mutate(func() {
			c.status = StatusError
			c.message = MsgTribeListLoadFailed
		})
		return nil, kindError(ErrTribeListLoadFailed, err)
	}

	var autoSelect int64
	c.mutate(func() {
		c.tribes = tribes
		if c.selected == 0 && len(tribes) > 0 {
			autoSelect = tribes[0].ID
		}
	})

	if autoSelect != 0 {
		return tribes, c.LoadPolicy(ctx, autoSelect)
	}
	return tribes, nil
}

// SelectTribe makes id the active tribe and loads its policy in the
// background. The returned channel is closed once that load has been applied
// or discarded. A load for an earlier selection that finishes afterwards is
// discarded.
func (c *Controller) SelectTribe(ctx context.Context, id int64) <-chan struct{} {
	gen := c.beginLoad(id)

	done := make(chan struct{})
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(done)
		if err := c.load(ctx, id, gen); err != nil && !errors.Is(err, ErrSuperseded) {
			zap.L().Debug("policysync: background load failed", zap.Int64("tribe_id", id), zap.Error(err))
		}
	}()
	return done
}

// LoadPolicy selects id (if it is not already selected) and loads its policy
// synchronously. ErrSuperseded is returned when another selection was made
// while the request was in flight.
func (c *Controller) LoadPolicy(ctx context.Context, id int64) error {
	return c.load(ctx, id, c.beginLoad(id))
}

func (c *Controller) beginLoad(id int64) uint64 {
	var gen uint64
	c.mutate(func() {
		c.selected = id
		c.generation++
		gen = c.generation
		c.loading = true
		c.status = StatusLoading
		c.message = ""
		c.violations = nil
	})
	return gen
}

// load fetches id and applies the result only if gen is still current. On
// failure the previous baseline is left untouched.
func (c *Controller) load(ctx context.Context, id int64, gen uint64) error {
	state, err := c.svc.GetTribeState(ctx, id)

	var stale bool
	c.mutate(func() {
		if gen != c.generation {
			stale = true
			return
		}
		c.loading = false
		if err != nil {
			c.status = StatusError
			c.message = MsgTribePolicyLoadFailed
			return
		}
		summary := state.Summary()
		policy := state.Policy
		c.loaded = &summary
		c.baseline = &policy
		c.draft = policy
		c.status = StatusIdle
		c.message = ""
		c.violations = nil
	})

	switch {
	case stale:
		zap.L().Debug("policysync: discarding stale load", zap.Int64("tribe_id", id))
		return ErrSuperseded
	case err != nil:
		zap.L().Warn("policysync: load policy failed", zap.Int64("tribe_id", id), zap.Error(err))
		return kindError(ErrTribePolicyLoadFailed, err)
	}
	return nil
}

// EditField sets one draft field, coercing value to the field's kind. The
// baseline is never touched. A success status is cleared. Edits are refused
// while a submit is in flight, since its reload replaces the draft.
func (c *Controller) EditField(name string, value any) error {
	return c.mutateIf(func() error {
		switch {
		case c.baseline == nil:
			return ErrPolicyNotLoaded
		case c.submitting:
			return ErrRequestInFlight
		}
		next, err := c.draft.WithField(name, value)
		if err != nil {
			return err
		}
		c.draft = next
		if c.status == StatusSuccess {
			c.status = StatusIdle
			c.message = ""
		}
		return nil
	})
}

// ResetDraft replaces the draft with a copy of the baseline and clears any
// error or success status.
func (c *Controller) ResetDraft() error {
	return c.mutateIf(func() error {
		switch {
		case c.baseline == nil:
			return ErrPolicyNotLoaded
		case c.submitting:
			return ErrRequestInFlight
		}
		c.draft = *c.baseline
		if c.status == StatusError || c.status == StatusSuccess {
			c.status = StatusIdle
		}
		c.message = ""
		c.violations = nil
		return nil
	})
}

// HasPendingChanges reports whether a baseline is loaded and the draft
// differs from it.
func (c *Controller) HasPendingChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseline != nil && c.draft != *c.baseline
}

// ChangedFields lists the draft fields that differ from the baseline.
func (c *Controller) ChangedFields() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.baseline == nil {
		return nil
	}
	return c.draft.ChangedFields(*c.baseline)
}

// Submit sends the draft to the backend. It does nothing when there are no
// pending changes, and never contacts the backend when validation fails. On
// success the policy is reloaded so baseline and draft match server truth.
// On failure the draft is kept so the user can retry. OutcomeRefused comes
// with ErrNoTribeSelected, ErrPolicyNotLoaded or ErrRequestInFlight.
func (c *Controller) Submit(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if c.loading || c.submitting {
		c.mu.Unlock()
		return OutcomeRefused, ErrRequestInFlight
	}
	if c.selected == 0 {
		c.mu.Unlock()
		return OutcomeRefused, ErrNoTribeSelected
	}
	if c.baseline == nil || c.loaded == nil || c.loaded.ID != c.selected {
		c.mu.Unlock()
		return OutcomeRefused, ErrPolicyNotLoaded
	}
	if c.draft == *c.baseline {
		c.mu.Unlock()
		return OutcomeNoChanges, nil
	}
	id, gen := c.selected, c.generation
	base, draft := *c.baseline, c.draft
	c.mu.Unlock()

	entry := &journal.Entry{
		TribeID: id,
		Mode:    string(c.mode),
		Before:  base,
		After:   draft,
		Changed: draft.ChangedFields(base),
	}

	if vs := Validate(draft); len(vs) > 0 {
		msg := JoinViolations(vs)
		c.mutate(func() {
			c.status = StatusError
			c.message = msg
			c.violations = vs
		})
		entry.Outcome, entry.Message = journal.OutcomeRejected, msg
		c.record(ctx, entry)
		return OutcomeRejected, &ValidationError{Violations: vs}
	}

	var busy bool
	c.mutate(func() {
		if c.loading || c.submitting || gen != c.generation {
			busy = true
			return
		}
		c.submitting = true
		c.status = StatusSubmitting
		c.message = ""
		c.violations = nil
	})
	if busy {
		return OutcomeRefused, ErrRequestInFlight
	}

	payload := model.FullUpdate(draft)
	if c.mode == UpdateDiff {
		payload = model.DiffUpdate(base, draft)
	}

	if _, err := c.svc.UpdatePolicy(ctx, id, payload); err != nil {
		zap.L().Warn("policysync: update policy failed", zap.Int64("tribe_id", id), zap.Error(err))
		c.mutate(func() {
			c.submitting = false
			if gen == c.generation {
				c.status = StatusError
				c.message = MsgPolicyUpdateFailed
			}
		})
		entry.Outcome, entry.Message = journal.OutcomeFailed, err.Error()
		c.record(ctx, entry)
		return OutcomeFailed, kindError(ErrPolicyUpdateFailed, err)
	}

	entry.Outcome = journal.OutcomeUpdated
	c.record(ctx, entry)
	zap.L().Info("policysync: policy updated",
		zap.Int64("tribe_id", id),
		zap.Strings("changed", entry.Changed),
		zap.String("mode", string(c.mode)),
	)

	loadErr := c.load(ctx, id, gen)
	c.mutate(func() {
		c.submitting = false
		if loadErr == nil && gen == c.generation {
			c.status = StatusSuccess
			c.message = MsgPolicyUpdated
		}
	})
	if loadErr != nil && !errors.Is(loadErr, ErrSuperseded) {
		return OutcomeUpdated, loadErr
	}
	return OutcomeUpdated, nil
}

func (c *Controller) record(ctx context.Context, e *journal.Entry) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, e); err != nil {
		zap.L().Warn("policysync: journal record failed", zap.Int64("tribe_id", e.TribeID), zap.Error(err))
	}
}
