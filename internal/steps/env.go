// Package steps implements the five wizard stages as controllers that run
// the step lifecycle against the document engine, and a Flow that drives
// them from any front-end.
package steps

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonaddams/document-generator/internal/engine"
	"github.com/jonaddams/document-generator/internal/fault"
	"github.com/jonaddams/document-generator/internal/lifecycle"
	"github.com/jonaddams/document-generator/internal/logging"
	"github.com/jonaddams/document-generator/internal/noise"
	"github.com/jonaddams/document-generator/internal/wizard"
	"github.com/jonaddams/document-generator/registry"
)

var (
	// ErrNotReady is returned by Advance when the step's exit requirements
	// are not met.
	ErrNotReady = errors.New("step is not ready to advance")
	// ErrWrongStep is returned when a controller is driven while another
	// step is active.
	ErrWrongStep = errors.New("step is not active")
)

// Policy holds the timing and size limits of the lifecycle.
type Policy struct {
	Poll             lifecycle.PollPolicy
	CustomizeRetry   time.Duration
	PreviewRetry     time.Duration
	MaxTemplateBytes int64
	MaxDataBytes     int64
}

// DefaultPolicy returns the stock limits: 20×100ms container polling,
// 500ms and 1000ms bind retries, 10 MB templates and 1 MB data files.
func DefaultPolicy() Policy {
	return Policy{
		Poll:             lifecycle.DefaultPollPolicy,
		CustomizeRetry:   500 * time.Millisecond,
		PreviewRetry:     1000 * time.Millisecond,
		MaxTemplateBytes: 10 << 20,
		MaxDataBytes:     1 << 20,
	}
}

// DataValidator checks a data payload against a template's schema.
type DataValidator interface {
	ValidateData(id string, data []byte) ([]string, error)
}

// Env carries the collaborators shared by every controller of one wizard
// session.
type Env struct {
	Store     *wizard.Store
	Engine    engine.Engine
	Populator engine.Populator
	Viewer    engine.PDFViewer
	Registry  registry.Source
	Validator DataValidator // optional
	Scheduler lifecycle.Scheduler
	Noise     *noise.Filter
	Logger    logging.Logger
	Policy    Policy

	sessMu sync.Mutex
}

func (e *Env) defaults() {
	if e.Logger == nil {
		e.Logger = logging.Nop()
	}
	if e.Store == nil {
		e.Store = wizard.NewStore(e.Logger)
	}
	if e.Scheduler == nil {
		e.Scheduler = lifecycle.RealScheduler{}
	}
	if e.Noise == nil {
		e.Noise = noise.New(e.Logger)
	}
	if e.Policy == (Policy{}) {
		e.Policy = DefaultPolicy()
	}
}

// session returns the wizard's engine session, creating it on first use.
func (e *Env) session(ctx context.Context) (engine.Session, error) {
	e.sessMu.Lock()
	defer e.sessMu.Unlock()
	if s := e.Store.Snapshot().Session; s != nil {
		return s, nil
	}
	if e.Engine == nil {
		return nil, fault.Errorf(fault.EngineNotLoaded, "engine.session", "no document engine configured")
	}
	s, err := e.Engine.CreateSession(ctx)
	if err != nil {
		return nil, fault.New(fault.EngineNotLoaded, "engine.session", err)
	}
	e.Store.SetSession(s)
	e.Logger.Info("engine session started", nil)
	return s, nil
}

// Controller runs one wizard stage.
type Controller interface {
	Stage() wizard.StepID
	Phase() lifecycle.Phase
	// Err returns the error of the last failed run.
	Err() error
	// Activate runs the lifecycle against container. Calling it while a run
	// is in progress does nothing.
	Activate(ctx context.Context, container engine.Container) error
	CanProceed() bool
	// Advance completes the stage and moves the wizard forward.
	Advance(ctx context.Context) error
	// Deactivate destroys the widgets the stage bound.
	Deactivate()
}

// base holds what every controller shares.
type base struct {
	env     *Env
	stage   wizard.StepID
	tracker *lifecycle.Tracker
}

func newBase(env *Env, stage wizard.StepID) base {
	return base{
		env:   env,
		stage: stage,
		tracker: lifecycle.NewTracker(func(p lifecycle.Phase) {
			env.Logger.Debug("step phase", map[string]any{"step": string(stage), "phase": p.String()})
		}),
	}
}

func (b *base) Stage() wizard.StepID { return b.stage }

func (b *base) Phase() lifecycle.Phase { return b.tracker.Phase() }

// Err returns the error of the last failed run.
func (b *base) Err() error { return b.tracker.Err() }

func (b *base) set(p lifecycle.Phase) {
	b.tracker.Set(p)
	b.env.Store.SetLoading(p.Busy())
}

// fail records err and surfaces it unless it is known noise. It returns the
// surfaced error, which is nil for suppressed noise.
func (b *base) fail(op string, err error) error {
	b.tracker.Fail(err)
	b.env.Store.SetLoading(false)
	surfaced := b.env.Noise.Surface(op, err)
	if surfaced != nil {
		b.env.Store.SetError(surfaced)
		b.env.Logger.Error("step failed", map[string]any{"step": string(b.stage), "op": op, "error": surfaced})
	}
	return surfaced
}

// waitForContainer runs the AcquiringContainer phase.
func (b *base) waitForContainer(ctx context.Context, c engine.Container) error {
	b.set(lifecycle.AcquiringContainer)
	if c == nil {
		return fault.Errorf(fault.ContainerUnavailable, string(b.stage)+".acquire", "no container")
	}
	return lifecycle.WaitForSurface(ctx, b.env.Scheduler, c, b.env.Policy.Poll)
}

// discard reports whether a result bound to c must be dropped because the
// container went away.
func (b *base) discard(c engine.Container) bool {
	if c.Connected() {
		return false
	}
	b.env.Logger.Debug("container detached, discarding result", map[string]any{"step": string(b.stage)})
	b.set(lifecycle.Idle)
	return true
}

// superseded reports whether a reset or a new template or data revision
// overtook the run that started from st.
func (b *base) superseded(st wizard.State) bool {
	now := b.env.Store.Snapshot()
	return now.TemplateRevision != st.TemplateRevision || now.DataRevision != st.DataRevision
}

// failOrDrop is fail for a run that may have been overtaken. A superseded
// run publishes nothing, not even its error.
func (b *base) failOrDrop(st wizard.State, op string, err error) error {
	if !b.superseded(st) {
		return b.fail(op, err)
	}
	b.env.Logger.Debug("run superseded, dropping error", map[string]any{"step": string(b.stage), "op": op, "error": err})
	b.set(lifecycle.Idle)
	return nil
}

func (b *base) isCurrent() bool {
	return b.env.Store.Snapshot().Current().ID == b.stage
}

// advance completes the active step and moves to the next one.
func (b *base) advance() error {
	if !b.isCurrent() {
		return ErrWrongStep
	}
	if !b.env.Store.CompleteAndNext() {
		return ErrNotReady
	}
	b.env.Store.ClearError()
	return nil
}

func (b *base) reset() {
	b.tracker.End()
	b.tracker.Set(lifecycle.Idle)
}
