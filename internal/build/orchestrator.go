package build

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/cachebuild/internal/cachemode"
	"git.home.luguber.info/inful/cachebuild/internal/diagnostics"
	"git.home.luguber.info/inful/cachebuild/internal/events"
	"git.home.luguber.info/inful/cachebuild/internal/execution"
	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/cachebuild/internal/logfields"
	"git.home.luguber.info/inful/cachebuild/internal/metrics"
	"git.home.luguber.info/inful/cachebuild/internal/observability"
	"git.home.luguber.info/inful/cachebuild/internal/pipeline"
	"git.home.luguber.info/inful/cachebuild/internal/provision"
	"git.home.luguber.info/inful/cachebuild/internal/remote"
	"git.home.luguber.info/inful/cachebuild/internal/remoteenv"
)

// Stage names used for logging and stage duration metrics.
const (
	StageProvision = "provision"
	StageMount     = "mount"
	StagePipeline  = "pipeline"
	StageTeardown  = "teardown"
)

// TeardownTimeout bounds the whole teardown sequence.
const TeardownTimeout = 5 * time.Minute

// RevisionResolver maps a source ref to a commit.
type RevisionResolver interface {
	Resolve(ctx context.Context, url, ref string) (string, error)
}

// Orchestrator is the standard Runner.
type Orchestrator struct {
	provider   provision.Provider
	controller provision.Controller
	catalog    cachemode.Catalog
	env        *remoteenv.Builder
	assembler  *pipeline.Assembler
	executor   *execution.StepExecutor
	collector  *diagnostics.Collector

	// Optional dependencies
	recorder metrics.Recorder
	sink     events.Sink
	resolver RevisionResolver
	now      func() time.Time
	newID    func() string
}

// NewOrchestrator wires the run pipeline over one remote executor. The process
// environment is read through remoteenv.OSSource and the default source URL is
// cloned unless overridden.
func NewOrchestrator(provider provision.Provider, controller provision.Controller, r remote.Executor) *Orchestrator {
	return &Orchestrator{
		provider:   provider,
		controller: controller,
		env:        remoteenv.NewBuilder(),
		assembler:  pipeline.NewAssembler(""),
		executor:   execution.NewStepExecutor(r),
		collector:  diagnostics.NewCollector(r),
		recorder:   metrics.NoopRecorder{},
		sink:       events.NopSink{},
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// WithRecorder sets the metrics recorder for the run and its steps.
func (o *Orchestrator) WithRecorder(r metrics.Recorder) *Orchestrator {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	o.recorder = r
	o.executor.WithRecorder(r)
	return o
}

// WithSink sets where lifecycle events are published.
func (o *Orchestrator) WithSink(s events.Sink) *Orchestrator {
	if s == nil {
		s = events.NopSink{}
	}
	o.sink = s
	return o
}

// WithEnvironment replaces the process environment source.
func (o *Orchestrator) WithEnvironment(src remoteenv.Source) *Orchestrator {
	o.env = &remoteenv.Builder{Source: src}
	return o
}

// WithSourceURL sets the repository cloned by the pipeline.
func (o *Orchestrator) WithSourceURL(url string) *Orchestrator {
	o.assembler = pipeline.NewAssembler(url)
	return o
}

// WithRevisionResolver enables revision lookup before each run.
func (o *Orchestrator) WithRevisionResolver(r RevisionResolver) *Orchestrator {
	o.resolver = r
	return o
}

// WithClock overrides time.Now (for testing).
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	o.executor.WithClock(now)
	return o
}

// WithIDGenerator overrides run id generation (for testing).
func (o *Orchestrator) WithIDGenerator(gen func() string) *Orchestrator {
	o.newID = gen
	return o
}

// SourceURL returns the repository the pipeline clones.
func (o *Orchestrator) SourceURL() string { return o.assembler.SourceURL }

// run carries the mutable state of one Run call.
type run struct {
	req     Request
	result  *RunResult
	profile cachemode.Profile
	pool    *provision.Pool
	cont    *provision.Container
	handle  *provision.ClientHandle
}

// Run executes one validation run. The returned result is never nil. The error is
// nil only when every step succeeded.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*RunResult, error) {
	start := o.now()
	if req.RunID == "" {
		req.RunID = o.newID()
	}
	r := &run{req: req, result: &RunResult{
		RunID:     req.RunID,
		Scenario:  req.Scenario,
		Mode:      req.Mode,
		Library:   req.Library,
		State:     StateIdle,
		StartedAt: start,
	}}

	ctx = observability.WithRunID(ctx, req.RunID)
	ctx = observability.WithMode(ctx, string(req.Mode))
	if req.Library.Selected() {
		ctx = observability.WithLibrary(ctx, string(req.Library))
	}
	if req.Scenario != "" {
		ctx = observability.WithScenario(ctx, req.Scenario)
	}

	err := o.execute(ctx, r)
	o.teardown(ctx, r, err != nil)
	return o.finish(ctx, r, err)
}

func (o *Orchestrator) execute(ctx context.Context, r *run) error {
	req := r.req
	res := r.result

	profile, err := o.catalog.Resolve(req.Mode, req.Library)
	if err != nil {
		return err
	}
	r.profile = profile
	if len(req.Hosts) == 0 {
		return ferrors.ValidationError("no client hosts").Build()
	}

	res.Jobs = pipeline.JobCount(req.Constrained, req.Library)
	res.BuildTimeout = pipeline.BuildTimeout(profile)
	res.Revision = o.resolveRevision(ctx, req.SourceRef)

	observability.InfoContext(ctx, "Starting run",
		logfields.Hosts(req.Hosts),
		logfields.Jobs(res.Jobs),
		logfields.Timeout(res.BuildTimeout),
		logfields.Revision(res.Revision))
	o.publish(ctx, events.Event{
		Type:     events.RunStarted,
		Scenario: req.Scenario,
		Mode:     string(req.Mode),
		Library:  string(req.Library),
		Revision: res.Revision,
		Jobs:     res.Jobs,
	})

	o.transition(ctx, res, StatePreparing)
	if err := o.provision(ctx, r); err != nil {
		return err
	}
	if err := o.mount(ctx, r); err != nil {
		return err
	}

	env, err := o.env.Build(remoteenv.Request{
		MountDir:    r.handle.MountDir,
		Mode:        req.Mode,
		Library:     req.Library,
		Constrained: req.Constrained,
		Prefix:      req.Prefix,
	})
	if err != nil {
		return err
	}
	plan := o.assembler.Assemble(pipeline.Context{
		MountDir: r.handle.MountDir,
		Jobs:     res.Jobs,
		Profile:  profile,
	}, env)

	o.transition(ctx, res, StateExecuting)
	return o.executePlan(ctx, r, plan)
}

func (o *Orchestrator) resolveRevision(ctx context.Context, ref string) string {
	if o.resolver == nil {
		return ""
	}
	rev, err := o.resolver.Resolve(ctx, o.assembler.SourceURL, ref)
	if err != nil {
		observability.WarnContext(ctx, "Could not resolve source revision", logfields.Error(err))
		return ""
	}
	return rev
}

func (o *Orchestrator) provision(ctx context.Context, r *run) error {
	stageStart := o.now()
	ctx = observability.WithStage(ctx, StageProvision)
	defer func() { o.recorder.ObserveStageDuration(StageProvision, o.now().Sub(stageStart)) }()

	pool, err := o.provider.CreatePool(ctx)
	if err != nil {
		return err
	}
	r.pool = &pool
	r.result.Pool = pool.Label

	cont, err := o.provider.CreateContainer(ctx, pool)
	if err != nil {
		return err
	}
	r.cont = &cont
	r.result.Container = cont.Label

	attrs := r.profile.Attributes()
	if err := o.provider.SetAttributes(ctx, cont, attrs); err != nil {
		return err
	}
	observability.InfoContext(ctx, "Container provisioned",
		logfields.Pool(pool.Label),
		logfields.Container(cont.Label),
		slog.Any("attributes", r.profile.AttributeMap()))
	return nil
}

func (o *Orchestrator) mount(ctx context.Context, r *run) error {
	stageStart := o.now()
	ctx = observability.WithStage(ctx, StageMount)
	defer func() { o.recorder.ObserveStageDuration(StageMount, o.now().Sub(stageStart)) }()

	hint := r.req.NamespaceHint
	if hint == "" {
		hint = provision.NamespaceHint(r.req.Constrained)
	}
	handle, err := o.controller.Mount(r.req.Hosts, hint)
	if err != nil {
		return err
	}
	handle.DisableWriteback = r.profile.DisableWriteback()
	handle.DisableCaching = r.profile.DisableCaching()
	r.handle = handle
	r.result.MountDir = handle.MountDir

	return o.controller.Start(ctx, handle, *r.pool, *r.cont)
}

// executePlan runs steps strictly in order and stops at the first step that does
// not succeed.
func (o *Orchestrator) executePlan(ctx context.Context, r *run, plan pipeline.Plan) error {
	stageStart := o.now()
	ctx = observability.WithStage(ctx, StagePipeline)
	defer func() { o.recorder.ObserveStageDuration(StagePipeline, o.now().Sub(stageStart)) }()

	res := r.result
	for _, step := range plan.Steps {
		outcome := o.executor.Execute(ctx, step, r.req.Hosts)
		res.Steps = append(res.Steps, StepRecord{
			Index:   step.Index,
			Name:    step.Name,
			IsBuild: step.IsBuild,
			Timeout: step.Timeout,
			Outcome: outcome,
		})
		o.publish(ctx, events.Event{
			Type:      events.StepFinished,
			StepIndex: step.Index,
			Step:      step.Name,
			Outcome:   outcome.Kind.String(),
			ElapsedMS: outcome.Elapsed.Milliseconds(),
			Message:   outcome.Detail,
		})
		if outcome.Succeeded() {
			continue
		}

		res.FailedIndex = step.Index
		res.FailedStep = step.Name
		res.FailedOutcome = outcome
		res.Diagnostics = o.collector.Diagnose(ctx, step, outcome, plan.BuildDir, r.req.Hosts)
		return stepFailure(step, outcome, r.req.Mode, r.req.Library)
	}
	return nil
}

// teardown releases resources in reverse order of acquisition. Failures are
// logged and never change the run verdict.
func (o *Orchestrator) teardown(ctx context.Context, r *run, failed bool) {
	if r.pool == nil {
		return
	}
	if failed && r.req.KeepOnFailure {
		observability.WarnContext(ctx, "Keeping resources of failed run",
			logfields.Pool(r.result.Pool),
			logfields.Container(r.result.Container),
			logfields.MountDir(r.result.MountDir))
		return
	}

	stageStart := o.now()
	ctx = observability.WithStage(ctx, StageTeardown)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), TeardownTimeout)
	defer cancel()
	defer func() { o.recorder.ObserveStageDuration(StageTeardown, o.now().Sub(stageStart)) }()

	if r.handle != nil {
		if err := o.controller.Stop(ctx, r.handle); err != nil {
			observability.WarnContext(ctx, "Failed to stop filesystem client", logfields.Error(err))
		}
	}
	if r.cont != nil {
		if err := o.provider.DestroyContainer(ctx, *r.cont); err != nil {
			observability.WarnContext(ctx, "Failed to destroy container", logfields.Error(err))
		}
	}
	if err := o.provider.DestroyPool(ctx, *r.pool); err != nil {
		observability.WarnContext(ctx, "Failed to destroy pool", logfields.Error(err))
	}
}

func (o *Orchestrator) finish(ctx context.Context, r *run, err error) (*RunResult, error) {
	res := r.result
	res.CompletedAt = o.now()
	res.Duration = res.CompletedAt.Sub(res.StartedAt)

	final := StateSucceeded
	if err != nil {
		final = StateFailed
		if res.FailedIndex > 0 {
			res.Message = FailureMessage(res.FailedOutcome.Kind, res.Mode, res.Library)
		} else {
			res.Message = err.Error()
		}
	}
	o.transition(ctx, res, final)

	o.recorder.ObserveRunDuration(string(res.Mode), res.Duration)
	o.recorder.IncRunOutcome(string(res.Mode), string(final))
	o.publish(ctx, events.Event{
		Type:      events.RunFinished,
		State:     string(final),
		StepIndex: res.FailedIndex,
		Step:      res.FailedStep,
		ElapsedMS: res.Duration.Milliseconds(),
		Message:   res.Message,
	})

	attrs := []slog.Attr{
		logfields.Outcome(string(final)),
		logfields.Elapsed(res.Duration),
		slog.Int("steps_completed", res.StepsCompleted()),
	}
	if err != nil {
		observability.ErrorContext(ctx, "Run failed", append(attrs, logfields.StepIndex(res.FailedIndex), logfields.Error(err))...)
		return res, err
	}
	observability.InfoContext(ctx, "Run succeeded", attrs...)
	return res, nil
}

func (o *Orchestrator) transition(ctx context.Context, res *RunResult, next State) {
	prev := res.State
	res.State = next
	observability.DebugContext(ctx, "State transition",
		slog.String("from", string(prev)),
		slog.String("to", string(next)))
	if next.IsTerminal() {
		return
	}
	o.publish(ctx, events.Event{Type: events.StateChanged, State: string(next)})
}

// publish fills run identity into e and forwards it to the sink. Sink errors are
// logged only.
func (o *Orchestrator) publish(ctx context.Context, e events.Event) {
	e.RunID = observability.GetContext(ctx).RunID
	e.Time = o.now()
	if err := o.sink.Publish(ctx, e); err != nil {
		observability.WarnContext(ctx, "Failed to publish event",
			slog.String("event_type", string(e.Type)),
			logfields.Error(err))
	}
}

var _ Runner = (*Orchestrator)(nil)
