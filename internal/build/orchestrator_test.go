package build

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/cachebuild/internal/cachemode"
	"git.home.luguber.info/inful/cachebuild/internal/diagnostics"
	"git.home.luguber.info/inful/cachebuild/internal/events"
	"git.home.luguber.info/inful/cachebuild/internal/eventstore"
	"git.home.luguber.info/inful/cachebuild/internal/execution"
	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/cachebuild/internal/provision"
	"git.home.luguber.info/inful/cachebuild/internal/remote"
	"git.home.luguber.info/inful/cachebuild/internal/remoteenv"
	helpers "git.home.luguber.info/inful/cachebuild/internal/testutil/testutils"
)

var testHosts = []string{"client-1", "client-2"}

// pipelineMarker appears in every step script and in no other command.
const pipelineMarker = "export COVFILE="

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Publish(_ context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) types() []events.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Type, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

func newTestOrchestrator(r remote.Executor) *Orchestrator {
	provider := provision.NewDAOSProvider(r, provision.DAOSProviderOptions{AdminHosts: []string{"admin-1"}})
	return NewOrchestrator(provider, provision.NewDfuseController(r), r).
		WithEnvironment(remoteenv.MapSource{
			remoteenv.VarCoverageFile: "/tmp/test.cov",
			remoteenv.VarPrefix:       "/opt/daos",
		}).
		WithIDGenerator(func() string { return "run-1" })
}

func pipelineCalls(f *helpers.FakeRemote) []helpers.RemoteCall {
	var out []helpers.RemoteCall
	for _, c := range f.Calls() {
		if strings.Contains(c.Command, pipelineMarker) {
			out = append(out, c)
		}
	}
	return out
}

func callsContaining(f *helpers.FakeRemote, sub string) []helpers.RemoteCall {
	var out []helpers.RemoteCall
	for _, c := range f.Calls() {
		if strings.Contains(c.Command, sub) {
			out = append(out, c)
		}
	}
	return out
}

func TestRun_Success(t *testing.T) {
	fake := helpers.NewFakeRemote()
	rec := helpers.NewRecorder()
	sink := &recordingSink{}

	res, err := newTestOrchestrator(fake).WithRecorder(rec).WithSink(sink).Run(context.Background(), Request{
		Scenario: "wb",
		Mode:     cachemode.WriteBack,
		Hosts:    testHosts,
	})
	require.NoError(t, err)

	assert.Equal(t, StateSucceeded, res.State)
	assert.True(t, res.Succeeded())
	assert.Equal(t, "run-1", res.RunID)
	assert.Len(t, res.Steps, 13)
	assert.Equal(t, 13, res.StepsCompleted())
	assert.Zero(t, res.FailedIndex)
	assert.Empty(t, res.Diagnostics)
	assert.True(t, strings.HasPrefix(res.MountDir, "/run/dfuse/"), res.MountDir)

	calls := pipelineCalls(fake)
	require.Len(t, calls, 13)
	for _, c := range calls {
		assert.Equal(t, testHosts, c.Hosts)
	}

	assert.Len(t, callsContaining(fake, "fusermount3 -u "+res.MountDir), 1)
	assert.Len(t, callsContaining(fake, "daos container destroy"), 1)
	assert.Len(t, callsContaining(fake, "dmg pool destroy"), 1)

	assert.Equal(t, "succeeded", rec.RunOutcomes["writeback"])
	assert.Equal(t, 1, rec.RunDurations["writeback"])
	for _, stage := range []string{StageProvision, StageMount, StagePipeline, StageTeardown} {
		assert.Equal(t, 1, rec.StageDurations[stage], stage)
	}

	types := sink.types()
	require.Len(t, types, 17)
	assert.Equal(t, events.RunStarted, types[0])
	assert.Equal(t, events.StateChanged, types[1])
	assert.Equal(t, events.StateChanged, types[2])
	assert.Equal(t, events.StepFinished, types[3])
	assert.Equal(t, events.RunFinished, types[16])
	for _, e := range sink.events {
		assert.Equal(t, "run-1", e.RunID)
	}
}

func TestRun_OrderOfRemoteWork(t *testing.T) {
	fake := helpers.NewFakeRemote()
	_, err := newTestOrchestrator(fake).Run(context.Background(), Request{Mode: cachemode.Metadata, Hosts: testHosts})
	require.NoError(t, err)

	cmds := fake.Commands()
	require.GreaterOrEqual(t, len(cmds), 8)
	assert.Contains(t, cmds[0], "dmg pool create")
	assert.Contains(t, cmds[1], "daos container create --type=POSIX")
	for i := 2; i < 6; i++ {
		assert.Contains(t, cmds[i], "daos container set-attr")
	}
	assert.Contains(t, cmds[6], "mkdir -p /run/dfuse/")
	assert.Contains(t, cmds[7], "dfuse --mountpoint=/run/dfuse/")
	assert.Contains(t, cmds[8], "python3 -m venv")

	n := len(cmds)
	assert.Contains(t, cmds[n-3], "fusermount3 -u")
	assert.Contains(t, cmds[n-2], "daos container destroy")
	assert.Contains(t, cmds[n-1], "dmg pool destroy")
}

// Scenario A: nocache, no library, unconstrained.
func TestRun_NoCacheBaseline(t *testing.T) {
	fake := helpers.NewFakeRemote()
	res, err := newTestOrchestrator(fake).Run(context.Background(), Request{Mode: cachemode.NoCache, Hosts: testHosts})
	require.NoError(t, err)

	assert.Equal(t, 30, res.Jobs)
	assert.Equal(t, 14400*time.Second, res.BuildTimeout)

	attrs := callsContaining(fake, "set-attr")
	require.Len(t, attrs, 4)
	assert.True(t, strings.HasSuffix(attrs[0].Command, cachemode.AttrDataCache+" off"), attrs[0].Command)
	for _, c := range attrs[1:] {
		assert.True(t, strings.HasSuffix(c.Command, " 0"), c.Command)
	}

	start := callsContaining(fake, "dfuse --mountpoint")
	require.Len(t, start, 1)
	assert.Contains(t, start[0].Command, "--disable-wb-cache --disable-caching")

	for _, c := range callsContaining(fake, "scons") {
		assert.Equal(t, 4*time.Hour, c.Timeout)
		assert.Contains(t, c.Command, "--jobs 30")
	}
	for _, c := range callsContaining(fake, "daos filesystem query") {
		assert.Equal(t, 10*time.Minute, c.Timeout)
	}
}

// Scenario B: writethrough with libioil.so on constrained hosts.
func TestRun_WriteThroughIOILConstrained(t *testing.T) {
	fake := helpers.NewFakeRemote()
	res, err := newTestOrchestrator(fake).Run(context.Background(), Request{
		Mode:        cachemode.WriteThrough,
		Library:     cachemode.IOIL,
		Hosts:       testHosts,
		Constrained: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 12, res.Jobs)
	assert.Equal(t, 7200*time.Second, res.BuildTimeout)
	assert.True(t, strings.HasPrefix(res.MountDir, "/run/dfuse_vm/"), res.MountDir)

	for _, c := range pipelineCalls(fake) {
		assert.Contains(t, c.Command, "export D_IL_MAX_EQ=0;")
		assert.Contains(t, c.Command, "export LD_PRELOAD=/opt/daos/lib64/libioil.so;")
	}
	for _, c := range callsContaining(fake, "scons") {
		assert.Contains(t, c.Command, "--jobs 12")
		assert.Equal(t, 2*time.Hour, c.Timeout)
	}
}

// Scenario C: writethrough with libpil4dfs.so on unconstrained hosts.
func TestRun_WriteThroughPIL4DFSUnconstrained(t *testing.T) {
	fake := helpers.NewFakeRemote()
	res, err := newTestOrchestrator(fake).Run(context.Background(), Request{
		Mode:    cachemode.WriteThrough,
		Library: cachemode.PIL4DFS,
		Hosts:   testHosts,
	})
	require.NoError(t, err)

	assert.Equal(t, 30, res.Jobs)
	for _, c := range pipelineCalls(fake) {
		assert.Contains(t, c.Command, "export D_IL_MAX_EQ=0;")
		assert.Contains(t, c.Command, "export D_IL_ENFORCE_EXEC_ENV=1;")
		assert.Contains(t, c.Command, "export D_IL_COMPATIBLE=1;")
	}
}

// Scenario D: the dependency build times out.
func TestRun_DependencyBuildTimesOut(t *testing.T) {
	fake := helpers.NewFakeRemote().Timeout("--build-deps=only")
	rec := helpers.NewRecorder()

	res, err := newTestOrchestrator(fake).WithRecorder(rec).Run(context.Background(), Request{
		Mode:  cachemode.WriteBack,
		Hosts: testHosts,
	})
	require.Error(t, err)

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, 7, res.FailedIndex)
	assert.Equal(t, "build-deps", res.FailedStep)
	assert.Equal(t, execution.TimedOut, res.FailedOutcome.Kind)
	assert.Equal(t, 6, res.StepsCompleted())
	assert.Len(t, pipelineCalls(fake), 7)
	assert.Zero(t, fake.CountContaining("daos filesystem query"))

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, diagnostics.KindProcessSnapshot, res.Diagnostics[0].Kind)
	assert.Equal(t, 1, fake.CountContaining("ps auwx"))
	assert.Zero(t, fake.CountContaining("config.log"))

	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryTimeout))
	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, "Timeout building over dfuse in mode writeback", classified.Message())
	assert.True(t, classified.IsFatal())
	assert.Equal(t, classified.Message(), res.Message)

	assert.Equal(t, "failed", rec.RunOutcomes["writeback"])
	assert.Equal(t, 1, fake.CountContaining("dmg pool destroy"))
}

func TestRun_DependencyBuildTimesOutWithLibrary(t *testing.T) {
	fake := helpers.NewFakeRemote().Timeout("--build-deps=only")

	_, err := newTestOrchestrator(fake).Run(context.Background(), Request{
		Mode:        cachemode.WriteThrough,
		Library:     cachemode.IOIL,
		Hosts:       testHosts,
		Constrained: true,
	})
	require.Error(t, err)
	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, "Timeout building over dfuse with il libioil.so in mode writethrough", classified.Message())
}

func TestRun_BuildStepFunctionalFailure(t *testing.T) {
	fake := helpers.NewFakeRemote().Fail("install --implicit-deps-unchanged", 2, "scons: *** error")

	res, err := newTestOrchestrator(fake).Run(context.Background(), Request{
		Mode:    cachemode.NoCache,
		Library: cachemode.PIL4DFS,
		Hosts:   testHosts,
	})
	require.Error(t, err)

	assert.Equal(t, 12, res.FailedIndex)
	assert.Equal(t, execution.FunctionalFailure, res.FailedOutcome.Kind)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, diagnostics.KindConfigLog, res.Diagnostics[0].Kind)
	assert.Equal(t, "cat "+res.MountDir+"/daos/config.log", res.Diagnostics[0].Command)
	assert.Zero(t, fake.CountContaining("ps auwx"))

	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryBuild))
	assert.Contains(t, err.Error(), "Failure to build over dfuse with il libpil4dfs.so in mode nocache")
}

func TestRun_NonBuildFailureSkipsDiagnostics(t *testing.T) {
	fake := helpers.NewFakeRemote().Fail("daos filesystem evict", 1, "")

	res, err := newTestOrchestrator(fake).Run(context.Background(), Request{Mode: cachemode.Data, Hosts: testHosts})
	require.Error(t, err)

	assert.Equal(t, 9, res.FailedIndex)
	assert.Empty(t, res.Diagnostics)
	assert.Len(t, pipelineCalls(fake), 9)
}

// nthFailRemote fails the nth pipeline step and passes everything else.
type nthFailRemote struct {
	*helpers.FakeRemote
	mu   sync.Mutex
	n    int
	seen int
}

func (r *nthFailRemote) Run(ctx context.Context, hosts []string, command string, timeout time.Duration) (remote.Result, error) {
	res, err := r.FakeRemote.Run(ctx, hosts, command, timeout)
	if !strings.Contains(command, pipelineMarker) {
		return res, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen++
	if r.seen == r.n {
		return helpers.FailResult(hosts, 1, "boom"), nil
	}
	return res, err
}

func TestRun_NeverExecutesStepAfterFailure(t *testing.T) {
	for n := 1; n <= 13; n++ {
		fake := &nthFailRemote{FakeRemote: helpers.NewFakeRemote(), n: n}
		res, err := newTestOrchestrator(fake).Run(context.Background(), Request{Mode: cachemode.WriteBack, Hosts: testHosts})

		require.Error(t, err, "step %d", n)
		assert.Equal(t, n, res.FailedIndex)
		assert.Len(t, res.Steps, n)
		assert.Len(t, pipelineCalls(fake.FakeRemote), n, "step %d", n)
	}
}

func TestRun_KeepOnFailure(t *testing.T) {
	fake := helpers.NewFakeRemote().Fail("git clone", 128, "fatal: repository not found")

	res, err := newTestOrchestrator(fake).Run(context.Background(), Request{
		Mode:          cachemode.WriteBack,
		Hosts:         testHosts,
		KeepOnFailure: true,
	})
	require.Error(t, err)
	assert.Equal(t, 2, res.FailedIndex)
	assert.NotEmpty(t, res.Pool)
	assert.Zero(t, fake.CountContaining("fusermount3"))
	assert.Zero(t, fake.CountContaining("destroy"))
}

func TestRun_ProvisioningFailures(t *testing.T) {
	t.Run("pool", func(t *testing.T) {
		fake := helpers.NewFakeRemote().Fail("dmg pool create", 1, "DER_NOSPACE")
		res, err := newTestOrchestrator(fake).Run(context.Background(), Request{Mode: cachemode.WriteBack, Hosts: testHosts})

		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryProvision))
		assert.Equal(t, StateFailed, res.State)
		assert.Empty(t, res.Steps)
		assert.Zero(t, fake.CountContaining("destroy"))
	})

	t.Run("container", func(t *testing.T) {
		fake := helpers.NewFakeRemote().Fail("daos container create", 1, "")
		_, err := newTestOrchestrator(fake).Run(context.Background(), Request{Mode: cachemode.WriteBack, Hosts: testHosts})

		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryProvision))
		assert.Zero(t, fake.CountContaining("daos container destroy"))
		assert.Equal(t, 1, fake.CountContaining("dmg pool destroy"))
	})

	t.Run("client start", func(t *testing.T) {
		fake := helpers.NewFakeRemote().Fail("dfuse --mountpoint", 1, "fuse: device not found")
		res, err := newTestOrchestrator(fake).Run(context.Background(), Request{Mode: cachemode.WriteBack, Hosts: testHosts})

		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryMount))
		assert.Empty(t, res.Steps)
		assert.Zero(t, fake.CountContaining("fusermount3"))
		assert.Equal(t, 1, fake.CountContaining("daos container destroy"))
		assert.Equal(t, 1, fake.CountContaining("dmg pool destroy"))
	})

	t.Run("partial client start", func(t *testing.T) {
		fake := helpers.NewFakeRemote().FailOn("dfuse --mountpoint", []string{"client-2"}, 1, "fuse: device not found")
		_, err := newTestOrchestrator(fake).Run(context.Background(), Request{Mode: cachemode.WriteBack, Hosts: testHosts})

		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryMount))
		calls := fake.Calls()
		unmount, destroy := -1, -1
		for i, c := range calls {
			switch {
			case strings.Contains(c.Command, "fusermount3"):
				unmount = i
				assert.Equal(t, []string{"client-1"}, c.Hosts)
			case strings.Contains(c.Command, "daos container destroy"):
				destroy = i
			}
		}
		require.NotEqual(t, -1, unmount, "mounted host is unmounted")
		assert.Less(t, unmount, destroy, "unmount precedes container destroy")
	})
}

func TestRun_MissingEnvironment(t *testing.T) {
	fake := helpers.NewFakeRemote()
	res, err := newTestOrchestrator(fake).
		WithEnvironment(remoteenv.MapSource{}).
		Run(context.Background(), Request{Mode: cachemode.WriteBack, Hosts: testHosts})

	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryEnvironment))
	assert.Empty(t, res.Steps)
	assert.Equal(t, 1, fake.CountContaining("fusermount3"))
}

func TestRun_InvalidRequests(t *testing.T) {
	fake := helpers.NewFakeRemote()
	o := newTestOrchestrator(fake)

	res, err := o.Run(context.Background(), Request{Mode: "turbo", Hosts: testHosts})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	assert.Equal(t, StateFailed, res.State)

	_, err = o.Run(context.Background(), Request{Mode: cachemode.WriteBack})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	assert.Empty(t, fake.Calls())
}

type stubResolver struct {
	rev string
	err error
}

func (s stubResolver) Resolve(context.Context, string, string) (string, error) { return s.rev, s.err }

func TestRun_Revision(t *testing.T) {
	res, err := newTestOrchestrator(helpers.NewFakeRemote()).
		WithRevisionResolver(stubResolver{rev: "4f2c9e1"}).
		Run(context.Background(), Request{Mode: cachemode.WriteBack, Hosts: testHosts})
	require.NoError(t, err)
	assert.Equal(t, "4f2c9e1", res.Revision)

	res, err = newTestOrchestrator(helpers.NewFakeRemote()).
		WithRevisionResolver(stubResolver{err: errors.New("network unreachable")}).
		Run(context.Background(), Request{Mode: cachemode.WriteBack, Hosts: testHosts})
	require.NoError(t, err, "revision lookup is best effort")
	assert.Empty(t, res.Revision)
}

func TestRun_SourceURL(t *testing.T) {
	fake := helpers.NewFakeRemote()
	o := newTestOrchestrator(fake).WithSourceURL("https://git.example.org/daos.git")
	_, err := o.Run(context.Background(), Request{Mode: cachemode.WriteBack, Hosts: testHosts})
	require.NoError(t, err)

	assert.Equal(t, "https://git.example.org/daos.git", o.SourceURL())
	assert.Equal(t, 1, fake.CountContaining("git clone https://git.example.org/daos.git "))
}

func TestRun_FeedsHistoryProjection(t *testing.T) {
	projection := eventstore.NewRunHistoryProjection(nil, 10)
	fake := helpers.NewFakeRemote().Timeout("--build-deps=only")

	_, err := newTestOrchestrator(fake).WithSink(projection).Run(context.Background(), Request{
		Scenario: "wb",
		Mode:     cachemode.WriteBack,
		Hosts:    testHosts,
	})
	require.Error(t, err)

	history := projection.History()
	require.Len(t, history, 1)
	s := history[0]
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, "wb", s.Scenario)
	assert.Equal(t, string(StateFailed), s.State)
	assert.Equal(t, 6, s.StepsCompleted)
	assert.Equal(t, 7, s.FailedIndex)
	assert.Equal(t, "timed_out", s.Outcome)
	assert.Equal(t, 30, s.Jobs)
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		kind execution.Kind
		mode cachemode.Mode
		lib  cachemode.InterceptionLibrary
		want string
	}{
		{execution.TimedOut, cachemode.NoCache, cachemode.NoLibrary, "Timeout building over dfuse in mode nocache"},
		{execution.FunctionalFailure, cachemode.Data, cachemode.NoLibrary, "Failure to build over dfuse in mode data"},
		{execution.FunctionalFailure, cachemode.WriteThrough, cachemode.IOIL, "Failure to build over dfuse with il libioil.so in mode writethrough"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FailureMessage(tt.kind, tt.mode, tt.lib))
		})
	}
}
