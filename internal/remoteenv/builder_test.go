package remoteenv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/cachebuild/internal/cachemode"
	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
)

func newTestBuilder() *Builder {
	return &Builder{Source: MapSource{
		VarCoverageFile: "/tmp/test.cov",
		VarPrefix:       "/opt/daos",
	}}
}

func TestBuild_Baseline(t *testing.T) {
	env, err := newTestBuilder().Build(Request{MountDir: "/mnt/dfuse", Mode: cachemode.WriteBack})
	require.NoError(t, err)

	assert.Equal(t, []string{VarPath, VarVirtualEnv, VarCoverageFile}, env.Keys())
	assert.Equal(t, map[string]string{
		VarPath:         "/mnt/dfuse/venv/bin:$PATH",
		VarVirtualEnv:   "/mnt/dfuse/venv",
		VarCoverageFile: "/tmp/test.cov",
	}, env.Map())
}

func TestBuild_MissingCoverageFile(t *testing.T) {
	b := &Builder{Source: MapSource{VarPrefix: "/opt/daos"}}

	for _, mode := range cachemode.Modes() {
		for _, lib := range []cachemode.InterceptionLibrary{cachemode.NoLibrary, cachemode.IOIL, cachemode.PIL4DFS} {
			_, err := b.Build(Request{MountDir: "/mnt", Mode: mode, Library: lib, Constrained: true})
			require.Error(t, err, "mode %s lib %q", mode, lib)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryEnvironment))
		}
	}
}

func TestBuild_CoverageFileCopiedVerbatim(t *testing.T) {
	b := &Builder{Source: MapSource{VarCoverageFile: "  /odd path/x.cov "}}
	env, err := b.Build(Request{MountDir: "/mnt"})
	require.NoError(t, err)

	v, _ := env.Get(VarCoverageFile)
	assert.Equal(t, "  /odd path/x.cov ", v)
}

func TestBuild_Constrained(t *testing.T) {
	env, err := newTestBuilder().Build(Request{MountDir: "/mnt", Constrained: true})
	require.NoError(t, err)

	v, ok := env.Get(VarMaxEventQueues)
	require.True(t, ok)
	assert.Equal(t, "0", v)
	assert.Equal(t, VarMaxEventQueues, env.Keys()[0])
}

func TestBuild_InterceptionLibrary(t *testing.T) {
	env, err := newTestBuilder().Build(Request{MountDir: "/mnt", Library: cachemode.IOIL})
	require.NoError(t, err)

	m := env.Map()
	assert.Equal(t, "/opt/daos/lib64/libioil.so", m[VarPreload])
	assert.Equal(t, "/var/tmp/daos_testing/daos-il.log", m[VarLogFile])
	assert.Equal(t, "all", m[VarDebugMask])
	assert.Equal(t, "all", m[VarDebugSubsys])
	assert.Equal(t, "WARN,IL=WARN", m[VarLogMask])
	assert.NotContains(t, m, VarEnforceExecEnv)
	assert.NotContains(t, m, VarCompatible)
	assert.NotContains(t, m, VarMaxEventQueues)
}

func TestBuild_PrefixFromRequestWins(t *testing.T) {
	env, err := newTestBuilder().Build(Request{MountDir: "/mnt", Library: cachemode.IOIL, Prefix: "/usr"})
	require.NoError(t, err)

	v, _ := env.Get(VarPreload)
	assert.Equal(t, "/usr/lib64/libioil.so", v)
}

func TestBuild_MissingPrefix(t *testing.T) {
	b := &Builder{Source: MapSource{VarCoverageFile: "/tmp/c"}}

	_, err := b.Build(Request{MountDir: "/mnt", Library: cachemode.IOIL})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryEnvironment))

	_, err = b.Build(Request{MountDir: "/mnt"})
	assert.NoError(t, err, "prefix is only needed when a library is selected")
}

func TestBuild_PIL4DFSForcesQueueCap(t *testing.T) {
	for _, constrained := range []bool{false, true} {
		env, err := newTestBuilder().Build(Request{
			MountDir:    "/mnt",
			Mode:        cachemode.WriteThrough,
			Library:     cachemode.PIL4DFS,
			Constrained: constrained,
		})
		require.NoError(t, err)

		m := env.Map()
		assert.Equal(t, "0", m[VarMaxEventQueues], "constrained=%v", constrained)
		assert.Equal(t, "1", m[VarEnforceExecEnv])
		assert.Equal(t, "1", m[VarCompatible])
	}
}

func TestBuild_PIL4DFSConstrainedKeepsQueueCapPosition(t *testing.T) {
	env, err := newTestBuilder().Build(Request{MountDir: "/mnt", Library: cachemode.PIL4DFS, Constrained: true})
	require.NoError(t, err)

	keys := env.Keys()
	assert.Equal(t, VarMaxEventQueues, keys[0])
	count := 0
	for _, k := range keys {
		if k == VarMaxEventQueues {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestEnvExports(t *testing.T) {
	var env Env
	env.Set("A", "1")
	env.Set("PATH", "/x/bin:$PATH")
	env.Set("A", "2")

	assert.Equal(t, "export A=2;export PATH=/x/bin:$PATH", env.Exports())
	assert.Equal(t, 2, env.Len())
	assert.Equal(t, "", Env{}.Exports())
}
