package remoteenv

import (
	"path"

	"git.home.luguber.info/inful/cachebuild/internal/cachemode"
	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
)

// Variable names read from the invoking environment or written to the remote one.
const (
	VarCoverageFile     = "COVFILE"
	VarPrefix           = "DAOS_PREFIX"
	VarMaxEventQueues   = "D_IL_MAX_EQ"
	VarPreload          = "LD_PRELOAD"
	VarLogFile          = "D_LOG_FILE"
	VarDebugMask        = "DD_MASK"
	VarDebugSubsys      = "DD_SUBSYS"
	VarLogMask          = "D_LOG_MASK"
	VarEnforceExecEnv   = "D_IL_ENFORCE_EXEC_ENV"
	VarCompatible       = "D_IL_COMPATIBLE"
	VarPath             = "PATH"
	VarVirtualEnv       = "VIRTUAL_ENV"
	interceptionLogFile = "/var/tmp/daos_testing/daos-il.log"
)

// Request describes the run the environment is built for.
type Request struct {
	MountDir    string
	Mode        cachemode.Mode
	Library     cachemode.InterceptionLibrary
	Constrained bool
	// Prefix is the client installation prefix; falls back to DAOS_PREFIX.
	Prefix string
}

// Builder assembles remote environments from a process environment Source.
type Builder struct {
	Source Source
}

// NewBuilder returns a Builder reading the real process environment.
func NewBuilder() *Builder {
	return &Builder{Source: OSSource{}}
}

// VenvDir is the virtual environment created inside the mount.
func VenvDir(mountDir string) string {
	return path.Join(mountDir, "venv")
}

// Build returns the environment for req. The coverage file variable is mandatory
// for every mode.
func (b *Builder) Build(req Request) (Env, error) {
	var env Env

	if req.Constrained {
		env.Set(VarMaxEventQueues, "0")
	}

	venv := VenvDir(req.MountDir)
	env.Set(VarPath, path.Join(venv, "bin")+":$PATH")
	env.Set(VarVirtualEnv, venv)

	covfile, ok := b.Source.LookupEnv(VarCoverageFile)
	if !ok {
		return Env{}, ferrors.MissingEnvironment(VarCoverageFile).
			WithContext("mode", string(req.Mode)).
			Build()
	}
	env.Set(VarCoverageFile, covfile)

	if !req.Library.Selected() {
		return env, nil
	}

	prefix := req.Prefix
	if prefix == "" {
		prefix, _ = b.Source.LookupEnv(VarPrefix)
	}
	if prefix == "" {
		return Env{}, ferrors.MissingEnvironment(VarPrefix).
			WithContext("library", string(req.Library)).
			Build()
	}

	env.Set(VarPreload, path.Join(prefix, "lib64", string(req.Library)))
	env.Set(VarLogFile, interceptionLogFile)
	env.Set(VarDebugMask, "all")
	env.Set(VarDebugSubsys, "all")
	env.Set(VarLogMask, "WARN,IL=WARN")

	if req.Library.IsPIL4DFS() {
		env.Set(VarEnforceExecEnv, "1")
		env.Set(VarCompatible, "1")
		// pil4dfs is unstable with more event queues even on unconstrained hosts.
		env.Set(VarMaxEventQueues, "0")
	}

	return env, nil
}
