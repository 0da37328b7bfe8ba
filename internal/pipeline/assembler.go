package pipeline

import (
	"fmt"
	"path"
	"time"

	"git.home.luguber.info/inful/cachebuild/internal/cachemode"
	"git.home.luguber.info/inful/cachebuild/internal/remoteenv"
)

const (
	// DefaultSourceURL is the repository built over the mount.
	DefaultSourceURL = "https://github.com/daos-stack/daos.git"

	// StepTimeout applies to every non-build step.
	StepTimeout = 10 * time.Minute
	// BaseBuildTimeout is scaled by the profile's build time multiplier.
	BaseBuildTimeout = 60 * time.Minute
)

// Step names, in execution order.
const (
	StepVenv            = "venv"
	StepClone           = "clone"
	StepSubmoduleInit   = "submodule-init"
	StepSubmoduleUpdate = "submodule-update"
	StepPipUpgrade      = "pip-upgrade"
	StepRequirements    = "requirements"
	StepBuildDeps       = "build-deps"
	StepQueryPreEvict   = "query-pre-evict"
	StepEvict           = "evict"
	StepQueryPostEvict  = "query-post-evict"
	StepBuild           = "build"
	StepInstall         = "install"
	StepQueryFinal      = "query-final"
)

// StepCount is the length of every assembled plan.
const StepCount = 13

// Context is the per-run input to the assembler.
type Context struct {
	MountDir string
	// BuildDir defaults to <MountDir>/daos.
	BuildDir string
	Jobs     int
	Profile  cachemode.Profile
}

// Assembler produces the ordered step list.
type Assembler struct {
	SourceURL string
}

// NewAssembler returns an Assembler cloning sourceURL, or DefaultSourceURL when empty.
func NewAssembler(sourceURL string) *Assembler {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	return &Assembler{SourceURL: sourceURL}
}

// BuildDir returns the checkout directory for a mount.
func BuildDir(mountDir string) string {
	return path.Join(mountDir, "daos")
}

// BuildTimeout returns the window allotted to each build step under profile.
func BuildTimeout(profile cachemode.Profile) time.Duration {
	return BaseBuildTimeout * time.Duration(profile.BuildTimeMultiplier())
}

// Assemble returns the StepCount-step plan for ctx, each step prefixed with env.
func (a *Assembler) Assemble(ctx Context, env remoteenv.Env) Plan {
	buildDir := ctx.BuildDir
	if buildDir == "" {
		buildDir = BuildDir(ctx.MountDir)
	}
	sourceURL := a.SourceURL
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	mount := ctx.MountDir
	jobs := ctx.Jobs

	type command struct {
		name    string
		command string
		build   bool
	}
	commands := []command{
		{StepVenv, fmt.Sprintf("python3 -m venv %s", remoteenv.VenvDir(mount)), false},
		{StepClone, fmt.Sprintf("git clone %s %s", sourceURL, buildDir), false},
		{StepSubmoduleInit, fmt.Sprintf("git -C %s submodule init", buildDir), false},
		{StepSubmoduleUpdate, fmt.Sprintf("git -C %s submodule update", buildDir), false},
		{StepPipUpgrade, "python3 -m pip install pip --upgrade", false},
		{StepRequirements, fmt.Sprintf("python3 -m pip install -r %s/requirements-build.txt", buildDir), false},
		{StepBuildDeps, fmt.Sprintf("scons -C %s --jobs %d --build-deps=only", buildDir, jobs), true},
		{StepQueryPreEvict, fmt.Sprintf("daos filesystem query %s", mount), false},
		{StepEvict, fmt.Sprintf("daos filesystem evict %s", buildDir), false},
		{StepQueryPostEvict, fmt.Sprintf("daos filesystem query %s", mount), false},
		{StepBuild, fmt.Sprintf("scons -C %s --jobs %d", buildDir, jobs), true},
		{StepInstall, fmt.Sprintf("scons -C %s --jobs %d install --implicit-deps-unchanged", buildDir, jobs), true},
		{StepQueryFinal, fmt.Sprintf("daos filesystem query %s", mount), false},
	}

	exports := env.Exports()
	buildTimeout := BuildTimeout(ctx.Profile)
	steps := make([]Step, 0, len(commands))
	for i, s := range commands {
		timeout := StepTimeout
		if s.build {
			timeout = buildTimeout
		}
		steps = append(steps, Step{
			Index:   i + 1,
			Name:    s.name,
			Command: s.command,
			Script:  script(exports, s.command),
			IsBuild: s.build,
			Timeout: timeout,
		})
	}

	return Plan{Steps: steps, Jobs: jobs, BuildDir: buildDir, MountDir: mount}
}
