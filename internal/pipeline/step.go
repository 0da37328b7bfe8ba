package pipeline

import (
	"strings"
	"time"
)

// Step is one remote command of the pipeline.
type Step struct {
	// Index is the 1-based execution position.
	Index   int
	Name    string
	Command string
	// Script is Command prefixed with the serialized environment.
	Script  string
	IsBuild bool
	Timeout time.Duration
}

// TimeoutSeconds returns the allotted window in whole seconds.
func (s Step) TimeoutSeconds() int {
	return int(s.Timeout / time.Second)
}

// Plan is the assembled, ordered step list for one run.
type Plan struct {
	Steps    []Step
	Jobs     int
	BuildDir string
	MountDir string
}

// BuildSteps returns the steps flagged as build steps.
func (p Plan) BuildSteps() []Step {
	var out []Step
	for _, s := range p.Steps {
		if s.IsBuild {
			out = append(out, s)
		}
	}
	return out
}

func script(exports, command string) string {
	if exports == "" {
		return command
	}
	return strings.Join([]string{exports, command}, ";")
}
