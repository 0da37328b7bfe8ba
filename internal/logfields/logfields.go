package logfields

import (
	"fmt"
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyMode       = "mode"
	KeyLibrary    = "library"
	KeyStage      = "stage"
	KeyStep       = "step"
	KeyStepIndex  = "step_index"
	KeyCommand    = "command"
	KeyHost       = "host"
	KeyHosts      = "hosts"
	KeyOutcome    = "outcome"
	KeyElapsed    = "elapsed"
	KeyTimeout    = "timeout_seconds"
	KeyPercent    = "timeout_percent"
	KeyDurationMS = "duration_ms"
	KeyJobs       = "jobs"
	KeyPool       = "pool"
	KeyContainer  = "container"
	KeyMountDir   = "mount_dir"
	KeyRevision   = "revision"
	KeyScenario   = "scenario"
	KeySchedule   = "schedule_name"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Mode(m string) slog.Attr          { return slog.String(KeyMode, m) }
func Library(l string) slog.Attr       { return slog.String(KeyLibrary, l) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Step(name string) slog.Attr       { return slog.String(KeyStep, name) }
func StepIndex(i int) slog.Attr        { return slog.Int(KeyStepIndex, i) }
func Command(c string) slog.Attr       { return slog.String(KeyCommand, c) }
func Host(h string) slog.Attr          { return slog.String(KeyHost, h) }
func Hosts(h []string) slog.Attr       { return slog.Any(KeyHosts, h) }
func Outcome(o string) slog.Attr       { return slog.String(KeyOutcome, o) }
func Jobs(n int) slog.Attr             { return slog.Int(KeyJobs, n) }
func Pool(p string) slog.Attr          { return slog.String(KeyPool, p) }
func Container(c string) slog.Attr     { return slog.String(KeyContainer, c) }
func MountDir(d string) slog.Attr      { return slog.String(KeyMountDir, d) }
func Revision(r string) slog.Attr      { return slog.String(KeyRevision, r) }
func Scenario(s string) slog.Attr      { return slog.String(KeyScenario, s) }
func ScheduleName(n string) slog.Attr  { return slog.String(KeySchedule, n) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func TimeoutPercent(p int) slog.Attr   { return slog.Int(KeyPercent, p) }
func Timeout(d time.Duration) slog.Attr { return slog.Int(KeyTimeout, int(d/time.Second)) }

// Elapsed renders d as m:ss, the form operators compare against step timeouts.
func Elapsed(d time.Duration) slog.Attr { return slog.String(KeyElapsed, MinSec(d)) }

// MinSec formats d as minutes and zero-padded seconds.
func MinSec(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
