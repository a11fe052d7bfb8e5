// Package log wires up the diagnostic logger used across the module
// runtime. Compiler diagnostics, cache warnings, and trampoline fallbacks
// are written here rather than returned programmatically, per the error
// hook model described in the runtime's design notes.
package log

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/wanjochan/cosmorun/pkg/config"
)

// NewLogger returns a logger whose verbosity is controlled by the
// COSMORUN_TRACE environment variable (0 = errors only, 1 = info, 2 =
// debug) and whose output always goes to stderr, matching spec.md's
// requirement that diagnostic detail never be silently discarded.
func NewLogger(cfg *config.Config) *logrus.Entry {
	l := logrus.New()
	l.Out = os.Stderr
	l.SetLevel(levelFromTrace(cfg.TraceLevel))
	if cfg.TraceLevel >= 2 {
		l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	} else {
		l.Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	}

	return l.WithFields(logrus.Fields{
		"component": "cosmorun",
	})
}

func levelFromTrace(trace int) logrus.Level {
	switch {
	case trace >= 2:
		return logrus.DebugLevel
	case trace == 1:
		return logrus.InfoLevel
	default:
		return logrus.ErrorLevel
	}
}

// TraceLevelFromEnv parses COSMORUN_TRACE, defaulting to 0 on anything
// unparsable or unset.
func TraceLevelFromEnv() int {
	switch os.Getenv("COSMORUN_TRACE") {
	case "1":
		return 1
	case "2":
		return 2
	default:
		return 0
	}
}
