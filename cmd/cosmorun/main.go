package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/go-errors/errors"
	"github.com/integrii/flaggy"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/wanjochan/cosmorun"
	"github.com/wanjochan/cosmorun/internal/cerr"
	"github.com/wanjochan/cosmorun/pkg/config"
	cosmolog "github.com/wanjochan/cosmorun/pkg/log"
)

const DEFAULT_VERSION = "unversioned"

var (
	commit  string
	version = DEFAULT_VERSION
	date    string

	configFlag = false
	traceFlag  = 0
	configDir  = ""
	specifier  string
)

func main() {
	updateBuildInfo()

	info := fmt.Sprintf(
		"%s\nDate: %s\nCommit: %s\nOS: %s\nArch: %s",
		version, date, commit, runtime.GOOS, runtime.GOARCH,
	)

	flaggy.SetName("cosmorun")
	flaggy.SetDescription("JIT loader for C-source modules")
	flaggy.DefaultParser.AdditionalHelpPrepend = "https://github.com/wanjochan/cosmorun"

	flaggy.Bool(&configFlag, "c", "print-config", "Print the effective configuration and exit")
	flaggy.Int(&traceFlag, "t", "trace", "Trace level: 0 (errors only), 1 (info), 2 (debug)")
	flaggy.String(&configDir, "", "config", "Directory to load cosmorun.yml from")
	flaggy.AddPositionalValue(&specifier, "specifier", 1, true, "Module specifier to import (path, bare name, or c_modules/<name>)")
	flaggy.SetVersion(info)
	flaggy.Parse()

	if configDir != "" {
		os.Setenv("COSMORUN_CONFIG_DIR", configDir)
	}
	if traceFlag != 0 {
		os.Setenv("COSMORUN_TRACE", fmt.Sprintf("%d", traceFlag))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err.Error())
	}

	if configFlag {
		fmt.Printf("%+v\n", cfg)
		os.Exit(0)
	}

	logger := cosmolog.NewLogger(cfg)

	projectDir, err := os.Getwd()
	if err != nil {
		logger.Fatal(err.Error())
	}

	coordinator := cosmorun.New(cfg, projectDir)

	handle, err := coordinator.Import(context.Background(), specifier)
	if err != nil {
		exitForError(logger, err)
	}

	if cfg.DebugCacheOnExit {
		fmt.Fprintln(os.Stderr, coordinator.PrintCacheStats())
	}

	_ = handle
	os.Exit(0)
}

// exitForError maps a failed Import to the exit codes spec.md §6 assigns
// a hosting CLI: 0 success, 1 generic failure, 2 circular dependency.
// (cosmorun.Import itself always returns a typed error; the exit code is
// this wrapper's choice, not the library's.)
func exitForError(logger *logrus.Entry, err error) {
	if cerr.Is(err, cerr.Circular) {
		logger.Error(err.Error())
		os.Exit(2)
	}

	newErr := errors.Wrap(err, 0)
	logger.Error(newErr.ErrorStack())
	os.Exit(1)
}

func updateBuildInfo() {
	if version == DEFAULT_VERSION {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			revision, ok := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
				return setting.Key == "vcs.revision"
			})
			if ok {
				commit = revision.Value
				version = safeTruncate(revision.Value, 7)
			}

			t, ok := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
				return setting.Key == "vcs.time"
			})
			if ok {
				date = t.Value
			}
		}
	}
}

func safeTruncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
