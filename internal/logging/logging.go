// Package logging sets up the log15 root logger shared by every runtime
// package, following this module's convention of one package-level logger
// configured once from main via an InitializeLogger(parent) call per
// package.
package logging

import (
	"os"

	humanize "github.com/dustin/go-humanize"
	log "gopkg.in/inconshreveable/log15.v2"
)

// NewRoot builds the process-wide root logger. levelName is one of the
// log15 level names ("debug", "info", "warn", "error", "crit"); an unknown
// name falls back to "info".
func NewRoot(levelName string) log.Logger {
	lvl, err := log.LvlFromString(levelName)
	if err != nil {
		lvl = log.LvlInfo
	}
	root := log.New()
	root.SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat())))
	return root
}

// FormatSteps renders a step count for operator-facing log lines and CLI
// output, e.g. "3 steps" / "1 step".
func FormatSteps(n int) string {
	if n == 1 {
		return "1 step"
	}
	return humanize.Comma(int64(n)) + " steps"
}
