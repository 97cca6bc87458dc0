package automaxprocs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/cockroachdb/errors"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/standard-charity/indexer/pkg/logger"
	"github.com/standard-charity/indexer/pkg/logger/slogx"
)

var (
	// undo is the undo function returned by maxprocs.Set
	undo func()

	// autoMaxProcs is the value of GOMAXPROCS set by automaxprocs.
	// will be -1 if Init was never called.
	autoMaxProcs = -1

	// initialMaxProcs is the initial value of GOMAXPROCS.
	initialMaxProcs = Current()
)

// Init sets GOMAXPROCS to match the Linux container CPU quota (if any).
// No-op on non-Linux systems and in environments without a CPU quota.
func Init() error {
	log := logger.With(
		slogx.String("package", "automaxprocs"),
		slogx.Int("prevMaxprocs", initialMaxProcs),
	)

	setMaxProcsLogger := func(format string, v ...any) {
		fields := make([]slog.Attr, 0, 1)
		if len(v) > 0 {
			val := v[0]
			// if the GOMAXPROCS environment variable is set, automaxprocs
			// honors it over the quota.
			if _, exists := os.LookupEnv("GOMAXPROCS"); exists {
				val = Current()
			}
			if setMaxProcs, ok := val.(int); ok {
				fields = append(fields, slogx.Int("setMaxprocs", setMaxProcs))
			}
		}
		log.LogAttrs(context.Background(), slog.LevelInfo, fmt.Sprintf(format, v...), fields...)
	}

	revert, err := maxprocs.Set(maxprocs.Logger(setMaxProcsLogger), maxprocs.Min(1))
	if err != nil {
		return errors.WithStack(err)
	}

	autoMaxProcs = Current()
	undo = revert
	return nil
}

// Undo restores GOMAXPROCS to its previous value, or to the initial value if
// Init was never called. Returns the resulting GOMAXPROCS value.
func Undo() int {
	if undo != nil {
		undo()
		return Current()
	}

	runtime.GOMAXPROCS(initialMaxProcs)
	return initialMaxProcs
}

// Current returns the current value of GOMAXPROCS.
func Current() int {
	return runtime.GOMAXPROCS(0)
}

// Value returns the value of GOMAXPROCS set by Init, or -1 if Init was
// never called.
func Value() int {
	if autoMaxProcs <= 0 {
		return -1
	}
	return autoMaxProcs
}
