package cli

import (
	"fmt"

	"github.com/relaysync/relaysync/pkg/engine"
	"github.com/relaysync/relaysync/pkg/output"
)

// eng is the process-wide Engine the management commands operate on.
// cmd/relaysync builds one at startup and calls SetEngine before
// executing the root command, the same way globalFlags is populated by
// AddGlobalFlags before the command tree runs.
var eng *engine.Engine

// SetEngine installs the Engine the CLI commands dispatch to.
func SetEngine(e *engine.Engine) {
	eng = e
}

// getEngine returns the installed Engine, or an error if main forgot
// to call SetEngine first.
func getEngine() (*engine.Engine, error) {
	if eng == nil {
		return nil, fmt.Errorf("relaysync: no engine installed")
	}
	return eng, nil
}

// formatter resolves the output.Formatter for the current invocation:
// the --output flag wins over the ambient config's output.format.
func formatter() (output.Formatter, error) {
	if globalFlags.Output != "" {
		return output.New(globalFlags.Output)
	}
	cfg, err := loadConfig()
	if err != nil {
		return output.New("")
	}
	return output.New(cfg.Output.Format)
}
