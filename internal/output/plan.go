package output

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/torosent/cosweep/internal/sweep"
)

// CommandLiner renders the command line for a set of positional arguments.
type CommandLiner interface {
	String(args []string) string
}

// PrintPlan lists, in execution order, every command line the sweep would run.
func PrintPlan(w io.Writer, plan sweep.Plan, params sweep.Params, cmd CommandLiner) {
	fmt.Fprintf(w, "# %d invocations (outer %s x inner %s)\n", plan.Len(), plan.Outer, plan.Inner)
	for _, trial := range plan.Trials() {
		fmt.Fprintln(w, cmd.String(params.Args(trial)))
	}
}

// PrintConfig writes v as YAML.
func PrintConfig(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
