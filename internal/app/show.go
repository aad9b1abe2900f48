package app

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/astrokit/pipeplan/internal/cli"
	"github.com/astrokit/pipeplan/internal/dataid"
	"github.com/astrokit/pipeplan/internal/plan"
	"github.com/astrokit/pipeplan/internal/taskconfig"
)

// runShow prints the requested diagnostics in the order they were given.
// The "run" target is handled by the caller.
func (a *App) runShow(opts *cli.Options, p *plan.ExecutionPlan) error {
	for _, target := range opts.Show {
		name, pattern, _ := strings.Cut(target, "=")
		switch name {
		case "config":
			if err := showConfig(a.outW, p.Config, pattern); err != nil {
				return err
			}
		case "data":
			showData(a.outW, p.Identifiers)
		case "tasks":
			a.showTasks(a.outW, p.Config)
		case "run":
		}
	}
	return nil
}

// showConfig dumps every config field whose dotted name matches the glob
// (all fields when the glob is empty), each preceded by its documentation
// as comment lines. A glob matching nothing is an error so typos are not
// silently ignored.
func showConfig(w io.Writer, cfg *taskconfig.Config, pattern string) error {
	matched := false
	cfg.Walk(func(fieldPath, doc string, value cty.Value) {
		full := "config." + fieldPath
		if pattern != "" && !globMatch(pattern, full) {
			return
		}
		matched = true
		for _, line := range strings.Split(doc, "\n") {
			fmt.Fprintf(w, "# %s\n", line)
		}
		fmt.Fprintf(w, "%s=%s\n", full, formatValue(value))
	})
	if pattern != "" && !matched {
		return &cli.ExitError{Code: 2, Message: fmt.Sprintf("no config fields match %q", pattern)}
	}
	return nil
}

// globMatch matches a dotted field name against a --show config glob.
// Patterns without wildcards must match exactly.
func globMatch(pattern, name string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == name
	}
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

func showData(w io.Writer, ids []dataid.Identifier) {
	if len(ids) == 0 {
		fmt.Fprintln(w, "no data identifiers")
		return
	}
	for _, id := range ids {
		fmt.Fprintf(w, "id %s\n", id)
	}
}

func (a *App) showTasks(w io.Writer, cfg *taskconfig.Config) {
	fmt.Fprintln(w, a.task.Name)
	cfg.WalkSubtasks(func(fieldPath string, kind taskconfig.SubtaskKind, active string) {
		fmt.Fprintf(w, "  %s (%s) = %s\n", fieldPath, kind, active)
	})
}

// formatValue renders a leaf value for --show config output.
func formatValue(v cty.Value) string {
	if v.IsNull() {
		return "None"
	}
	ty := v.Type()
	switch {
	case ty == cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	case ty == cty.String:
		return fmt.Sprintf("%q", v.AsString())
	case ty == cty.Number:
		return v.AsBigFloat().Text('g', -1)
	case ty.IsListType():
		var parts []string
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			parts = append(parts, formatValue(ev))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return v.GoString()
}
