package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// printTransitions writes one line per year.
func printTransitions(w io.Writer, transitions []*engine.TransitionResult) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "YEAR\tSTATE\tSTART\tEND\tHIRES\tTERMS\tNH TERMS\tPROMOTIONS\tGROWTH\tWARNINGS")
	for _, t := range transitions {
		m := t.Metrics
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%.2f%%\t%d\n",
			t.Year, t.State, m.StartingActive, m.EndingActive, m.Hires,
			m.ExperiencedTerminations, m.NewHireTerminations, m.Promotions,
			m.ActualGrowthRate*100, len(t.Warnings()))
	}
	return tw.Flush()
}

// printFailedChecks lists every failed year with the checks that failed,
// expected against actual.
func printFailedChecks(w io.Writer, transitions []*engine.TransitionResult) {
	for _, t := range transitions {
		if t.State != engine.TransitionFailed {
			continue
		}
		fmt.Fprintf(w, "\nYear %d FAILED\n", t.Year)
		failed := t.FailedChecks()
		if len(failed) == 0 && t.Error != "" {
			fmt.Fprintf(w, "  %s\n", t.Error)
		}
		for _, c := range failed {
			fmt.Fprintf(w, "  ✗ %s: expected %s, actual %s\n", c.Name, c.Expected, c.Actual)
			if c.Message != "" {
				fmt.Fprintf(w, "    %s\n", c.Message)
			}
			if len(c.Employees) > 0 {
				fmt.Fprintf(w, "    employees: %v\n", c.Employees)
			}
		}
	}
}
