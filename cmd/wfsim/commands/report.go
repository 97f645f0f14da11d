package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/workforcesim/workforcesim/pkg/engine"
	"github.com/workforcesim/workforcesim/pkg/tenure"
)

// yearReport summarises a persisted year-end snapshot.
type yearReport struct {
	Year          int                `json:"year"`
	Employees     int                `json:"employees"`
	Active        int                `json:"active"`
	ByStatus      []reportLine       `json:"by_status"`
	ByLevel       []reportLine       `json:"by_level"`
	ByTenure      []reportLine       `json:"by_tenure_band"`
	ByAge         []reportLine       `json:"by_age_band"`
	Enrolled      int                `json:"enrolled"`
	AvgDeferral   decimal.Decimal    `json:"average_deferral_rate"`
	Contributions contributionTotals `json:"contributions"`
}

// reportLine is one group of active employees, except in ByStatus which
// counts every row.
type reportLine struct {
	Group        string          `json:"group"`
	Count        int             `json:"count"`
	Compensation decimal.Decimal `json:"total_prorated_compensation"`
}

type contributionTotals struct {
	Participants int             `json:"participants"`
	Requested    decimal.Decimal `json:"requested"`
	Actual       decimal.Decimal `json:"actual"`
	Capped       int             `json:"capped"`
	AmountCapped decimal.Decimal `json:"amount_capped"`
}

func buildReport(snap *engine.Snapshot) *yearReport {
	r := &yearReport{Year: snap.Year, Employees: len(snap.Rows)}

	byStatus := map[string]*reportLine{}
	byLevel := map[int]*reportLine{}
	byTenure := map[string]*reportLine{}
	byAge := map[string]*reportLine{}
	deferralSum := decimal.Zero

	add := func(line *reportLine, comp decimal.Decimal) {
		line.Count++
		line.Compensation = line.Compensation.Add(comp)
	}

	for _, row := range snap.Rows {
		comp := decimal.NewFromFloat(row.ProratedAnnualCompensation)
		status := string(row.DetailedStatus)
		if byStatus[status] == nil {
			byStatus[status] = &reportLine{Group: status}
		}
		add(byStatus[status], comp)

		if row.Status != engine.StatusActive {
			continue
		}
		r.Active++
		if byLevel[row.LevelID] == nil {
			byLevel[row.LevelID] = &reportLine{Group: fmt.Sprintf("level %d", row.LevelID)}
		}
		add(byLevel[row.LevelID], comp)
		if byTenure[row.TenureBand] == nil {
			byTenure[row.TenureBand] = &reportLine{Group: row.TenureBand}
		}
		add(byTenure[row.TenureBand], comp)
		if byAge[row.AgeBand] == nil {
			byAge[row.AgeBand] = &reportLine{Group: row.AgeBand}
		}
		add(byAge[row.AgeBand], comp)

		if row.Enrolled {
			r.Enrolled++
			deferralSum = deferralSum.Add(decimal.NewFromFloat(row.DeferralRate))
		}
	}
	if r.Enrolled > 0 {
		r.AvgDeferral = deferralSum.Div(decimal.NewFromInt(int64(r.Enrolled))).Round(4)
	}

	for _, c := range snap.Contributions {
		r.Contributions.Participants++
		r.Contributions.Requested = r.Contributions.Requested.Add(c.RequestedContribution)
		r.Contributions.Actual = r.Contributions.Actual.Add(c.ActualContribution)
		r.Contributions.AmountCapped = r.Contributions.AmountCapped.Add(c.AmountCapped)
		if c.IRSLimitApplied {
			r.Contributions.Capped++
		}
	}

	r.ByStatus = sortedLines(byStatus, nil)
	levels := make([]int, 0, len(byLevel))
	for id := range byLevel {
		levels = append(levels, id)
	}
	sort.Ints(levels)
	for _, id := range levels {
		r.ByLevel = append(r.ByLevel, *byLevel[id])
	}
	r.ByTenure = sortedLines(byTenure, tenure.TenureBands)
	r.ByAge = sortedLines(byAge, tenure.AgeBands)
	return r
}

// sortedLines orders groups by band order when bands are given, otherwise
// by name.
func sortedLines(groups map[string]*reportLine, bands []tenure.Band) []reportLine {
	out := make([]reportLine, 0, len(groups))
	if bands != nil {
		for _, b := range bands {
			if line, ok := groups[b.Label]; ok {
				out = append(out, *line)
			}
		}
		return out
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, *groups[name])
	}
	return out
}

func (r *yearReport) print(w io.Writer) error {
	fmt.Fprintf(w, "Year %d: %d employees, %d active, %d enrolled (average deferral %s)\n",
		r.Year, r.Employees, r.Active, r.Enrolled, r.AvgDeferral.StringFixed(4))

	sections := []struct {
		title string
		lines []reportLine
	}{
		{"STATUS", r.ByStatus},
		{"LEVEL", r.ByLevel},
		{"TENURE", r.ByTenure},
		{"AGE", r.ByAge},
	}
	for _, s := range sections {
		fmt.Fprintln(w)
		tw := newTable(w)
		fmt.Fprintf(tw, "%s\tCOUNT\tPRORATED COMPENSATION\n", s.title)
		for _, l := range s.lines {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", l.Group, l.Count, l.Compensation.StringFixed(2))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	c := r.Contributions
	fmt.Fprintf(w, "\nContributions: %d participants, requested %s, actual %s, %d capped (%s over the limit)\n",
		c.Participants, c.Requested.StringFixed(2), c.Actual.StringFixed(2), c.Capped, c.AmountCapped.StringFixed(2))
	return nil
}

func newReportCommand() *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise a persisted year",
		Long: `Print headcount by status code, level, tenure band and age band, with
prorated compensation and contribution totals, for a year-end snapshot.`,
		Example: `  # Report on 2027
  wfsim report --year 2027

  # Machine-readable output
  wfsim report --year 2027 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, _, _, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(ctx, f)
			if err != nil {
				return err
			}
			defer s.Close()

			snap, err := s.LoadSnapshot(ctx, year)
			if err != nil {
				return fmt.Errorf("failed to load %d: %w", year, err)
			}

			report := buildReport(snap)
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return report.print(cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "simulation year")
	_ = cmd.MarkFlagRequired("year")

	return cmd
}
