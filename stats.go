package chartlog

import "fmt"

// Percent is a ratio rendered as a percentage.
type Percent float64

// Equal compares with a fixed precision.
func (p Percent) Equal(q Percent) bool {
	const precision = 0.0001
	diff := p - q
	if diff < 0 {
		diff = -diff
	}
	return diff < precision
}

func (p Percent) String() string {
	return fmt.Sprintf("%.2f%%", float64(p))
}

// ProjectTime is the total tracked time attributed to one project.
type ProjectTime struct {
	ProjectID   string
	ProjectName string
	Seconds     int64
}

// Summary provides an at-a-glance overview of the journal. The
// analytics formulas themselves live with the UI; this is the
// aggregate data the core exposes at the boundary.
type Summary struct {
	Charts     int
	Wins       int
	Losses     int
	Breakevens int
	Pending    int
	WinRate    Percent // wins over decided (win+loss) trades

	TotalProfitLoss Money

	Tracked []ProjectTime // alphabetical by project name, "Unknown" last
}

// Summarize computes the boundary aggregates over the given
// collections. The currency is used for charts whose profit/loss
// carries no currency of its own.
func Summarize(charts []Chart, sessions []TimerSession, projects []Project, currency string) Summary {
	sum := Summary{Charts: len(charts), TotalProfitLoss: M(0, currency)}
	for _, c := range charts {
		switch c.Outcome {
		case Win:
			sum.Wins++
		case Loss:
			sum.Losses++
		case Breakeven:
			sum.Breakevens++
		default:
			sum.Pending++
		}
		if c.ProfitLoss != nil {
			sum.TotalProfitLoss = sum.TotalProfitLoss.Add(*c.ProfitLoss)
		}
	}
	if decided := sum.Wins + sum.Losses; decided > 0 {
		sum.WinRate = Percent(100 * float64(sum.Wins) / float64(decided))
	}

	names := make(map[string]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}
	seconds := make(map[string]int64)
	for _, s := range sessions {
		seconds[s.ProjectID] += s.DurationSeconds
	}
	for _, p := range projects {
		if secs, ok := seconds[p.ID]; ok {
			sum.Tracked = append(sum.Tracked, ProjectTime{ProjectID: p.ID, ProjectName: p.Name, Seconds: secs})
		}
	}
	// Sessions pointing at a deleted project still count, under "Unknown".
	var unknown int64
	for id, secs := range seconds {
		if _, ok := names[id]; !ok {
			unknown += secs
		}
	}
	if unknown > 0 {
		sum.Tracked = append(sum.Tracked, ProjectTime{ProjectName: "Unknown", Seconds: unknown})
	}
	return sum
}

// SessionsOn filters the sessions recorded on one calendar day, for
// date-bucketed queries.
func SessionsOn(sessions []TimerSession, day string) []TimerSession {
	var out []TimerSession
	for _, s := range sessions {
		if s.Day.String() == day {
			out = append(out, s)
		}
	}
	return out
}
