package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/dbsmedya/relsynth/internal/orchestrator"
	"github.com/dbsmedya/relsynth/internal/sink"
	"github.com/dbsmedya/relsynth/internal/verifier"
)

// Synthesis prints the outcome of a synthesis run.
func (p *Printer) Synthesis(res *orchestrator.SynthesisResult) {
	p.Header("Synthesis Complete")
	p.KV(
		[2]string{"Run", res.RunID},
		[2]string{"Duration", res.Duration.Round(time.Millisecond).String()},
		[2]string{"Tables", fmt.Sprint(res.Tables.Len())},
	)

	excluded := make(map[string]bool, len(res.Excluded))
	for _, t := range res.Excluded {
		excluded[t] = true
	}
	progress := make(map[string]orchestrator.TableProgress, len(res.Progress))
	for _, tp := range res.Progress {
		progress[tp.Table] = tp
	}

	p.Section("Tables")
	var rows [][]string
	for _, name := range res.Tables.Names() {
		t, _ := res.Tables.Get(name)
		tp, ok := progress[name]
		status, polls := "copied", "-"
		switch {
		case excluded[name]:
			status = "excluded"
		case ok:
			status = string(tp.Outcome)
			polls = fmt.Sprintf("%d/%d", tp.Train.Polls, tp.Generate.Polls)
		}
		rows = append(rows, []string{name, fmt.Sprint(t.Len()), fmt.Sprint(res.Counts[name]), polls, p.Status(status)})
	}
	p.Table([]string{"TABLE", "ROWS", "TARGET", "POLLS", "STATUS"}, rows)
}

// Transform prints the outcome of a transform run, including failed tables.
func (p *Printer) Transform(res *orchestrator.TransformResult) {
	title := "Transform Complete"
	if res.HadError {
		title = "Transform Completed With Errors"
	}
	p.Header("%s", title)
	p.KV(
		[2]string{"Run", res.RunID},
		[2]string{"Duration", res.Duration.Round(time.Millisecond).String()},
		[2]string{"Tables", fmt.Sprint(res.Tables.Len())},
		[2]string{"Failed", fmt.Sprint(len(res.Failed))},
	)

	progress := make(map[string]orchestrator.TableProgress, len(res.Progress))
	for _, tp := range res.Progress {
		progress[tp.Table] = tp
	}

	p.Section("Tables")
	var rows [][]string
	for _, name := range res.Tables.Names() {
		t, _ := res.Tables.Get(name)
		status := "copied"
		if tp, ok := progress[name]; ok {
			status = string(tp.Outcome)
		}
		rows = append(rows, []string{name, fmt.Sprint(t.Len()), p.Status(status)})
	}
	for _, je := range res.Failed {
		rows = append(rows, []string{je.Table, "-", p.Status(string(progress[je.Table].Outcome))})
	}
	p.Table([]string{"TABLE", "ROWS", "STATUS"}, rows)

	if len(res.Failed) > 0 {
		p.Section("Errors")
		for _, je := range res.Failed {
			p.Line("- %v", je)
		}
	}
}

// Verification prints an integrity report.
func (p *Printer) Verification(title string, r *verifier.Report) {
	p.Section(title)
	if r.OK() {
		p.Line("%s %d tables, %d rows", p.Status("passed"), r.TablesChecked, r.RowsChecked)
		return
	}
	p.Line("%s %d issue(s)", p.Status("failed"), len(r.Issues))
	for _, issue := range r.Issues {
		p.Line("- %s", issue)
	}
}

// Outputs prints where the final tables went.
func (p *Printer) Outputs(files map[string]string, stats *sink.WriteStats) {
	p.Section("Output")
	if len(files) > 0 {
		names := make([]string, 0, len(files))
		for name := range files {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([][]string, len(names))
		for i, name := range names {
			rows[i] = []string{name, files[name]}
		}
		p.Table([]string{"TABLE", "FILE"}, rows)
	}
	if stats != nil {
		p.Line("Database: %d tables, %d rows written, %d rows replaced",
			stats.TablesWritten, stats.RowsWritten, stats.RowsDeleted)
	}
}
