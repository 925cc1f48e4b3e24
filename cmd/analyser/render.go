package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/vivaan01/blood-test-analyser-debug/internal/jobs"
	"github.com/vivaan01/blood-test-analyser-debug/internal/results"
)

const previewWidth = 60

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(a.out)
	tw.SetStyle(table.StyleLight)
	return tw
}

func (a *app) renderKV(rows [][2]string) {
	tw := a.newTable()
	for _, r := range rows {
		tw.AppendRow(table.Row{r[0], r[1]})
	}
	tw.Render()
}

func (a *app) renderJobs(items []jobs.Job) {
	tw := a.newTable()
	tw.AppendHeader(table.Row{"ID", "Status", "File", "Email", "Attempts", "Enqueued"})
	for _, j := range items {
		tw.AppendRow(table.Row{j.ID, j.Status, j.FileName, j.Email, j.Attempts, formatTime(&j.EnqueuedAt)})
	}
	tw.Render()
}

func (a *app) renderJob(j *jobs.Job) {
	rows := [][2]string{
		{"ID", j.ID.String()},
		{"Status", string(j.Status)},
		{"Queue", j.Queue},
		{"Query", j.Query},
		{"File", j.FileName},
		{"Contact", fmt.Sprintf("%s <%s>", j.Username, j.Email)},
		{"Attempts", strconv.Itoa(j.Attempts)},
		{"Enqueued", formatTime(&j.EnqueuedAt)},
		{"Started", formatTime(j.StartedAt)},
		{"Finished", formatTime(j.FinishedAt)},
	}
	if j.ResultID.Valid {
		rows = append(rows, [2]string{"Result", j.ResultID.UUID.String()})
	}
	if j.Error != nil {
		rows = append(rows, [2]string{"Error", *j.Error})
	}
	a.renderKV(rows)
}

func (a *app) renderResults(items []results.Result) {
	tw := a.newTable()
	tw.AppendHeader(table.Row{"ID", "File", "Email", "Query", "Created"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: previewWidth, WidthMaxEnforcer: text.Trim},
	})
	for _, r := range items {
		tw.AppendRow(table.Row{r.ID, deref(r.FileProcessed), r.Email, r.Query, formatTime(&r.CreatedAt)})
	}
	tw.Render()
}

func (a *app) renderResult(r *results.Result) {
	a.renderKV([][2]string{
		{"ID", r.ID.String()},
		{"Query", r.Query},
		{"File", deref(r.FileProcessed)},
		{"Contact", fmt.Sprintf("%s <%s>", r.Username, r.Email)},
		{"Created", formatTime(&r.CreatedAt)},
	})
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, r.Analysis)
}

func (a *app) renderPageFooter(page, totalPages, total int) {
	fmt.Fprintf(a.out, "page %d of %d (%d total)\n", page, totalPages, total)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Local().Format(time.DateTime)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
