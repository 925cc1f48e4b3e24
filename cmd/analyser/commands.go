package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (a *app) analyzeCmd() *cobra.Command {
	var (
		req   submitRequest
		async bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyse a blood test report PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Path = args[0]
			c := a.client()

			if async {
				queued, err := c.enqueue(cmd.Context(), req)
				if err != nil {
					return err
				}
				if a.jsonOutput() {
					return a.printJSON(queued)
				}
				a.renderKV([][2]string{
					{"Status", queued.Status},
					{"Job", queued.JobID.String()},
					{"Query", queued.Query},
					{"File", queued.FileProcessed},
				})
				return nil
			}

			res, err := c.analyze(cmd.Context(), req)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(res)
			}
			a.renderKV([][2]string{
				{"Status", res.Status},
				{"Run", res.RunID.String()},
				{"Query", res.Query},
				{"File", res.FileProcessed},
				{"Saved", strconv.FormatBool(res.Saved)},
			})
			fmt.Fprintln(a.out)
			fmt.Fprintln(a.out, res.Analysis)
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.Query, "query", "q", "", "question to answer about the report")
	cmd.Flags().StringVar(&req.Email, "email", "", "contact email recorded with the result")
	cmd.Flags().StringVar(&req.Username, "username", "", "contact username recorded with the result")
	cmd.Flags().BoolVar(&async, "async", false, "queue the report for a worker instead of waiting")
	return cmd
}

func (a *app) jobsCmd() *cobra.Command {
	jobs := &cobra.Command{Use: "jobs", Short: "Inspect queued analysis jobs"}
	jobs.AddCommand(a.jobsListCmd())
	jobs.AddCommand(a.jobsShowCmd())
	jobs.AddCommand(a.jobsCancelCmd())
	return jobs
}

func (a *app) jobsListCmd() *cobra.Command {
	var lf listFlags
	var status, email string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := lf.values()
			setParam(params, "status", status)
			setParam(params, "email", email)

			page, err := a.client().listJobs(cmd.Context(), params)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(page)
			}
			a.renderJobs(page.Data)
			a.renderPageFooter(page.Page, page.TotalPages, page.Total)
			return nil
		},
	}
	lf.register(cmd)
	cmd.Flags().StringVar(&status, "status", "", "status filter (queued, running, succeeded, failed, cancelled)")
	cmd.Flags().StringVar(&email, "email", "", "contact email filter")
	return cmd
}

func (a *app) jobsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			job, err := a.client().findJob(cmd.Context(), id)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(job)
			}
			a.renderJob(job)
			return nil
		},
	}
}

func (a *app) jobsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a queued job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.client().cancelJob(cmd.Context(), id); err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(map[string]string{"status": "cancelled", "id": id.String()})
			}
			fmt.Fprintf(a.out, "cancelled %s\n", id)
			return nil
		},
	}
}

func (a *app) resultsCmd() *cobra.Command {
	res := &cobra.Command{Use: "results", Short: "Inspect stored analysis results"}
	res.AddCommand(a.resultsListCmd())
	res.AddCommand(a.resultsShowCmd())
	return res
}

func (a *app) resultsListCmd() *cobra.Command {
	var lf listFlags
	var email, file string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List results",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := lf.values()
			setParam(params, "email", email)
			setParam(params, "file_processed", file)

			page, err := a.client().listResults(cmd.Context(), params)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(page)
			}
			a.renderResults(page.Data)
			a.renderPageFooter(page.Page, page.TotalPages, page.Total)
			return nil
		},
	}
	lf.register(cmd)
	cmd.Flags().StringVar(&email, "email", "", "contact email filter")
	cmd.Flags().StringVar(&file, "file", "", "processed file name filter")
	return cmd
}

func (a *app) resultsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a result with its full analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := a.client().findResult(cmd.Context(), id)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(res)
			}
			a.renderResult(res)
			return nil
		},
	}
}

type listFlags struct {
	page     int
	pageSize int
	search   string
	sort     string
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.page, "page", 0, "page number")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "page size")
	cmd.Flags().StringVar(&f.search, "search", "", "free-text search")
	cmd.Flags().StringVar(&f.sort, "sort", "", "sort fields, e.g. -CreatedAt")
}

func (f *listFlags) values() url.Values {
	params := url.Values{}
	if f.page > 0 {
		params.Set("page", strconv.Itoa(f.page))
	}
	if f.pageSize > 0 {
		params.Set("page_size", strconv.Itoa(f.pageSize))
	}
	setParam(params, "search", f.search)
	setParam(params, "sort", f.sort)
	return params
}

func setParam(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
