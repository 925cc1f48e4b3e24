package api

import (
	"net/http"

	"github.com/vivaan01/blood-test-analyser-debug/internal/analysis"
	"github.com/vivaan01/blood-test-analyser-debug/internal/config"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/openapi"
)

// specPath is where the API document is served.
const specPath = "/openapi.json"

// NewSpec describes every mounted endpoint as an OpenAPI document.
func NewSpec(cfg *config.Config) *openapi.Spec {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddTag("analyze", "Submit blood test reports")
	spec.AddTag("results", "Stored analyses")
	spec.AddTag("jobs", "Queued analysis runs")
	spec.Components.AddSchemas(schemas())

	submission := openapi.RequestBodyMultipart(map[string]*openapi.Schema{
		"file":     {Type: "string", Format: "binary", Description: "Blood test report PDF"},
		"query":    {Type: "string", Default: analysis.DefaultQuery},
		"email":    {Type: "string", Format: "email", Description: "Contact email, defaults to the configured user"},
		"username": {Type: "string", Description: "Contact username, defaults to the configured user"},
	}, "file")

	spec.AddOperation(http.MethodPost, "/analyze", &openapi.Operation{
		Summary:     "Analyse a report",
		Description: "Runs the agent pipeline synchronously and stores the result.",
		Tags:        []string{"analyze"},
		RequestBody: submission,
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Analysis completed", "AnalyzeResponse"),
			400: openapi.ResponseRef("BadRequest"),
			413: openapi.ResponseRef("PayloadTooLarge"),
			500: openapi.ResponseJSON("Processing failed; analysis is included when only storage failed", "AnalyzeResponse"),
		},
	})

	spec.AddOperation(http.MethodPost, "/analyze/jobs", &openapi.Operation{
		Summary:     "Queue a report",
		Description: "Stages the report and queues it for a worker.",
		Tags:        []string{"analyze"},
		RequestBody: submission,
		Responses: map[int]*openapi.Response{
			202: openapi.ResponseJSON("Report queued", "QueuedResponse"),
			400: openapi.ResponseRef("BadRequest"),
			409: openapi.ResponseRef("Conflict"),
			413: openapi.ResponseRef("PayloadTooLarge"),
			503: openapi.ResponseRef("ServiceUnavailable"),
		},
	})

	spec.AddOperation(http.MethodGet, "/results", &openapi.Operation{
		Summary: "List results",
		Tags:    []string{"results"},
		Parameters: append(openapi.PageParams(),
			openapi.QueryParam("email", "string", "Contact email filter"),
			openapi.QueryParam("file_processed", "string", "Processed file name filter"),
		),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Page of results", "ResultPage"),
		},
	})

	spec.AddOperation(http.MethodGet, "/results/{id}", &openapi.Operation{
		Summary:    "Get a result",
		Tags:       []string{"results"},
		Parameters: []*openapi.Parameter{openapi.PathParam("id", "Result ID")},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Result", "Result"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
	})

	spec.AddOperation(http.MethodGet, "/jobs", &openapi.Operation{
		Summary: "List jobs",
		Tags:    []string{"jobs"},
		Parameters: append(openapi.PageParams(),
			openapi.QueryParam("status", "string", "Status filter"),
			openapi.QueryParam("email", "string", "Contact email filter"),
			openapi.QueryParam("queue", "string", "Queue name filter"),
		),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Page of jobs", "JobPage"),
		},
	})

	spec.AddOperation(http.MethodGet, "/jobs/{id}", &openapi.Operation{
		Summary:    "Get a job",
		Tags:       []string{"jobs"},
		Parameters: []*openapi.Parameter{openapi.PathParam("id", "Job ID")},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Job", "Job"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
	})

	spec.AddOperation(http.MethodDelete, "/jobs/{id}", &openapi.Operation{
		Summary:     "Cancel a job",
		Description: "Only queued jobs can be cancelled. The staged report is discarded.",
		Tags:        []string{"jobs"},
		Parameters:  []*openapi.Parameter{openapi.PathParam("id", "Job ID")},
		Responses: map[int]*openapi.Response{
			204: openapi.ResponseEmpty("Job cancelled"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
			409: openapi.ResponseRef("Conflict"),
		},
	})

	return spec
}

func schemas() map[string]*openapi.Schema {
	uuid := &openapi.Schema{Type: "string", Format: "uuid"}
	timestamp := &openapi.Schema{Type: "string", Format: "date-time"}
	nullableTime := &openapi.Schema{Type: "string", Format: "date-time", Nullable: true}
	str := &openapi.Schema{Type: "string"}

	page := func(item string) *openapi.Schema {
		return &openapi.Schema{
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        openapi.ArrayOf(item),
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
			},
		}
	}

	return map[string]*openapi.Schema{
		"AnalyzeResponse": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"status":         {Type: "string", Enum: []any{"success", "error"}},
				"detail":         str,
				"query":          str,
				"analysis":       str,
				"file_processed": str,
				"run_id":         uuid,
				"saved":          {Type: "boolean"},
			},
		},
		"QueuedResponse": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"status":         {Type: "string", Enum: []any{"queued"}},
				"job_id":         uuid,
				"query":          str,
				"file_processed": str,
			},
		},
		"Result": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":             uuid,
				"user_id":        uuid,
				"query":          str,
				"analysis":       str,
				"file_processed": {Type: "string", Nullable: true},
				"created_at":     timestamp,
				"email":          str,
				"username":       str,
			},
		},
		"Job": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":               uuid,
				"queue":            str,
				"status":           {Type: "string", Enum: []any{"queued", "running", "succeeded", "failed", "cancelled"}},
				"query":            str,
				"file_key":         str,
				"file_name":        str,
				"email":            str,
				"username":         str,
				"attempts":         {Type: "integer"},
				"error":            {Type: "string", Nullable: true},
				"result_id":        {Type: "string", Format: "uuid", Nullable: true},
				"enqueued_at":      timestamp,
				"started_at":       nullableTime,
				"finished_at":      nullableTime,
				"lease_expires_at": nullableTime,
			},
		},
		"ResultPage": page("Result"),
		"JobPage":    page("Job"),
	}
}
