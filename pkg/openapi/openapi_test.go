package openapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vivaan01/blood-test-analyser-debug/pkg/openapi"
)

func TestNewSpec(t *testing.T) {
	spec := openapi.NewSpec("Test API", "1.0.0")

	if spec.OpenAPI != "3.1.0" {
		t.Errorf("openapi version: got %s, want 3.1.0", spec.OpenAPI)
	}
	if spec.Info.Title != "Test API" {
		t.Errorf("title: got %s, want Test API", spec.Info.Title)
	}
	if spec.Components == nil {
		t.Fatal("components should not be nil")
	}
	if spec.Paths == nil {
		t.Fatal("paths should not be nil")
	}
}

func TestAddOperation(t *testing.T) {
	spec := openapi.NewSpec("Test", "1.0.0")
	list := &openapi.Operation{Summary: "List"}
	cancel := &openapi.Operation{Summary: "Cancel"}

	spec.AddOperation("GET", "/jobs", list)
	spec.AddOperation("delete", "/jobs/{id}", cancel)
	spec.AddOperation("PATCH", "/jobs/{id}", &openapi.Operation{Summary: "ignored"})

	if got := spec.Paths["/jobs"].Get; got != list {
		t.Errorf("GET /jobs = %+v, want list operation", got)
	}
	item := spec.Paths["/jobs/{id}"]
	if item.Delete != cancel {
		t.Errorf("DELETE /jobs/{id} = %+v, want cancel operation", item.Delete)
	}
	if item.Get != nil || item.Post != nil || item.Put != nil {
		t.Errorf("unexpected operations on /jobs/{id}: %+v", item)
	}
}

func TestRefs(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"schema", openapi.SchemaRef("Result").Ref, "#/components/schemas/Result"},
		{"response", openapi.ResponseRef("NotFound").Ref, "#/components/responses/NotFound"},
		{"array items", openapi.ArrayOf("Job").Items.Ref, "#/components/schemas/Job"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("ref: got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestRequestBodyMultipart(t *testing.T) {
	rb := openapi.RequestBodyMultipart(map[string]*openapi.Schema{
		"file":  {Type: "string", Format: "binary"},
		"query": {Type: "string"},
	}, "file")

	if !rb.Required {
		t.Error("required should be true")
	}
	mt, ok := rb.Content["multipart/form-data"]
	if !ok {
		t.Fatal("missing multipart/form-data content type")
	}
	if len(mt.Schema.Required) != 1 || mt.Schema.Required[0] != "file" {
		t.Errorf("required fields: got %v", mt.Schema.Required)
	}
	if mt.Schema.Properties["file"].Format != "binary" {
		t.Error("file field should be binary")
	}
}

func TestParams(t *testing.T) {
	p := openapi.PathParam("id", "Job ID")
	if p.In != "path" || !p.Required {
		t.Errorf("path param: in=%s required=%v", p.In, p.Required)
	}
	if p.Schema.Type != "string" || p.Schema.Format != "uuid" {
		t.Errorf("schema: got type=%s format=%s", p.Schema.Type, p.Schema.Format)
	}

	page := openapi.PageParams()
	names := make(map[string]bool, len(page))
	for _, q := range page {
		if q.In != "query" || q.Required {
			t.Errorf("%s: in=%s required=%v", q.Name, q.In, q.Required)
		}
		names[q.Name] = true
	}
	for _, want := range []string{"page", "page_size", "search", "sort"} {
		if !names[want] {
			t.Errorf("missing page param %s", want)
		}
	}
}

func TestNewComponentsDefaults(t *testing.T) {
	c := openapi.NewComponents()

	for _, name := range []string{"Error", "PageRequest"} {
		if _, ok := c.Schemas[name]; !ok {
			t.Errorf("missing default schema: %s", name)
		}
	}

	for _, name := range []string{"BadRequest", "NotFound", "Conflict", "PayloadTooLarge", "InternalError", "ServiceUnavailable"} {
		resp, ok := c.Responses[name]
		if !ok {
			t.Errorf("missing default response: %s", name)
			continue
		}
		if ref := resp.Content["application/json"].Schema.Ref; ref != "#/components/schemas/Error" {
			t.Errorf("%s schema: got %s", name, ref)
		}
	}

	c.AddSchemas(map[string]*openapi.Schema{"Job": {Type: "object"}})
	if _, ok := c.Schemas["Job"]; !ok {
		t.Error("Job schema not added")
	}
	if _, ok := c.Schemas["Error"]; !ok {
		t.Error("default Error schema should still exist")
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TEST_OPENAPI_TITLE", "Lab API")

	cfg := openapi.Config{}
	if err := cfg.Finalize(&openapi.ConfigEnv{Title: "TEST_OPENAPI_TITLE"}); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if cfg.Title != "Lab API" {
		t.Errorf("title: got %s, want Lab API", cfg.Title)
	}
	if cfg.Description == "" {
		t.Error("description should default")
	}
}

func TestServeSpec(t *testing.T) {
	spec := openapi.NewSpec("Test", "1.0.0")
	spec.AddTag("jobs", "Queued analysis runs")
	data, err := openapi.MarshalJSON(spec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	rec := httptest.NewRecorder()
	openapi.ServeSpec(data)(rec, httptest.NewRequest("GET", "/openapi.json", nil))

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content-type: got %s", ct)
	}

	body, _ := io.ReadAll(res.Body)
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("body unmarshal failed: %v", err)
	}
	if parsed["openapi"] != "3.1.0" {
		t.Errorf("openapi: got %v", parsed["openapi"])
	}
}
