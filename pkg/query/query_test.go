package query_test

import (
	"testing"

	"github.com/vivaan01/blood-test-analyser-debug/pkg/query"
)

func testProjection() *query.ProjectionMap {
	return query.NewProjectionMap("public", "analysis_results", "r").
		Project("id", "ID").
		Project("file_processed", "FileProcessed").
		Project("created_at", "CreatedAt")
}

func joinedProjection() *query.ProjectionMap {
	return query.NewProjectionMap("", "analysis_results", "r").
		Project("id", "ID").
		Project("query", "Query").
		Join("", "users", "u", "JOIN", "u.id = r.user_id").
		Project("email", "Email")
}

func ptr(s string) *string { return &s }

func TestProjectionMapTable(t *testing.T) {
	tests := []struct {
		name string
		p    *query.ProjectionMap
		want string
	}{
		{"schema qualified", testProjection(), "public.analysis_results r"},
		{"unqualified", joinedProjection(), "analysis_results r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Table(); got != tt.want {
				t.Errorf("Table() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProjectionMapJoin(t *testing.T) {
	p := joinedProjection()

	wantFrom := "analysis_results r JOIN users u ON u.id = r.user_id"
	if got := p.From(); got != wantFrom {
		t.Errorf("From() = %q, want %q", got, wantFrom)
	}

	wantCols := "r.id, r.query, u.email"
	if got := p.Columns(); got != wantCols {
		t.Errorf("Columns() = %q, want %q", got, wantCols)
	}

	if got := p.Column("Email"); got != "u.email" {
		t.Errorf("Column(Email) = %q, want u.email", got)
	}
}

func TestProjectionMapColumnLookup(t *testing.T) {
	p := testProjection()

	tests := []struct {
		name     string
		viewName string
		want     string
	}{
		{"mapped field", "FileProcessed", "r.file_processed"},
		{"mapped timestamp", "CreatedAt", "r.created_at"},
		{"unmapped passthrough", "unknown", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Column(tt.viewName); got != tt.want {
				t.Errorf("Column(%q) = %q, want %q", tt.viewName, got, tt.want)
			}
		})
	}
}

func TestParseSortFields(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []query.SortField
	}{
		{"empty", "", nil},
		{"single ascending", "CreatedAt", []query.SortField{{Field: "CreatedAt"}}},
		{"single descending", "-CreatedAt", []query.SortField{{Field: "CreatedAt", Descending: true}}},
		{
			"mixed with spaces",
			"FileProcessed, -CreatedAt",
			[]query.SortField{{Field: "FileProcessed"}, {Field: "CreatedAt", Descending: true}},
		},
		{"skips blanks", "a,,b", []query.SortField{{Field: "a"}, {Field: "b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := query.ParseSortFields(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuilderBuildSingle(t *testing.T) {
	tests := []struct {
		name    string
		dialect query.Dialect
		want    string
	}{
		{
			"postgres",
			query.Postgres,
			"SELECT r.id, r.file_processed, r.created_at FROM public.analysis_results r WHERE r.id = $1",
		},
		{
			"sqlite",
			query.SQLite,
			"SELECT r.id, r.file_processed, r.created_at FROM public.analysis_results r WHERE r.id = ?1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := query.NewBuilder(testProjection()).WithDialect(tt.dialect).BuildSingle("ID", "abc")
			if sql != tt.want {
				t.Errorf("sql = %q, want %q", sql, tt.want)
			}
			if len(args) != 1 || args[0] != "abc" {
				t.Errorf("args = %v, want [abc]", args)
			}
		})
	}
}

func TestBuilderBuildPage(t *testing.T) {
	sql, args := query.NewBuilder(testProjection(), query.SortField{Field: "CreatedAt", Descending: true}).
		WhereEquals("FileProcessed", ptr("report.pdf")).
		BuildPage(3, 10)

	want := "SELECT r.id, r.file_processed, r.created_at FROM public.analysis_results r" +
		" WHERE r.file_processed = $1 ORDER BY r.created_at DESC LIMIT 10 OFFSET 20"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if len(args) != 1 {
		t.Fatalf("args len = %d, want 1", len(args))
	}
}

func TestBuilderWhereContainsDialect(t *testing.T) {
	tests := []struct {
		name    string
		dialect query.Dialect
		want    string
	}{
		{"postgres ILIKE", query.Postgres, "SELECT COUNT(*) FROM public.analysis_results r WHERE r.file_processed ILIKE $1"},
		{"sqlite LIKE", query.SQLite, "SELECT COUNT(*) FROM public.analysis_results r WHERE r.file_processed LIKE ?1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := query.NewBuilder(testProjection()).
				WithDialect(tt.dialect).
				WhereContains("FileProcessed", ptr("blood")).
				BuildCount()
			if sql != tt.want {
				t.Errorf("sql = %q, want %q", sql, tt.want)
			}
			if len(args) != 1 || args[0] != "%blood%" {
				t.Errorf("args = %v, want [%%blood%%]", args)
			}
		})
	}
}

func TestBuilderSkipsEmptyConditions(t *testing.T) {
	var nilStr *string
	sql, args := query.NewBuilder(testProjection()).
		WhereEquals("FileProcessed", nilStr).
		WhereContains("FileProcessed", ptr("")).
		WhereSearch(nil, "FileProcessed").
		BuildCount()

	if sql != "SELECT COUNT(*) FROM public.analysis_results r" {
		t.Errorf("sql = %q", sql)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
}

func TestBuilderMultipleConditions(t *testing.T) {
	sql, args := query.NewBuilder(joinedProjection()).
		WithDialect(query.SQLite).
		WhereEquals("Email", ptr("demo@user.com")).
		WhereSearch(ptr("iron"), "Query", "Email").
		BuildCount()

	want := "SELECT COUNT(*) FROM analysis_results r JOIN users u ON u.id = r.user_id" +
		" WHERE u.email = ?1 AND (r.query LIKE ?2 OR u.email LIKE ?3)"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if len(args) != 3 {
		t.Errorf("args len = %d, want 3", len(args))
	}
}

func TestDialectRebind(t *testing.T) {
	in := "UPDATE t SET a = $1 WHERE b = $2 AND c < $2 RETURNING $10"

	if got := query.Postgres.Rebind(in); got != in {
		t.Errorf("postgres Rebind changed query: %q", got)
	}

	want := "UPDATE t SET a = ?1 WHERE b = ?2 AND c < ?2 RETURNING ?10"
	if got := query.SQLite.Rebind(in); got != want {
		t.Errorf("sqlite Rebind = %q, want %q", got, want)
	}
}

func TestDialectSkipLocked(t *testing.T) {
	if got := query.Postgres.SkipLocked(); got != " FOR UPDATE SKIP LOCKED" {
		t.Errorf("postgres SkipLocked() = %q", got)
	}
	if got := query.SQLite.SkipLocked(); got != "" {
		t.Errorf("sqlite SkipLocked() = %q, want empty", got)
	}
}
