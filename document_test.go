package nestling

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// mustParse checks that the rendered document is syntactically valid
// GraphQL.
func mustParse(t *testing.T, doc string) {
	t.Helper()
	if _, err := parser.ParseQuery(&ast.Source{Input: doc}); err != nil {
		t.Fatalf("document does not parse: %v\n%s", err, doc)
	}
}

func TestDocumentOneByPK(t *testing.T) {
	b := NewQueryBatch(WithConfig(testConfig()))
	id := uuid.MustParse("b3c7a2d4-0000-0000-0000-000000000001")
	QueryIn[Author](b).OneByPK(id).Defer()

	doc := b.root.Document()
	mustParse(t, doc)
	want := "query Query($var2: uuid!) { var1:authors_by_pk(uuid: $var2) { uuid } }"
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}

	vars := b.root.collectVariables()
	require.Equal(t, map[string]any{"var2": id}, vars)
}

func TestDocumentMany(t *testing.T) {
	b := NewQueryBatch(WithConfig(testConfig()))
	QueryIn[Author](b).Many(ListParams{
		Where:   Where{"age": map[string]any{"_gte": 18}},
		OrderBy: map[string]any{"name": "asc"},
		Limit:   10,
	}).Defer("uuid", "name")

	doc := b.root.Document()
	mustParse(t, doc)
	want := "query Query($var2: authors_bool_exp, $var3: [authors_order_by!], $var4: Int) " +
		"{ var1:authors(where: $var2, order_by: $var3, limit: $var4) { uuid name } }"
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestDocumentSchemaPrefix(t *testing.T) {
	b := NewQueryBatch(WithConfig(testConfig()))
	QueryIn[AuditEntry](b).Many(ListParams{Where: Where{}}).Defer("uuid", "action")

	doc := b.root.Document()
	mustParse(t, doc)
	require.Contains(t, doc, "var1:logs_entries(where: $var2)")
	require.Contains(t, doc, "$var2: logs_entries_bool_exp")
}

func TestDocumentExcept(t *testing.T) {
	b := NewQueryBatch(WithConfig(testConfig()))
	QueryIn[Author](b).Many(ListParams{}).Defer(Except("age"))

	doc := b.root.Document()
	mustParse(t, doc)
	require.Contains(t, doc, "var1:authors { uuid name }")
}

func TestDocumentInsertOne(t *testing.T) {
	b := NewMutationBatch(WithConfig(testConfig()))
	InsertIn[Author](b).One(
		map[string]any{"name": "ada"},
		&OnConflict{Constraint: "authors_pkey", UpdateColumns: []string{"name"}},
	).Defer("uuid", "name")

	doc := b.root.Document()
	mustParse(t, doc)
	want := "mutation Mutation($var2: authors_insert_input!, $var3: authors_on_conflict) " +
		"{ var1:insert_authors_one(object: $var2, on_conflict: $var3) { uuid name } }"
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestDocumentUpdateMany(t *testing.T) {
	b := NewMutationBatch(WithConfig(testConfig()))
	UpdateIn[Author](b).
		Many(Where{"age": map[string]any{"_lt": 0}}, UpdateChanges{Set: map[string]any{"age": 0}}).
		DeferAffectedRows()

	doc := b.root.Document()
	mustParse(t, doc)
	want := "mutation Mutation($var2: authors_set_input, $var3: authors_bool_exp!) " +
		"{ var1:update_authors(_set: $var2, where: $var3) { affected_rows } }"
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestDocumentUpdateManyDistinct(t *testing.T) {
	b := NewMutationBatch(WithConfig(testConfig()))
	UpdateIn[Author](b).ManyDistinct([]DistinctUpdate{
		{Where: Where{"name": map[string]any{"_eq": "ada"}}, Set: map[string]any{"age": 1}},
		{Where: Where{"name": map[string]any{"_eq": "bob"}}, Set: map[string]any{"age": 2}},
	}).Defer()

	doc := b.root.Document()
	mustParse(t, doc)
	require.Contains(t, doc, "var1:update_authors_many(updates: $var2)")
	require.Contains(t, doc, "$var2: [authors_updates!]!")
	require.Contains(t, doc, "returning { uuid }")
	require.Contains(t, doc, "affected_rows")
}

func TestDocumentDelete(t *testing.T) {
	b := NewMutationBatch(WithConfig(testConfig()))
	id := uuid.New()
	DeleteIn[Author](b).OneByPK(id).Defer()
	DeleteIn[Article](b).Many(Where{"rating": map[string]any{"_lt": 2}}).DeferAffectedRows()

	doc := b.root.Document()
	mustParse(t, doc)
	require.Contains(t, doc, "var1:delete_authors_by_pk(uuid: $var2) { uuid }")
	require.Contains(t, doc, "var3:delete_articles(where: $var4) { affected_rows }")
}

func TestDocumentAggregate(t *testing.T) {
	b := NewQueryBatch(WithConfig(testConfig()))
	QueryIn[Author](b).Aggregate(ListParams{Where: Where{}}).Defer(Aggregations{
		Count: &CountArg{Columns: []string{"uuid"}, Distinct: true},
		Avg:   []string{"age"},
	})

	doc := b.root.Document()
	mustParse(t, doc)
	want := "query Query($var2: authors_bool_exp, $var3: [authors_select_column!], $var4: Boolean) " +
		"{ var1:authors_aggregate(where: $var2) " +
		"{ aggregate { count(columns: $var3, distinct: $var4) avg { age } } } }"
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestDocumentFunction(t *testing.T) {
	b := NewQueryBatch(WithConfig(testConfig()))
	QueryIn[Author](b).OneFunction("search_authors", map[string]any{
		"term": []string{"ada", "bob"},
	}).Defer("uuid", "name")

	doc := b.root.Document()
	mustParse(t, doc)
	require.Contains(t, doc, "var1:search_authors(limit: $var2, args: $var3)")
	require.Contains(t, doc, "$var3: search_authors_args!")

	vars := b.root.collectVariables()
	args, ok := vars["var3"].(map[string]any)
	require.True(t, ok, "args variable missing: %v", vars)
	require.Equal(t, "{ada,bob}", args["term"])
}

func TestDocumentInclude(t *testing.T) {
	b := NewQueryBatch(WithConfig(testConfig()))
	QueryIn[Author](b).Many(ListParams{}).Defer(
		"uuid",
		IncludeMany[Article](ListParams{Limit: 3}, "uuid", "title"),
	)

	doc := b.root.Document()
	mustParse(t, doc)
	want := "query Query($var2: Int) { var1:authors { uuid articles(limit: $var2) { uuid title } } }"
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestDocumentVariableUniqueness(t *testing.T) {
	b := NewQueryBatch(WithConfig(testConfig()))
	for i := 0; i < 5; i++ {
		QueryIn[Author](b).Many(ListParams{
			Where: Where{"age": map[string]any{"_eq": i}},
			Limit: i + 1,
		}).Defer(
			"uuid",
			IncludeMany[Article](ListParams{Limit: i + 1}, "uuid"),
		)
	}

	doc := b.root.Document()
	mustParse(t, doc)

	vars := b.root.collectVariables()
	// 5 ops x (where + limit + include limit)
	require.Len(t, vars, 15)
	for name := range vars {
		require.True(t, strings.HasPrefix(name, "var"), "variable %q", name)
	}
	require.Equal(t, doc, b.root.Document(), "re-rendering must be deterministic")
	require.NotContains(t, doc, "\n")
}
