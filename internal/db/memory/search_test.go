package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kailas-cloud/annosearch/internal/db"
	"github.com/kailas-cloud/annosearch/internal/domain/search/filter"
	"github.com/kailas-cloud/annosearch/internal/domain/search/scope"
)

const testIndex = "rg.ds"

func seedStore(t *testing.T, docs map[string]string) *Store {
	t.Helper()
	s := NewStore()
	ctx := context.Background()

	def := db.NewIndex(testIndex, "p:ds:record:").
		Keyword("$.status", "status").
		Number("$.inserted_at", "inserted_at").Sortable().
		Text("$.fields.text", "fields.text").
		Text("$.fields.title", "fields.title").
		Keyword("$.metadata.genre", "metadata.genre").Sortable().
		Number("$.metadata.year", "metadata.year").Sortable().
		Keyword("$.search.response_users", db.FieldResponseUsers).
		Keyword("$.search.response_status", db.FieldResponseStatus).
		Keyword("$.search.responses.label", "responses.label").
		Vector("$.vectors.emb", "vectors.emb", 3, 16, 200).
		MustBuild()
	if err := s.CreateIndex(ctx, def); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	for id, body := range docs {
		if err := s.JSONSet(ctx, "p:ds:record:"+id, "$", []byte(body)); err != nil {
			t.Fatalf("JSONSet %s: %v", id, err)
		}
	}
	return s
}

func terms(t *testing.T, s scope.Scope, values ...string) filter.Condition {
	t.Helper()
	c, err := filter.NewTerms(s, values)
	if err != nil {
		t.Fatalf("NewTerms: %v", err)
	}
	return c
}

func expr(t *testing.T, must, should, mustNot []filter.Condition) filter.Expression {
	t.Helper()
	e, err := filter.NewExpression(must, should, mustNot)
	if err != nil {
		t.Fatalf("NewExpression: %v", err)
	}
	return e
}

func keys(res *db.SearchResult) []string {
	out := make([]string, len(res.Entries))
	for i, e := range res.Entries {
		out[i] = e.Key[len("p:ds:record:"):]
	}
	return out
}

func TestSearch_TermsAndRange(t *testing.T) {
	s := seedStore(t, map[string]string{
		"1": `{"status":"pending","inserted_at":1,"metadata":{"genre":"rock","year":1991}}`,
		"2": `{"status":"pending","inserted_at":2,"metadata":{"genre":["jazz","pop"],"year":2005}}`,
		"3": `{"status":"completed","inserted_at":3,"metadata":{"genre":"Rock","year":1999}}`,
		"4": `{"status":"pending","inserted_at":4}`,
	})
	ctx := context.Background()
	lo, hi := 1990.0, 2000.0
	r, _ := filter.NewRangeFilter(&lo, &hi)
	yearCond, _ := filter.NewRange(scope.Metadata("year"), r)

	tests := []struct {
		name string
		expr filter.Expression
		want []string
	}{
		{"any-of over arrays", expr(t, []filter.Condition{terms(t, scope.Metadata("genre"), "pop", "rock")}, nil, nil), []string{"1", "2"}},
		{"case sensitive tags", expr(t, []filter.Condition{terms(t, scope.Metadata("genre"), "Rock")}, nil, nil), []string{"3"}},
		{"range", expr(t, []filter.Condition{yearCond}, nil, nil), []string{"1", "3"}},
		{"conjunction", expr(t, []filter.Condition{yearCond, terms(t, scope.MustRecord(scope.RecordStatus), "pending")}, nil, nil), []string{"1"}},
		{"must not", expr(t, nil, nil, []filter.Condition{terms(t, scope.MustRecord(scope.RecordStatus), "pending")}), []string{"3"}},
		{"missing field", expr(t, nil, nil, []filter.Condition{filter.NewExists(scope.Metadata("year"))}), []string{"4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Search(ctx, &db.SearchQuery{
				IndexName: testIndex,
				Filters:   tt.expr,
				Sort:      []db.SortKey{{Scope: scope.MustRecord(scope.RecordInsertedAt)}},
				Limit:     10,
			})
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if got := keys(res); fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("keys = %v, want %v", got, tt.want)
			}
			if res.Total != len(tt.want) {
				t.Errorf("total = %d, want %d", res.Total, len(tt.want))
			}
		})
	}
}

func TestSearch_ResponseStatusPerUser(t *testing.T) {
	s := seedStore(t, map[string]string{
		"1": `{"inserted_at":1,"search":{"response_users":["alice"],"response_status":["alice:submitted"]}}`,
		"2": `{"inserted_at":2,"search":{"response_users":["alice"],"response_status":["alice:discarded"]}}`,
		"3": `{"inserted_at":3,"search":{"response_users":["alice"],"response_status":["alice:draft"]}}`,
		"4": `{"inserted_at":4}`,
		"5": `{"inserted_at":5,"search":{"response_users":["bob"],"response_status":["bob:submitted"]}}`,
	})
	ctx := context.Background()
	alice := scope.ResponseStatusOf("alice")

	count := func(e filter.Expression) int {
		n, err := s.SearchCount(ctx, testIndex, e)
		if err != nil {
			t.Fatalf("SearchCount: %v", err)
		}
		return n
	}

	if n := count(expr(t, []filter.Condition{terms(t, alice, "submitted", "discarded")}, nil, nil)); n != 2 {
		t.Errorf("submitted|discarded = %d, want 2", n)
	}
	if n := count(expr(t, nil, nil, []filter.Condition{filter.NewExists(alice)})); n != 2 {
		t.Errorf("missing = %d, want 2", n)
	}
	mixed := expr(t, nil, []filter.Condition{terms(t, alice, "draft"), filter.NewExists(alice)}, nil)
	if n := count(mixed); n != 3 {
		t.Errorf("draft or any = %d, want 3", n)
	}
}

func TestSearch_TextRelevance(t *testing.T) {
	s := seedStore(t, map[string]string{
		"1": `{"inserted_at":1,"fields":{"text":"my card was declined","title":"payment"}}`,
		"2": `{"inserted_at":2,"fields":{"text":"card card card lost","title":"card"}}`,
		"3": `{"inserted_at":3,"fields":{"text":"transfer money","title":"bank"}}`,
		"4": `{"inserted_at":4,"fields":{"text":"The CARD arrived.","title":"delivery"}}`,
	})
	ctx := context.Background()

	res, err := s.Search(ctx, &db.SearchQuery{IndexName: testIndex, Text: "card", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 3 {
		t.Fatalf("total = %d, want 3", res.Total)
	}
	if keys(res)[0] != "2" {
		t.Errorf("most relevant = %s, want 2", keys(res)[0])
	}
	for i, e := range res.Entries {
		if e.Score <= 0 {
			t.Errorf("entry %d score %v is not positive", i, e.Score)
		}
		if i > 0 && e.Score > res.Entries[i-1].Score {
			t.Errorf("scores not descending at %d", i)
		}
	}

	res, _ = s.Search(ctx, &db.SearchQuery{IndexName: testIndex, Text: "card", TextField: scope.Field("title"), Limit: 10})
	if fmt.Sprint(keys(res)) != "[2]" {
		t.Errorf("field scoped = %v, want [2]", keys(res))
	}

	res, _ = s.Search(ctx, &db.SearchQuery{IndexName: testIndex, Text: "card payment", Limit: 10})
	if fmt.Sprint(keys(res)) != "[1]" {
		t.Errorf("all terms required, got %v", keys(res))
	}

	_, err = s.Search(ctx, &db.SearchQuery{IndexName: testIndex, Text: "card", TextField: scope.Field("nope"), Limit: 10})
	if err == nil {
		t.Error("expected error for unknown text field")
	}
}

func TestSearch_MultiKeySortAndPagination(t *testing.T) {
	s := seedStore(t, map[string]string{
		"1": `{"inserted_at":1,"metadata":{"year":2000}}`,
		"2": `{"inserted_at":2,"metadata":{"year":2010}}`,
		"3": `{"inserted_at":3,"metadata":{"year":2000}}`,
		"4": `{"inserted_at":4}`,
		"5": `{"inserted_at":5,"metadata":{"year":2010}}`,
	})
	ctx := context.Background()
	sortKeys := []db.SortKey{
		{Scope: scope.Metadata("year"), Desc: true},
		{Scope: scope.MustRecord(scope.RecordInsertedAt), Desc: true},
	}

	res, err := s.Search(ctx, &db.SearchQuery{IndexName: testIndex, Sort: sortKeys, Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := fmt.Sprint(keys(res)); got != "[5 2 3 1 4]" {
		t.Errorf("order = %s", got)
	}

	for _, tc := range []struct{ offset, limit, want int }{
		{0, 2, 2}, {4, 2, 1}, {5, 2, 0}, {9, 3, 0},
	} {
		res, _ := s.Search(ctx, &db.SearchQuery{IndexName: testIndex, Sort: sortKeys, Offset: tc.offset, Limit: tc.limit})
		if len(res.Entries) != tc.want || res.Total != 5 {
			t.Errorf("offset=%d limit=%d: len=%d total=%d, want len=%d total=5",
				tc.offset, tc.limit, len(res.Entries), res.Total, tc.want)
		}
	}
}

func TestSearchKNN_Cosine(t *testing.T) {
	s := seedStore(t, map[string]string{
		"0": `{"inserted_at":1,"status":"pending","vectors":{"emb":[1,0,0]}}`,
		"1": `{"inserted_at":2,"status":"pending","vectors":{"emb":[1,1,0]}}`,
		"2": `{"inserted_at":3,"status":"completed","vectors":{"emb":[0,1,0]}}`,
		"3": `{"inserted_at":4,"status":"pending"}`,
	})
	ctx := context.Background()

	res, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: testIndex, Field: scope.Vector("emb"), Vector: []float32{0.9, 1, 0}, K: 10})
	if err != nil {
		t.Fatalf("SearchKNN: %v", err)
	}
	if got := fmt.Sprint(keys(res)); got != "[1 2 0]" {
		t.Errorf("order = %s, want [1 2 0]", got)
	}
	if res.Entries[0].Score < 0.99 {
		t.Errorf("top similarity = %v", res.Entries[0].Score)
	}

	res, _ = s.SearchKNN(ctx, &db.KNNQuery{
		IndexName: testIndex,
		Field:     scope.Vector("emb"),
		Vector:    []float32{0.9, 1, 0},
		K:         1,
		Filters:   expr(t, []filter.Condition{terms(t, scope.MustRecord(scope.RecordStatus), "pending")}, nil, nil),
	})
	if got := fmt.Sprint(keys(res)); got != "[1]" {
		t.Errorf("filtered = %s, want [1]", got)
	}

	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: testIndex, Field: scope.Vector("emb"), Vector: []float32{1}, K: 1}); err == nil {
		t.Error("expected dimension error")
	}
}

func TestSearch_UnknownIndex(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if _, err := s.Search(ctx, &db.SearchQuery{IndexName: "rg.none", Limit: 1}); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("Search: expected ErrIndexNotFound, got %v", err)
	}
	if _, err := s.SearchCount(ctx, "rg.none", filter.Expression{}); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("SearchCount: expected ErrIndexNotFound, got %v", err)
	}
	_, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "rg.none", Field: scope.Vector("emb"), Vector: []float32{1}, K: 1})
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("SearchKNN: expected ErrIndexNotFound, got %v", err)
	}
}

func TestSearch_UnknownFilterField(t *testing.T) {
	s := seedStore(t, map[string]string{"1": `{"inserted_at":1}`})
	_, err := s.Search(context.Background(), &db.SearchQuery{
		IndexName: testIndex,
		Filters:   expr(t, []filter.Condition{terms(t, scope.Metadata("nope"), "x")}, nil, nil),
		Limit:     1,
	})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Errorf("expected db.Error, got %v", err)
	}
}
