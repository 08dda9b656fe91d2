package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/annosearch/internal/db"
	"github.com/kailas-cloud/annosearch/internal/domain/search/filter"
	"github.com/kailas-cloud/annosearch/internal/domain/search/scope"
)

// Pseudo fields in FT.SEARCH and FT.AGGREGATE replies.
const (
	vectorScoreField = "__vector_score"
	keyField         = "__key"
	scoreField       = "__score"
)

// ftArgs accumulates the arguments of an FT.SEARCH or FT.AGGREGATE call.
type ftArgs []string

func (a ftArgs) page(offset, limit int) ftArgs {
	return append(a, "LIMIT", strconv.Itoa(offset), strconv.Itoa(limit))
}

// dialect pins query dialect 2, which KNN and ismissing need.
func (a ftArgs) dialect() ftArgs {
	return append(a, "DIALECT", "2")
}

// Search returns record keys matching q.Filters and q.Text.
// One sort key is served by FT.SEARCH SORTBY. Several need FT.AGGREGATE,
// which does not report the total, so a count query follows it.
func (s *Store) Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, fmt.Errorf("index name is required")
	case q.Limit <= 0:
		return nil, fmt.Errorf("limit must be positive")
	}

	query := buildQuery(q.Filters, q.Text, q.TextField)
	if len(q.Sort) > 1 {
		return s.aggregate(ctx, q, query)
	}

	scored := q.Text != ""
	args := ftArgs{q.IndexName, query, "NOCONTENT"}
	if scored {
		args = append(args, "WITHSCORES")
	}
	for _, k := range q.Sort {
		args = append(args, "SORTBY", db.FieldKey(k.Scope), direction(k.Desc))
	}

	raw, err := s.ft(ctx, db.OpSearch, args.page(q.Offset, q.Limit).dialect())
	if err != nil {
		return nil, err
	}
	return parseKeys(raw, scored)
}

func (s *Store) aggregate(ctx context.Context, q *db.SearchQuery, query string) (*db.SearchResult, error) {
	args := ftArgs{q.IndexName, query}
	if q.Text != "" {
		args = append(args, "ADDSCORES")
	}
	args = append(args, "LOAD", "1", "@"+keyField, "SORTBY", strconv.Itoa(2*len(q.Sort)))
	for _, k := range q.Sort {
		args = append(args, "@"+db.FieldKey(k.Scope), direction(k.Desc))
	}

	raw, err := s.ft(ctx, db.OpAggregate, args.page(q.Offset, q.Limit).dialect())
	if err != nil {
		return nil, err
	}
	entries, err := parseRows(raw)
	if err != nil {
		return nil, err
	}
	total, err := s.count(ctx, q.IndexName, query)
	if err != nil {
		return nil, err
	}
	return &db.SearchResult{Total: total, Entries: entries}, nil
}

// SearchKNN returns the q.K nearest records to q.Vector among those
// matching the filters and text. Scores are cosine similarities.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, fmt.Errorf("index name is required")
	case len(q.Vector) == 0:
		return nil, fmt.Errorf("vector is required")
	case q.K <= 0:
		return nil, fmt.Errorf("k must be positive")
	}

	args := ftArgs{
		q.IndexName, knnQuery(buildQuery(q.Filters, q.Text, q.TextField), q.Field, q.K),
		"RETURN", "1", vectorScoreField,
		"SORTBY", vectorScoreField, "ASC",
	}
	args = append(args.page(0, q.K), "PARAMS", "2", "BLOB", vectorToBytes(q.Vector))

	raw, err := s.ft(ctx, db.OpSearch, args.dialect())
	if err != nil {
		return nil, err
	}
	return parseKNN(raw)
}

// knnQuery wraps prefilter in a KNN clause over the vector field.
func knnQuery(prefilter string, field scope.Scope, k int) string {
	knn := fmt.Sprintf("[KNN %d @%s $BLOB AS %s]", k, escapeField(db.FieldKey(field)), vectorScoreField)
	if prefilter == matchAll {
		return matchAll + "=>" + knn
	}
	return "(" + prefilter + ")=>" + knn
}

// SearchCount counts records matching filters.
func (s *Store) SearchCount(ctx context.Context, index string, filters filter.Expression) (int, error) {
	return s.count(ctx, index, buildQuery(filters, "", scope.Scope{}))
}

func (s *Store) count(ctx context.Context, index, query string) (int, error) {
	raw, err := s.ft(ctx, db.OpSearch, ftArgs{index, query}.page(0, 0).dialect())
	if err != nil {
		return 0, err
	}
	return replyTotal(raw)
}

// ft sends a search command named by op.
func (s *Store) ft(ctx context.Context, op db.Op, args ftArgs) ([]rueidis.RedisMessage, error) {
	raw, err := s.do(ctx, s.b().Arbitrary(string(op)).Args(args...).Build()).ToArray()
	if err != nil {
		return nil, searchErr(op, err)
	}
	return raw, nil
}

func searchErr(op db.Op, err error) error {
	if isRedisErr(err, "no such index") || isRedisErr(err, "unknown index name") {
		return db.ErrIndexNotFound
	}
	return &db.Error{Op: op, Err: err}
}

func direction(desc bool) string {
	if desc {
		return "DESC"
	}
	return "ASC"
}

// replyTotal reads the leading count of a reply. An empty reply counts zero.
func replyTotal(raw []rueidis.RedisMessage) (int, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	n, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse total: %w", err)
	}
	return int(n), nil
}

// parseKeys reads a NOCONTENT reply: total followed by keys, each trailed
// by its score when scored is set. An entry that does not parse fails the
// whole reply.
func parseKeys(raw []rueidis.RedisMessage, scored bool) (*db.SearchResult, error) {
	total, err := replyTotal(raw)
	if err != nil {
		return nil, err
	}
	step := 1
	if scored {
		step = 2
	}
	if (len(raw)-1)%step != 0 {
		return nil, fmt.Errorf("parse reply: %d elements after total, want pairs", len(raw)-1)
	}

	res := &db.SearchResult{Total: total}
	for i := 1; i < len(raw); i += step {
		key, err := raw[i].ToString()
		if err != nil {
			return nil, fmt.Errorf("parse key %d: %w", len(res.Entries), err)
		}
		e := db.SearchEntry{Key: key}
		if scored {
			if e.Score, err = raw[i+1].AsFloat64(); err != nil {
				return nil, fmt.Errorf("parse score of %s: %w", key, err)
			}
		}
		res.Entries = append(res.Entries, e)
	}
	return res, nil
}

// parseKNN reads key and [__vector_score, distance] pairs. Distances become
// similarities. Total is the number of neighbours returned.
func parseKNN(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if _, err := replyTotal(raw); err != nil {
		return nil, err
	}
	if (len(raw)-1)%2 != 0 {
		return nil, fmt.Errorf("parse reply: %d elements after total, want pairs", len(raw)-1)
	}

	res := &db.SearchResult{}
	for i := 1; i < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			return nil, fmt.Errorf("parse key %d: %w", len(res.Entries), err)
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			return nil, fmt.Errorf("parse fields of %s: %w", key, err)
		}
		d, err := strconv.ParseFloat(fieldMap(fields)[vectorScoreField], 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s of %s: %w", vectorScoreField, key, err)
		}
		res.Entries = append(res.Entries, db.SearchEntry{Key: key, Score: 1 - d})
	}
	res.Total = len(res.Entries)
	return res, nil
}

// parseRows reads aggregate rows of __key and optional __score pairs.
func parseRows(raw []rueidis.RedisMessage) ([]db.SearchEntry, error) {
	if len(raw) < 2 {
		return nil, nil
	}
	entries := make([]db.SearchEntry, 0, len(raw)-1)
	for i, row := range raw[1:] {
		fields, err := row.ToArray()
		if err != nil {
			return nil, fmt.Errorf("parse row %d: %w", i, err)
		}
		m := fieldMap(fields)
		key, ok := m[keyField]
		if !ok {
			return nil, fmt.Errorf("parse row %d: no %s", i, keyField)
		}
		e := db.SearchEntry{Key: key}
		if sc, ok := m[scoreField]; ok {
			if e.Score, err = strconv.ParseFloat(sc, 64); err != nil {
				return nil, fmt.Errorf("parse score of %s: %w", key, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func fieldMap(pairs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		name, err1 := pairs[i].ToString()
		value, err2 := pairs[i+1].ToString()
		if err1 == nil && err2 == nil {
			m[name] = value
		}
	}
	return m
}

// vectorToBytes encodes v as little-endian FLOAT32, the layout of the BLOB param.
func vectorToBytes(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return string(buf)
}
