package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/annosearch/internal/db"
)

// CreateIndex creates the record index described by def.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}
	return s.indexCmd(ctx, db.OpCreateIndex, args...)
}

// AlterIndex adds fields to an existing index, one FT.ALTER per field.
// A field the index already has counts as added, so retries are safe.
func (s *Store) AlterIndex(ctx context.Context, name string, fields []db.IndexField) error {
	for i := range fields {
		fieldArgs, err := buildFieldArgs(&fields[i])
		if err != nil {
			return err
		}
		if err := s.indexCmd(ctx, db.OpAlterIndex, append([]string{name, "SCHEMA", "ADD"}, fieldArgs...)...); err != nil {
			return err
		}
	}
	return nil
}

// DropIndex removes an index. Record documents are kept.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	return s.indexCmd(ctx, db.OpDropIndex, name)
}

// IndexExists asks FT.INFO about name.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.indexCmd(ctx, db.OpIndexInfo, name)
	if errors.Is(err, db.ErrIndexNotFound) {
		return false, nil
	}
	return err == nil, err
}

// indexCmd runs an index lifecycle command and maps the server's
// index errors onto the db sentinels.
func (s *Store) indexCmd(ctx context.Context, op db.Op, args ...string) error {
	err := s.do(ctx, s.b().Arbitrary(string(op)).Args(args...).Build()).Error()
	switch {
	case err == nil:
		return nil
	case isRedisErr(err, "unknown index name"), isRedisErr(err, "no such index"):
		return db.ErrIndexNotFound
	case isRedisErr(err, "index already exists"):
		return db.ErrIndexExists
	case op == db.OpAlterIndex && isRedisErr(err, "duplicate field"):
		return nil
	}
	return &db.Error{Op: op, Err: err}
}

// buildCreateArgs renders FT.CREATE {name} ON JSON PREFIX 1 {prefix} SCHEMA ...
func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	args := []string{idx.Name, "ON", "JSON", "PREFIX", "1", idx.Prefix, "SCHEMA"}
	for i := range idx.Fields {
		fieldArgs, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}
	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field path is required")
	}

	args := []string{f.Name}
	if f.Alias != "" {
		args = append(args, "AS", f.Alias)
	}

	switch f.Type {
	case db.IndexFieldNumeric, db.IndexFieldText:
		args = append(args, f.Type.String())
	case db.IndexFieldTag:
		args = append(args, "TAG")
		if f.TagCaseSensitive {
			args = append(args, "CASESENSITIVE")
		}
	case db.IndexFieldVector:
		if f.VectorDim <= 0 {
			return nil, fmt.Errorf("vector field %s requires positive dimensions", f.Key())
		}
		// Vectors take no INDEXMISSING or SORTABLE.
		return append(args, vectorArgs(f)...), nil
	default:
		return nil, fmt.Errorf("unknown field type %s", f.Type)
	}

	if f.IndexMissing {
		args = append(args, "INDEXMISSING")
	}
	if f.Sortable {
		args = append(args, "SORTABLE")
	}
	return args, nil
}

// vectorArgs renders an HNSW FLOAT32 cosine vector definition.
func vectorArgs(f *db.IndexField) []string {
	m, ef := f.VectorM, f.VectorEFConstruct
	if m <= 0 {
		m = db.DefaultHNSWM
	}
	if ef <= 0 {
		ef = db.DefaultHNSWEFConstruct
	}
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", "COSINE",
		"M", strconv.Itoa(m),
		"EF_CONSTRUCTION", strconv.Itoa(ef),
	}
	return append([]string{"VECTOR", "HNSW", strconv.Itoa(len(attrs))}, attrs...)
}
