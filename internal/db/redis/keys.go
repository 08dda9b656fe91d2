package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/annosearch/internal/db"
)

// scanBatch is the COUNT hint sent with each SCAN page.
const scanBatch = 100

// HSet writes dataset metadata fields.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	cmd := s.b().Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	return wrap(db.OpHSet, s.do(ctx, cmd.Build()).Error())
}

// HGetAll reads a hash. A missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, wrap(db.OpHGetAll, err)
	}
	return m, nil
}

// HGetAllMulti reads several hashes in one round-trip, in key order.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	results := s.pipeline(ctx, keys, func(key string) rueidis.Completed {
		return s.b().Hgetall().Key(key).Build()
	})
	out := make([]map[string]string, len(keys))
	for i, res := range results {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Key: keys[i], Err: err}
		}
		out[i] = m
	}
	return out, nil
}

// Get reads a string value.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, wrap(db.OpGet, err)
	}
	return data, nil
}

// SetNX writes value unless key is taken and reports whether it wrote.
func (s *Store) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	err := s.do(ctx, s.b().Set().Key(key).Value(string(value)).Nx().Build()).Error()
	switch {
	case rueidis.IsRedisNil(err):
		return false, nil
	case err != nil:
		return false, wrap(db.OpSet, err)
	}
	return true, nil
}

// Del removes a key of any type.
func (s *Store) Del(ctx context.Context, key string) error {
	return wrap(db.OpDel, s.do(ctx, s.b().Del().Key(key).Build()).Error())
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.do(ctx, s.b().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, wrap(db.OpExists, err)
	}
	return n > 0, nil
}

// Scan collects every key matching pattern.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(scanBatch).Build()
		page, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, wrap(db.OpScan, err)
		}
		keys = append(keys, page.Elements...)
		if cursor = page.Cursor; cursor == 0 {
			return keys, nil
		}
	}
}

// pipeline sends one command per key with DoMulti.
func (s *Store) pipeline(ctx context.Context, keys []string, build func(string) rueidis.Completed) []rueidis.RedisResult {
	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = build(key)
	}
	return s.client.DoMulti(ctx, cmds...)
}

// wrap tags a non-nil err with the failing command.
func wrap(op db.Op, err error) error {
	if err == nil {
		return nil
	}
	return &db.Error{Op: op, Err: err}
}
