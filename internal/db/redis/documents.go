package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/annosearch/internal/db"
)

// rootPath addresses a whole RedisJSON document.
const rootPath = "$"

func (s *Store) jsonSet(key, path string, data []byte) rueidis.Completed {
	return s.b().Arbitrary("JSON.SET").Keys(key).Args(path, string(data)).Build()
}

func (s *Store) jsonGet(key string, paths ...string) rueidis.Completed {
	return s.b().Arbitrary("JSON.GET").Keys(key).Args(paths...).Build()
}

// JSONSet writes a record document at path.
func (s *Store) JSONSet(ctx context.Context, key, path string, data []byte) error {
	return wrap(db.OpJSONSet, s.do(ctx, s.jsonSet(key, path, data)).Error())
}

// JSONSetMulti writes a batch of records in one round-trip. The first
// failure is reported with its key; earlier writes are not rolled back.
func (s *Store) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error {
	if len(items) == 0 {
		return nil
	}
	cmds := make([]rueidis.Completed, len(items))
	for i, it := range items {
		cmds[i] = s.jsonSet(it.Key, it.Path, it.Data)
	}
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpJSONSet, Key: items[i].Key, Err: err}
		}
	}
	return nil
}

// JSONGet reads a record document. With the root path the reply is a
// one-element JSON array.
func (s *Store) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	raw, err := s.do(ctx, s.jsonGet(key, paths...)).ToString()
	if rueidis.IsRedisNil(err) || (err == nil && raw == "") {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, wrap(db.OpJSONGet, err)
	}
	return []byte(raw), nil
}

// JSONGetMulti reads several documents at the root path, in key order.
// Absent keys leave a nil entry.
func (s *Store) JSONGetMulti(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	results := s.pipeline(ctx, keys, func(key string) rueidis.Completed {
		return s.jsonGet(key, rootPath)
	})
	out := make([][]byte, len(keys))
	for i, res := range results {
		raw, err := res.ToString()
		if rueidis.IsRedisNil(err) {
			continue
		}
		if err != nil {
			return nil, &db.Error{Op: db.OpJSONGet, Key: keys[i], Err: err}
		}
		if raw != "" {
			out[i] = []byte(raw)
		}
	}
	return out, nil
}
