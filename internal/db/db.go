// Package db defines the storage contract shared by the Redis and
// in-memory backends: dataset hashes, record documents, name
// reservations and the search index over records.
package db

import (
	"context"
	"time"

	"github.com/kailas-cloud/annosearch/internal/domain/search/filter"
)

// Store is everything a backend provides. Repositories depend on the
// narrower interfaces below.
//
//nolint:interfacebloat // aggregate of the role interfaces
type Store interface {
	Pinger
	HashStore
	JSONStore
	KVStore
	IndexManager
	Searcher
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

// Pinger reports backend liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore holds flat string maps such as dataset metadata.
// HGetAll on a missing key returns an empty map.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// JSONSetItem is one document of a batched write.
type JSONSetItem struct {
	Key  string
	Path string
	Data []byte
}

// JSONStore holds record documents, the source of the search index.
// Reads at the root path "$" return a one-element JSON array.
type JSONStore interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONSetMulti(ctx context.Context, items []JSONSetItem) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	JSONGetMulti(ctx context.Context, keys []string) ([][]byte, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// KVStore holds single values. SetNX backs unique name reservations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	Del(ctx context.Context, key string) error
}

// IndexManager owns the per-dataset search index.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	AlterIndex(ctx context.Context, name string, fields []IndexField) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher queries a record index.
type Searcher interface {
	Search(ctx context.Context, q *SearchQuery) (*SearchResult, error)
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index string, filters filter.Expression) (int, error)
}
