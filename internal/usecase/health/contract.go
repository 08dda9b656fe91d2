package health

import "context"

// DBPinger reports whether the store answers.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// IndexProber looks up a search index. A missing index is a healthy
// answer; an error means the search module is unusable.
type IndexProber interface {
	IndexExists(ctx context.Context, name string) (bool, error)
}
