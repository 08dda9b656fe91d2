package dataset

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/annosearch/internal/db"
	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/schema"
)

// store is the consumer interface for the dataset registry (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// Repo implements usecase/dataset.Repository.
type Repo struct {
	store  store
	prefix string
}

// New creates a dataset repository. Keys are namespaced by prefix.
func New(s store, prefix string) *Repo {
	if prefix == "" {
		prefix = domain.DefaultKeyPrefix
	}
	return &Repo{store: s, prefix: prefix}
}

// Create stores a dataset: SET NX on the workspace-scoped name, then HSET.
// On HSET failure, rolls back the name reservation.
func (r *Repo) Create(ctx context.Context, ds schema.Dataset) error {
	hashData, err := datasetToHash(ds)
	if err != nil {
		return err
	}

	nameKey := r.nameKey(ds.Workspace(), ds.Name())
	ok, err := r.store.SetNX(ctx, nameKey, []byte(ds.ID()))
	if err != nil {
		return fmt.Errorf("reserve dataset name %s: %w", ds.Name(), err)
	}
	if !ok {
		return fmt.Errorf("dataset %q in workspace %q: %w", ds.Name(), ds.Workspace(), domain.ErrAlreadyExists)
	}

	if err := r.store.HSet(ctx, r.metaKey(ds.ID()), hashData); err != nil {
		cleanupErr := r.store.Del(ctx, nameKey)
		return errors.Join(fmt.Errorf("hset dataset %s: %w", ds.ID(), err), cleanupErr)
	}

	return nil
}

// Get retrieves a dataset by id.
func (r *Repo) Get(ctx context.Context, id string) (schema.Dataset, error) {
	m, err := r.store.HGetAll(ctx, r.metaKey(id))
	if err != nil {
		return schema.Dataset{}, fmt.Errorf("hgetall dataset %s: %w", id, err)
	}
	if len(m) == 0 {
		return schema.Dataset{}, domain.NotFoundf("dataset with id `%s` not found", id)
	}

	return datasetFromHash(m)
}

// GetByName resolves a workspace-scoped dataset name through its reservation key.
func (r *Repo) GetByName(ctx context.Context, workspace, name string) (schema.Dataset, error) {
	id, err := r.store.Get(ctx, r.nameKey(workspace, name))
	if errors.Is(err, db.ErrKeyNotFound) {
		return schema.Dataset{}, domain.NotFoundf("dataset `%s` not found in workspace `%s`", name, workspace)
	}
	if err != nil {
		return schema.Dataset{}, fmt.Errorf("get dataset name %s: %w", name, err)
	}
	return r.Get(ctx, string(id))
}

// List returns the datasets of a workspace (all workspaces when empty) sorted by InsertedAt.
func (r *Repo) List(ctx context.Context, workspace string) ([]schema.Dataset, error) {
	keys, err := r.store.Scan(ctx, r.metaKey("*"))
	if err != nil {
		return nil, fmt.Errorf("scan datasets: %w", err)
	}
	if len(keys) == 0 {
		return []schema.Dataset{}, nil
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi datasets: %w", err)
	}

	datasets := make([]schema.Dataset, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		if workspace != "" && m["workspace"] != workspace {
			continue
		}
		ds, err := datasetFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("parse dataset %s: %w", keys[i], err)
		}
		datasets = append(datasets, ds)
	}

	sort.Slice(datasets, func(i, j int) bool {
		return datasets[i].InsertedAt() < datasets[j].InsertedAt()
	})

	return datasets, nil
}

// Update overwrites a stored dataset. Name and workspace are immutable.
func (r *Repo) Update(ctx context.Context, ds schema.Dataset) error {
	hashData, err := datasetToHash(ds)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, r.metaKey(ds.ID()), hashData); err != nil {
		return fmt.Errorf("hset dataset %s: %w", ds.ID(), err)
	}
	return nil
}

// Delete removes a dataset and releases its name.
func (r *Repo) Delete(ctx context.Context, id string) error {
	m, err := r.store.HGetAll(ctx, r.metaKey(id))
	if err != nil {
		return fmt.Errorf("hgetall dataset %s: %w", id, err)
	}
	if len(m) == 0 {
		return domain.NotFoundf("dataset with id `%s` not found", id)
	}

	if err := r.store.Del(ctx, r.metaKey(id)); err != nil {
		return fmt.Errorf("del dataset %s: %w", id, err)
	}
	if err := r.store.Del(ctx, r.nameKey(m["workspace"], m["name"])); err != nil {
		return fmt.Errorf("release dataset name %s: %w", m["name"], err)
	}
	return nil
}

// Key patterns: {prefix}dataset:{id}, {prefix}dataset_name:{workspace}/{name}

func (r *Repo) metaKey(id string) string {
	return fmt.Sprintf("%sdataset:%s", r.prefix, id)
}

func (r *Repo) nameKey(workspace, name string) string {
	return fmt.Sprintf("%sdataset_name:%s/%s", r.prefix, workspace, name)
}
