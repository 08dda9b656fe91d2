// Package dataset manages annotation schemas and the lifecycle of their search indexes.
package dataset

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/schema"
	"github.com/kailas-cloud/annosearch/internal/keylock"
	"github.com/kailas-cloud/annosearch/internal/logger"
	"github.com/kailas-cloud/annosearch/internal/mapping"
)

// CreateParams are the inputs of Create.
type CreateParams struct {
	Name               string
	Workspace          string
	Guidelines         string
	AllowExtraMetadata bool
	MinSubmitted       int
}

// Service handles dataset schema changes and publication. Writes to one
// dataset are serialized from load to save.
type Service struct {
	repo    Repository
	index   IndexManager
	records RecordCleaner
	locks   keylock.Map
}

// New creates a dataset service.
func New(repo Repository, index IndexManager, records RecordCleaner) *Service {
	return &Service{repo: repo, index: index, records: records}
}

// Create validates and stores a new draft dataset.
func (s *Service) Create(ctx context.Context, p CreateParams) (schema.Dataset, error) {
	ds, err := schema.NewDataset(p.Name, p.Workspace, p.Guidelines, p.AllowExtraMetadata,
		schema.Distribution{MinSubmitted: p.MinSubmitted})
	if err != nil {
		return schema.Dataset{}, domain.Validationf("%v", err)
	}
	if err := s.repo.Create(ctx, ds); err != nil {
		return schema.Dataset{}, fmt.Errorf("create dataset: %w", err)
	}
	return ds, nil
}

// Get retrieves a dataset by id.
func (s *Service) Get(ctx context.Context, id string) (schema.Dataset, error) {
	ds, err := s.repo.Get(ctx, id)
	if err != nil {
		return schema.Dataset{}, fmt.Errorf("get dataset: %w", err)
	}
	return ds, nil
}

// GetByName retrieves a dataset by its workspace-scoped name.
func (s *Service) GetByName(ctx context.Context, workspace, name string) (schema.Dataset, error) {
	if workspace == "" || name == "" {
		return schema.Dataset{}, domain.Validationf("workspace and name are required")
	}
	ds, err := s.repo.GetByName(ctx, workspace, name)
	if err != nil {
		return schema.Dataset{}, fmt.Errorf("get dataset by name: %w", err)
	}
	return ds, nil
}

// List returns the datasets of a workspace; an empty workspace lists all.
func (s *Service) List(ctx context.Context, workspace string) ([]schema.Dataset, error) {
	list, err := s.repo.List(ctx, workspace)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return list, nil
}

// Delete removes a dataset with its index and records.
func (s *Service) Delete(ctx context.Context, id string) error {
	defer s.locks.Lock(id)()

	ds, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if ds.IsReady() {
		if err := s.index.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrIndexNotFound) {
			return fmt.Errorf("delete index: %w", err)
		}
	}
	n, err := s.records.DeleteAll(ctx, id)
	if err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}

	logger.FromContext(ctx).Info("dataset deleted", zap.String("dataset_id", id), zap.Int("records", n))
	return nil
}

// AddField adds a field to a draft dataset.
func (s *Service) AddField(ctx context.Context, id string, f schema.Field) (schema.Dataset, error) {
	return s.change(ctx, id, func(ds schema.Dataset) (schema.Dataset, error) {
		if ds.IsReady() {
			return schema.Dataset{}, domain.Conflictf("fields cannot be added to a published dataset")
		}
		if _, ok := ds.FieldByName(f.Name()); ok {
			return schema.Dataset{}, domain.AlreadyExistsf("field with name `%s` already exists for dataset `%s`", f.Name(), id)
		}
		out, err := ds.WithField(f)
		if err != nil {
			return schema.Dataset{}, domain.Unprocessablef("%v", err)
		}
		return out, nil
	})
}

// AddQuestion adds a question to a draft dataset.
func (s *Service) AddQuestion(ctx context.Context, id string, q schema.Question) (schema.Dataset, error) {
	return s.change(ctx, id, func(ds schema.Dataset) (schema.Dataset, error) {
		if ds.IsReady() {
			return schema.Dataset{}, domain.Conflictf("questions cannot be added to a published dataset")
		}
		if _, ok := ds.QuestionByName(q.Name()); ok {
			return schema.Dataset{}, domain.AlreadyExistsf("question with name `%s` already exists for dataset `%s`", q.Name(), id)
		}
		out, err := ds.WithQuestion(q)
		if err != nil {
			return schema.Dataset{}, domain.Unprocessablef("%v", err)
		}
		return out, nil
	})
}

// AddMetadataProperty adds a metadata property. A published dataset's index
// is extended before the schema is saved, so readers never see an unmapped property.
func (s *Service) AddMetadataProperty(ctx context.Context, id string, p schema.MetadataProperty) (schema.Dataset, error) {
	return s.change(ctx, id, func(ds schema.Dataset) (schema.Dataset, error) {
		if _, ok := ds.MetadataPropertyByName(p.Name()); ok {
			return schema.Dataset{}, domain.AlreadyExistsf(
				"metadata property with name `%s` already exists for dataset `%s`", p.Name(), id)
		}
		out, err := ds.WithMetadataProperty(p)
		if err != nil {
			return schema.Dataset{}, domain.Unprocessablef("%v", err)
		}
		if ds.IsReady() {
			if err := s.index.Extend(ctx, id, mapping.MetadataPropertyDelta(p)); err != nil {
				return schema.Dataset{}, fmt.Errorf("extend index: %w", err)
			}
		}
		return out, nil
	})
}

// AddVectorSettings adds a vector space, extending a published dataset's index.
func (s *Service) AddVectorSettings(ctx context.Context, id string, v schema.VectorSettings) (schema.Dataset, error) {
	return s.change(ctx, id, func(ds schema.Dataset) (schema.Dataset, error) {
		if _, ok := ds.VectorSettingsByName(v.Name()); ok {
			return schema.Dataset{}, domain.AlreadyExistsf(
				"vector settings with name `%s` already exist for dataset `%s`", v.Name(), id)
		}
		out, err := ds.WithVectorSettings(v)
		if err != nil {
			return schema.Dataset{}, domain.Unprocessablef("%v", err)
		}
		if ds.IsReady() {
			if err := s.index.Extend(ctx, id, mapping.VectorSettingsDelta(v)); err != nil {
				return schema.Dataset{}, fmt.Errorf("extend index: %w", err)
			}
		}
		return out, nil
	})
}

// Publish freezes the schema and creates the dataset's index.
// If saving the published schema fails, the new index is dropped.
func (s *Service) Publish(ctx context.Context, id string) (schema.Dataset, error) {
	defer s.locks.Lock(id)()

	ds, err := s.Get(ctx, id)
	if err != nil {
		return schema.Dataset{}, err
	}

	published, err := ds.Publish()
	if err != nil {
		return schema.Dataset{}, domain.Unprocessablef("%v", err)
	}
	spec, err := mapping.Build(published)
	if err != nil {
		return schema.Dataset{}, fmt.Errorf("build mapping: %w", err)
	}

	if err := s.index.Create(ctx, id, spec); err != nil {
		return schema.Dataset{}, fmt.Errorf("create index: %w", err)
	}
	if err := s.repo.Update(ctx, published); err != nil {
		cleanupErr := s.index.Delete(ctx, id)
		return schema.Dataset{}, errors.Join(fmt.Errorf("update dataset: %w", err), cleanupErr)
	}

	logger.FromContext(ctx).Info("dataset published",
		zap.String("dataset_id", id),
		zap.String("index", mapping.IndexName(id)),
		zap.Int("mapping_properties", len(spec.Properties)),
		zap.Int("mapping_templates", len(spec.DynamicTemplates)),
	)
	return published, nil
}

// Mapping returns the index mapping derived from the dataset's current schema.
func (s *Service) Mapping(ctx context.Context, id string) (mapping.Spec, error) {
	ds, err := s.Get(ctx, id)
	if err != nil {
		return mapping.Spec{}, err
	}
	spec, err := mapping.Build(ds)
	if err != nil {
		return mapping.Spec{}, fmt.Errorf("build mapping: %w", err)
	}
	return spec, nil
}

// change loads a dataset, applies fn and saves the result. fn runs under
// the dataset's lock, so index changes it makes land in the saved schema.
func (s *Service) change(
	ctx context.Context, id string, fn func(schema.Dataset) (schema.Dataset, error),
) (schema.Dataset, error) {
	defer s.locks.Lock(id)()

	ds, err := s.Get(ctx, id)
	if err != nil {
		return schema.Dataset{}, err
	}
	out, err := fn(ds)
	if err != nil {
		return schema.Dataset{}, err
	}
	if err := s.repo.Update(ctx, out); err != nil {
		return schema.Dataset{}, fmt.Errorf("update dataset: %w", err)
	}
	return out, nil
}
