package chi

import (
	"context"
	"errors"
	"net/http"

	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/schema"
	"github.com/kailas-cloud/annosearch/internal/domain/search/result"
	"github.com/kailas-cloud/annosearch/internal/mapping"
	datasetuc "github.com/kailas-cloud/annosearch/internal/usecase/dataset"
)

// CreateDataset handles POST /api/v1/datasets.
func (s *Server) CreateDataset(w http.ResponseWriter, r *http.Request) {
	var body createDatasetRequest
	if !decodeBody(w, r, &body) {
		return
	}

	p := datasetuc.CreateParams{
		Name:               body.Name,
		Workspace:          body.Workspace,
		Guidelines:         body.Guidelines,
		AllowExtraMetadata: body.AllowExtraMetadata,
	}
	if body.Distribution != nil {
		p.MinSubmitted = body.Distribution.MinSubmitted
	}

	ds, err := s.datasets.Create(r.Context(), p)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.writeDataset(w, http.StatusCreated, ds)
}

// ListDatasets handles GET /api/v1/datasets. A name filter yields at most one item.
func (s *Server) ListDatasets(w http.ResponseWriter, r *http.Request) {
	ws, name, err := bindWorkspace(r)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	list, err := s.listDatasets(r.Context(), ws, name)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]datasetResponse, 0, len(list))
	for _, ds := range list {
		resp, err := datasetToResponse(ds)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		items = append(items, resp)
	}
	writeJSON(w, http.StatusOK, datasetsResponse{Items: items})
}

func (s *Server) listDatasets(ctx context.Context, workspace, name string) ([]schema.Dataset, error) {
	if name == "" {
		return s.datasets.List(ctx, workspace)
	}
	ds, err := s.datasets.GetByName(ctx, workspace, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []schema.Dataset{ds}, nil
}

// GetDataset handles GET /api/v1/datasets/{dataset_id}.
func (s *Server) GetDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	ds, err := s.datasets.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.writeDataset(w, http.StatusOK, ds)
}

// DeleteDataset handles DELETE /api/v1/datasets/{dataset_id}.
func (s *Server) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	if err := s.datasets.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddField handles POST /api/v1/datasets/{dataset_id}/fields.
func (s *Server) AddField(w http.ResponseWriter, r *http.Request) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	var body fieldDTO
	if !decodeBody(w, r, &body) {
		return
	}
	f, err := body.toDomain()
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.writeChange(w)(s.datasets.AddField(r.Context(), id, f))
}

// AddQuestion handles POST /api/v1/datasets/{dataset_id}/questions.
func (s *Server) AddQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	var body questionDTO
	if !decodeBody(w, r, &body) {
		return
	}
	q, err := body.toDomain()
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.writeChange(w)(s.datasets.AddQuestion(r.Context(), id, q))
}

// AddMetadataProperty handles POST /api/v1/datasets/{dataset_id}/metadata-properties.
func (s *Server) AddMetadataProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	var body metadataPropertyDTO
	if !decodeBody(w, r, &body) {
		return
	}
	p, err := body.toDomain()
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.writeChange(w)(s.datasets.AddMetadataProperty(r.Context(), id, p))
}

// AddVectorSettings handles POST /api/v1/datasets/{dataset_id}/vectors-settings.
func (s *Server) AddVectorSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	var body vectorSettingsDTO
	if !decodeBody(w, r, &body) {
		return
	}
	v, err := body.toDomain()
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.writeChange(w)(s.datasets.AddVectorSettings(r.Context(), id, v))
}

// PublishDataset handles PUT /api/v1/datasets/{dataset_id}/publish.
func (s *Server) PublishDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	ds, err := s.datasets.Publish(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.writeDataset(w, http.StatusOK, ds)
}

// GetMapping handles GET /api/v1/datasets/{dataset_id}/mapping.
func (s *Server) GetMapping(w http.ResponseWriter, r *http.Request) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	spec, err := s.datasets.Mapping(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappingResponse{Index: mapping.IndexName(id), Mappings: spec.Document()})
}

// GetProgress handles GET /api/v1/datasets/{dataset_id}/progress.
func (s *Server) GetProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	ds, err := s.datasets.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	// A draft dataset has no index and no records yet.
	if !ds.IsReady() {
		writeJSON(w, http.StatusOK, result.Progress{})
		return
	}
	p, err := s.search.Progress(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetMyMetrics handles GET /api/v1/me/datasets/{dataset_id}/metrics.
func (s *Server) GetMyMetrics(w http.ResponseWriter, r *http.Request) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	ds, err := s.datasets.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if !ds.IsReady() {
		writeJSON(w, http.StatusOK, result.UserProgress{})
		return
	}
	p, err := s.search.UserProgress(r.Context(), id, UserFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) datasetID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := pathUUID(r, paramDatasetID)
	if err != nil {
		s.handleDomainError(w, err)
		return "", false
	}
	return id, true
}

func (s *Server) writeDataset(w http.ResponseWriter, status int, ds schema.Dataset) {
	resp, err := datasetToResponse(ds)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, status, resp)
}

// writeChange returns a sink for the result of a schema change.
func (s *Server) writeChange(w http.ResponseWriter) func(schema.Dataset, error) {
	return func(ds schema.Dataset, err error) {
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		s.writeDataset(w, http.StatusCreated, ds)
	}
}
