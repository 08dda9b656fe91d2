package chi

import (
	"net/http"

	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/search/request"
	"github.com/kailas-cloud/annosearch/internal/domain/search/result"
	"github.com/kailas-cloud/annosearch/internal/domain/search/sortby"
	recorduc "github.com/kailas-cloud/annosearch/internal/usecase/record"
)

// UpsertRecords handles POST /api/v1/datasets/{dataset_id}/records.
func (s *Server) UpsertRecords(w http.ResponseWriter, r *http.Request) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	var body recordsBulkRequest
	if !decodeBody(w, r, &body) {
		return
	}

	items := make([]recorduc.Item, len(body.Items))
	for i, it := range body.Items {
		items[i] = it.toItem()
	}
	records, err := s.records.Upsert(r.Context(), id, items)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	out := recordsResponse{Items: make([]recordDTO, len(records)), Total: len(records)}
	for i, rec := range records {
		out.Items[i] = recordToDTO(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteRecords handles DELETE /api/v1/datasets/{dataset_id}/records?ids=.
func (s *Server) DeleteRecords(w http.ResponseWriter, r *http.Request) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	ids, err := bindIDs(r)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	n, err := s.records.Delete(r.Context(), id, ids)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteRecordsResponse{Deleted: n})
}

// ListRecords handles GET /api/v1/datasets/{dataset_id}/records.
func (s *Server) ListRecords(w http.ResponseWriter, r *http.Request) {
	s.listRecords(w, r, false)
}

// ListMyRecords handles GET /api/v1/me/datasets/{dataset_id}/records.
// Only the caller's responses are returned.
func (s *Server) ListMyRecords(w http.ResponseWriter, r *http.Request) {
	s.listRecords(w, r, true)
}

// ListRecordsLegacy handles GET /api/datasets/{dataset_id}/records with legacy sort names.
func (s *Server) ListRecordsLegacy(w http.ResponseWriter, r *http.Request) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	lp, err := bindListParams(r)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	sorts, err := sortby.ParseV0(lp.SortBy)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	user := UserFromContext(r.Context())
	req, err := newSearch(request.Params{Sort: sorts}, lp, user)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	page, err := s.search.SearchLegacy(r.Context(), id, &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.writeRecords(w, r, id, page, lp, "")
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request, mine bool) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	lp, err := bindListParams(r)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	sorts, err := sortby.ParseV1(lp.SortBy)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	user := UserFromContext(r.Context())
	req, err := newSearch(request.Params{Sort: sorts}, lp, user)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	page, err := s.search.Search(r.Context(), id, &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	only := ""
	if mine {
		only = user
	}
	s.writeRecords(w, r, id, page, lp, only)
}

// SearchRecords handles POST /api/v1/datasets/{dataset_id}/records/search.
func (s *Server) SearchRecords(w http.ResponseWriter, r *http.Request) {
	s.searchRecords(w, r, false)
}

// SearchMyRecords handles POST /api/v1/me/datasets/{dataset_id}/records/search.
func (s *Server) SearchMyRecords(w http.ResponseWriter, r *http.Request) {
	s.searchRecords(w, r, true)
}

func (s *Server) searchRecords(w http.ResponseWriter, r *http.Request, mine bool) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	lp, err := bindListParams(r)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	var body searchRequest
	if !decodeBody(w, r, &body) {
		return
	}

	user := UserFromContext(r.Context())
	req, err := newSearch(body.params(), lp, user)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	page, err := s.search.Search(r.Context(), id, &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	only := ""
	if mine {
		only = user
	}
	inc, err := lp.include(only)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	records, err := s.records.List(r.Context(), id, page.RecordIDs(), inc)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchRecordsResponse{Items: joinHits(page, records), Total: page.Total})
}

// GetRecord handles GET /api/v1/datasets/{dataset_id}/records/{record_id}.
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	dsID, recID, ok := s.recordPath(w, r)
	if !ok {
		return
	}
	lp, err := bindListParams(r)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	inc, err := lp.include("")
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	rec, err := s.records.Get(r.Context(), dsID, recID, inc)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToDTO(rec))
}

// UpsertResponse handles PUT /api/v1/datasets/{dataset_id}/records/{record_id}/responses.
// The response belongs to the calling user.
func (s *Server) UpsertResponse(w http.ResponseWriter, r *http.Request) {
	dsID, recID, ok := s.recordPath(w, r)
	if !ok {
		return
	}
	var body responseUpsertRequest
	if !decodeBody(w, r, &body) {
		return
	}
	in, err := body.toInput(UserFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	rec, err := s.records.UpsertResponse(r.Context(), dsID, recID, in)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToDTO(rec))
}

// DeleteResponse handles DELETE /api/v1/datasets/{dataset_id}/records/{record_id}/responses.
func (s *Server) DeleteResponse(w http.ResponseWriter, r *http.Request) {
	dsID, recID, ok := s.recordPath(w, r)
	if !ok {
		return
	}
	user := UserFromContext(r.Context())
	if user == "" {
		s.handleDomainError(w, domain.Validationf("response user is required"))
		return
	}
	rec, err := s.records.DeleteResponse(r.Context(), dsID, recID, user)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToDTO(rec))
}

// UpsertSuggestion handles PUT /api/v1/datasets/{dataset_id}/records/{record_id}/suggestions.
func (s *Server) UpsertSuggestion(w http.ResponseWriter, r *http.Request) {
	dsID, recID, ok := s.recordPath(w, r)
	if !ok {
		return
	}
	var body suggestionDTO
	if !decodeBody(w, r, &body) {
		return
	}
	rec, err := s.records.UpsertSuggestion(r.Context(), dsID, recID, body.toInput())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToDTO(rec))
}

func (s *Server) recordPath(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	dsID, ok := s.datasetID(w, r)
	if !ok {
		return "", "", false
	}
	recID, err := pathUUID(r, paramRecordID)
	if err != nil {
		s.handleDomainError(w, err)
		return "", "", false
	}
	return dsID, recID, true
}

// writeRecords resolves a listing page into records.
func (s *Server) writeRecords(w http.ResponseWriter, r *http.Request, datasetID string, page result.Page, lp listParams, only string) {
	inc, err := lp.include(only)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	records, err := s.records.List(r.Context(), datasetID, page.RecordIDs(), inc)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	out := recordsResponse{Items: make([]recordDTO, 0, len(records)), Total: page.Total}
	for _, hit := range joinHits(page, records) {
		out.Items = append(out.Items, hit.Record)
	}
	writeJSON(w, http.StatusOK, out)
}

// newSearch adds the query string parameters to p and validates the request.
func newSearch(p request.Params, lp listParams, user string) (request.Search, error) {
	p.ResponseStatus = lp.statuses()
	p.User = user
	p.Offset = lp.Offset
	p.Limit = lp.Limit
	req, err := request.New(p)
	if err != nil {
		return request.Search{}, domain.Validationf("%v", err)
	}
	return req, nil
}
