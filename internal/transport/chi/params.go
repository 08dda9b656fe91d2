package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/search/request"
	recorduc "github.com/kailas-cloud/annosearch/internal/usecase/record"
)

// Query and path parameter names.
const (
	paramDatasetID      = "dataset_id"
	paramRecordID       = "record_id"
	paramInclude        = "include"
	paramResponseStatus = "response_status"
	paramSortBy         = "sort_by"
	paramOffset         = "offset"
	paramLimit          = "limit"
	paramIDs            = "ids"
	paramWorkspace      = "workspace"
	paramName           = "name"
)

// pathUUID binds a required UUID path parameter.
func pathUUID(r *http.Request, name string) (string, error) {
	var raw string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &raw,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", domain.Validationf("invalid format for parameter %s: %v", name, err)
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", domain.Validationf("parameter %s must be a UUID, got %q", name, raw)
	}
	return raw, nil
}

// listParams are the query parameters shared by record listing and search.
type listParams struct {
	Include        []string
	ResponseStatus []string
	SortBy         []string
	Offset         int
	Limit          int
}

func bindListParams(r *http.Request) (listParams, error) {
	var p listParams
	q := r.URL.Query()
	for name, dest := range map[string]any{
		paramInclude:        &p.Include,
		paramResponseStatus: &p.ResponseStatus,
		paramSortBy:         &p.SortBy,
		paramOffset:         &p.Offset,
		paramLimit:          &p.Limit,
	} {
		if err := runtime.BindQueryParameter("form", true, false, name, q, dest); err != nil {
			return listParams{}, domain.Validationf("invalid format for parameter %s: %v", name, err)
		}
	}
	return p, nil
}

// include parses the include parameter. Responses are restricted to user when set.
func (p listParams) include(user string) (recorduc.Include, error) {
	inc, err := recorduc.ParseInclude(p.Include)
	if err != nil {
		return recorduc.Include{}, err
	}
	inc.User = user
	return inc, nil
}

func (p listParams) statuses() []request.StatusFilter {
	out := make([]request.StatusFilter, len(p.ResponseStatus))
	for i, s := range p.ResponseStatus {
		out[i] = request.StatusFilter(s)
	}
	return out
}

// bindIDs binds the comma separated ids parameter of bulk deletes.
func bindIDs(r *http.Request) ([]string, error) {
	var ids []string
	if err := runtime.BindQueryParameter("form", false, true, paramIDs, r.URL.Query(), &ids); err != nil {
		return nil, domain.Validationf("invalid format for parameter %s: %v", paramIDs, err)
	}
	return ids, nil
}

// bindWorkspace binds the workspace and optional dataset name filters.
func bindWorkspace(r *http.Request) (string, string, error) {
	var ws, name string
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, paramWorkspace, q, &ws); err != nil {
		return "", "", domain.Validationf("invalid format for parameter %s: %v", paramWorkspace, err)
	}
	if err := runtime.BindQueryParameter("form", true, false, paramName, q, &name); err != nil {
		return "", "", domain.Validationf("invalid format for parameter %s: %v", paramName, err)
	}
	if name != "" && ws == "" {
		return "", "", domain.Validationf("parameter %s requires %s", paramName, paramWorkspace)
	}
	return ws, name, nil
}
