package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appcollection "github.com/forensiq/collectq/internal/app/collection"
	"github.com/forensiq/collectq/internal/domain/collection"
)

const maxPageSize = 500

// createRequest is the payload for queuing a collection.
type createRequest struct {
	ObservableType string `json:"observable_type" validate:"required"`
	ObservableKey  string `json:"observable_key" validate:"required"`
	Collector      string `json:"collector" validate:"required"`
	CaseID         string `json:"case_id" validate:"required,uuid"`
	RequestedBy    *int64 `json:"requested_by,omitempty"`
	MaxRetries     int    `json:"max_retries,omitempty" validate:"omitempty,min=0"`
}

// requestResponse is the wire shape of a collection request.
type requestResponse struct {
	ID              uuid.UUID  `json:"id"`
	CaseID          uuid.UUID  `json:"case_id"`
	Collector       string     `json:"collector"`
	ObservableType  string     `json:"observable_type"`
	ObservableKey   string     `json:"observable_key"`
	Status          string     `json:"status"`
	Result          *string    `json:"result,omitempty"`
	ResultMessage   string     `json:"result_message,omitempty"`
	CancelRequested bool       `json:"cancel_requested"`
	RetryCount      int        `json:"retry_count"`
	MaxRetries      int        `json:"max_retries"`
	ArtifactPath    string     `json:"artifact_path,omitempty"`
	ArtifactHash    string     `json:"artifact_hash,omitempty"`
	RequestedBy     *int64     `json:"requested_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	LastAttemptedAt *time.Time `json:"last_attempted_at,omitempty"`
}

func toRequestResponse(req *collection.Request) requestResponse {
	resp := requestResponse{
		ID:              req.ID(),
		CaseID:          req.CaseID(),
		Collector:       req.CollectorName(),
		ObservableType:  req.Observable().Type(),
		ObservableKey:   req.Observable().Key(),
		Status:          req.Status().String(),
		ResultMessage:   req.ResultMessage(),
		CancelRequested: req.CancelRequested(),
		RetryCount:      req.RetryCount(),
		MaxRetries:      req.MaxRetries(),
		ArtifactPath:    req.ArtifactPath(),
		ArtifactHash:    req.ArtifactHash(),
		RequestedBy:     req.RequestedBy(),
		CreatedAt:       req.CreatedAt(),
	}
	if res := req.Result(); res != nil {
		str := res.String()
		resp.Result = &str
	}
	if at := req.LastAttemptedAt(); !at.IsZero() {
		resp.LastAttemptedAt = &at
	}
	return resp
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	col, ok := s.registry.Get(req.Collector)
	if !ok || col.ObservableType() != req.ObservableType {
		respondError(w, http.StatusUnprocessableEntity,
			"no collector registered for ("+req.ObservableType+", "+req.Collector+")")
		return
	}

	caseID, err := uuid.Parse(req.CaseID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid case_id")
		return
	}

	created, fresh, err := s.svc.CreateRequest(r.Context(), appcollection.CreateRequestCommand{
		ObservableType: req.ObservableType,
		ObservableKey:  req.ObservableKey,
		CollectorName:  req.Collector,
		CaseID:         caseID,
		RequestedBy:    req.RequestedBy,
		MaxRetries:     req.MaxRetries,
	})
	if err != nil {
		if errors.Is(err, appcollection.ErrInvalidRequest) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error(r.Context(), "failed to create collection request", "err", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// A pending duplicate is reported as a conflict, with the existing
	// request so the caller can track it.
	status := http.StatusCreated
	if !fresh {
		status = http.StatusConflict
	}
	respond(w, status, toRequestResponse(created))
}

// listResponse is one page of requests plus the unpaged total.
type listResponse struct {
	Items      []requestResponse `json:"items"`
	Total      int64             `json:"total"`
	PageSize   int               `json:"page_size"`
	PageOffset int               `json:"page_offset"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reqs, total, err := s.svc.ListRequests(r.Context(), q)
	if err != nil {
		s.logger.Error(r.Context(), "failed to list collection requests", "err", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]requestResponse, 0, len(reqs))
	for _, req := range reqs {
		items = append(items, toRequestResponse(req))
	}
	respond(w, http.StatusOK, listResponse{
		Items:      items,
		Total:      total,
		PageSize:   q.Page.Limit,
		PageOffset: q.Page.Offset,
	})
}

func parseListQuery(r *http.Request) (collection.ListQuery, error) {
	params := r.URL.Query()

	var filter collection.ListFilter
	if raw := params.Get("id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return collection.ListQuery{}, errors.New("invalid id filter")
		}
		filter.ID = &id
	}
	filter.CollectorName = params.Get("collector")
	filter.ObservableType = params.Get("type")
	filter.ObservableKey = params.Get("value")
	if raw := params.Get("status"); raw != "" {
		status := collection.ParseStatus(raw)
		if status == collection.StatusUnspecified {
			return collection.ListQuery{}, errors.New("invalid status filter")
		}
		filter.Status = status
	}
	if raw := params.Get("result"); raw != "" {
		result := collection.ParseResultKind(raw)
		if result == collection.ResultUnspecified {
			return collection.ListQuery{}, errors.New("invalid result filter")
		}
		filter.Result = result
	}

	page, err := parsePage(params.Get("page_size"), params.Get("page_offset"))
	if err != nil {
		return collection.ListQuery{}, err
	}

	return collection.ListQuery{
		Filter:    filter,
		SortBy:    collection.ParseSortField(params.Get("sort_by")),
		Direction: collection.ParseSortDirection(params.Get("sort_dir")),
		Page:      page,
	}, nil
}

func parsePage(rawSize, rawOffset string) (collection.Page, error) {
	var page collection.Page
	if rawSize != "" {
		size, err := strconv.Atoi(rawSize)
		if err != nil || size <= 0 || size > maxPageSize {
			return collection.Page{}, errors.New("invalid page_size")
		}
		page.Limit = size
	}
	if rawOffset != "" {
		offset, err := strconv.Atoi(rawOffset)
		if err != nil || offset < 0 {
			return collection.Page{}, errors.New("invalid page_offset")
		}
		page.Offset = offset
	}
	return page, nil
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	req, err := s.svc.GetRequest(r.Context(), id)
	if err != nil {
		if errors.Is(err, collection.ErrRequestNotFound) {
			respondError(w, http.StatusNotFound, "request not found")
			return
		}
		s.logger.Error(r.Context(), "failed to get collection request", "err", err, "request_id", id)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respond(w, http.StatusOK, toRequestResponse(req))
}

// historyEntryResponse is the wire shape of one attempt record.
type historyEntryResponse struct {
	ID              int64     `json:"id"`
	RequestID       uuid.UUID `json:"request_id"`
	Result          string    `json:"result"`
	Message         string    `json:"message,omitempty"`
	ResultingStatus string    `json:"resulting_status"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type historyResponse struct {
	Items []historyEntryResponse `json:"items"`
	Total int64                  `json:"total"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	params := r.URL.Query()
	page, err := parsePage(params.Get("page_size"), params.Get("page_offset"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, total, err := s.svc.RequestHistory(r.Context(), id, page)
	if err != nil {
		if errors.Is(err, collection.ErrRequestNotFound) {
			respondError(w, http.StatusNotFound, "request not found")
			return
		}
		s.logger.Error(r.Context(), "failed to read request history", "err", err, "request_id", id)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]historyEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, historyEntryResponse{
			ID:              entry.ID(),
			RequestID:       entry.RequestID(),
			Result:          entry.Result().String(),
			Message:         entry.Message(),
			ResultingStatus: entry.ResultingStatus().String(),
			OccurredAt:      entry.OccurredAt(),
		})
	}
	respond(w, http.StatusOK, historyResponse{Items: items, Total: total})
}

// actionsRequest is the payload for a bulk lifecycle action.
type actionsRequest struct {
	Action string   `json:"action" validate:"required,oneof=retry cancel delete"`
	IDs    []string `json:"ids" validate:"required,min=1,dive,uuid"`
}

// actionResultResponse reports the per-request outcome with an HTTP-style
// code so callers can treat each id independently.
type actionResultResponse struct {
	ID      uuid.UUID `json:"id"`
	Outcome string    `json:"outcome"`
	Code    int       `json:"code"`
	Detail  string    `json:"detail,omitempty"`
}

type actionsResponse struct {
	Results []actionResultResponse `json:"results"`
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	var req actionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid id: "+raw)
			return
		}
		ids = append(ids, id)
	}

	var results []appcollection.ActionResult
	switch req.Action {
	case "retry":
		results = s.svc.Retry(r.Context(), ids)
	case "cancel":
		results = s.svc.Cancel(r.Context(), ids)
	case "delete":
		results = s.svc.Delete(r.Context(), ids)
	}

	resp := actionsResponse{Results: make([]actionResultResponse, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, actionResultResponse{
			ID:      res.ID,
			Outcome: string(res.Outcome),
			Code:    outcomeCode(res.Outcome),
			Detail:  res.Detail,
		})
	}
	respond(w, http.StatusOK, resp)
}

func outcomeCode(outcome appcollection.ActionOutcome) int {
	switch outcome {
	case appcollection.ActionApplied:
		return http.StatusOK
	case appcollection.ActionCancelRequested:
		return http.StatusAccepted
	case appcollection.ActionNotFound:
		return http.StatusNotFound
	case appcollection.ActionNotEligible:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, errorResponse{Error: msg})
}
