package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"credvault.org/internal/apperr"
	"credvault.org/internal/audit"
)

func (a *API) handleSearchAuditLogs(w http.ResponseWriter, r *http.Request) {
	qv := r.URL.Query()
	q := audit.Query{
		UserID:          qv.Get("user_id"),
		APIEndpoint:     qv.Get("api_endpoint"),
		HTTPMethod:      qv.Get("http_method"),
		ResponseMessage: qv.Get("response_message"),
		IPAddress:       qv.Get("ip_address"),
		SortBy:          qv.Get("sort_by"),
		SortDescending:  qv.Get("sort_order") == "desc",
	}
	var err error
	if v := qv.Get("response_status"); v != "" {
		if q.ResponseStatus, err = strconv.Atoi(v); err != nil {
			respondAppError(w, apperr.Validation("response_status", "response_status must be an integer"))
			return
		}
	}
	if v := qv.Get("max_execution_duration"); v != "" {
		if q.MaxExecutionMs, err = strconv.ParseFloat(v, 64); err != nil {
			respondAppError(w, apperr.Validation("max_execution_duration", "max_execution_duration must be a number"))
			return
		}
	}
	if v := qv.Get("current_page"); v != "" {
		if q.CurrentPage, err = strconv.Atoi(v); err != nil {
			respondAppError(w, apperr.Validation("current_page", "current_page must be an integer"))
			return
		}
	}
	if v := qv.Get("record_per_page"); v != "" {
		if q.RecordsPerPage, err = strconv.Atoi(v); err != nil {
			respondAppError(w, apperr.Validation("record_per_page", "record_per_page must be an integer"))
			return
		}
	}
	if v := qv.Get("date_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondAppError(w, apperr.Validation("date_from", "date_from must be an RFC 3339 timestamp"))
			return
		}
		q.DateFrom = &t
	}
	if v := qv.Get("date_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondAppError(w, apperr.Validation("date_to", "date_to must be an RFC 3339 timestamp"))
			return
		}
		q.DateTo = &t
	}

	page, err := a.audits.Search(r.Context(), q)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respond(w, http.StatusOK, "Audit logs fetched", page)
}
