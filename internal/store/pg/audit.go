package pg

import (
	"context"
	"fmt"
	"strings"

	"credvault.org/internal/audit"
)

func (s *Store) Append(ctx context.Context, e audit.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		insert into audit_logs (
			id, user_id, api_endpoint, http_method, request_payload,
			response, response_message, response_status, user_agent,
			ip_address, execution_duration
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, e.UserID, e.APIEndpoint, e.HTTPMethod, e.RequestPayload,
		e.Response, e.ResponseMessage, e.ResponseStatus, e.UserAgent,
		e.IPAddress, e.ExecutionMillis)
	return translateConstraint(err)
}

// auditSortColumns whitelists the sortable columns; the sort expression is
// interpolated into SQL and must never come from the request directly.
var auditSortColumns = map[string]string{
	"api_endpoint":       "api_endpoint",
	"http_method":        "http_method",
	"response_status":    "response_status",
	"response_message":   "response_message",
	"execution_duration": "execution_duration",
	"created_at":         "created_at",
}

func (s *Store) Search(ctx context.Context, q audit.Query) (audit.Page, error) {
	var (
		where []string
		args  []any
		idx   = 1
	)
	add := func(clause string, value any) {
		where = append(where, fmt.Sprintf(clause, idx))
		args = append(args, value)
		idx++
	}
	if q.UserID != "" {
		add("user_id = $%d", q.UserID)
	}
	if q.APIEndpoint != "" {
		add("api_endpoint ilike $%d", "%"+q.APIEndpoint+"%")
	}
	if q.HTTPMethod != "" {
		add("http_method = $%d", strings.ToUpper(q.HTTPMethod))
	}
	if q.ResponseStatus != 0 {
		add("response_status = $%d", q.ResponseStatus)
	}
	if q.ResponseMessage != "" {
		add("response_message ilike $%d", "%"+q.ResponseMessage+"%")
	}
	if q.IPAddress != "" {
		add("ip_address like $%d", "%"+q.IPAddress+"%")
	}
	if q.DateFrom != nil {
		add("created_at >= $%d", *q.DateFrom)
	}
	if q.DateTo != nil {
		add("created_at <= $%d", *q.DateTo)
	}
	if q.MaxExecutionMs > 0 {
		add("execution_duration <= $%d", q.MaxExecutionMs)
	}

	filter := ""
	if len(where) > 0 {
		filter = "where " + strings.Join(where, " and ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`select count(*) from audit_logs %s`, filter), args...).Scan(&total); err != nil {
		return audit.Page{}, err
	}

	sortColumn, ok := auditSortColumns[q.SortBy]
	direction := "asc"
	if !ok {
		sortColumn, direction = "created_at", "desc"
	} else if q.SortDescending {
		direction = "desc"
	}

	query := fmt.Sprintf(`
		select id, user_id, api_endpoint, http_method, request_payload,
			response, response_message, response_status, user_agent,
			ip_address, execution_duration, created_at
		from audit_logs
		%s
		order by %s %s
		limit $%d offset $%d
	`, filter, sortColumn, direction, idx, idx+1)
	args = append(args, q.RecordsPerPage, (q.CurrentPage-1)*q.RecordsPerPage)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return audit.Page{}, err
	}
	defer rows.Close()

	entries := []audit.Entry{}
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.APIEndpoint, &e.HTTPMethod, &e.RequestPayload,
			&e.Response, &e.ResponseMessage, &e.ResponseStatus, &e.UserAgent,
			&e.IPAddress, &e.ExecutionMillis, &e.CreatedAt); err != nil {
			return audit.Page{}, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return audit.Page{}, err
	}
	return audit.Page{
		Entries:        entries,
		TotalRecords:   total,
		CurrentPage:    q.CurrentPage,
		RecordsPerPage: q.RecordsPerPage,
	}, nil
}
