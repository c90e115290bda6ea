// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dalemusser/curriculum/internal/app/store/audit"
	"github.com/dalemusser/curriculum/internal/app/system/apperr"
	"github.com/dalemusser/curriculum/internal/app/system/httpjson"
	"github.com/dalemusser/curriculum/internal/app/system/normalize"
	"github.com/dalemusser/curriculum/internal/app/system/timeouts"
)

const pageSize = 50

type listResponse struct {
	Events   []audit.Event `json:"events"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// parseFilter reads the query string. Dates are YYYY-MM-DD in UTC; the end
// date covers its whole day.
func parseFilter(q url.Values) (audit.QueryFilter, int, error) {
	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}
	filter := audit.QueryFilter{
		Term:       normalize.Code(q.Get("term")),
		ActorID:    normalize.QueryParam(q.Get("actor_id")),
		Category:   normalize.QueryParam(q.Get("category")),
		EventType:  normalize.QueryParam(q.Get("event_type")),
		TargetType: normalize.QueryParam(q.Get("target_type")),
		TargetID:   normalize.QueryParam(q.Get("target_id")),
		Limit:      pageSize,
		Offset:     int64((page - 1) * pageSize),
	}

	fields := map[string]string{}
	if s := normalize.QueryParam(q.Get("start_date")); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			fields["start_date"] = "must be YYYY-MM-DD"
		} else {
			filter.StartTime = &t
		}
	}
	if s := normalize.QueryParam(q.Get("end_date")); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			fields["end_date"] = "must be YYYY-MM-DD"
		} else {
			endOfDay := t.Add(24*time.Hour - time.Nanosecond)
			filter.EndTime = &endOfDay
		}
	}
	if len(fields) > 0 {
		return audit.QueryFilter{}, 0, apperr.ValidationFields("invalid date filter", fields)
	}
	return filter, page, nil
}

// ServeList handles GET /audit-events, newest first.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseFilter(r.URL.Query())
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "audit event list")
	defer cancel()

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, apperr.Internal("query audit events", err))
		return
	}
	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, apperr.Internal("count audit events", err))
		return
	}

	httpjson.Write(w, http.StatusOK, listResponse{
		Events:   events,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}
