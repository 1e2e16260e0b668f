package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dashboarddomain "github.com/smallbiznis/meseboard/internal/dashboard/domain"
	ingestdomain "github.com/smallbiznis/meseboard/internal/ingest/domain"
	"github.com/smallbiznis/meseboard/internal/export"
	"github.com/smallbiznis/meseboard/internal/ratelimit"
	recorddomain "github.com/smallbiznis/meseboard/internal/record/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.Engine().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	payload, ok := body["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return payload["type"].(string)
}

func multipartUpload(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (ts *testServer) upload(t *testing.T, kind string, fields map[string]string, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, fields, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/uploads/"+kind, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	ts.Engine().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadPassesFormToIngest(t *testing.T) {
	ts := newTestServer()

	rec := ts.upload(t, "cycle_stats", map[string]string{"stat_month": " 2025-01 ", "delimiter": "tab"}, "cycle.csv", "三包流水号\nMBY25001\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, recorddomain.KindCycleStats, ts.ingest.req.Kind)
	assert.Equal(t, "2025-01", ts.ingest.req.StatMonth)
	assert.Equal(t, '\t', ts.ingest.req.Delimiter)
	assert.Equal(t, "三包流水号\nMBY25001\n", string(ts.ingest.req.Content))

	data := decode(t, rec)["data"].(map[string]any)
	logs := data["logs"].([]any)
	require.Len(t, logs, 2)
	assert.Equal(t, "success", logs[1].(map[string]any)["severity"])
}

func TestUploadStatusCarriesLogs(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "input error", err: &ingestdomain.InputError{Err: errors.New("missing_key_column")}, status: http.StatusUnprocessableEntity},
		{name: "write error", err: &ingestdomain.WriteError{Err: errors.New("relation does not exist")}, status: http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer()
			ts.ingest.err = tc.err

			rec := ts.upload(t, "overview", nil, "overview.csv", "x")
			require.Equal(t, tc.status, rec.Code)

			logs := decode(t, rec)["data"].(map[string]any)["logs"].([]any)
			require.NotEmpty(t, logs)
			assert.Equal(t, "error", logs[len(logs)-1].(map[string]any)["severity"])
		})
	}
}

func TestUploadRejectsBadRequests(t *testing.T) {
	ts := newTestServer()

	rec := ts.upload(t, "invoices", nil, "a.csv", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.upload(t, "overview", map[string]string{"x": "y"}, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.upload(t, "overview", map[string]string{"delimiter": "::"}, "a.csv", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRateLimit(t *testing.T) {
	ts := newTestServer()
	ts.uploadLimiter = &fakeLimiter{res: &ratelimit.Result{Allowed: false, Limit: 5, RetryAfter: 2500 * time.Millisecond}}

	rec := ts.upload(t, "overview", nil, "a.csv", "x")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "rate_limited", errorType(t, rec))

	ts.uploadLimiter = &fakeLimiter{err: errors.New("redis down")}
	rec = ts.upload(t, "overview", nil, "a.csv", "x")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDashboardYear(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodGet, "/api/dashboard/2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(2025), data["year"])
	assert.Equal(t, "300", data["amountTotal"])

	rec = ts.do(t, http.MethodGet, "/api/dashboard/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/dashboard/1999", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardViewFiltersFromQuery(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodGet, "/api/dashboard/2025/trend?department=North&customer=%E5%85%A8%E9%83%A8&material_type=GRP", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dashboarddomain.Filters{Department: "North", Customer: "全部", MaterialType: "GRP"}, ts.dashboard.lastFilters)

	rec = ts.do(t, http.MethodGet, "/api/dashboard/2025/customers?category=%20leak%20", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "leak", ts.dashboard.lastFilters.Category)
}

func TestDashboardDetails(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodGet, "/api/dashboard/2025/details?kind=material&value=%E7%94%B5%E6%9C%BA", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dashboarddomain.DetailMaterial, ts.dashboard.lastKind)
	assert.Equal(t, "电机", ts.dashboard.lastValue)

	rec = ts.do(t, http.MethodGet, "/api/dashboard/2025/details?kind=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardExports(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodGet, "/api/dashboard/2025/details.xlsx?kind=warrantyType&value=x", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "details_2025_warrantyType.xlsx")
	assert.NotZero(t, rec.Body.Len())

	rec = ts.do(t, http.MethodGet, "/api/dashboard/2025/report.pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentTypePDF, rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
}

func TestAnalysisEndpoints(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodGet, "/api/analysis/months", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"2025-02", "2025-01"}, decode(t, rec)["data"])

	rec = ts.do(t, http.MethodGet, "/api/analysis/months/2025-01", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/analysis/months/2025-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/analysis/trend", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/analysis/tickets/MBY25001?month=2025-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-01", decode(t, rec)["data"].(map[string]any)["month"])

	rec = ts.do(t, http.MethodGet, "/api/analysis/tickets/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorType(t, rec))
}

func TestViewSessionLifecycle(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodPost, "/api/views", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	snap := decode(t, rec)["data"].(map[string]any)
	id := snap["id"].(string)
	view := snap["view"].(map[string]any)
	assert.Equal(t, float64(testNow.Year()), view["year"])
	assert.Equal(t, false, view["loading"])

	rec = ts.do(t, http.MethodPost, "/api/views/"+id+"/actions", map[string]any{"type": "open_modal", "modal": "trend"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trend", decode(t, rec)["data"].(map[string]any)["view"].(map[string]any)["modal"])

	rec = ts.do(t, http.MethodPost, "/api/views/"+id+"/actions", map[string]any{"type": "set_filter", "filter": "category", "value": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/views/"+id+"/actions", map[string]any{"type": "select_year", "year": 2024})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2024), decode(t, rec)["data"].(map[string]any)["view"].(map[string]any)["year"])
	assert.Equal(t, []int{2025, 2024}, ts.dashboard.loads)

	rec = ts.do(t, http.MethodPost, "/api/views/"+id+"/actions", map[string]any{"type": "set_filter", "filter": "department", "value": "x"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/views/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/views/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/views/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateViewRejectsBadYear(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(t, http.MethodPost, "/api/views", map[string]any{"year": 1990})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMaintenanceEndpoints(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodPost, "/api/maintenance/truncate", map[string]any{"table": "overview", "confirm": "delete"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "confirmation_required", body["error"].(map[string]any)["type"])
	assert.NotEmpty(t, body["data"].(map[string]any)["logs"])

	rec = ts.do(t, http.MethodPost, "/api/maintenance/truncate", map[string]any{"confirm": "DELETE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/maintenance/truncate", map[string]any{"table": "overview", "confirm": "DELETE"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/maintenance/cycle-stats/delete-month", map[string]any{"month": "2025/01", "confirm": "DELETE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/maintenance/cleanup-duplicates", map[string]any{"confirm": "DELETE"})
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.maintenance.err = errors.New("function cleanup_duplicates() does not exist")
	rec = ts.do(t, http.MethodPost, "/api/maintenance/cleanup-duplicates", map[string]any{"confirm": "DELETE"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	logs := decode(t, rec)["data"].(map[string]any)["logs"].([]any)
	assert.Contains(t, logs[len(logs)-1].(map[string]any)["message"], "cleanup_duplicates")
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		typ    string
	}{
		{err: dashboarddomain.ErrInvalidYear, status: http.StatusBadRequest, typ: "validation_error"},
		{err: dashboarddomain.ErrTicketNotFound, status: http.StatusNotFound, typ: "not_found"},
		{err: ErrRateLimited, status: http.StatusTooManyRequests, typ: "rate_limited"},
		{err: ErrServiceUnavailable, status: http.StatusServiceUnavailable, typ: "service_unavailable"},
		{err: &ingestdomain.InputError{Err: errors.New("x")}, status: http.StatusUnprocessableEntity, typ: "invalid_upload"},
		{err: errors.New("boom"), status: http.StatusInternalServerError, typ: "internal_error"},
	}
	for _, tc := range cases {
		status, payload := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.typ, payload.Type, tc.err.Error())
	}

	_, payload := mapError(dashboarddomain.ErrInvalidYear)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "year", payload.Errors[0].Field)
	assert.Equal(t, "invalid_year", payload.Errors[0].Code)
}

func TestParseDelimiter(t *testing.T) {
	for in, want := range map[string]rune{"": 0, "tab": '\t', "\t": '\t', ",": ',', "comma": ',', ";": ';'} {
		got, err := parseDelimiter(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseDelimiter("ab")
	assert.Error(t, err)
}
