package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vhsops/internal/airtable"
	"vhsops/internal/config"
	"vhsops/internal/metrics"
	"vhsops/internal/tape"
)

// fakeBase stands in for the upstream record source.
type fakeBase struct {
	mu        sync.Mutex
	records   []airtable.Record
	listCalls int
	patches   map[string]map[string]any
}

func (f *fakeBase) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v0/appTEST123/Tapes":
			f.listCalls++
			json.NewEncoder(w).Encode(map[string]any{"records": f.records})
		case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/v0/appTEST123/Tapes/"):
			id := strings.TrimPrefix(r.URL.Path, "/v0/appTEST123/Tapes/")
			var body struct {
				Fields map[string]any `json:"fields"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if f.patches == nil {
				f.patches = map[string]map[string]any{}
			}
			f.patches[id] = body.Fields
			json.NewEncoder(w).Encode(airtable.Record{ID: id})
		default:
			http.NotFound(w, r)
		}
	})
}

func (f *fakeBase) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeBase) patched(id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patches[id]
}

func daysAgo(n int) string {
	return time.Now().UTC().AddDate(0, 0, -n).Format("2006-01-02")
}

func fixtureRecords() []airtable.Record {
	created := time.Now().UTC().AddDate(0, 0, -20)
	return []airtable.Record{
		{
			ID: "rec1", CreatedTime: created,
			Fields: map[string]any{
				"📼": "T-001", "Tape Name": "Wedding Reel", "Tape Sequence": "Family",
				"Rec Date": daysAgo(2), "Captured": true,
				"QT Filename": "t001.mov", "QT TRT": 3600.0, "Label RT": "1:00:00",
			},
		},
		{
			ID: "rec2", CreatedTime: created,
			Fields: map[string]any{
				"📼": "T-002", "Tape Name": "Birthday Party", "Tape Sequence": "Family",
				"Rec Date": daysAgo(2), "Captured": true,
			},
		},
		{
			ID: "rec3", CreatedTime: created,
			Fields: map[string]any{
				"📼": "T-003", "Tape Name": "Graduation",
				"Rec Date": daysAgo(10),
				"Captured": true, "Trimmed": true, "Combined": true, "Transferred to NAS": true,
				"QT Filename": "t003.mov", "Archival Filename": "t003_final.mov",
			},
		},
	}
}

type fixture struct {
	base *fakeBase
	svc  *Service
	mux  *http.ServeMux
	m    *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, fixtureRecords())
}

func newFixtureWith(t *testing.T, records []airtable.Record) *fixture {
	base := &fakeBase{records: records}
	srv := httptest.NewServer(base.handler(t))
	t.Cleanup(srv.Close)

	cfg := config.Config{
		AirtableAPIKey:   "pat-test",
		AirtableBaseID:   "appTEST123",
		AirtableTableRef: "Tapes",
		AirtableEndpoint: srv.URL,
		InternalPassword: "secret",
		DurationUnit:     config.UnitSeconds,
		PipelineStages:   []string{"Intake", "Capture", "Trim", "Combine", "Transfer", "Archived"},
		Fields:           config.DefaultFields(),
		FetchRetries:     1,
		FetchBaseDelay:   time.Millisecond,
		MaxRecords:       500,
		SummaryTTL:       time.Minute,
		TapesTTL:         time.Minute,
	}

	log := zap.NewNop().Sugar()
	m := metrics.New()
	client := airtable.New(cfg, log)
	svc := NewService(cfg, client, nil, m, log)
	mux := http.NewServeMux()
	NewRouter(cfg, svc, nil, m, log).Register(mux)
	return &fixture{base: base, svc: svc, mux: mux, m: m}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (f *fixture) post(t *testing.T, path, password, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if password != "" {
		req.Header.Set("X-Internal-Password", password)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

type tapesResponse struct {
	Items []tape.Tape `json:"items"`
	Total int         `json:"total"`
}

func TestTapesEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/api/tapes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp tapesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.Total)

	byID := map[string]tape.Tape{}
	for _, item := range resp.Items {
		byID[item.ID] = item
	}
	assert.Equal(t, tape.StageCapture, byID["rec1"].Stage)
	assert.Empty(t, byID["rec1"].IssueTags)
	assert.Equal(t, []string{tape.IssueMissingQTFile}, byID["rec2"].IssueTags)
	assert.Equal(t, tape.StageArchived, byID["rec3"].Stage)
	require.NotNil(t, byID["rec1"].QTRuntimeMinutes)
	assert.Equal(t, 60.0, *byID["rec1"].QTRuntimeMinutes)
}

func TestTapesFilters(t *testing.T) {
	f := newFixture(t)

	var resp tapesResponse
	require.NoError(t, json.Unmarshal(f.get(t, "/api/tapes?stage=Capture").Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)

	require.NoError(t, json.Unmarshal(f.get(t, "/api/tapes?hasIssues=true").Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "rec2", resp.Items[0].ID)

	require.NoError(t, json.Unmarshal(f.get(t, "/api/tapes?search=wedding").Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "rec1", resp.Items[0].ID)

	require.NoError(t, json.Unmarshal(f.get(t, "/api/tapes?stage=all").Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
}

func TestTapeDetailWithRelated(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/api/tapes/rec1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tape    tape.Tape   `json:"tape"`
		Related []tape.Tape `json:"related"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rec1", resp.Tape.ID)
	require.Len(t, resp.Related, 1, "same sequence, different record")
	assert.Equal(t, "rec2", resp.Related[0].ID)
}

func TestTapeDetailNotFound(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/tapes/recMissing").Code)
}

func TestSummaryEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/api/ops/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Kpis struct {
			TotalTapes    int `json:"totalTapes"`
			ArchivedTotal int `json:"archivedTotal"`
			BlockedQueue  int `json:"blockedQueue"`
		} `json:"kpis"`
		StageCounts   []json.RawMessage `json:"stageCounts"`
		ReceivedDaily []json.RawMessage `json:"receivedDaily"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Kpis.TotalTapes)
	assert.Equal(t, 1, resp.Kpis.ArchivedTotal)
	assert.Equal(t, 1, resp.Kpis.BlockedQueue)
	assert.Len(t, resp.StageCounts, 7)
	assert.Len(t, resp.ReceivedDaily, 30)
}

func TestSummaryCapturesOneClockValue(t *testing.T) {
	passNow := time.Date(2026, 8, 20, 23, 59, 59, 0, time.UTC)
	f := newFixtureWith(t, []airtable.Record{{
		ID: "rec1", CreatedTime: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		Fields: map[string]any{
			"📼": "T-001", "Tape Name": "Late Arrival", "Rec Date": "2026-08-20",
		},
	}})
	var reads int32
	f.svc.now = func() time.Time {
		// a second reading during the pass would land past midnight and
		// split the day buckets from the ages computed at normalization
		return passNow.Add(time.Duration(atomic.AddInt32(&reads, 1)-1) * time.Minute)
	}

	rec := f.get(t, "/api/ops/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		GeneratedAt time.Time `json:"generatedAt"`
		Kpis        struct {
			ReceivedToday int `json:"receivedToday"`
		} `json:"kpis"`
		ReceivedDaily []struct {
			Date  string `json:"date"`
			Count int    `json:"count"`
		} `json:"receivedDaily"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, int32(1), atomic.LoadInt32(&reads), "one clock reading per pass")
	assert.True(t, resp.GeneratedAt.Equal(passNow))
	assert.Equal(t, 1, resp.Kpis.ReceivedToday)

	last := resp.ReceivedDaily[len(resp.ReceivedDaily)-1]
	assert.Equal(t, "2026-08-20", last.Date)
	assert.Equal(t, 1, last.Count)
}

func TestTapesCacheServesRepeatReads(t *testing.T) {
	f := newFixture(t)
	f.get(t, "/api/tapes")
	f.get(t, "/api/tapes")
	f.get(t, "/api/tapes?stage=Capture")
	assert.Equal(t, 1, f.base.calls())

	snap := f.m.Snapshot()
	assert.Equal(t, int64(1), snap.CacheMisses)
	assert.Equal(t, int64(2), snap.CacheHits)
}

func TestSetFieldsInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	f.get(t, "/api/tapes")
	require.Equal(t, 1, f.base.calls())

	fm := config.DefaultFields()
	fm.TapeName = "Renamed Column"
	f.svc.SetFields(fm)

	f.get(t, "/api/tapes")
	assert.Equal(t, 2, f.base.calls())
}

func TestActionStatusRequiresPassword(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, "/api/actions/status", "", `{"id":"rec1","stage":"Trim"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.post(t, "/api/actions/status", "wrong", `{"id":"rec1","stage":"Trim"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Nil(t, f.base.patched("rec1"))
}

func TestActionStatusRejectsGet(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusMethodNotAllowed, f.get(t, "/api/actions/status").Code)
}

func TestActionStatusWritesFlags(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, "/api/actions/status", "secret", `{"id":"rec1","stage":"Combine"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	fields := f.base.patched("rec1")
	require.NotNil(t, fields)
	assert.Equal(t, true, fields["Captured"])
	assert.Equal(t, true, fields["Trimmed"])
	assert.Equal(t, true, fields["Combined"])
	_, hasTransfer := fields["Transferred to NAS"]
	assert.False(t, hasTransfer, "combine does not touch the transfer flag")
}

func TestActionStatusIntakeClearsFlags(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, "/api/actions/status", "secret", `{"id":"rec3","stage":"Intake"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	fields := f.base.patched("rec3")
	require.NotNil(t, fields)
	for _, col := range []string{"Captured", "Trimmed", "Combined", "Transferred to NAS"} {
		assert.Equal(t, false, fields[col], col)
	}
}

func TestActionStatusUnknownStage(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, "/api/actions/status", "secret", `{"id":"rec1","stage":"Teleport"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown stage")
}

func TestActionStatusMissingFields(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.post(t, "/api/actions/status", "secret", `{"id":"rec1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.post(t, "/api/actions/status", "secret", `not json`).Code)
}

func TestActionNotes(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, "/api/actions/notes", "secret", `{"id":"rec2","note":"re-digitize"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "re-digitize", f.base.patched("rec2")["Internal Notes"])

	assert.Equal(t, http.StatusBadRequest, f.post(t, "/api/actions/notes", "secret", `{"id":"rec2"}`).Code)
}

func TestEmptyPasswordDisablesAuth(t *testing.T) {
	base := &fakeBase{records: fixtureRecords()}
	srv := httptest.NewServer(base.handler(t))
	t.Cleanup(srv.Close)

	cfg := config.Config{
		AirtableAPIKey:   "pat-test",
		AirtableBaseID:   "appTEST123",
		AirtableTableRef: "Tapes",
		AirtableEndpoint: srv.URL,
		Fields:           config.DefaultFields(),
		FetchBaseDelay:   time.Millisecond,
		MaxRecords:       500,
	}
	log := zap.NewNop().Sugar()
	m := metrics.New()
	svc := NewService(cfg, airtable.New(cfg, log), nil, m, log)
	mux := http.NewServeMux()
	NewRouter(cfg, svc, nil, m, log).Register(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/actions/notes", strings.NewReader(`{"id":"rec1","note":"x"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthWithoutStore(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNoContent, f.get(t, "/ops/health").Code)
}

func TestOpsStatus(t *testing.T) {
	f := newFixture(t)
	f.get(t, "/api/tapes")

	rec := f.get(t, "/ops/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Metrics struct {
			Fetches int64 `json:"fetches"`
		} `json:"metrics"`
		Stages []string `json:"stages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Metrics.Fetches)
	assert.Len(t, resp.Stages, 6)
}

func TestHistoryWithoutStore(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/ops/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestUpstreamErrorSurfacesHints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Config{
		AirtableAPIKey:   "pat-bad",
		AirtableBaseID:   "appTEST123",
		AirtableTableRef: "Tapes",
		AirtableEndpoint: srv.URL,
		Fields:           config.DefaultFields(),
		FetchBaseDelay:   time.Millisecond,
		MaxRecords:       500,
	}
	log := zap.NewNop().Sugar()
	m := metrics.New()
	svc := NewService(cfg, airtable.New(cfg, log), nil, m, log)
	mux := http.NewServeMux()
	NewRouter(cfg, svc, nil, m, log).Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/tapes", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to fetch tapes", resp.Error)
	assert.Contains(t, resp.Detail, "AIRTABLE_API_KEY")
}
