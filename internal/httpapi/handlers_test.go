package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/poku-e/invisible-city/internal/city"
	"github.com/poku-e/invisible-city/internal/export"
	"github.com/poku-e/invisible-city/internal/store"
)

// failingStore fails every call.
type failingStore struct{ err error }

func (f failingStore) Insert(context.Context, city.NewBuilding) (city.Building, error) {
	return city.Building{}, f.err
}
func (f failingStore) ListAll(context.Context) ([]city.Building, error) { return nil, f.err }
func (f failingStore) GetByID(context.Context, int64) (city.Building, error) {
	return city.Building{}, f.err
}
func (f failingStore) Ping(context.Context) error { return f.err }
func (f failingStore) Close() error { return nil }

type recordingPublisher struct {
	got []city.Building
	err error
}

func (p *recordingPublisher) BuildingAdded(_ context.Context, b city.Building) error {
	p.got = append(p.got, b)
	return p.err
}
func (p *recordingPublisher) Close() {}

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	st := store.NewMemory()
	t.Cleanup(func() { _ = st.Close() })
	return New(st, nil, zap.NewNop()), st
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeRecord(t *testing.T, rr *httptest.ResponseRecorder) city.Record {
	t.Helper()
	var rec city.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec), rr.Body.String())
	return rec
}

func addBuilding(t *testing.T, h http.Handler, typ string, x, y int) city.Record {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"type": typ, "description": typ + " desc", "x_position": x, "y_position": y,
	})
	require.NoError(t, err)
	rr := do(t, h, http.MethodPost, "/add", string(body))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decodeRecord(t, rr)
}

func TestAddBuilding(t *testing.T) {
	srv, _ := newTestServer(t)

	before := time.Now().UTC().Truncate(time.Second)
	rr := do(t, srv, http.MethodPost, "/add",
		`{"type":"house","description":"x","x_position":10,"y_position":20}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	rec := decodeRecord(t, rr)
	assert.Equal(t, int64(1), rec.ID)
	assert.Equal(t, "house", rec.Type)
	assert.Equal(t, "x", rec.Description)
	assert.Equal(t, 10, rec.X)
	assert.Equal(t, 20, rec.Y)
	assert.Equal(t, "🏠", rec.Icon)

	ts, err := time.ParseInLocation(city.TimeLayout, rec.Timestamp, time.UTC)
	require.NoError(t, err)
	assert.False(t, ts.Before(before), "timestamp %s before request start %s", ts, before)
}

func TestAddBuildingOptionalDescription(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/add", `{"type":"park","x_position":0,"y_position":0}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rec := decodeRecord(t, rr)
	assert.Equal(t, "", rec.Description)
	assert.Equal(t, "🌳", rec.Icon)
}

func TestAddBuildingKeepsInputVerbatim(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantType string
		wantDesc string
		wantIcon string
	}{
		{
			name:     "surrounding whitespace",
			body:     `{"type":" house","description":"  two spaces  ","x_position":1,"y_position":2}`,
			wantType: " house",
			wantDesc: "  two spaces  ",
			wantIcon: city.DefaultIcon,
		},
		{
			name:     "empty type",
			body:     `{"type":"","description":"","x_position":1,"y_position":2}`,
			wantType: "",
			wantDesc: "",
			wantIcon: city.DefaultIcon,
		},
		{
			name:     "whitespace only type",
			body:     `{"type":"   ","x_position":1,"y_position":2}`,
			wantType: "   ",
			wantDesc: "",
			wantIcon: city.DefaultIcon,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, st := newTestServer(t)

			rr := do(t, srv, http.MethodPost, "/add", tt.body)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			rec := decodeRecord(t, rr)
			assert.Equal(t, tt.wantType, rec.Type)
			assert.Equal(t, tt.wantDesc, rec.Description)
			assert.Equal(t, tt.wantIcon, rec.Icon)

			b, err := st.GetByID(context.Background(), rec.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, b.Type)
			assert.Equal(t, tt.wantDesc, b.Description)

			rr = do(t, srv, http.MethodGet, "/api/building/1", "")
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, rec, decodeRecord(t, rr))
		})
	}
}

func TestAddBuildingLargeValues(t *testing.T) {
	srv, _ := newTestServer(t)

	long := strings.Repeat("tower", 60)
	body, err := json.Marshal(map[string]any{
		"type": long, "x_position": int64(1) << 40, "y_position": -(int64(1) << 35),
	})
	require.NoError(t, err)

	rr := do(t, srv, http.MethodPost, "/add", string(body))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rec := decodeRecord(t, rr)
	assert.Equal(t, long, rec.Type)
	assert.Equal(t, 1<<40, rec.X)
	assert.Equal(t, -(1 << 35), rec.Y)
}

func TestAddBuildingUnknownType(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := addBuilding(t, srv, "spaceport", 5, 5)
	assert.Equal(t, "spaceport", rec.Type)
	assert.Equal(t, city.DefaultIcon, rec.Icon)
}

func TestAddBuildingRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing type", `{"description":"x","x_position":1,"y_position":2}`, "missing field: type"},
		{"missing x", `{"type":"house","y_position":2}`, "missing field: x_position"},
		{"missing y", `{"type":"house","x_position":1}`, "missing field: y_position"},
		{"null type", `{"type":null,"x_position":1,"y_position":2}`, "missing field: type"},
		{"malformed json", `{"type":"house",`, "invalid json"},
		{"wrong type", `{"type":"house","x_position":"ten","y_position":2}`, "invalid json"},
		{"not an object", `[1,2,3]`, "invalid json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, st := newTestServer(t)

			rr := do(t, srv, http.MethodPost, "/add", tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body["error"])

			all, err := st.ListAll(context.Background())
			require.NoError(t, err)
			assert.Empty(t, all, "rejected create must not store anything")
		})
	}
}

func TestAddBuildingOversizedBody(t *testing.T) {
	srv, _ := newTestServer(t)

	desc := strings.Repeat("a", maxBodyBytes)
	rr := do(t, srv, http.MethodPost, "/add",
		`{"type":"house","description":"`+desc+`","x_position":1,"y_position":2}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAddMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/add", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestListBuildings(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/buildings", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String(), "empty city lists as an array, not null")

	types := []string{"house", "library", "spaceport"}
	var created []city.Record
	for i, typ := range types {
		created = append(created, addBuilding(t, srv, typ, i*10, i*20))
	}

	rr = do(t, srv, http.MethodGet, "/api/buildings", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var got []city.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, len(types))
	assert.Equal(t, created, got)
	assert.Equal(t, "📚", got[1].Icon)
	assert.Equal(t, city.DefaultIcon, got[2].Icon)
}

func TestGetBuilding(t *testing.T) {
	srv, _ := newTestServer(t)
	addBuilding(t, srv, "house", 1, 1)
	created := addBuilding(t, srv, "fountain", 100, 200)

	for i := 0; i < 2; i++ {
		rr := do(t, srv, http.MethodGet, "/api/building/2", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, created, decodeRecord(t, rr), "records never change between fetches")
	}
}

func TestGetBuildingNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	addBuilding(t, srv, "house", 1, 1)

	for _, target := range []string{
		"/api/building/99",
		"/api/building/0",
		"/api/building/-1",
		"/api/building/abc",
		"/api/building/1.5",
	} {
		t.Run(target, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, target, "")
			assert.Equal(t, http.StatusNotFound, rr.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, store.ErrNotFound.Error(), body["error"])
		})
	}
}

func TestStoreFailures(t *testing.T) {
	srv := New(failingStore{err: errors.New("disk on fire")}, nil, zap.NewNop())

	tests := []struct {
		method, target, body string
		want                 int
	}{
		{http.MethodPost, "/add", `{"type":"house","x_position":1,"y_position":2}`, http.StatusInternalServerError},
		{http.MethodGet, "/api/buildings", "", http.StatusInternalServerError},
		{http.MethodGet, "/api/building/1", "", http.StatusInternalServerError},
		{http.MethodGet, "/export.xlsx", "", http.StatusInternalServerError},
		{http.MethodGet, "/", "", http.StatusInternalServerError},
		{http.MethodGet, "/healthz", "", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.want, rr.Code)
			assert.NotContains(t, rr.Body.String(), "disk on fire", "internal errors stay in the log")
		})
	}
}

func TestBuildingEventPublished(t *testing.T) {
	pub := &recordingPublisher{}
	srv := New(store.NewMemory(), pub, zap.NewNop())

	rec := addBuilding(t, srv, "museum", 3, 4)
	require.Len(t, pub.got, 1)
	assert.Equal(t, rec, pub.got[0].Record())
}

func TestBuildingEventFailureKeepsCreate(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	st := store.NewMemory()
	srv := New(st, pub, zap.NewNop())

	rec := addBuilding(t, srv, "theater", 3, 4)
	assert.Equal(t, "🎭", rec.Icon)

	b, err := st.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "theater", b.Type)
}

func TestCatalogEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/catalog", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var got []city.Entry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, len(city.Types()))
	assert.Equal(t, city.Entry{Type: "house", Label: "House", Icon: "🏠"}, got[0])
	assert.Equal(t, city.Entry{Type: "weird_sculpture", Label: "Weird Sculpture", Icon: "🗿"}, got[len(got)-1])
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestExportXLSX(t *testing.T) {
	srv, _ := newTestServer(t)
	addBuilding(t, srv, "house", 10, 20)
	addBuilding(t, srv, "hotel", 30, 40)

	rr := do(t, srv, http.MethodGet, "/export.xlsx", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "invisible-city.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, export.Header, rows[0])
	assert.Equal(t, "hotel", rows[2][1])
	assert.Equal(t, "🏨", rows[2][3])
}

func TestIndexPage(t *testing.T) {
	srv, _ := newTestServer(t)
	addBuilding(t, srv, "school", 50, 60)

	rr := do(t, srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), `id="building-1"`)

	rr = do(t, srv, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodOptions, "/add", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")

	rr = do(t, srv, http.MethodGet, "/api/buildings", "")
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get(requestIDHeader))

	rr = do(t, srv, http.MethodGet, "/healthz", "")
	_, err := uuid.Parse(rr.Header().Get(requestIDHeader))
	assert.NoError(t, err, "a fresh id is generated when the client sends none")
}

func TestJSONResponsesEscapeHTML(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/add", `{"type":"<b>tower</b>","x_position":1,"y_position":2}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `\u003cb\u003etower\u003c/b\u003e`)
	assert.NotContains(t, rr.Body.String(), "<b>")
	assert.Equal(t, "<b>tower</b>", decodeRecord(t, rr).Type)
}
