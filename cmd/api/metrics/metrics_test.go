package metrics_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apppkg "github.com/mark3748/helpdesk-ans/cmd/api/app"
	authpkg "github.com/mark3748/helpdesk-ans/cmd/api/auth"
	metrics "github.com/mark3748/helpdesk-ans/cmd/api/metrics"
)

type fakeRow struct {
	vals []int
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i := range dest {
		*dest[i].(*int) = r.vals[i]
	}
	return nil
}

type fakeDB struct{ row fakeRow }

func (db *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (db *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row    { return db.row }
func (db *fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func serve(t *testing.T, db apppkg.DB) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := apppkg.Config{Env: "test", TestBypassAuth: true}
	a := apppkg.NewApp(cfg, db, nil, nil, nil)
	a.R.GET("/metrics/sla", authpkg.Middleware(a), authpkg.RequireRole("agent"), metrics.SLA(a))
	rr := httptest.NewRecorder()
	a.R.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics/sla", nil))
	return rr
}

func TestSLAWithoutDB(t *testing.T) {
	rr := serve(t, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var rep metrics.SLAReport
	if err := json.Unmarshal(rr.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep != (metrics.SLAReport{}) {
		t.Fatalf("expected empty report, got %+v", rep)
	}
}

func TestSLAAttainment(t *testing.T) {
	rr := serve(t, &fakeDB{row: fakeRow{vals: []int{8, 2}}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var rep metrics.SLAReport
	if err := json.Unmarshal(rr.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := metrics.SLAReport{Total: 8, Met: 6, Breached: 2, SLAAttainment: 0.75}
	if rep != want {
		t.Fatalf("report = %+v, want %+v", rep, want)
	}
}

func TestSLADBError(t *testing.T) {
	rr := serve(t, &fakeDB{row: fakeRow{err: errors.New("boom")}})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}
