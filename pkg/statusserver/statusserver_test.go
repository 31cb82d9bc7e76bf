package statusserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cogscaffold/core/pkg/orgkernel"
)

func TestHandleLatest_ReturnsStoredReport(t *testing.T) {
	dir := t.TempDir()
	store := orgkernel.NewReportStore(dir)
	report := orgkernel.Report{
		Unit: orgkernel.ReportUnit{RoleID: "bugfix_specialist"},
		Time: orgkernel.ReportTime{Timestamp: time.Now().UTC()},
	}
	if err := store.Emit("bugfix_specialist", report); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	srv := New(store, []string{"bugfix_specialist"})
	req := httptest.NewRequest(http.MethodGet, "/roles/bugfix_specialist/latest", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleLatest_UnknownRoleReturns404(t *testing.T) {
	dir := t.TempDir()
	store := orgkernel.NewReportStore(dir)
	srv := New(store, nil)

	req := httptest.NewRequest(http.MethodGet, "/roles/nobody/latest", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleHealthz(t *testing.T) {
	srv := New(orgkernel.NewReportStore(t.TempDir()), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
