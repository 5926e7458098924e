package duty

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestServer(svc *Service) *echo.Echo {
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))
	return e
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateDuty(t *testing.T) {
	svc, _, _, _ := newTestService()
	e := newTestServer(svc)

	body := fmt.Sprintf(`{"doctor_id":%q,"hospital_id":%q,"start_date":"2025-06-01"}`,
		uuid.NewString(), uuid.NewString())
	rec := doJSON(e, http.MethodPost, "/api/v1/duties", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var d Duty
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.ID == uuid.Nil || !d.Active {
		t.Fatalf("created duty = %+v, want an active duty with an id", d)
	}
}

func TestHandler_CreateDuty_FullPayload(t *testing.T) {
	svc, _, _, _ := newTestService()
	e := newTestServer(svc)

	dept := uuid.NewString()
	body := fmt.Sprintf(`{"doctor_id":%q,"hospital_id":%q,"department_id":%q,"duty_kind":"EMERGENCY","start_date":"2025-06-01","notes":"trauma unit"}`,
		uuid.NewString(), uuid.NewString(), dept)
	rec := doJSON(e, http.MethodPost, "/api/v1/duties", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var d Duty
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Kind != DutyEmergency {
		t.Errorf("kind = %s, want EMERGENCY", d.Kind)
	}
	if d.DepartmentID == nil || d.DepartmentID.String() != dept {
		t.Errorf("department = %v, want %s", d.DepartmentID, dept)
	}
	if d.Notes != "trauma unit" {
		t.Errorf("notes = %q, want %q", d.Notes, "trauma unit")
	}
}

func TestHandler_CreateDuty_BadDate(t *testing.T) {
	svc, _, _, _ := newTestService()
	e := newTestServer(svc)

	body := fmt.Sprintf(`{"doctor_id":%q,"hospital_id":%q,"start_date":"June 1st"}`,
		uuid.NewString(), uuid.NewString())
	rec := doJSON(e, http.MethodPost, "/api/v1/duties", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandler_EndDuty_NotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	e := newTestServer(svc)

	rec := doJSON(e, http.MethodPost, "/api/v1/duties/"+uuid.NewString()+"/end",
		`{"end_date":"2025-06-30"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandler_CreateShifts_Bulk(t *testing.T) {
	svc, _, _, _ := newTestService()
	e := newTestServer(svc)

	d := &Duty{DoctorID: uuid.New(), HospitalID: uuid.New(), StartDate: date(2025, 1, 1)}
	if err := svc.CreateDuty(context.Background(), d); err != nil {
		t.Fatalf("CreateDuty: %v", err)
	}

	body := `{"days":[1,3,5],"start_time":"09:00","end_time":"17:00","break_start":"13:00","break_end":"13:30","default_duration_min":30}`
	rec := doJSON(e, http.MethodPost, "/api/v1/duties/"+d.ID.String()+"/shifts", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var shifts []*Shift
	if err := json.Unmarshal(rec.Body.Bytes(), &shifts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(shifts) != 3 {
		t.Fatalf("created %d shifts, want 3", len(shifts))
	}
	for _, sh := range shifts {
		if sh.BreakStart == nil || sh.BreakEnd == nil {
			t.Fatalf("break not carried into shift %+v", sh)
		}
	}
}

func TestHandler_CreateShifts_RequiresWeekdayOrDays(t *testing.T) {
	svc, _, _, _ := newTestService()
	e := newTestServer(svc)

	d := &Duty{DoctorID: uuid.New(), HospitalID: uuid.New(), StartDate: date(2025, 1, 1)}
	if err := svc.CreateDuty(context.Background(), d); err != nil {
		t.Fatalf("CreateDuty: %v", err)
	}

	body := `{"start_time":"09:00","end_time":"17:00","default_duration_min":30}`
	rec := doJSON(e, http.MethodPost, "/api/v1/duties/"+d.ID.String()+"/shifts", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandler_CreateShifts_Single(t *testing.T) {
	svc, _, _, _ := newTestService()
	e := newTestServer(svc)

	d := &Duty{DoctorID: uuid.New(), HospitalID: uuid.New(), StartDate: date(2025, 1, 1)}
	if err := svc.CreateDuty(context.Background(), d); err != nil {
		t.Fatalf("CreateDuty: %v", err)
	}

	body := `{"weekday":2,"start_time":"08:00","end_time":"12:00","default_duration_min":20,"max_concurrent_bookings":3}`
	rec := doJSON(e, http.MethodPost, "/api/v1/duties/"+d.ID.String()+"/shifts", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var sh Shift
	if err := json.Unmarshal(rec.Body.Bytes(), &sh); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sh.Weekday != time.Tuesday || sh.DefaultDurationMin != 20 {
		t.Fatalf("shift = %+v, want a Tuesday shift with 20-minute slots", sh)
	}
	if sh.MaxConcurrentBookings != 3 {
		t.Errorf("max_concurrent_bookings = %d, want 3", sh.MaxConcurrentBookings)
	}
	if !sh.Active {
		t.Error("new shift should be active")
	}
}

func TestHandler_DeleteShift(t *testing.T) {
	svc, _, _, cleaner := newTestService()
	e := newTestServer(svc)

	d := &Duty{DoctorID: uuid.New(), HospitalID: uuid.New(), StartDate: date(2025, 1, 1)}
	if err := svc.CreateDuty(context.Background(), d); err != nil {
		t.Fatalf("CreateDuty: %v", err)
	}
	sh := &Shift{
		DutyID:             d.ID,
		Weekday:            time.Monday,
		StartTime:          clockOf(t, "09:00"),
		EndTime:            clockOf(t, "12:00"),
		DefaultDurationMin: 30,
	}
	if err := svc.CreateShift(context.Background(), sh); err != nil {
		t.Fatalf("CreateShift: %v", err)
	}

	rec := doJSON(e, http.MethodDelete, "/api/v1/shifts/"+sh.ID.String(), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if _, ok := cleaner.byShift[sh.ID]; !ok {
		t.Fatal("slot cleanup not triggered by delete")
	}
}
