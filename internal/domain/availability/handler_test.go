package availability

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

	"github.com/medsched/medsched/pkg/calendar"
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

func TestHandler_GenerateSlots(t *testing.T) {
	tmpl := newTestTemplate(time.Monday)
	repo := newMockSlotRepo()
	e := newTestServer(newTestService(repo, newMockShiftSource(tmpl), nil))

	body := fmt.Sprintf(`{"from":%q,"to":%q}`, calendar.FormatDate(mon), calendar.FormatDate(mon))
	rec := doJSON(e, http.MethodPost, "/api/v1/shifts/"+tmpl.ID.String()+"/slots/generate", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["slots_created"] != 6 {
		t.Fatalf("slots_created = %d, want 6", resp["slots_created"])
	}
}

func TestHandler_GenerateSlots_RangeTooLarge(t *testing.T) {
	tmpl := newTestTemplate(time.Monday)
	e := newTestServer(newTestService(newMockSlotRepo(), newMockShiftSource(tmpl), nil))

	body := fmt.Sprintf(`{"from":%q,"to":%q}`,
		calendar.FormatDate(mon), calendar.FormatDate(mon.AddDate(0, 0, 90)))
	rec := doJSON(e, http.MethodPost, "/api/v1/shifts/"+tmpl.ID.String()+"/slots/generate", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandler_GenerateSlots_UnknownShift(t *testing.T) {
	e := newTestServer(newTestService(newMockSlotRepo(), newMockShiftSource(), nil))

	body := fmt.Sprintf(`{"from":%q,"to":%q}`, calendar.FormatDate(mon), calendar.FormatDate(mon))
	rec := doJSON(e, http.MethodPost, "/api/v1/shifts/"+uuid.NewString()+"/slots/generate", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandler_BookSlot_Conflict(t *testing.T) {
	tmpl := newTestTemplate(time.Monday)
	repo := newMockSlotRepo()
	svc := newTestService(repo, newMockShiftSource(tmpl), nil)
	e := newTestServer(svc)
	slot := seedSlot(t, repo, tmpl)

	body := fmt.Sprintf(`{"patient_id":%q}`, uuid.NewString())
	rec := doJSON(e, http.MethodPost, "/api/v1/slots/"+slot.ID.String()+"/book", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("first booking status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(e, http.MethodPost, "/api/v1/slots/"+slot.ID.String()+"/book",
		fmt.Sprintf(`{"patient_id":%q}`, uuid.NewString()))
	if rec.Code != http.StatusConflict {
		t.Fatalf("second booking status = %d, want 409", rec.Code)
	}
}

func TestHandler_BookSlot_MissingPatient(t *testing.T) {
	tmpl := newTestTemplate(time.Monday)
	repo := newMockSlotRepo()
	e := newTestServer(newTestService(repo, newMockShiftSource(tmpl), nil))
	slot := seedSlot(t, repo, tmpl)

	rec := doJSON(e, http.MethodPost, "/api/v1/slots/"+slot.ID.String()+"/book", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandler_CancelBooking_NotBooked(t *testing.T) {
	tmpl := newTestTemplate(time.Monday)
	repo := newMockSlotRepo()
	e := newTestServer(newTestService(repo, newMockShiftSource(tmpl), nil))
	slot := seedSlot(t, repo, tmpl)

	rec := doJSON(e, http.MethodPost, "/api/v1/slots/"+slot.ID.String()+"/cancel", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestHandler_GetSlot_NotFound(t *testing.T) {
	tmpl := newTestTemplate(time.Monday)
	e := newTestServer(newTestService(newMockSlotRepo(), newMockShiftSource(tmpl), nil))

	rec := doJSON(e, http.MethodGet, "/api/v1/slots/"+uuid.NewString(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandler_ListSlots_ByDate(t *testing.T) {
	tmpl := newTestTemplate(time.Monday)
	repo := newMockSlotRepo()
	svc := newTestService(repo, newMockShiftSource(tmpl), nil)
	e := newTestServer(svc)

	if _, err := svc.GenerateSlots(context.Background(), tmpl.ID, mon, mon, 0); err != nil {
		t.Fatalf("generate: %v", err)
	}
	rec := doJSON(e, http.MethodGet,
		"/api/v1/slots?doctor_id="+tmpl.DoctorID.String()+"&date="+calendar.FormatDate(mon), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Total != 6 {
		t.Fatalf("total = %d, want 6", resp.Total)
	}
}

func TestHandler_ListSlots_BadDoctorID(t *testing.T) {
	tmpl := newTestTemplate(time.Monday)
	e := newTestServer(newTestService(newMockSlotRepo(), newMockShiftSource(tmpl), nil))

	rec := doJSON(e, http.MethodGet, "/api/v1/slots?doctor_id=nope", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandler_WeeklySchedule(t *testing.T) {
	tmpl := newTestTemplate(time.Monday)
	repo := newMockSlotRepo()
	e := newTestServer(newTestService(repo, newMockShiftSource(tmpl), nil))

	rec := doJSON(e, http.MethodGet,
		"/api/v1/schedule/weekly?doctor_id="+tmpl.DoctorID.String()+"&start="+calendar.FormatDate(mon), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Days []DaySchedule `json:"days"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Days) != 7 {
		t.Fatalf("days = %d, want 7", len(resp.Days))
	}
}

func TestHandler_Utilization(t *testing.T) {
	tmpl := newTestTemplate(time.Monday)
	repo := newMockSlotRepo()
	svc := newTestService(repo, newMockShiftSource(tmpl), nil)
	e := newTestServer(svc)

	if _, err := svc.GenerateSlots(context.Background(), tmpl.ID, mon, mon, 0); err != nil {
		t.Fatalf("generate: %v", err)
	}
	rec := doJSON(e, http.MethodGet,
		"/api/v1/schedule/utilization?doctor_id="+tmpl.DoctorID.String()+
			"&from="+calendar.FormatDate(mon)+"&to="+calendar.FormatDate(mon.AddDate(0, 0, 6)), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var u Utilization
	if err := json.Unmarshal(rec.Body.Bytes(), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.TotalSlots != 6 || u.BookedSlots != 0 {
		t.Fatalf("utilization = %+v, want 6 total / 0 booked", u)
	}
}
