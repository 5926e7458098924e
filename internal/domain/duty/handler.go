package duty

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medsched/medsched/pkg/calendar"
	"github.com/medsched/medsched/pkg/pagination"
	"github.com/medsched/medsched/pkg/validation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/duties", h.CreateDuty)
	api.GET("/duties", h.ListDuties)
	api.GET("/duties/:id", h.GetDuty)
	api.PUT("/duties/:id", h.UpdateDuty)
	api.POST("/duties/:id/end", h.EndDuty)
	api.POST("/duties/:id/shifts", h.CreateShifts)
	api.GET("/duties/:id/shifts", h.ListShifts)
	api.GET("/shifts/:id", h.GetShift)
	api.PUT("/shifts/:id", h.UpdateShift)
	api.DELETE("/shifts/:id", h.DeleteShift)
	api.GET("/schedule/day", h.ShiftsForDate)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case validation.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type createDutyRequest struct {
	DoctorID     uuid.UUID  `json:"doctor_id"`
	HospitalID   uuid.UUID  `json:"hospital_id"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	DutyKind     string     `json:"duty_kind,omitempty"`
	StartDate    string     `json:"start_date"`
	EndDate      string     `json:"end_date,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

func (h *Handler) CreateDuty(c echo.Context) error {
	var req createDutyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid start_date, expected YYYY-MM-DD")
	}
	d := Duty{
		DoctorID:     req.DoctorID,
		HospitalID:   req.HospitalID,
		DepartmentID: req.DepartmentID,
		Kind:         DutyKind(req.DutyKind),
		StartDate:    start,
		Notes:        req.Notes,
	}
	if req.EndDate != "" {
		end, err := calendar.ParseDate(req.EndDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid end_date, expected YYYY-MM-DD")
		}
		d.EndDate = &end
	}
	if err := h.svc.CreateDuty(c.Request().Context(), &d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDuty(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDuty(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDuties(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	if doctorID := c.QueryParam("doctor_id"); doctorID != "" {
		did, err := uuid.Parse(doctorID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		items, total, err := h.svc.ListDutiesByDoctor(ctx, did, pg.Limit, pg.Offset)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}

	if hospitalID := c.QueryParam("hospital_id"); hospitalID != "" {
		hid, err := uuid.Parse(hospitalID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital_id")
		}
		items, total, err := h.svc.ListDutiesByHospital(ctx, hid, pg.Limit, pg.Offset)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}

	items, err := h.svc.CurrentDuties(ctx)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

type updateDutyRequest struct {
	DutyKind  string  `json:"duty_kind"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Active    *bool   `json:"active"`
	Notes     *string `json:"notes"`
}

func (h *Handler) UpdateDuty(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateDutyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	d, err := h.svc.GetDuty(ctx, id)
	if err != nil {
		return httpError(err)
	}
	if req.StartDate != "" {
		start, err := calendar.ParseDate(req.StartDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid start_date, expected YYYY-MM-DD")
		}
		d.StartDate = start
	}
	if req.EndDate != "" {
		end, err := calendar.ParseDate(req.EndDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid end_date, expected YYYY-MM-DD")
		}
		d.EndDate = &end
	}
	if req.DutyKind != "" {
		d.Kind = DutyKind(req.DutyKind)
	}
	if req.Active != nil {
		d.Active = *req.Active
	}
	if req.Notes != nil {
		d.Notes = *req.Notes
	}
	if err := h.svc.UpdateDuty(ctx, d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

type endDutyRequest struct {
	EndDate string `json:"end_date"`
}

func (h *Handler) EndDuty(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req endDutyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	endDate := time.Now()
	if req.EndDate != "" {
		endDate, err = calendar.ParseDate(req.EndDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid end_date, expected YYYY-MM-DD")
		}
	}
	d, err := h.svc.EndDuty(c.Request().Context(), id, endDate)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

type createShiftsRequest struct {
	Days                  []int  `json:"days,omitempty"`
	Weekday               *int   `json:"weekday,omitempty"`
	StartTime             string `json:"start_time"`
	EndTime               string `json:"end_time"`
	BreakStart            string `json:"break_start,omitempty"`
	BreakEnd              string `json:"break_end,omitempty"`
	DefaultDurationMin    int    `json:"default_duration_min"`
	MaxConcurrentBookings int    `json:"max_concurrent_bookings,omitempty"`
}

func (h *Handler) CreateShifts(c echo.Context) error {
	dutyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req createShiftsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	tmpl := Shift{
		DefaultDurationMin:    req.DefaultDurationMin,
		MaxConcurrentBookings: req.MaxConcurrentBookings,
	}
	if tmpl.StartTime, err = calendar.ParseClock(req.StartTime); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid start_time, expected HH:MM")
	}
	if tmpl.EndTime, err = calendar.ParseClock(req.EndTime); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid end_time, expected HH:MM")
	}
	if req.BreakStart != "" {
		bs, err := calendar.ParseClock(req.BreakStart)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid break_start, expected HH:MM")
		}
		tmpl.BreakStart = &bs
	}
	if req.BreakEnd != "" {
		be, err := calendar.ParseClock(req.BreakEnd)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid break_end, expected HH:MM")
		}
		tmpl.BreakEnd = &be
	}

	ctx := c.Request().Context()

	// Single-shift create when "weekday" is given, bulk when "days" is.
	if len(req.Days) == 0 {
		if req.Weekday == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "either weekday or days is required")
		}
		sh := tmpl
		sh.DutyID = dutyID
		sh.Weekday = time.Weekday(*req.Weekday)
		if err := h.svc.CreateShift(ctx, &sh); err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusCreated, sh)
	}

	days := make([]time.Weekday, 0, len(req.Days))
	for _, d := range req.Days {
		days = append(days, time.Weekday(d))
	}
	shifts, err := h.svc.CreateShiftsForDays(ctx, dutyID, days, tmpl)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, shifts)
}

func (h *Handler) ListShifts(c echo.Context) error {
	dutyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	shifts, err := h.svc.ListShiftsByDuty(c.Request().Context(), dutyID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, shifts)
}

func (h *Handler) GetShift(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sh, err := h.svc.GetShift(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sh)
}

type updateShiftRequest struct {
	Weekday               *int   `json:"weekday"`
	StartTime             string `json:"start_time"`
	EndTime               string `json:"end_time"`
	BreakStart            string `json:"break_start"`
	BreakEnd              string `json:"break_end"`
	DefaultDurationMin    *int   `json:"default_duration_min"`
	MaxConcurrentBookings *int   `json:"max_concurrent_bookings"`
	Active                *bool  `json:"active"`
}

func (h *Handler) UpdateShift(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateShiftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	sh, err := h.svc.GetShift(ctx, id)
	if err != nil {
		return httpError(err)
	}
	if req.Weekday != nil {
		sh.Weekday = time.Weekday(*req.Weekday)
	}
	if req.StartTime != "" {
		if sh.StartTime, err = calendar.ParseClock(req.StartTime); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid start_time, expected HH:MM")
		}
	}
	if req.EndTime != "" {
		if sh.EndTime, err = calendar.ParseClock(req.EndTime); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid end_time, expected HH:MM")
		}
	}
	if req.BreakStart != "" {
		bs, err := calendar.ParseClock(req.BreakStart)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid break_start, expected HH:MM")
		}
		sh.BreakStart = &bs
	}
	if req.BreakEnd != "" {
		be, err := calendar.ParseClock(req.BreakEnd)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid break_end, expected HH:MM")
		}
		sh.BreakEnd = &be
	}
	if req.DefaultDurationMin != nil {
		sh.DefaultDurationMin = *req.DefaultDurationMin
	}
	if req.MaxConcurrentBookings != nil {
		sh.MaxConcurrentBookings = *req.MaxConcurrentBookings
	}
	if req.Active != nil {
		sh.Active = *req.Active
	}
	if err := h.svc.UpdateShift(ctx, sh); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sh)
}

func (h *Handler) DeleteShift(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteShift(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ShiftsForDate(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	date, err := calendar.ParseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
	}
	shifts, err := h.svc.ShiftsForDate(c.Request().Context(), doctorID, date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, shifts)
}
