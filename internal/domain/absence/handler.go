package absence

import (
	"context"
	"errors"
	"net/http"

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
	api.POST("/leaves", h.RequestLeave)
	api.GET("/leaves", h.ListLeaves)
	api.GET("/leaves/:id", h.GetLeave)
	api.POST("/leaves/:id/approve", h.ApproveLeave)
	api.POST("/leaves/:id/reject", h.RejectLeave)
	api.POST("/leaves/:id/cancel", h.CancelLeave)
	api.POST("/overrides", h.CreateOverride)
	api.GET("/overrides", h.ListOverrides)
	api.DELETE("/overrides/:id", h.DeleteOverride)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrLeaveOverlap),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrDuplicateOverride):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case validation.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type leaveRequest struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	LeaveKind string    `json:"leave_kind"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Reason    string    `json:"reason"`
}

func (h *Handler) RequestLeave(c echo.Context) error {
	var req leaveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid start_date, expected YYYY-MM-DD")
	}
	end, err := calendar.ParseDate(req.EndDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid end_date, expected YYYY-MM-DD")
	}
	l := Leave{DoctorID: req.DoctorID, Kind: req.LeaveKind, StartDate: start, EndDate: end, Reason: req.Reason}
	if err := h.svc.RequestLeave(c.Request().Context(), &l); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) GetLeave(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	l, err := h.svc.GetLeave(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) ListLeaves(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	if doctorID := c.QueryParam("doctor_id"); doctorID != "" {
		did, err := uuid.Parse(doctorID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		status := LeaveStatus(c.QueryParam("status"))
		items, total, err := h.svc.ListLeavesByDoctor(ctx, did, status, pg.Limit, pg.Offset)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}

	items, total, err := h.svc.ListPendingLeaves(ctx, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// decisionRequest carries who decided a leave and why. Both approve and
// reject record the decider.
type decisionRequest struct {
	ApproverID uuid.UUID `json:"approver_id"`
	Notes      string    `json:"notes,omitempty"`
}

func (h *Handler) ApproveLeave(c echo.Context) error {
	return h.decide(c, h.svc.ApproveLeave)
}

func (h *Handler) RejectLeave(c echo.Context) error {
	return h.decide(c, h.svc.RejectLeave)
}

func (h *Handler) decide(c echo.Context, fn func(ctx context.Context, id, approverID uuid.UUID, notes string) (*Leave, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l, err := fn(c.Request().Context(), id, req.ApproverID, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) CancelLeave(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	l, err := h.svc.CancelLeave(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, l)
}

type overrideRequest struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	Available bool      `json:"available"`
	StartTime string    `json:"start_time,omitempty"`
	EndTime   string    `json:"end_time,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedBy uuid.UUID `json:"created_by"`
}

func (h *Handler) CreateOverride(c echo.Context) error {
	var req overrideRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
	}
	o := Override{DoctorID: req.DoctorID, Date: date, Available: req.Available, Reason: req.Reason, CreatedBy: req.CreatedBy}
	if req.StartTime != "" {
		st, err := calendar.ParseClock(req.StartTime)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid start_time, expected HH:MM")
		}
		o.StartTime = &st
	}
	if req.EndTime != "" {
		et, err := calendar.ParseClock(req.EndTime)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid end_time, expected HH:MM")
		}
		o.EndTime = &et
	}
	if err := h.svc.CreateOverride(c.Request().Context(), &o); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) DeleteOverride(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteOverride(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListOverrides(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListOverrides(c.Request().Context(), doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
