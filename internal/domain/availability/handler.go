package availability

import (
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
	api.POST("/shifts/:id/slots/generate", h.GenerateSlots)
	api.GET("/slots", h.ListSlots)
	api.GET("/slots/:id", h.GetSlot)
	api.POST("/slots/:id/book", h.BookSlot)
	api.POST("/slots/:id/cancel", h.CancelBooking)
	api.GET("/patients/:id/bookings", h.PatientBookings)
	api.GET("/schedule/weekly", h.WeeklySchedule)
	api.GET("/schedule/utilization", h.Utilization)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrNotBooked):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrRangeTooLarge), validation.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type generateRequest struct {
	From        string `json:"from"`
	To          string `json:"to"`
	DurationMin int    `json:"duration_min,omitempty"`
}

func (h *Handler) GenerateSlots(c echo.Context) error {
	shiftID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	from, err := calendar.ParseDate(req.From)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from, expected YYYY-MM-DD")
	}
	to, err := calendar.ParseDate(req.To)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid to, expected YYYY-MM-DD")
	}
	inserted, err := h.svc.GenerateSlots(c.Request().Context(), shiftID, from, to, req.DurationMin)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"slots_created": inserted})
}

// ListSlots serves two shapes: doctor_id+date lists the open slots on
// that date, doctor_id+from+to lists every slot in the range.
func (h *Handler) ListSlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	ctx := c.Request().Context()

	if ds := c.QueryParam("date"); ds != "" {
		date, err := calendar.ParseDate(ds)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		}
		slots, err := h.svc.AvailableSlots(ctx, doctorID, date)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"items": slots, "total": len(slots)})
	}

	from, err := calendar.ParseDate(c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from, expected YYYY-MM-DD")
	}
	to, err := calendar.ParseDate(c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid to, expected YYYY-MM-DD")
	}
	slots, err := h.svc.SlotsInRange(ctx, doctorID, from, to)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": slots, "total": len(slots)})
}

func (h *Handler) GetSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	slot, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slot)
}

type bookRequest struct {
	PatientID  uuid.UUID `json:"patient_id"`
	BookingRef string    `json:"booking_ref,omitempty"`
}

func (h *Handler) BookSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	slot, err := h.svc.BookSlot(c.Request().Context(), id, req.PatientID, req.BookingRef)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slot)
}

func (h *Handler) CancelBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	slot, err := h.svc.CancelBooking(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slot)
}

func (h *Handler) PatientBookings(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.PatientBookings(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) WeeklySchedule(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	start, err := calendar.ParseDate(c.QueryParam("start"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid start, expected YYYY-MM-DD")
	}
	days, err := h.svc.WeeklySchedule(c.Request().Context(), doctorID, start)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"doctor_id": doctorID, "days": days})
}

func (h *Handler) Utilization(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	from, err := calendar.ParseDate(c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from, expected YYYY-MM-DD")
	}
	to, err := calendar.ParseDate(c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid to, expected YYYY-MM-DD")
	}
	u, err := h.svc.Utilization(c.Request().Context(), doctorID, from, to)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}
