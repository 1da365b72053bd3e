package scheduling

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// The calendar is mutated by staff only: doctors and their
	// secretaries book and cancel, patients call the clinic.
	staff := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RoleSecretary))
	staff.POST("/appointments", h.Create)
	staff.PUT("/appointments/:id", h.Update)
	staff.POST("/appointments/:id/cancel", h.Cancel)
	// DELETE is an alias for cancel: appointments are never hard-deleted.
	staff.DELETE("/appointments/:id", h.Cancel)
	staff.GET("/doctors/:id/week", h.DoctorWeek)

	viewer := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RolePatient, auth.RoleSecretary))
	viewer.GET("/appointments/:id", h.Get)
	viewer.GET("/patients/:id/appointments", h.PatientAppointments)

	secGroup := api.Group("", auth.RequireRole(auth.RoleSecretary))
	secGroup.GET("/my/week", h.SecretaryWeek)
}

func identityOr401(c echo.Context) (auth.Identity, error) {
	ident, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return auth.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return ident, nil
}

// parseAnchor reads the optional ?week= anchor date (RFC 3339 or
// YYYY-MM-DD) or ?week_offset= relative week count (-1 = last week,
// 1 = next week). Absent both, the current week.
func parseAnchor(c echo.Context) (time.Time, error) {
	if raw := c.QueryParam("week"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			return t, nil
		}
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid week parameter")
	}
	if raw := c.QueryParam("week_offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid week_offset parameter")
		}
		return time.Now().AddDate(0, 0, 7*n), nil
	}
	return time.Now(), nil
}

func (h *Handler) Create(c echo.Context) error {
	ident, err := identityOr401(c)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Create(c.Request().Context(), ident, &req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	ident, err := identityOr401(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), ident, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Update(c echo.Context) error {
	ident, err := identityOr401(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Update(c.Request().Context(), ident, id, &req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Cancel(c echo.Context) error {
	ident, err := identityOr401(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Cancel(c.Request().Context(), ident, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DoctorWeek(c echo.Context) error {
	ident, err := identityOr401(c)
	if err != nil {
		return err
	}
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	anchor, err := parseAnchor(c)
	if err != nil {
		return err
	}
	items, err := h.svc.WeekSchedule(c.Request().Context(), ident, doctorID, anchor)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) PatientAppointments(c echo.Context) error {
	ident, err := identityOr401(c)
	if err != nil {
		return err
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.PatientAppointments(c.Request().Context(), ident, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) SecretaryWeek(c echo.Context) error {
	ident, err := identityOr401(c)
	if err != nil {
		return err
	}
	anchor, err := parseAnchor(c)
	if err != nil {
		return err
	}
	items, err := h.svc.SecretaryWeek(c.Request().Context(), ident, anchor)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}
