package directory

import (
	"net/http"

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
	// Doctor listing is open to every signed-in role so patients can
	// pick who to book with.
	anyRole := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RolePatient, auth.RoleSecretary))
	anyRole.GET("/doctors", h.ListDoctors)
	anyRole.GET("/doctors/:id", h.GetDoctor)

	// Doctors may edit their own profile; admins anyone's.
	doctorEdit := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor))
	doctorEdit.PUT("/doctors/:id", h.UpdateDoctor)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.DELETE("/doctors/:id", h.DeleteDoctor)
	adminGroup.GET("/secretaries", h.ListSecretaries)
	adminGroup.POST("/secretaries/:id/doctors/:doctorId", h.AssignDoctor)
	adminGroup.DELETE("/secretaries/:id/doctors/:doctorId", h.UnassignDoctor)
	adminGroup.DELETE("/patients/:id", h.DeletePatient)

	staffGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RoleSecretary))
	staffGroup.POST("/patients", h.CreatePatient)
	staffGroup.GET("/patients", h.ListPatients)
	staffGroup.PUT("/patients/:id", h.UpdatePatient)

	patientRead := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor, auth.RoleSecretary, auth.RolePatient))
	patientRead.GET("/patients/:id", h.GetPatient)
}

// -- Doctors --

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	ctx := c.Request().Context()
	ident, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if ident.Role == auth.RoleDoctor {
		ownID, err := h.svc.ResolveDoctorID(ctx, ident.UserID)
		if err != nil {
			return apperr.HTTP(err)
		}
		if ownID != id {
			return echo.NewHTTPError(http.StatusForbidden, "doctors may only edit their own profile")
		}
	}

	var body struct {
		FullName  string  `json:"full_name"`
		Specialty *string `json:"specialty"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.UpdateDoctorProfile(ctx, id, body.FullName, body.Specialty)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteDoctor(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Secretaries --

func (h *Handler) ListSecretaries(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSecretaries(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) AssignDoctor(c echo.Context) error {
	secretaryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid secretary id")
	}
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	if err := h.svc.AssignDoctor(c.Request().Context(), secretaryID, doctorID); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UnassignDoctor(c echo.Context) error {
	secretaryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid secretary id")
	}
	doctorID, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	if err := h.svc.UnassignDoctor(c.Request().Context(), secretaryID, doctorID); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Patients --

func (h *Handler) CreatePatient(c echo.Context) error {
	ctx := c.Request().Context()
	ident, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePatient(ctx, ident, &p); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

// ListPatients scopes the result to what the caller may see: doctors
// get their own roster, secretaries pick one of their doctors via
// doctor_id, admins see everything.
func (h *Handler) ListPatients(c echo.Context) error {
	ctx := c.Request().Context()
	ident, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	pg := pagination.FromContext(c)

	switch ident.Role {
	case auth.RoleAdmin:
		if param := c.QueryParam("doctor_id"); param != "" {
			doctorID, err := uuid.Parse(param)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
			}
			items, total, err := h.svc.ListPatientsByDoctor(ctx, doctorID, pg.Limit, pg.Offset)
			if err != nil {
				return apperr.HTTP(err)
			}
			return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
		}
		items, total, err := h.svc.ListPatients(ctx, pg.Limit, pg.Offset)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))

	case auth.RoleDoctor:
		doctorID, err := h.svc.ResolveDoctorID(ctx, ident.UserID)
		if err != nil {
			return apperr.HTTP(err)
		}
		items, total, err := h.svc.ListPatientsByDoctor(ctx, doctorID, pg.Limit, pg.Offset)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))

	case auth.RoleSecretary:
		param := c.QueryParam("doctor_id")
		if param == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
		}
		doctorID, err := uuid.Parse(param)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		secretaryID, err := h.svc.ResolveSecretaryID(ctx, ident.UserID)
		if err != nil {
			return apperr.HTTP(err)
		}
		assists, err := h.svc.SecretaryAssists(ctx, secretaryID, doctorID)
		if err != nil {
			return apperr.HTTP(err)
		}
		if !assists {
			return echo.NewHTTPError(http.StatusForbidden, "not assigned to this doctor")
		}
		items, total, err := h.svc.ListPatientsByDoctor(ctx, doctorID, pg.Limit, pg.Offset)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}

	return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
}

func (h *Handler) GetPatient(c echo.Context) error {
	ctx := c.Request().Context()
	ident, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	allowed, err := h.canAccessPatient(c, ident, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	if !allowed {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to view this patient")
	}

	p, err := h.svc.GetPatient(ctx, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	ctx := c.Request().Context()
	ident, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	allowed, err := h.canAccessPatient(c, ident, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	if !allowed {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to modify this patient")
	}

	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdatePatient(ctx, ident, &p); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// canAccessPatient re-checks ownership: the role gate alone is not
// enough because a doctor may only touch patients on their roster.
func (h *Handler) canAccessPatient(c echo.Context, ident auth.Identity, patientID uuid.UUID) (bool, error) {
	ctx := c.Request().Context()
	switch ident.Role {
	case auth.RoleAdmin:
		return true, nil
	case auth.RoleDoctor:
		doctorID, err := h.svc.ResolveDoctorID(ctx, ident.UserID)
		if err != nil {
			return false, err
		}
		return h.svc.PatientBelongsTo(ctx, patientID, doctorID)
	case auth.RoleSecretary:
		secretaryID, err := h.svc.ResolveSecretaryID(ctx, ident.UserID)
		if err != nil {
			return false, err
		}
		return h.svc.SecretaryCanAccessPatient(ctx, secretaryID, patientID)
	case auth.RolePatient:
		ownID, err := h.svc.ResolvePatientID(ctx, ident.UserID)
		if err != nil {
			return false, err
		}
		return ownID == patientID, nil
	}
	return false, nil
}
