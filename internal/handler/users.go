package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/banking-auth/internal/auth"
	"github.com/iliyamo/banking-auth/internal/middleware"
	"github.com/iliyamo/banking-auth/internal/obs"
)

// UserService is the part of *auth.Service the user management endpoints use.
type UserService interface {
	RegisterUser(ctx context.Context, actorEmail string, in auth.RegisterInput) (auth.UserView, error)
	DeleteUser(ctx context.Context, actorEmail string, targetID uint64) (string, error)
	UsersByRole(ctx context.Context, role string) ([]auth.UserView, error)
	AllUsers(ctx context.Context) ([]auth.UserView, error)
}

type UserHandler struct {
	Svc     UserService
	Metrics *obs.Metrics
}

func NewUserHandler(svc UserService, m *obs.Metrics) *UserHandler {
	return &UserHandler{Svc: svc, Metrics: m}
}

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"` // SUPER_ADMIN | ADMIN | AUDITOR | USER
}

type userResp struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	Message   string    `json:"message"`
}

func toUserResp(v auth.UserView) userResp {
	return userResp{ID: v.ID, Email: v.Email, FullName: v.FullName, Role: v.Role.String(), CreatedAt: v.CreatedAt, Message: v.Message}
}

func toUserResps(vs []auth.UserView) []userResp {
	out := make([]userResp, 0, len(vs))
	for _, v := range vs {
		out = append(out, toUserResp(v))
	}
	return out
}

func (h *UserHandler) Register(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	view, err := h.Svc.RegisterUser(ctx, p.Email, auth.RegisterInput{
		Email: req.Email, Password: req.Password, FullName: req.FullName, Role: req.Role,
	})
	if err != nil {
		_, label := classify(err)
		h.Metrics.AuthResult("register", label)
		return writeError(c, err)
	}
	h.Metrics.AuthResult("register", "ok")
	return c.JSON(http.StatusCreated, toUserResp(view))
}

func (h *UserHandler) Delete(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	msg, err := h.Svc.DeleteUser(ctx, p.Email, id)
	if err != nil {
		_, label := classify(err)
		h.Metrics.AuthResult("delete_user", label)
		return writeError(c, err)
	}
	h.Metrics.AuthResult("delete_user", "ok")
	return c.JSON(http.StatusOK, messageResp{Message: msg})
}

func (h *UserHandler) ByRole(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	users, err := h.Svc.UsersByRole(ctx, c.Param("role"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toUserResps(users))
}

func (h *UserHandler) All(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	users, err := h.Svc.AllUsers(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toUserResps(users))
}
