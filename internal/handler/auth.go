package handler

import (
	"context"  // request-scoped deadline for service calls
	"net/http" // HTTP status codes
	"time"     // timeouts and token expiry fields

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/banking-auth/internal/auth"       // login, refresh and password recovery
	"github.com/iliyamo/banking-auth/internal/middleware" // authenticated principal
	"github.com/iliyamo/banking-auth/internal/obs"        // auth outcome counters
)

// requestTimeout bounds every service call made by a handler.
const requestTimeout = 5 * time.Second

// AuthService is the part of *auth.Service the auth endpoints use.
type AuthService interface {
	Login(ctx context.Context, email, password string) (auth.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (auth.RefreshResult, error)
	ForgotPassword(ctx context.Context, email, authenticatedEmail string) (string, error)
	ResetPassword(ctx context.Context, email, token, newPassword string) (string, error)
	Logout(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Svc     AuthService
	Metrics *obs.Metrics // optional
}

func NewAuthHandler(svc AuthService, m *obs.Metrics) *AuthHandler {
	return &AuthHandler{Svc: svc, Metrics: m}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type forgotReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type loginResp struct {
	UserID   uint64    `json:"user_id"`
	FullName string    `json:"full_name"`
	Role     string    `json:"role"`
	Access   tokenPart `json:"access"`
	Refresh  tokenPart `json:"refresh"`
	Message  string    `json:"message"`
}
type refreshResp struct {
	Access tokenPart `json:"access"`
}
type messageResp struct {
	Message string `json:"message"`
}

// observe counts the outcome of op.
func (h *AuthHandler) observe(op string, err error) {
	if err == nil {
		h.Metrics.AuthResult(op, "ok")
		return
	}
	_, label := classify(err)
	h.Metrics.AuthResult(op, label)
}

// Login: verify credentials and return a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	h.observe("login", err)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, loginResp{
		UserID:   res.UserID,
		FullName: res.FullName,
		Role:     res.Role.String(),
		Access:   tokenPart{Token: res.AccessToken, Expires: res.AccessExp},
		Refresh:  tokenPart{Token: res.RefreshToken, Expires: res.RefreshExp},
		Message:  res.Message,
	})
}

// Refresh: exchange the live refresh token for a new access token.  The
// refresh token itself stays the same.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Svc.Refresh(ctx, req.RefreshToken)
	h.observe("refresh", err)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, refreshResp{Access: tokenPart{Token: res.AccessToken, Expires: res.AccessExp}})
}

// ForgotPassword: mail a reset link to the caller.  Callers may only ask
// for their own account.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	var req forgotReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	msg, err := h.Svc.ForgotPassword(ctx, req.Email, p.Email)
	h.observe("forgot_password", err)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, messageResp{Message: msg})
}

// ResetPassword: complete a reset with the token from the mail.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if req.Token == "" {
		req.Token = c.QueryParam("token") // the mailed link carries it in the query
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	msg, err := h.Svc.ResetPassword(ctx, req.Email, req.Token, req.NewPassword)
	h.observe("reset_password", err)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, messageResp{Message: msg})
}

// Logout: drop the caller's live tokens.
func (h *AuthHandler) Logout(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	err := h.Svc.Logout(ctx, p.UserID)
	h.observe("logout", err)
	if err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
