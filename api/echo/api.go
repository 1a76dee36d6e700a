package echo

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/authbridge/domain"
	"go.pilab.hu/authbridge/services"
)

// AccountAPI exposes the account orchestration endpoints over HTTP.
type AccountAPI struct {
	signup    *services.SignupSaga
	login     *services.LoginOrchestrator
	refresher *services.SessionRefresher
	resolver  *services.IdentityResolver
}

// NewAccountAPI initializes the account API.
func NewAccountAPI(
	signup *services.SignupSaga,
	login *services.LoginOrchestrator,
	refresher *services.SessionRefresher,
	resolver *services.IdentityResolver,
) *AccountAPI {
	return &AccountAPI{
		signup:    signup,
		login:     login,
		refresher: refresher,
		resolver:  resolver,
	}
}

// RegisterRoutes registers the account routes.
func (a *AccountAPI) RegisterRoutes(e *echo.Echo) {
	e.POST("/auth/signup", a.SignupHandler)
	e.POST("/auth/login", a.LoginHandler)
	e.GET("/auth/me", a.MeHandler)
	e.POST("/auth/refreshToken", a.RefreshTokenHandler)
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Step     string `json:"step,omitempty"`
	Rollback string `json:"rollback,omitempty"`
}

// SignupHandler creates an identity and the matching account record. Field
// presence and the role enum are validated here, before the saga runs.
func (a *AccountAPI) SignupHandler(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if req.Username == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "username, email, password and role are required"})
	}
	role := domain.Role(req.Role)
	if !role.IsValid() {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown role: " + req.Role})
	}

	account, _, err := a.signup.Execute(c.Request().Context(), services.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		var sagaErr *services.SignupError
		if errors.As(err, &sagaErr) {
			// Account-step failures were already rolled back; they report
			// as a bad request regardless of the underlying store error.
			status := http.StatusBadRequest
			if sagaErr.Step != "account" {
				status = statusForError(err)
			}
			return c.JSON(status, errorResponse{
				Error:    sagaErr.Err.Error(),
				Step:     sagaErr.Step,
				Rollback: sagaErr.Rollback,
			})
		}
		return c.JSON(statusForError(err), errorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": "User created successfully",
		"user":    account,
	})
}

// LoginHandler authenticates credentials and returns the enriched session.
func (a *AccountAPI) LoginHandler(c echo.Context) error {
	var creds domain.Credentials
	if err := c.Bind(&creds); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	session, err := a.login.Login(c.Request().Context(), creds)
	if err != nil {
		return c.JSON(statusForError(err), errorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": "Login successful",
		"session": session,
	})
}

// MeHandler resolves the bearer token to the account behind it.
func (a *AccountAPI) MeHandler(c echo.Context) error {
	token, ok := bearerToken(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "No token provided"})
	}

	account, err := a.resolver.Resolve(c.Request().Context(), token)
	if err != nil {
		return c.JSON(statusForError(err), errorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]any{"user": account})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshTokenHandler exchanges a refresh token for a new enriched session.
func (a *AccountAPI) RefreshTokenHandler(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Refresh token is required"})
	}

	session, err := a.refresher.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return c.JSON(statusForError(err), errorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"access_token":  session.AccessToken,
		"refresh_token": session.RefreshToken,
		"expires_at":    session.ExpiresAt,
		"user":          session.User,
	})
}

func bearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInconsistentState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProviderUnavailable),
		errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		log.Error().Err(err).Msg("unclassified error reached the API layer")
		return http.StatusInternalServerError
	}
}
