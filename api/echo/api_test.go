package echo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/authbridge/domain"
	"go.pilab.hu/authbridge/services"
)

// --- Mock Implementations ---

type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) CreateIdentity(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func (m *MockIdentityProvider) DeleteIdentity(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockIdentityProvider) Authenticate(ctx context.Context, email, password string) (string, *domain.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*domain.Session), args.Error(2)
}

func (m *MockIdentityProvider) VerifyToken(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func (m *MockIdentityProvider) RefreshSession(ctx context.Context, refreshToken string) (string, *domain.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*domain.Session), args.Error(2)
}

type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) InsertAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockProfileStore) GetAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func newTestAPI(provider *MockIdentityProvider, profiles *MockProfileStore) *echo.Echo {
	api := NewAccountAPI(
		services.NewSignupSaga(provider, profiles),
		services.NewLoginOrchestrator(provider, profiles),
		services.NewSessionRefresher(provider, profiles),
		services.NewIdentityResolver(provider, profiles, nil),
	)
	e := echo.New()
	api.RegisterRoutes(e)
	return e
}

func doJSON(e *echo.Echo, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSignupHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		profiles := new(MockProfileStore)
		e := newTestAPI(provider, profiles)

		provider.On("CreateIdentity", mock.Anything, "john@example.com", "password123").
			Return("uid123", nil).Once()
		profiles.On("InsertAccount", mock.Anything, mock.AnythingOfType("*domain.Account")).
			Return(&domain.Account{
				AccountID: "uid123",
				Username:  "john",
				Email:     "john@example.com",
				Role:      domain.RoleMember,
			}, nil).Once()

		rec := doJSON(e, http.MethodPost, "/auth/signup",
			`{"username":"john","email":"john@example.com","password":"password123","role":"member"}`, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "User created successfully", resp["message"])
		user := resp["user"].(map[string]any)
		assert.Equal(t, "uid123", user["account_id"])
	})

	t.Run("Account Step Failure Returns Rollback Payload", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		profiles := new(MockProfileStore)
		e := newTestAPI(provider, profiles)

		provider.On("CreateIdentity", mock.Anything, "john@example.com", "password123").
			Return("uid123", nil).Once()
		profiles.On("InsertAccount", mock.Anything, mock.Anything).
			Return(nil, errors.New("Insert failed")).Once()
		provider.On("DeleteIdentity", mock.Anything, "uid123").Return(nil).Once()

		rec := doJSON(e, http.MethodPost, "/auth/signup",
			`{"username":"john","email":"john@example.com","password":"password123","role":"member"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "account", resp.Step)
		assert.Equal(t, "Insert failed", resp.Error)
		assert.Equal(t, services.RollbackAck, resp.Rollback)
		provider.AssertExpectations(t)
	})

	t.Run("Unknown Role Rejected Before Any Remote Call", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		profiles := new(MockProfileStore)
		e := newTestAPI(provider, profiles)

		rec := doJSON(e, http.MethodPost, "/auth/signup",
			`{"username":"john","email":"john@example.com","password":"password123","role":"superuser"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		provider.AssertNotCalled(t, "CreateIdentity", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Missing Fields Rejected", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		profiles := new(MockProfileStore)
		e := newTestAPI(provider, profiles)

		rec := doJSON(e, http.MethodPost, "/auth/signup", `{"email":"john@example.com"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		provider.AssertNotCalled(t, "CreateIdentity", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestLoginHandler(t *testing.T) {
	t.Run("Success Returns Enriched Session", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		profiles := new(MockProfileStore)
		e := newTestAPI(provider, profiles)

		session := &domain.Session{
			AccessToken:  "access-token",
			RefreshToken: "refresh-token",
			ExpiresAt:    time.Now().Add(time.Hour),
			User:         &domain.Account{AccountID: "uid123"},
		}
		stored := &domain.Account{
			AccountID: "uid123",
			Username:  "john",
			Email:     "john@example.com",
			Role:      domain.RoleMember,
		}
		provider.On("Authenticate", mock.Anything, "john@example.com", "password123").
			Return("uid123", session, nil).Once()
		profiles.On("GetAccountByID", mock.Anything, "uid123").Return(stored, nil).Once()

		rec := doJSON(e, http.MethodPost, "/auth/login",
			`{"email":"john@example.com","password":"password123"}`, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Login successful", resp["message"])
		sess := resp["session"].(map[string]any)
		user := sess["user"].(map[string]any)
		assert.Equal(t, "john", user["username"])
		assert.Equal(t, "member", user["role"])
	})

	t.Run("Invalid Credentials Is Unauthorized", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		profiles := new(MockProfileStore)
		e := newTestAPI(provider, profiles)

		provider.On("Authenticate", mock.Anything, "john@example.com", "wrong").
			Return("", nil, domain.ErrInvalidCredentials).Once()

		rec := doJSON(e, http.MethodPost, "/auth/login",
			`{"email":"john@example.com","password":"wrong"}`, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		profiles.AssertNotCalled(t, "GetAccountByID", mock.Anything, mock.Anything)
	})
}

func TestMeHandler(t *testing.T) {
	t.Run("Missing Authorization Header", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		profiles := new(MockProfileStore)
		e := newTestAPI(provider, profiles)

		rec := doJSON(e, http.MethodGet, "/auth/me", "", nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "No token provided", resp.Error)
		provider.AssertNotCalled(t, "VerifyToken", mock.Anything, mock.Anything)
	})

	t.Run("Valid Bearer Token", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		profiles := new(MockProfileStore)
		e := newTestAPI(provider, profiles)

		stored := &domain.Account{AccountID: "uid123", Username: "john", Role: domain.RoleMember}
		provider.On("VerifyToken", mock.Anything, "user-token").Return("uid123", nil).Once()
		profiles.On("GetAccountByID", mock.Anything, "uid123").Return(stored, nil).Once()

		header := http.Header{}
		header.Set("Authorization", "Bearer user-token")
		rec := doJSON(e, http.MethodGet, "/auth/me", "", header)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		user := resp["user"].(map[string]any)
		assert.Equal(t, "uid123", user["account_id"])
	})

	t.Run("Malformed Authorization Header", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		profiles := new(MockProfileStore)
		e := newTestAPI(provider, profiles)

		header := http.Header{}
		header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := doJSON(e, http.MethodGet, "/auth/me", "", header)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		provider.AssertNotCalled(t, "VerifyToken", mock.Anything, mock.Anything)
	})
}

func TestRefreshTokenHandler(t *testing.T) {
	t.Run("Missing Token Is Rejected Locally", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		profiles := new(MockProfileStore)
		e := newTestAPI(provider, profiles)

		rec := doJSON(e, http.MethodPost, "/auth/refreshToken", `{}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Refresh token is required", resp.Error)
		provider.AssertNotCalled(t, "RefreshSession", mock.Anything, mock.Anything)
	})

	t.Run("Success Returns New Session With Account", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		profiles := new(MockProfileStore)
		e := newTestAPI(provider, profiles)

		session := &domain.Session{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
			ExpiresAt:    time.Now().Add(time.Hour),
		}
		stored := &domain.Account{AccountID: "uid123", Username: "john", Role: domain.RoleMember}
		provider.On("RefreshSession", mock.Anything, "refresh-token").
			Return("uid123", session, nil).Once()
		profiles.On("GetAccountByID", mock.Anything, "uid123").Return(stored, nil).Once()

		rec := doJSON(e, http.MethodPost, "/auth/refreshToken", `{"refreshToken":"refresh-token"}`, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "new-access", resp["access_token"])
		assert.Equal(t, "new-refresh", resp["refresh_token"])
		user := resp["user"].(map[string]any)
		assert.Equal(t, "uid123", user["account_id"])
	})

	t.Run("Invalid Refresh Token", func(t *testing.T) {
		provider := new(MockIdentityProvider)
		profiles := new(MockProfileStore)
		e := newTestAPI(provider, profiles)

		provider.On("RefreshSession", mock.Anything, "bad-token").
			Return("", nil, domain.ErrInvalidCredentials).Once()

		rec := doJSON(e, http.MethodPost, "/auth/refreshToken", `{"refreshToken":"bad-token"}`, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
