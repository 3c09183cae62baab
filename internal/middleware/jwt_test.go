package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
)

type stubUserRepo struct {
	users map[string]*models.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*models.User)}
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (r *stubUserRepo) Create(_ context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "u-1"
	}
	r.users[user.ID] = user
	return nil
}

func (r *stubUserRepo) Delete(_ context.Context, id string) error {
	delete(r.users, id)
	return nil
}

type stubProfileDeleter struct{}

func (stubProfileDeleter) DeleteByUserID(context.Context, string) error { return nil }

func newAuthFixture(t *testing.T) (*service.AuthService, *stubUserRepo, string) {
	t.Helper()
	repo := newStubUserRepo()
	svc := service.NewAuthService(repo, stubProfileDeleter{}, nil, nil, service.AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "lms-api",
	})
	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "student@example.com",
		Password: "secret123",
		Role:     string(models.RoleStudent),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return svc, repo, resp.Token
}

func newProtectedRouter(svc *service.AuthService) *gin.Engine {
	router := gin.New()
	router.GET("/me", JWT(svc), func(c *gin.Context) {
		claims := c.MustGet(ContextUserKey).(*models.JWTClaims)
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID})
	})
	return router
}

func TestJWTMiddlewareAcceptsValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _, token := newAuthFixture(t)
	router := newProtectedRouter(svc)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body: %s", recorder.Code, recorder.Body.String())
	}
}

func TestJWTMiddlewareFailuresAreUniform(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, repo, token := newAuthFixture(t)
	router := newProtectedRouter(svc)

	deletedToken := token
	if err := repo.Delete(context.Background(), "u-1"); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic " + deletedToken},
		{"bare token", deletedToken},
		{"garbage token", "Bearer not.a.token"},
		{"deleted account", "Bearer " + deletedToken},
	}

	var firstBody string
	for _, tc := range cases {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("%s: unexpected status: %d", tc.name, recorder.Code)
		}
		if firstBody == "" {
			firstBody = recorder.Body.String()
			continue
		}
		if recorder.Body.String() != firstBody {
			t.Fatalf("%s: response differs from other failures: %s", tc.name, recorder.Body.String())
		}
	}
}

func TestJWTMiddlewareGuardsCatalogReads(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _, token := newAuthFixture(t)

	router := gin.New()
	guard := JWT(svc)
	router.GET("/courses", guard, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": []string{"c1"}})
	})
	router.GET("/courses/:id/lessons", guard, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": []string{"l1"}})
	})

	for _, path := range []string{"/courses", "/courses/c1/lessons"} {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: unexpected status: %d", path, recorder.Code)
		}

		recorder = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusOK {
			t.Fatalf("%s with token: unexpected status: %d", path, recorder.Code)
		}
	}
}

func TestJWTMiddlewareBearerSchemeIsCaseInsensitive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _, token := newAuthFixture(t)
	router := newProtectedRouter(svc)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer "+token)
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}
