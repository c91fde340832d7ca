package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntptrace/trace-backend/internal/ledger"
	"github.com/ntptrace/trace-backend/internal/models"
	"github.com/ntptrace/trace-backend/internal/services"
	"github.com/ntptrace/trace-backend/internal/utils"
)

const principal = ledger.Principal("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("middleware-test")
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func publishedToken(t *testing.T, sessions *services.SessionService, role models.Role) (string, uint64) {
	t.Helper()
	gen := sessions.Begin(principal)
	require.True(t, sessions.Publish(context.Background(), principal, gen, models.AuthorizationState{
		Principal: principal.String(), Authorized: true, Role: role,
	}))
	token, err := utils.GenerateSessionToken(principal.String(), string(role), gen, 1)
	require.NoError(t, err)
	return token, gen
}

func protectedRouter(sessions *services.SessionService, roles ...models.Role) *gin.Engine {
	r := gin.New()
	r.GET("/p", AuthRequired(sessions), RoleRequired(roles...), func(c *gin.Context) {
		p, _ := utils.GetPrincipalFromContext(c)
		c.String(http.StatusOK, p)
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	sessions := services.NewSessionService()
	r := protectedRouter(sessions, models.RoleProducer)
	token, _ := publishedToken(t, sessions, models.RoleProducer)

	req, _ := http.NewRequest("GET", "/p", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req.Header.Set("Authorization", "Token "+token)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req.Header.Set("Authorization", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, principal.String(), w.Body.String())
}

func TestAuthRequiredRejectsLoggedOutSession(t *testing.T) {
	sessions := services.NewSessionService()
	r := protectedRouter(sessions, models.RoleProducer)
	token, _ := publishedToken(t, sessions, models.RoleProducer)

	sessions.Logout(principal)

	req, _ := http.NewRequest("GET", "/p", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}

func TestRoleRequired(t *testing.T) {
	sessions := services.NewSessionService()
	r := protectedRouter(sessions, models.RoleProducer, models.RoleDistributor)
	token, _ := publishedToken(t, sessions, models.RoleRetailer)

	req, _ := http.NewRequest("GET", "/p", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)
}

func TestOptionalAuth(t *testing.T) {
	sessions := services.NewSessionService()
	token, _ := publishedToken(t, sessions, models.RoleRetailer)

	r := gin.New()
	r.GET("/o", OptionalAuth(sessions), func(c *gin.Context) {
		p, _ := utils.GetPrincipalFromContext(c)
		c.String(http.StatusOK, p)
	})

	req, _ := http.NewRequest("GET", "/o", nil)
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, principal.String(), serve(r, req).Body.String())
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextRequestID))
	})

	req, _ := http.NewRequest("GET", "/id", nil)
	w := serve(r, req)
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))

	req.Header.Set(RequestIDHeader, "6f1c1b7e-3c8a-4f6e-9f53-0f4f1f0d9a11")
	assert.Equal(t, "6f1c1b7e-3c8a-4f6e-9f53-0f4f1f0d9a11", serve(r, req).Body.String())

	req.Header.Set(RequestIDHeader, "<script>")
	assert.NotEqual(t, "<script>", serve(r, req).Body.String())
}

func TestI18nMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(I18nMiddleware("en"))
	r.GET("/lang", func(c *gin.Context) {
		c.String(http.StatusOK, utils.GetLangFromContext(c))
	})

	cases := map[string]string{
		"":                        "en",
		"zh-TW,zh;q=0.9,en;q=0.8": "zh_TW",
		"fr-FR,zh-Hant;q=0.8":     "zh_TW",
		"de-DE":                   "en",
		"en-GB,en;q=0.9":          "en",
	}
	for header, want := range cases {
		req, _ := http.NewRequest("GET", "/lang", nil)
		req.Header.Set("Accept-Language", header)
		assert.Equal(t, want, serve(r, req).Body.String(), header)
	}
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.GET("/v", VerifyRateLimit(0.001, 2), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest("GET", "/v", nil)
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, req).Code)
}

func TestExtractResourceType(t *testing.T) {
	assert.Equal(t, "certificates", extractResourceType("/v1/certificates"))
	assert.Equal(t, "auth", extractResourceType("/v1/auth/resolve"))
	assert.Equal(t, "health", extractResourceType("/health"))
	assert.Equal(t, "unknown", extractResourceType("/"))
}

func TestAuditLogMiddlewareWithoutDatabase(t *testing.T) {
	r := gin.New()
	r.Use(AuditLogMiddleware(nil))
	r.POST("/x", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	req, _ := http.NewRequest("POST", "/x", nil)
	assert.Equal(t, http.StatusCreated, serve(r, req).Code)
}
