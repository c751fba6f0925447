package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mni-microservices/project-service/internal/models"
	"github.com/mni-microservices/project-service/internal/utils"
)

const testSecret = "test-secret-for-middleware-testing"

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret(testSecret)
}

func protectedRouter() *gin.Engine {
	router := gin.New()
	router.Use(AuthRequired())
	router.GET("/protected", func(c *gin.Context) {
		user := GetUser(c)
		c.JSON(200, gin.H{
			"user_id":     user.ID,
			"username":    user.Username,
			"global_role": user.GlobalRole,
		})
	})
	return router
}

func TestAuthRequired_NoHeader(t *testing.T) {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	protectedRouter().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_InvalidFormat(t *testing.T) {
	router := protectedRouter()

	testCases := []string{
		"InvalidToken",
		"Basic token123",
		"Bearer",
	}

	for _, authHeader := range testCases {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", authHeader)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status %d, got %d", authHeader, http.StatusUnauthorized, w.Code)
		}
	}
}

func TestAuthRequired_InvalidToken(t *testing.T) {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer invalid.jwt.token")
	protectedRouter().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_NonUUIDSubject(t *testing.T) {
	claims := utils.Claims{UserID: "17", Username: "legacy", Role: models.GlobalRoleUser}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protectedRouter().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_ValidToken(t *testing.T) {
	userID := uuid.New()
	token, _ := utils.GenerateToken(userID, "testuser", models.GlobalRoleAdmin, 24)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protectedRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var body struct {
		UserID     uuid.UUID `json:"user_id"`
		Username   string    `json:"username"`
		GlobalRole string    `json:"global_role"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.UserID != userID {
		t.Errorf("user_id = %s, expected %s", body.UserID, userID)
	}
	if body.Username != "testuser" {
		t.Errorf("username = %q", body.Username)
	}
	if body.GlobalRole != models.GlobalRoleAdmin {
		t.Errorf("global_role = %q", body.GlobalRole)
	}
}

func TestAuthRequired_UnknownRoleIsUser(t *testing.T) {
	token, _ := utils.GenerateToken(uuid.New(), "someone", "superuser", 24)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protectedRouter().ServeHTTP(w, req)

	var body struct {
		GlobalRole string `json:"global_role"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.GlobalRole != models.GlobalRoleUser {
		t.Errorf("global_role = %q, expected %q", body.GlobalRole, models.GlobalRoleUser)
	}
}

func adminRouter(role string) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if role != "" {
			c.Set(ContextRole, role)
		}
		c.Next()
	})
	router.Use(AdminRequired())
	router.GET("/admin", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	return router
}

func TestAdminRequired(t *testing.T) {
	tests := []struct {
		role   string
		status int
	}{
		{"", http.StatusForbidden},
		{models.GlobalRoleUser, http.StatusForbidden},
		{"admin", http.StatusForbidden},
		{models.GlobalRoleAdmin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run("role="+tt.role, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/admin", nil)
			adminRouter(tt.role).ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestGetUser(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if user := GetUser(c); user != nil {
		t.Errorf("expected nil for missing user, got %+v", user)
	}

	want := &models.User{ID: uuid.New(), GlobalRole: models.GlobalRoleUser}
	c.Set(ContextUser, want)
	if got := GetUser(c); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestGetUserID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if id := GetUserID(c); id != uuid.Nil {
		t.Errorf("expected nil uuid for missing user_id, got %s", id)
	}

	want := uuid.New()
	c.Set(ContextUserID, want)
	if id := GetUserID(c); id != want {
		t.Errorf("expected %s, got %s", want, id)
	}
}

func TestGetUsername(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if name := GetUsername(c); name != "" {
		t.Errorf("expected empty string for missing username, got %q", name)
	}

	c.Set(ContextUsername, "testuser")
	if name := GetUsername(c); name != "testuser" {
		t.Errorf("expected %q, got %q", "testuser", name)
	}
}

func TestGetRole(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if role := GetRole(c); role != "" {
		t.Errorf("expected empty string for missing role, got %q", role)
	}

	c.Set(ContextRole, models.GlobalRoleAdmin)
	if role := GetRole(c); role != models.GlobalRoleAdmin {
		t.Errorf("expected %q, got %q", models.GlobalRoleAdmin, role)
	}
}
