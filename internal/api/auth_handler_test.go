package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"cvforge/internal/database"
	"cvforge/internal/resume"
)

func newAuthRouter(handler *AuthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/register", handler.Register)
	router.POST("/api/login", handler.Login)
	return router
}

func TestRegisterCreatesUser(t *testing.T) {
	db := newTestDB(t)
	service := newTestAuthService(t)
	router := newAuthRouter(newTestAuthHandler(t, db, service))

	rec := doRequest(router, http.MethodPost, "/api/register", "", jsonBody(t, map[string]string{
		"email":    "new@example.com",
		"password": "hunter2hunter2",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		UserID string `json:"user_id"`
	}
	decodeJSON(t, rec, &body)
	if body.UserID == "" {
		t.Fatalf("response carries no user_id: %s", rec.Body.String())
	}

	var user database.User
	if err := db.Where("uuid = ?", body.UserID).First(&user).Error; err != nil {
		t.Fatalf("registered user not found: %v", err)
	}
	if user.Email != "new@example.com" {
		t.Errorf("email = %q", user.Email)
	}
	if user.PasswordHash == "hunter2hunter2" {
		t.Errorf("password stored in clear")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	service := newTestAuthService(t)
	createTestUser(t, db, service, "taken@example.com", "hunter2hunter2")
	router := newAuthRouter(newTestAuthHandler(t, db, service))

	rec := doRequest(router, http.MethodPost, "/api/register", "", jsonBody(t, map[string]string{
		"email":    "taken@example.com",
		"password": "hunter2hunter2",
	}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestRegisterRejectsBadPayload(t *testing.T) {
	db := newTestDB(t)
	service := newTestAuthService(t)
	router := newAuthRouter(newTestAuthHandler(t, db, service))

	for _, payload := range []map[string]string{
		{"email": "not-an-email", "password": "hunter2hunter2"},
		{"email": "ok@example.com", "password": "short"},
		{"email": "ok@example.com"},
	} {
		rec := doRequest(router, http.MethodPost, "/api/register", "", jsonBody(t, payload))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("payload %v: status = %d, want 400", payload, rec.Code)
		}
	}
}

func TestLoginReturnsTokens(t *testing.T) {
	db := newTestDB(t)
	service := newTestAuthService(t)
	user := createTestUser(t, db, service, "ada@example.com", "hunter2hunter2")
	router := newAuthRouter(newTestAuthHandler(t, db, service))

	rec := doRequest(router, http.MethodPost, "/api/login", "", jsonBody(t, map[string]string{
		"email":    "ada@example.com",
		"password": "hunter2hunter2",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body loginResponse
	decodeJSON(t, rec, &body)
	if body.UserID != user.UUID {
		t.Errorf("user_id = %q, want %q", body.UserID, user.UUID)
	}
	if body.AccessToken == "" || body.TokenType != "Bearer" {
		t.Errorf("token response = %+v", body)
	}
	if body.Merged {
		t.Errorf("login without draft reported a merge")
	}

	claims, err := service.ValidateToken(body.AccessToken)
	if err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}
	if claims.UserID != user.ID || claims.TokenType != "access" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	db := newTestDB(t)
	service := newTestAuthService(t)
	createTestUser(t, db, service, "ada@example.com", "hunter2hunter2")
	router := newAuthRouter(newTestAuthHandler(t, db, service))

	rec := doRequest(router, http.MethodPost, "/api/login", "", jsonBody(t, map[string]string{
		"email":    "ada@example.com",
		"password": "wrong-password",
	}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLoginMergesDraft(t *testing.T) {
	db := newTestDB(t)
	service := newTestAuthService(t)
	user := createTestUser(t, db, service, "ada@example.com", "hunter2hunter2")
	router := newAuthRouter(newTestAuthHandler(t, db, service))

	draft := resume.Aggregate{
		FullName: "Ada Lovelace",
		Sections: []resume.SectionPayload{
			{ID: "s1", Name: "Experience", Order: 0},
		},
		Jobs: []resume.JobPayload{
			{ID: "j1", SectionID: "s1", Title: "Engineer", Order: 0},
		},
		BulletPoints: []resume.BulletPayload{
			{ID: "b1", JobID: "j1", Content: "Shipped things", Order: 0},
		},
		Variations: map[string]resume.VariationPayload{
			"v1": {Name: "My Draft", DefaultVisibility: true},
		},
	}

	rec := doRequest(router, http.MethodPost, "/api/login", "", jsonBody(t, map[string]any{
		"email":              "ada@example.com",
		"password":           "hunter2hunter2",
		"existing_variation": draft,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body loginResponse
	decodeJSON(t, rec, &body)
	if !body.Merged {
		t.Fatalf("merged = false, body = %s", rec.Body.String())
	}
	if body.MergeError != "" {
		t.Errorf("merge_error = %q", body.MergeError)
	}

	var variations int64
	if err := db.Model(&database.Variation{}).Where("user_id = ?", user.ID).Count(&variations).Error; err != nil {
		t.Fatalf("count variations: %v", err)
	}
	if variations != 1 {
		t.Errorf("variations = %d, want 1 merged", variations)
	}
}

func TestLoginEmptyDraftNotMerged(t *testing.T) {
	db := newTestDB(t)
	service := newTestAuthService(t)
	user := createTestUser(t, db, service, "ada@example.com", "hunter2hunter2")
	router := newAuthRouter(newTestAuthHandler(t, db, service))

	rec := doRequest(router, http.MethodPost, "/api/login", "", jsonBody(t, map[string]any{
		"email":    "ada@example.com",
		"password": "hunter2hunter2",
		"existing_variation": resume.Aggregate{
			Variations: map[string]resume.VariationPayload{"v1": {Name: "Default"}},
		},
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body loginResponse
	decodeJSON(t, rec, &body)
	if body.Merged {
		t.Errorf("structurally empty draft reported as merged")
	}

	var variations int64
	if err := db.Model(&database.Variation{}).Where("user_id = ?", user.ID).Count(&variations).Error; err != nil {
		t.Fatalf("count variations: %v", err)
	}
	if variations != 0 {
		t.Errorf("variations = %d, want 0", variations)
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	db := newTestDB(t)

	first := database.User{Email: "race@example.com", PasswordHash: "x"}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("create first user: %v", err)
	}

	// 模拟并发注册赢了前置查询：同邮箱直插撞唯一索引。
	second := database.User{Email: "race@example.com", PasswordHash: "y"}
	err := db.Create(&second).Error
	if err == nil {
		t.Fatal("duplicate insert succeeded, want unique index violation")
	}
	if !isDuplicateKeyErr(err) {
		t.Errorf("isDuplicateKeyErr(%v) = false, want true", err)
	}

	if isDuplicateKeyErr(errors.New("connection reset")) {
		t.Errorf("unrelated error classified as duplicate key")
	}
}
