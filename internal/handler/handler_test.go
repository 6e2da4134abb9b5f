package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ticketsplit/pkg/config"
	"ticketsplit/pkg/database"
	"ticketsplit/pkg/jwtutil"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// fakeSender records outbound mail instead of delivering it.
type fakeSender struct {
	mu   sync.Mutex
	sent []string // recipient addresses
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	return nil
}

func (f *fakeSender) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type testEnv struct {
	e    *echo.Echo
	db   *gorm.DB
	jwt  *jwtutil.JWT
	mail *fakeSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every session on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	jwt := jwtutil.New(&config.JWTConfig{SigningKey: "test-signing-key", Expiration: time.Hour})
	mail := &fakeSender{}

	e := echo.New()
	RegisterRoutes(e, jwt,
		NewUserHandler(db, jwt, mail),
		NewProjectHandler(db),
		NewTicketHandler(db),
	)

	return &testEnv{e: e, db: db, jwt: jwt, mail: mail}
}

// request performs an API call. A non-empty token is sent in the x-auth-token
// header.
func (env *testEnv) request(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("x-auth-token", token)
	}

	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

// register creates an account and returns its id.
func (env *testEnv) register(t *testing.T, email, password, fullName string) uint {
	t.Helper()

	rec, body := env.request(t, http.MethodPost, "/users/register", "", map[string]interface{}{
		"email":    email,
		"password": password,
		"fullName": fullName,
	})
	require.Equal(t, http.StatusCreated, rec.Code, "register %s: %s", email, rec.Body.String())

	user := body["user"].(map[string]interface{})
	return uint(user["id"].(float64))
}

// login returns a bearer token for the account.
func (env *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()

	rec, body := env.request(t, http.MethodPost, "/users/login", "", map[string]interface{}{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, "login %s: %s", email, rec.Body.String())
	return body["token"].(string)
}

// befriend adds target to owner's friend list.
func (env *testEnv) befriend(t *testing.T, ownerToken, targetEmail string) {
	t.Helper()

	rec, _ := env.request(t, http.MethodPost, "/users/add-friend", ownerToken, map[string]interface{}{
		"email": targetEmail,
	})
	require.Equal(t, http.StatusOK, rec.Code, "add-friend %s: %s", targetEmail, rec.Body.String())
}

// createProject creates a project and returns its id.
func (env *testEnv) createProject(t *testing.T, token, name, description string) uint {
	t.Helper()

	rec, body := env.request(t, http.MethodPost, "/projects/create", token, map[string]interface{}{
		"name":        name,
		"description": description,
	})
	require.Equal(t, http.StatusCreated, rec.Code, "create project %s: %s", name, rec.Body.String())

	project := body["project"].(map[string]interface{})
	return uint(project["id"].(float64))
}

// addMember adds a single member to a project.
func (env *testEnv) addMember(t *testing.T, token string, projectID, memberID uint) {
	t.Helper()

	rec, _ := env.request(t, http.MethodPost, "/projects/add-members", token, map[string]interface{}{
		"projectId": projectID,
		"memberId":  memberID,
	})
	require.Equal(t, http.StatusOK, rec.Code, "add member %d: %s", memberID, rec.Body.String())
}

// createTicket logs a ticket and returns its id.
func (env *testEnv) createTicket(t *testing.T, token string, projectID uint, description string, amount, distribution float64) uint {
	t.Helper()

	rec, body := env.request(t, http.MethodPost, "/tickets/create", token, map[string]interface{}{
		"projectId":    projectID,
		"description":  description,
		"date":         "2026-08-15",
		"amount":       amount,
		"distribution": distribution,
	})
	require.Equal(t, http.StatusCreated, rec.Code, "create ticket: %s", rec.Body.String())

	ticket := body["ticket"].(map[string]interface{})
	return uint(ticket["id"].(float64))
}

// profileProjects returns the project ids listed on the user's profile.
func (env *testEnv) profileProjects(t *testing.T, token string) []uint {
	t.Helper()

	rec, body := env.request(t, http.MethodGet, "/users/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, "profile: %s", rec.Body.String())

	user := body["user"].(map[string]interface{})
	raw, _ := user["projects"].([]interface{})
	ids := make([]uint, 0, len(raw))
	for _, v := range raw {
		ids = append(ids, uint(v.(float64)))
	}
	return ids
}
