package handler

import (
	"net/http"
	"testing"
	"time"

	"ticketsplit/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)

	env.register(t, "ana@example.com", "secret1", "Ana Suarez")

	rec, body := env.request(t, http.MethodPost, "/users/register", "", map[string]interface{}{
		"email":    "ana@example.com",
		"password": "other-password",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "email already registered", body["error"])

	var count int64
	require.NoError(t, env.db.Model(&model.User{}).Where("email = ?", "ana@example.com").Count(&count).Error)
	assert.Equal(t, int64(1), count, "duplicate registration must not create a second record")
}

func TestRegisterSplitsFullName(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.request(t, http.MethodPost, "/users/register", "", map[string]interface{}{
		"email":    "ana@example.com",
		"password": "secret1",
		"fullName": "Ana Maria Suarez",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	user := body["user"].(map[string]interface{})
	assert.Equal(t, "Ana", user["name"])
	assert.Equal(t, "Maria Suarez", user["lastname"])
}

func TestRegisterRequiresEmailAndPassword(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.request(t, http.MethodPost, "/users/register", "", map[string]interface{}{
		"email": "ana@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ana@example.com", "secret1", "")

	recUnknown, bodyUnknown := env.request(t, http.MethodPost, "/users/login", "", map[string]interface{}{
		"email":    "nobody@example.com",
		"password": "whatever",
	})
	recWrong, bodyWrong := env.request(t, http.MethodPost, "/users/login", "", map[string]interface{}{
		"email":    "ana@example.com",
		"password": "wrong-password",
	})

	assert.Equal(t, http.StatusUnauthorized, recUnknown.Code)
	assert.Equal(t, http.StatusUnauthorized, recWrong.Code)
	assert.Equal(t, bodyUnknown, bodyWrong, "unknown email and wrong password must be indistinguishable")
}

func TestAuthGuard(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.request(t, http.MethodGet, "/users/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "no token, authorization denied", body["error"])

	rec, body = env.request(t, http.MethodGet, "/users/profile", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token is not valid", body["error"])
}

func TestProfileReturnsIDsAndDefaultPhoto(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ana@example.com", "secret1", "Ana Suarez")
	token := env.login(t, "ana@example.com", "secret1")

	env.createProject(t, token, "Trip", "")

	rec, body := env.request(t, http.MethodGet, "/users/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	user := body["user"].(map[string]interface{})
	assert.Equal(t, "ana@example.com", user["email"])
	assert.Equal(t, model.DefaultPhotoURL, user["photo"])

	projects := user["projects"].([]interface{})
	require.Len(t, projects, 1)
	// Relations come back as plain ids, not embedded objects.
	_, isNumber := projects[0].(float64)
	assert.True(t, isNumber)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ana@example.com", "secret1", "")
	env.register(t, "bob@example.com", "secret2", "")
	token := env.login(t, "ana@example.com", "secret1")

	t.Run("no fields", func(t *testing.T) {
		rec, body := env.request(t, http.MethodPut, "/users/update", token, map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "no fields to update", body["error"])
	})

	t.Run("email conflict", func(t *testing.T) {
		rec, _ := env.request(t, http.MethodPut, "/users/update", token, map[string]interface{}{
			"email": "bob@example.com",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("password is re-hashed", func(t *testing.T) {
		rec, _ := env.request(t, http.MethodPut, "/users/update", token, map[string]interface{}{
			"password": "new-secret",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var user model.User
		require.NoError(t, env.db.Where("email = ?", "ana@example.com").First(&user).Error)
		assert.NotEqual(t, "new-secret", user.Password, "password must never be stored in clear")

		env.login(t, "ana@example.com", "new-secret")
	})

	t.Run("name", func(t *testing.T) {
		rec, body := env.request(t, http.MethodPut, "/users/update", token, map[string]interface{}{
			"name": "Anita",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		user := body["user"].(map[string]interface{})
		assert.Equal(t, "Anita", user["name"])
	})
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ana@example.com", "secret1", "")
	token := env.login(t, "ana@example.com", "secret1")

	rec, _ := env.request(t, http.MethodDelete, "/users/delete", token, map[string]interface{}{
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.request(t, http.MethodDelete, "/users/delete", token, map[string]interface{}{
		"password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.request(t, http.MethodPost, "/users/login", "", map[string]interface{}{
		"email":    "ana@example.com",
		"password": "secret1",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddFriend(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ana@example.com", "secret1", "Ana Suarez")
	env.register(t, "bob@example.com", "secret2", "Bob Lopez")
	anaToken := env.login(t, "ana@example.com", "secret1")
	bobToken := env.login(t, "bob@example.com", "secret2")

	rec, _ := env.request(t, http.MethodPost, "/users/add-friend", anaToken, map[string]interface{}{
		"email": "nobody@example.com",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.befriend(t, anaToken, "bob@example.com")

	rec, body := env.request(t, http.MethodPost, "/users/add-friend", anaToken, map[string]interface{}{
		"email": "bob@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "already friends", body["error"])

	// The edge is one-directional: Bob's friend list stays empty.
	rec, _ = env.request(t, http.MethodGet, "/users/friends", bobToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The notification goes out in the background.
	assert.Eventually(t, func() bool {
		for _, to := range env.mail.recipients() {
			if to == "bob@example.com" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond, "friend notification email never sent")
}

func TestRemoveFriend(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ana@example.com", "secret1", "")
	env.register(t, "bob@example.com", "secret2", "")
	anaToken := env.login(t, "ana@example.com", "secret1")

	rec, body := env.request(t, http.MethodPost, "/users/remove-friend", anaToken, map[string]interface{}{
		"email": "bob@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "not in friend list", body["error"])

	env.befriend(t, anaToken, "bob@example.com")

	rec, _ = env.request(t, http.MethodPost, "/users/remove-friend", anaToken, map[string]interface{}{
		"email": "bob@example.com",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.request(t, http.MethodGet, "/users/friends", anaToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFriendsResolvedFields(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ana@example.com", "secret1", "")
	env.register(t, "bob@example.com", "secret2", "Bob Lopez")
	anaToken := env.login(t, "ana@example.com", "secret1")

	rec, _ := env.request(t, http.MethodPost, "/users/add-friend", anaToken, map[string]interface{}{
		"email": "bob@example.com",
		"name":  "Bobby",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := env.request(t, http.MethodGet, "/users/friends", anaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	friends := body["friends"].([]interface{})
	require.Len(t, friends, 1)
	friend := friends[0].(map[string]interface{})
	assert.Equal(t, "bob@example.com", friend["email"])
	assert.Equal(t, "Bobby", friend["name"])
	assert.Equal(t, model.DefaultPhotoURL, friend["photo"])
}

func TestResetPassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ana@example.com", "secret1", "")

	rec, _ := env.request(t, http.MethodPost, "/users/reset", "", map[string]interface{}{
		"email": "nobody@example.com",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body := env.request(t, http.MethodPost, "/users/reset", "", map[string]interface{}{
		"email": "ana@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// The issued token authenticates the change-password flow.
	resetToken := body["token"].(string)
	rec, _ = env.request(t, http.MethodPost, "/users/change-password", resetToken, map[string]interface{}{
		"newPassword": "recovered",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	env.login(t, "ana@example.com", "recovered")

	assert.Eventually(t, func() bool {
		return len(env.mail.recipients()) > 0
	}, time.Second, 10*time.Millisecond, "reset email never sent")
}

func TestChangePasswordRequiresValue(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ana@example.com", "secret1", "")
	token := env.login(t, "ana@example.com", "secret1")

	rec, _ := env.request(t, http.MethodPost, "/users/change-password", token, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
