package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"ticketsplit/internal/middleware"
	"ticketsplit/internal/model"
	"ticketsplit/pkg/jwtutil"
	"ticketsplit/pkg/logger"
	"ticketsplit/pkg/mailer"
	"ticketsplit/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserHandler serves registration, login, profile and the friend graph.
type UserHandler struct {
	db   *gorm.DB
	jwt  *jwtutil.JWT
	mail mailer.Sender
}

// NewUserHandler creates a user handler with its dependencies.
func NewUserHandler(db *gorm.DB, jwt *jwtutil.JWT, mail mailer.Sender) *UserHandler {
	return &UserHandler{db: db, jwt: jwt, mail: mail}
}

// Register creates a new account. The optional full name is split into first
// and last name on the first whitespace.
func (h *UserHandler) Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"fullName"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Email == "" || req.Password == "" {
		log.Warn("Invalid registration data",
			zap.String("email", req.Email),
			zap.Bool("password_provided", req.Password != ""))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var existing model.User
	if result := h.db.Where("email = ?", req.Email).First(&existing); result.Error == nil {
		log.Warn("User already exists", zap.String("email", req.Email))
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	name, lastname := splitFullName(req.FullName)
	user := model.User{
		Email:    req.Email,
		Password: string(hashed),
		Name:     name,
		Lastname: lastname,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := h.db.Create(&user); result.Error != nil {
		log.Error("Failed to create user", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	log.Info("User registered", zap.String("email", user.Email), zap.Uint("id", user.ID))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "user registered successfully",
		"user": echo.Map{
			"id":       user.ID,
			"email":    user.Email,
			"name":     user.Name,
			"lastname": user.Lastname,
		},
	})
}

// Login verifies credentials and issues a signed token. Unknown email and
// wrong password produce the identical response so accounts cannot be
// enumerated.
func (h *UserHandler) Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	if result := h.db.Where("email = ?", req.Email).First(&user); result.Error != nil {
		log.Warn("Login for unknown email", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_credentials")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_credentials")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	token, err := h.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	prometheus.IncreaseActiveTokens()
	log.Info("User logged in", zap.String("email", user.Email), zap.Uint("id", user.ID))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "logged in successfully",
		"token":   token,
	})
}

// Profile returns the authenticated user's record. Related projects and
// friends are returned as plain id lists, not embedded objects.
func (h *UserHandler) Profile(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("profile")

	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	if result := h.db.First(&user, userID); result.Error != nil {
		log.Warn("User not found", zap.Uint("id", userID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	projectIDs, err := h.projectIDs(userID)
	if err != nil {
		log.Error("Failed to list user's projects", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load profile"})
	}

	var friendIDs []uint
	if result := h.db.Model(&model.Friendship{}).Where("user_id = ?", userID).
		Pluck("friend_id", &friendIDs); result.Error != nil {
		log.Error("Failed to list user's friends", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load profile"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user": echo.Map{
			"id":         user.ID,
			"email":      user.Email,
			"name":       user.Name,
			"lastname":   user.Lastname,
			"photo":      user.PhotoOrDefault(),
			"projects":   projectIDs,
			"friends":    friendIDs,
			"created_at": user.CreatedAt,
			"updated_at": user.UpdatedAt,
		},
	})
}

// Update applies a partial profile update. Every field is optional but at
// least one must be present.
func (h *UserHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("update")

	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Name     *string `json:"name"`
		Lastname *string `json:"lastname"`
		Email    *string `json:"email"`
		Password *string `json:"password"`
		Photo    *string `json:"photo"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Name == nil && req.Lastname == nil && req.Email == nil && req.Password == nil && req.Photo == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no fields to update"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Lastname != nil {
		updates["lastname"] = *req.Lastname
	}
	if req.Photo != nil {
		updates["photo"] = *req.Photo
	}
	if req.Email != nil {
		var other model.User
		result := h.db.Where("email = ? AND id <> ?", *req.Email, userID).First(&other)
		if result.Error == nil {
			log.Warn("Email already in use", zap.String("email", *req.Email))
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		updates["email"] = *req.Email
	}
	if req.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Error("Failed to hash password", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
		}
		updates["password"] = string(hashed)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := h.db.Model(&model.User{}).Where("id = ?", userID).Updates(updates); result.Error != nil {
		log.Error("Failed to update user", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}

	var user model.User
	if result := h.db.First(&user, userID); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	log.Info("User updated", zap.Uint("id", userID))
	return c.JSON(http.StatusOK, echo.Map{
		"user": echo.Map{
			"id":       user.ID,
			"email":    user.Email,
			"name":     user.Name,
			"lastname": user.Lastname,
			"photo":    user.PhotoOrDefault(),
		},
	})
}

// Delete removes the caller's account after confirming the password. Owned
// projects and uploaded tickets are intentionally left in place; see the
// project documentation for this known gap.
func (h *UserHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("delete")

	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse delete request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	var user model.User
	if result := h.db.First(&user, userID); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Invalid password on account deletion", zap.Uint("id", userID))
		prometheus.RecordAuthError("invalid_credentials")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := h.db.Delete(&user); result.Error != nil {
		log.Error("Failed to delete user", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete user"})
	}

	log.Info("User deleted", zap.Uint("id", userID))
	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted"})
}

// AddFriend records a friend edge from the caller to the user with the given
// email. The edge is one-directional: the target's friend list is untouched.
func (h *UserHandler) AddFriend(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("add_friend")

	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse add-friend request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var target model.User
	if result := h.db.Where("email = ?", req.Email).First(&target); result.Error != nil {
		log.Warn("Friend target not found", zap.String("email", req.Email))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	if target.ID == userID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot add yourself as a friend"})
	}

	var existing model.Friendship
	result := h.db.Where("user_id = ? AND friend_id = ?", userID, target.ID).First(&existing)
	if result.Error == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "already friends"})
	}

	friendship := model.Friendship{
		UserID:   userID,
		FriendID: target.ID,
		Name:     req.Name,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := h.db.Create(&friendship); result.Error != nil {
		log.Error("Failed to create friendship", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add friend"})
	}

	// The friendship is already committed; the notification must not fail
	// the request.
	callerEmail, _ := c.Get(middleware.EmailKey).(string)
	h.notify(log, target.Email, "You have a new friend on Ticketsplit",
		"The user "+callerEmail+" added you to their friend list.")

	log.Info("Friend added", zap.Uint("user_id", userID), zap.Uint("friend_id", target.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "friend added successfully"})
}

// RemoveFriend deletes the caller's friend edge to the user with the given
// email.
func (h *UserHandler) RemoveFriend(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("remove_friend")

	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Email string `json:"email"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse remove-friend request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	var target model.User
	if result := h.db.Where("email = ?", req.Email).First(&target); result.Error != nil {
		log.Warn("Friend target not found", zap.String("email", req.Email))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	var friendship model.Friendship
	result := h.db.Where("user_id = ? AND friend_id = ?", userID, target.ID).First(&friendship)
	if result.Error != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "not in friend list"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := h.db.Delete(&friendship); result.Error != nil {
		log.Error("Failed to delete friendship", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to remove friend"})
	}

	log.Info("Friend removed", zap.Uint("user_id", userID), zap.Uint("friend_id", target.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "friend removed successfully"})
}

// Friends lists the caller's friends resolved to email, display name and
// photo.
func (h *UserHandler) Friends(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("list_friends")

	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var friendships []model.Friendship
	if result := h.db.Preload("Friend").Where("user_id = ?", userID).Find(&friendships); result.Error != nil {
		log.Error("Failed to list friends", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list friends"})
	}

	if len(friendships) == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no friends found"})
	}

	friends := make([]echo.Map, 0, len(friendships))
	for _, f := range friendships {
		name := f.Name
		if name == "" {
			name = f.Friend.Name
		}
		friends = append(friends, echo.Map{
			"email": f.Friend.Email,
			"name":  name,
			"photo": f.Friend.PhotoOrDefault(),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"friends": friends})
}

// ResetPassword issues a short-lived token for the account with the given
// email and mails it to the owner.
func (h *UserHandler) ResetPassword(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("reset")

	var req struct {
		Email string `json:"email"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse reset request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}

	var user model.User
	if result := h.db.Where("email = ?", req.Email).First(&user); result.Error != nil {
		log.Warn("Reset for unknown email", zap.String("email", req.Email))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	token, err := h.jwt.GenerateResetToken(user.ID, user.Email)
	if err != nil {
		log.Error("Failed to generate reset token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	h.notify(log, user.Email, "Ticketsplit password reset",
		"Use this token to change your password within the next 15 minutes: "+token)

	log.Info("Password reset issued", zap.Uint("id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "reset email sent",
		"token":   token,
	})
}

// ChangePassword replaces the caller's password.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordUserOperation("change_password")

	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		NewPassword string `json:"newPassword"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse change-password request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "newPassword is required"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password change failed"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	result := h.db.Model(&model.User{}).Where("id = ?", userID).Update("password", string(hashed))
	if result.Error != nil {
		log.Error("Failed to update password", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password change failed"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	log.Info("Password changed", zap.Uint("id", userID))
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed successfully"})
}

// projectIDs returns the ids of every project the user owns or belongs to.
func (h *UserHandler) projectIDs(userID uint) ([]uint, error) {
	var owned []uint
	if result := h.db.Model(&model.Project{}).Where("owner_id = ?", userID).
		Pluck("id", &owned); result.Error != nil {
		return nil, result.Error
	}

	var joined []uint
	if result := h.db.Model(&model.ProjectMember{}).Where("user_id = ?", userID).
		Pluck("project_id", &joined); result.Error != nil {
		return nil, result.Error
	}

	return append(owned, joined...), nil
}

// notify sends an email in the background. Failures are logged and counted,
// never surfaced to the caller.
func (h *UserHandler) notify(log *zap.Logger, to, subject, body string) {
	if h.mail == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := h.mail.Send(ctx, to, subject, body); err != nil {
			log.Warn("Failed to send notification email", zap.String("to", to), zap.Error(err))
			prometheus.RecordMailResult("failed")
			return
		}
		prometheus.RecordMailResult("sent")
	}()
}

// splitFullName splits a full name into first and last name on the first
// whitespace.
func splitFullName(fullName string) (string, string) {
	trimmed := strings.TrimSpace(fullName)
	if trimmed == "" {
		return "", ""
	}
	parts := strings.SplitN(trimmed, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}
