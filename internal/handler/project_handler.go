package handler

import (
	"net/http"
	"time"

	"ticketsplit/internal/middleware"
	"ticketsplit/internal/model"
	"ticketsplit/pkg/logger"
	"ticketsplit/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProjectHandler serves project creation, membership and listing. Membership
// is stored as one row per project/user pair, so the project's member list and
// the member's project list can never disagree.
type ProjectHandler struct {
	db *gorm.DB
}

// NewProjectHandler creates a project handler with its dependencies.
func NewProjectHandler(db *gorm.DB) *ProjectHandler {
	return &ProjectHandler{db: db}
}

// Create creates a project owned by the caller. Project names are unique
// across the service.
func (h *ProjectHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordProjectOperation("create")

	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse project creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var existing model.Project
	if result := h.db.Where("name = ?", req.Name).First(&existing); result.Error == nil {
		log.Warn("Project name already in use", zap.String("name", req.Name))
		return c.JSON(http.StatusConflict, echo.Map{"error": "project name already in use"})
	}

	project := model.Project{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     userID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := h.db.Create(&project); result.Error != nil {
		log.Error("Failed to create project", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "project creation failed"})
	}

	log.Info("Project created",
		zap.String("name", project.Name),
		zap.Uint("id", project.ID),
		zap.Uint("owner_id", project.OwnerID))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "project created successfully",
		"project": echo.Map{
			"id":          project.ID,
			"name":        project.Name,
			"description": project.Description,
			"owner":       project.OwnerID,
		},
	})
}

// AddMembers adds one or more members to a project. Only the owner may call
// it, every candidate must be in the owner's friend list and none may already
// be a member; any offending id aborts the whole batch with the ids
// enumerated. Rows are inserted in one transaction so the membership either
// lands on both sides or not at all.
func (h *ProjectHandler) AddMembers(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordProjectOperation("add_members")

	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		ProjectID uint   `json:"projectId"`
		MemberID  *uint  `json:"memberId"`
		MemberIDs []uint `json:"memberIds"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse add-members request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.ProjectID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "projectId is required"})
	}

	memberIDs := req.MemberIDs
	if req.MemberID != nil {
		memberIDs = append(memberIDs, *req.MemberID)
	}
	if len(memberIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "memberId or memberIds is required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var project model.Project
	if result := h.db.First(&project, req.ProjectID); result.Error != nil {
		log.Warn("Project not found", zap.Uint("id", req.ProjectID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
	}

	if project.OwnerID != userID {
		log.Warn("Non-owner tried to add members",
			zap.Uint("project_id", project.ID),
			zap.Uint("user_id", userID))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the project owner can add members"})
	}

	// All-or-nothing validation: collect every offending id before writing.
	var friendIDs []uint
	if result := h.db.Model(&model.Friendship{}).
		Where("user_id = ? AND friend_id IN ?", userID, memberIDs).
		Pluck("friend_id", &friendIDs); result.Error != nil {
		log.Error("Failed to check friend list", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add members"})
	}

	friends := make(map[uint]bool, len(friendIDs))
	for _, id := range friendIDs {
		friends[id] = true
	}
	var notFriends []uint
	for _, id := range memberIDs {
		if !friends[id] {
			notFriends = append(notFriends, id)
		}
	}
	if len(notFriends) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":      "some users are not in your friend list",
			"member_ids": notFriends,
		})
	}

	var existingIDs []uint
	if result := h.db.Model(&model.ProjectMember{}).
		Where("project_id = ? AND user_id IN ?", project.ID, memberIDs).
		Pluck("user_id", &existingIDs); result.Error != nil {
		log.Error("Failed to check existing members", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add members"})
	}
	if len(existingIDs) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":      "some users are already members of the project",
			"member_ids": existingIDs,
		})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err := h.db.Transaction(func(tx *gorm.DB) error {
		for _, id := range memberIDs {
			member := model.ProjectMember{ProjectID: project.ID, UserID: id}
			if result := tx.Create(&member); result.Error != nil {
				return result.Error
			}
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to add members", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add members"})
	}

	memberList, err := h.memberIDs(project.ID)
	if err != nil {
		log.Error("Failed to list members", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add members"})
	}

	log.Info("Members added",
		zap.Uint("project_id", project.ID),
		zap.Uints("member_ids", memberIDs))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "members added successfully",
		"project": echo.Map{
			"id":          project.ID,
			"name":        project.Name,
			"description": project.Description,
			"owner":       project.OwnerID,
			"members":     memberList,
		},
	})
}

// RemoveMember removes a member from a project. Only the owner may call it
// and the owner cannot remove themself through this path.
func (h *ProjectHandler) RemoveMember(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordProjectOperation("remove_member")

	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		ProjectID uint `json:"projectId"`
		MemberID  uint `json:"memberId"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse remove-member request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.ProjectID == 0 || req.MemberID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "projectId and memberId are required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var project model.Project
	if result := h.db.First(&project, req.ProjectID); result.Error != nil {
		log.Warn("Project not found", zap.Uint("id", req.ProjectID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
	}

	if project.OwnerID != userID {
		log.Warn("Non-owner tried to remove a member",
			zap.Uint("project_id", project.ID),
			zap.Uint("user_id", userID))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the project owner can remove members"})
	}

	if req.MemberID == project.OwnerID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "the owner cannot be removed from the project"})
	}

	var membership model.ProjectMember
	result := h.db.Where("project_id = ? AND user_id = ?", project.ID, req.MemberID).First(&membership)
	if result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "member not in project"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := h.db.Delete(&membership); result.Error != nil {
		log.Error("Failed to remove member", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to remove member"})
	}

	log.Info("Member removed",
		zap.Uint("project_id", project.ID),
		zap.Uint("member_id", req.MemberID))

	return c.JSON(http.StatusOK, echo.Map{"message": "member removed successfully"})
}

// Delete removes a project, its memberships and its tickets in one
// transaction, so no member keeps a reference to a project that no longer
// exists.
func (h *ProjectHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordProjectOperation("delete")

	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		ProjectID uint `json:"projectId"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse delete-project request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.ProjectID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "projectId is required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var project model.Project
	if result := h.db.First(&project, req.ProjectID); result.Error != nil {
		log.Warn("Project not found", zap.Uint("id", req.ProjectID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
	}

	if project.OwnerID != userID {
		log.Warn("Non-owner tried to delete project",
			zap.Uint("project_id", project.ID),
			zap.Uint("user_id", userID))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the project owner can delete the project"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if result := tx.Where("project_id = ?", project.ID).Delete(&model.ProjectMember{}); result.Error != nil {
			return result.Error
		}
		if result := tx.Where("project_id = ?", project.ID).Delete(&model.Ticket{}); result.Error != nil {
			return result.Error
		}
		return tx.Delete(&project).Error
	})
	if err != nil {
		log.Error("Failed to delete project", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete project"})
	}

	log.Info("Project deleted", zap.Uint("id", project.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "project deleted successfully"})
}

// Details returns a project with its owner, members and tickets resolved. The
// project is visible only when it belongs to the caller's own project set, as
// owner or as member; anything else is reported as not found.
func (h *ProjectHandler) Details(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordProjectOperation("details")

	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		ProjectID uint `json:"projectId"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse project-details request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.ProjectID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "projectId is required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var project model.Project
	if result := h.db.Preload("Owner").First(&project, req.ProjectID); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found or not authorized"})
	}

	if !h.hasAccess(project, userID) {
		log.Warn("Project details requested by outsider",
			zap.Uint("project_id", project.ID),
			zap.Uint("user_id", userID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found or not authorized"})
	}

	var memberships []model.ProjectMember
	if result := h.db.Preload("User").Where("project_id = ?", project.ID).Find(&memberships); result.Error != nil {
		log.Error("Failed to load members", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load project"})
	}

	var tickets []model.Ticket
	if result := h.db.Preload("Uploader").Where("project_id = ?", project.ID).Find(&tickets); result.Error != nil {
		log.Error("Failed to load tickets", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load project"})
	}

	members := make([]echo.Map, 0, len(memberships))
	for _, m := range memberships {
		members = append(members, userSummary(m.User))
	}

	ticketList := make([]echo.Map, 0, len(tickets))
	for _, t := range tickets {
		ticketList = append(ticketList, echo.Map{
			"id":           t.ID,
			"description":  t.Description,
			"date":         t.Date,
			"image":        t.Image,
			"amount":       t.Amount,
			"distribution": t.Distribution,
			"uploader": echo.Map{
				"id":       t.Uploader.ID,
				"name":     t.Uploader.Name,
				"lastname": t.Uploader.Lastname,
			},
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "project details retrieved successfully",
		"project": echo.Map{
			"id":          project.ID,
			"name":        project.Name,
			"description": project.Description,
			"owner":       userSummary(project.Owner),
			"members":     members,
			"tickets":     ticketList,
			"created_at":  project.CreatedAt,
			"updated_at":  project.UpdatedAt,
		},
	})
}

// List returns the caller's projects reduced to id, name and description.
func (h *ProjectHandler) List(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordProjectOperation("list")

	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var projects []model.Project
	result := h.db.
		Where("owner_id = ?", userID).
		Or("id IN (?)", h.db.Model(&model.ProjectMember{}).Select("project_id").Where("user_id = ?", userID)).
		Find(&projects)
	if result.Error != nil {
		log.Error("Failed to list projects", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list projects"})
	}

	if len(projects) == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no projects found for this user"})
	}

	list := make([]echo.Map, 0, len(projects))
	for _, p := range projects {
		list = append(list, echo.Map{
			"id":          p.ID,
			"name":        p.Name,
			"description": p.Description,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":  "projects retrieved successfully",
		"projects": list,
	})
}

// hasAccess reports whether the user owns the project or is a member of it.
func (h *ProjectHandler) hasAccess(project model.Project, userID uint) bool {
	if project.OwnerID == userID {
		return true
	}
	var membership model.ProjectMember
	result := h.db.Where("project_id = ? AND user_id = ?", project.ID, userID).First(&membership)
	return result.Error == nil
}

// memberIDs returns the ids of a project's members.
func (h *ProjectHandler) memberIDs(projectID uint) ([]uint, error) {
	var ids []uint
	result := h.db.Model(&model.ProjectMember{}).Where("project_id = ?", projectID).Pluck("user_id", &ids)
	return ids, result.Error
}

// userSummary is the public shape members and owners are resolved to.
func userSummary(u model.User) echo.Map {
	return echo.Map{
		"id":       u.ID,
		"name":     u.Name,
		"lastname": u.Lastname,
		"photo":    u.PhotoOrDefault(),
		"email":    u.Email,
	}
}
