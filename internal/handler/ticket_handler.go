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

// UnknownUploader is returned when a ticket's uploader can no longer be
// resolved, e.g. after the account was deleted.
const UnknownUploader = "unknown"

// TicketHandler serves expense tickets scoped to a project.
type TicketHandler struct {
	db *gorm.DB
}

// NewTicketHandler creates a ticket handler with its dependencies.
func NewTicketHandler(db *gorm.DB) *TicketHandler {
	return &TicketHandler{db: db}
}

// Create logs an expense ticket against a project. Only the project owner and
// its members may create tickets; the authenticated caller becomes the
// uploader.
func (h *TicketHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTicketOperation("create")

	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		ProjectID    uint     `json:"projectId"`
		Description  string   `json:"description"`
		Date         string   `json:"date"`
		Image        string   `json:"image"`
		Amount       *float64 `json:"amount"`
		Distribution *float64 `json:"distribution"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse ticket creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.ProjectID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "project ID is required"})
	}
	if req.Description == "" || req.Date == "" || req.Amount == nil || req.Distribution == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "description, date, amount and distribution are required"})
	}

	date, err := parseTicketDate(req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date format"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var project model.Project
	if result := h.db.First(&project, req.ProjectID); result.Error != nil {
		log.Warn("Project not found", zap.Uint("id", req.ProjectID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
	}

	if !h.belongsToProject(project, userID) {
		log.Warn("Outsider tried to create a ticket",
			zap.Uint("project_id", project.ID),
			zap.Uint("user_id", userID))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you do not belong to this project"})
	}

	ticket := model.Ticket{
		UploaderID:   userID,
		ProjectID:    project.ID,
		Description:  req.Description,
		Date:         date,
		Image:        req.Image,
		Amount:       *req.Amount,
		Distribution: *req.Distribution,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := h.db.Create(&ticket); result.Error != nil {
		log.Error("Failed to create ticket", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "ticket creation failed"})
	}

	log.Info("Ticket created",
		zap.Uint("id", ticket.ID),
		zap.Uint("project_id", project.ID),
		zap.Uint("uploader_id", userID),
		zap.Float64("amount", ticket.Amount))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "ticket created successfully",
		"ticket":  ticket,
	})
}

// Delete removes a ticket. The project owner may delete any ticket in the
// project; the uploader may delete their own.
func (h *TicketHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTicketOperation("delete")

	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		TicketID uint `json:"ticketId"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse ticket deletion request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.TicketID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticket ID is required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var ticket model.Ticket
	if result := h.db.First(&ticket, req.TicketID); result.Error != nil {
		log.Warn("Ticket not found", zap.Uint("id", req.TicketID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
	}

	var project model.Project
	if result := h.db.First(&project, ticket.ProjectID); result.Error != nil {
		log.Warn("Project for ticket not found",
			zap.Uint("ticket_id", ticket.ID),
			zap.Uint("project_id", ticket.ProjectID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "the project associated with the ticket does not exist"})
	}

	isOwner := project.OwnerID == userID
	isUploader := ticket.UploaderID == userID
	if !isOwner && !isUploader {
		log.Warn("Unauthorized ticket deletion attempt",
			zap.Uint("ticket_id", ticket.ID),
			zap.Uint("user_id", userID))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you do not have permission to delete this ticket"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := h.db.Delete(&ticket); result.Error != nil {
		log.Error("Failed to delete ticket", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete ticket"})
	}

	log.Info("Ticket deleted", zap.Uint("id", ticket.ID), zap.Uint("project_id", project.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "ticket deleted successfully"})
}

// List returns every ticket of a project with the uploader resolved to id and
// name.
func (h *TicketHandler) List(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTicketOperation("list")

	if _, ok := middleware.UserID(c); !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		ProjectID uint `json:"projectId"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse ticket listing request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.ProjectID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "project ID is required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var project model.Project
	if result := h.db.First(&project, req.ProjectID); result.Error != nil {
		log.Warn("Project not found", zap.Uint("id", req.ProjectID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
	}

	var tickets []model.Ticket
	if result := h.db.Preload("Uploader").Where("project_id = ?", project.ID).Find(&tickets); result.Error != nil {
		log.Error("Failed to list tickets", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list tickets"})
	}

	if len(tickets) == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no tickets for this project"})
	}

	list := make([]echo.Map, 0, len(tickets))
	for _, t := range tickets {
		uploaderID := interface{}(t.Uploader.ID)
		uploaderName := t.Uploader.Name
		if t.Uploader.ID == 0 {
			// Uploader account is gone; keep the ticket readable.
			uploaderID = UnknownUploader
			uploaderName = UnknownUploader
		}
		list = append(list, echo.Map{
			"id":            t.ID,
			"description":   t.Description,
			"date":          t.Date,
			"image":         t.Image,
			"amount":        t.Amount,
			"distribution":  t.Distribution,
			"uploader_id":   uploaderID,
			"uploader_name": uploaderName,
			"created_at":    t.CreatedAt,
			"updated_at":    t.UpdatedAt,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "tickets retrieved successfully",
		"tickets": list,
	})
}

// belongsToProject reports whether the user is the project owner or a member.
func (h *TicketHandler) belongsToProject(project model.Project, userID uint) bool {
	if project.OwnerID == userID {
		return true
	}
	var membership model.ProjectMember
	result := h.db.Where("project_id = ? AND user_id = ?", project.ID, userID).First(&membership)
	return result.Error == nil
}

// parseTicketDate accepts RFC 3339 timestamps and plain dates.
func parseTicketDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}
