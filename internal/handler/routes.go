package handler

import (
	"ticketsplit/internal/middleware"
	"ticketsplit/pkg/jwtutil"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires every API route onto the echo instance. Paths are part
// of the public contract consumed by the mobile and web clients, including
// the historical /tickets/get-tikets spelling.
func RegisterRoutes(e *echo.Echo, jwt *jwtutil.JWT, users *UserHandler, projects *ProjectHandler, tickets *TicketHandler) {
	e.GET("/health", HealthCheck)
	e.GET("/metrics", MetricsHandler)

	auth := middleware.Auth(jwt)

	u := e.Group("/users")
	u.POST("/register", users.Register)
	u.POST("/login", users.Login)
	u.POST("/reset", users.ResetPassword)
	u.GET("/profile", users.Profile, auth)
	u.PUT("/update", users.Update, auth)
	u.DELETE("/delete", users.Delete, auth)
	u.POST("/add-friend", users.AddFriend, auth)
	u.POST("/remove-friend", users.RemoveFriend, auth)
	u.GET("/friends", users.Friends, auth)
	u.POST("/change-password", users.ChangePassword, auth)

	p := e.Group("/projects", auth)
	p.POST("/create", projects.Create)
	p.POST("/add-members", projects.AddMembers)
	p.DELETE("/delete-member", projects.RemoveMember)
	p.DELETE("/delete-project", projects.Delete)
	p.POST("/post-details", projects.Details)
	p.GET("/get-all", projects.List)

	t := e.Group("/tickets", auth)
	t.POST("/create", tickets.Create)
	t.DELETE("/delete", tickets.Delete)
	t.POST("/get-tikets", tickets.List)
}
