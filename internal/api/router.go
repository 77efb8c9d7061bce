package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"dorm-allocation-backend/config"
	"dorm-allocation-backend/internal/auth"
	"dorm-allocation-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, tokens *mw.TokenAuthority, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(mw.RequestLogger(handler.log), gin.Recovery())

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// Only verification responses are cached; they are public and keyed by
	// the pass identifier alone.
	verifyCache := mw.NewResponseCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	handler.verifyCache = verifyCache
	caching := verifyCache.Middleware()

	authenticated := mw.Auth(tokens)
	students := mw.RequireRole(auth.RoleStudent)
	faculty := mw.RequireRole(auth.RoleFacultyOffice)
	dormAdmins := mw.RequireRole(auth.RoleDormAdmin)
	reviewers := mw.RequireRole(auth.RoleFacultyOffice, auth.RoleDormAdmin)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// public
		api.GET("/passes/verify/:identifier", caching, handler.VerifyPass)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
		api.GET("/dormitories", handler.GetDormitories)
		api.GET("/dormitories/:id/available-rooms", handler.GetAvailableRooms)

		user := api.Group("", authenticated)

		user.GET("/subscriptions", handler.GetSubscription)
		user.PUT("/subscriptions", handler.PutSubscription)
		user.DELETE("/subscriptions", handler.DeleteSubscription)
		user.GET("/passes/me", handler.GetMyPass)

		apps := user.Group("/applications")
		apps.POST("", students, handler.CreateApplication)
		apps.GET("/:id", handler.GetApplication)
		apps.POST("/:id/cancel", students, handler.CancelApplication)
		apps.POST("/:id/approve-faculty", faculty, handler.ReviewApplication(handler.Applications.ApproveByFaculty))
		apps.POST("/:id/reject-faculty", faculty, handler.ReviewApplication(handler.Applications.RejectByFaculty))
		apps.POST("/:id/approve-dorm", dormAdmins, handler.ReviewApplication(handler.Applications.ApproveByDorm))
		apps.POST("/:id/reject-dorm", dormAdmins, handler.ReviewApplication(handler.Applications.RejectByDorm))
		apps.POST("/:id/reject", reviewers, handler.ReviewApplication(handler.Applications.Reject))
		apps.POST("/:id/allocate", dormAdmins, handler.AllocateApplication)
		apps.POST("/:id/allocate/:room_id", dormAdmins, handler.AllocateApplication)

		reservations := user.Group("/reservations")
		reservations.POST("", students, handler.CreateReservation)
		reservations.GET("/:id", handler.GetReservation)
		reservations.POST("/:id/cancel", students, handler.TransitionReservation(handler.Reservations.Cancel))
		reservations.POST("/:id/confirm", dormAdmins, handler.TransitionReservation(handler.Reservations.Confirm))
		reservations.POST("/:id/reject", dormAdmins, handler.RejectReservation)
		reservations.POST("/:id/check-in", dormAdmins, handler.TransitionReservation(handler.Reservations.CheckIn))
		reservations.POST("/:id/check-out", dormAdmins, handler.TransitionReservation(handler.Reservations.CheckOut))
		reservations.POST("/:id/expire", dormAdmins, handler.TransitionReservation(handler.Reservations.Expire))

		admin := user.Group("/admin", dormAdmins)
		admin.POST("/passes", handler.IssuePass)
		admin.POST("/passes/:id/revoke", handler.RevokePass)
		admin.GET("/dormitories/:id/roster.xlsx", handler.GetRoster)
	}

	return r
}
