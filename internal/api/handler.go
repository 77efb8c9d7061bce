package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dorm-allocation-backend/internal/allocation"
	"dorm-allocation-backend/internal/application"
	"dorm-allocation-backend/internal/apperr"
	"dorm-allocation-backend/internal/auth"
	"dorm-allocation-backend/internal/logging"
	"dorm-allocation-backend/internal/mw"
	"dorm-allocation-backend/internal/pass"
	"dorm-allocation-backend/internal/report"
	"dorm-allocation-backend/internal/reservation"
	"dorm-allocation-backend/internal/store"
)

// Services are the core components the handlers adapt to HTTP.
type Services struct {
	Store        store.Store
	Applications *application.Ledger
	Reservations *reservation.Ledger
	Engine       *allocation.Engine
	Passes       *pass.Issuer
	Roster       *report.Roster
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	Services
	webpush     *webpush.Options
	verifyCache *mw.ResponseCache
	log         *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s Services, webpushOptions *webpush.Options, log *zap.Logger) *Handler {
	return &Handler{
		Services: s,
		webpush:  webpushOptions,
		log:      logging.OrNop(log).Named("api"),
	}
}

// respondError writes err as {"error", "code"} with the status its code maps
// to. Uncoded errors are logged and hidden behind a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		c.AbortWithStatusJSON(appErr.Code.HTTPStatus(), gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}
	h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": apperr.CodeUnknown})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message, "code": apperr.CodeInvalidArgument})
}

// bindJSON decodes the request body, answering 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid request")
		return false
	}
	return true
}

// bindOptionalJSON decodes the body when one was sent.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, dst)
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// caller returns the identity set by the auth middleware.
func caller(c *gin.Context) (auth.RequestContext, bool) {
	rc, ok := mw.RequestContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "caller is not authenticated"})
	}
	return rc, ok
}

type commentRequest struct {
	Comment string `json:"comment"`
}
