package respond

import (
	"net/http"
	"sync/atomic"

	"github.com/alien2112/safelines-sub000/pkg/apperr"
	"github.com/alien2112/safelines-sub000/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var exposeDetails atomic.Bool

// ExposeDetails controls whether 500 responses carry the underlying error text.
// Enabled only for development deployments.
func ExposeDetails(on bool) { exposeDetails.Store(on) }

// Error writes err with the status its class maps to. Internal errors are logged
// under a fresh reference id which is returned to the client instead of the message.
func Error(c *gin.Context, op string, err error) {
	switch apperr.ClassOf(err) {
	case apperr.ClassInvalid:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.ClassNotFound:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		ref := uuid.NewString()
		_ = c.Error(err)
		logger.WithComponent("http").WithField("ref", ref).Errorf("%s %s: %s: %v", c.Request.Method, c.Request.URL.Path, op, err)
		body := gin.H{"error": "internal server error", "ref": ref}
		if exposeDetails.Load() {
			body["details"] = err.Error()
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
	}
}

// BadRequest writes a 400 with msg.
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
