package handler

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/alien2112/safelines-sub000/internal/content"
	"github.com/alien2112/safelines-sub000/internal/content/service"
	"github.com/alien2112/safelines-sub000/pkg/httpcache"
	"github.com/alien2112/safelines-sub000/pkg/logger"
	"github.com/alien2112/safelines-sub000/pkg/metrics"
	"github.com/alien2112/safelines-sub000/pkg/respond"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Options configures the content routes.
type Options struct {
	// Policy is the Cache-Control tier for public listings and items.
	Policy httpcache.Policy
}

type reorderRequest struct {
	ID        string `json:"id" binding:"required"`
	Direction string `json:"direction" binding:"required,direction"`
}

var registerOnce sync.Once

func registerValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("direction", func(fl validator.FieldLevel) bool {
				return content.Direction(fl.Field().String()).Valid()
			})
		}
	})
}

func admin(c *gin.Context) bool {
	return c.Query("includeUnpublished") == "true"
}

func collection(c *gin.Context) (*content.Collection, bool) {
	col, err := content.Lookup(c.Param("collection"))
	if err != nil {
		respond.Error(c, "lookup collection", err)
		return nil, false
	}
	return col, true
}

// RegisterContentRoutes mounts the collection endpoints on r.
func RegisterContentRoutes(r gin.IRouter, svc *service.Service, opts Options) {
	registerValidators()
	policy := opts.Policy.String()

	r.GET("/content/:collection", func(c *gin.Context) {
		col, ok := collection(c)
		if !ok {
			return
		}
		isAdmin := admin(c)
		list, err := svc.List(c.Request.Context(), col, content.ListQuery{IncludeHidden: isAdmin})
		if err != nil {
			respond.Error(c, "list "+col.Name, err)
			return
		}
		endpoint := "content_" + col.Name

		if isAdmin {
			httpcache.SetNoStore(c.Writer.Header())
			metrics.ConditionalResponses.WithLabelValues(endpoint, metrics.ResultBypass).Inc()
			c.JSON(http.StatusOK, list.Items)
			return
		}
		v := httpcache.NewValidator(list.MaxUpdatedAt, col.Name, strconv.Itoa(list.Total))
		if httpcache.Conditional(c, v, policy) {
			metrics.ConditionalResponses.WithLabelValues(endpoint, metrics.ResultNotModified).Inc()
			return
		}
		metrics.ConditionalResponses.WithLabelValues(endpoint, metrics.ResultFull).Inc()
		c.JSON(http.StatusOK, list.Items)
	})

	r.GET("/content/:collection/:id", func(c *gin.Context) {
		col, ok := collection(c)
		if !ok {
			return
		}
		isAdmin := admin(c)
		it, err := svc.Get(c.Request.Context(), col, c.Param("id"), isAdmin)
		if err != nil {
			respond.Error(c, "get "+col.Name, err)
			return
		}
		if isAdmin {
			httpcache.SetNoStore(c.Writer.Header())
			c.JSON(http.StatusOK, it)
			return
		}
		if httpcache.Conditional(c, httpcache.NewValidator(it.UpdatedAt(), col.Name, it.ID()), policy) {
			return
		}
		c.JSON(http.StatusOK, it)
	})

	r.POST("/content/:collection", func(c *gin.Context) {
		col, ok := collection(c)
		if !ok {
			return
		}
		var payload map[string]interface{}
		if err := c.ShouldBindJSON(&payload); err != nil {
			respond.BadRequest(c, err.Error())
			return
		}
		save(c, svc, col, payload)
	})

	r.DELETE("/content/:collection", func(c *gin.Context) {
		col, ok := collection(c)
		if !ok {
			return
		}
		id := c.Query("id")
		if id == "" {
			respond.BadRequest(c, "missing id")
			return
		}
		if err := svc.Delete(c.Request.Context(), col, id); err != nil {
			respond.Error(c, "delete "+col.Name, err)
			return
		}
		logger.WithComponent("content").Debugf("deleted %s/%s", col.Name, id)
		c.Status(http.StatusNoContent)
	})

	r.POST("/content/:collection/reorder", func(c *gin.Context) {
		col, ok := collection(c)
		if !ok {
			return
		}
		var req reorderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BadRequest(c, err.Error())
			return
		}
		if err := svc.Reorder(c.Request.Context(), col, req.ID, content.Direction(req.Direction)); err != nil {
			respond.Error(c, "reorder "+col.Name, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": req.ID, "direction": req.Direction})
	})
}

// save runs the create-or-update and answers 201 for creates, 200 for updates.
// It reports whether the item was written.
func save(c *gin.Context, svc *service.Service, col *content.Collection, payload map[string]interface{}) bool {
	res, err := svc.Save(c.Request.Context(), col, payload)
	if err != nil {
		respond.Error(c, "save "+col.Name, err)
		return false
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	it, err := svc.Get(c.Request.Context(), col, res.ID, true)
	if err != nil {
		respond.Error(c, "reload "+col.Name, err)
		return true
	}
	c.JSON(status, gin.H{"id": res.ID, "created": res.Created, "item": it})
	return true
}
