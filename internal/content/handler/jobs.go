package handler

import (
	"context"
	"encoding/json"
	"mime/multipart"

	"github.com/alien2112/safelines-sub000/internal/content"
	"github.com/alien2112/safelines-sub000/internal/content/service"
	"github.com/alien2112/safelines-sub000/internal/images"
	imagehandler "github.com/alien2112/safelines-sub000/internal/images/handler"
	"github.com/alien2112/safelines-sub000/internal/storage"
	"github.com/alien2112/safelines-sub000/pkg/logger"
	"github.com/alien2112/safelines-sub000/pkg/respond"
	"github.com/gin-gonic/gin"
)

// RegisterJobRoutes mounts the multipart job write used by the careers admin
// form: job fields plus an optional image stored in the careers section.
func RegisterJobRoutes(r gin.IRouter, svc *service.Service, store storage.ObjectStore, maxUploadBytes int64) {
	r.POST("/jobs", func(c *gin.Context) {
		if err := imagehandler.ParseMultipart(c, maxUploadBytes); err != nil {
			respond.Error(c, "save jobs", err)
			return
		}
		payload, err := jobPayload(c.Request.MultipartForm)
		if err != nil {
			respond.Error(c, "save jobs", err)
			return
		}
		if err := svc.Validate(content.Jobs, payload); err != nil {
			respond.Error(c, "save jobs", err)
			return
		}
		files := c.Request.MultipartForm.File["file"]
		if len(files) == 0 {
			save(c, svc, content.Jobs, payload)
			return
		}
		obj, err := imagehandler.Upload(c, store, "file", images.CareersSection, nil, maxUploadBytes)
		if err != nil {
			respond.Error(c, "upload job image", err)
			return
		}
		payload["image"] = imagehandler.URL(obj.ID)
		if !save(c, svc, content.Jobs, payload) {
			// nothing references the image once the job write failed
			if err := store.Delete(context.WithoutCancel(c.Request.Context()), obj.ID); err != nil {
				logger.WithComponent("jobs").Warnf("remove orphaned image %s: %v", obj.ID, err)
			}
		}
	})
}

// jobPayload merges the optional "data" JSON object with the plain form fields.
// Plain fields win; "true" and "false" become booleans.
func jobPayload(form *multipart.Form) (map[string]interface{}, error) {
	payload := map[string]interface{}{}
	if raw := form.Value["data"]; len(raw) > 0 && raw[0] != "" {
		if err := json.Unmarshal([]byte(raw[0]), &payload); err != nil {
			return nil, content.ErrInvalidPayload
		}
		if payload == nil {
			payload = map[string]interface{}{}
		}
	}
	for key, values := range form.Value {
		if key == "data" || len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			payload[key] = formValue(values[0])
			continue
		}
		list := make([]interface{}, len(values))
		for i, v := range values {
			list[i] = formValue(v)
		}
		payload[key] = list
	}
	return payload, nil
}

func formValue(v string) interface{} {
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	return v
}
