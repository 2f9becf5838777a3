package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/alien2112/safelines-sub000/internal/images"
	"github.com/alien2112/safelines-sub000/internal/storage"
	"github.com/alien2112/safelines-sub000/pkg/apperr"
	"github.com/alien2112/safelines-sub000/pkg/httpcache"
	"github.com/alien2112/safelines-sub000/pkg/logger"
	"github.com/alien2112/safelines-sub000/pkg/metrics"
	"github.com/alien2112/safelines-sub000/pkg/respond"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// Options configures the image routes.
type Options struct {
	// ListPolicy applies to public listings, ImagePolicy to streamed binaries.
	ListPolicy     httpcache.Policy
	ImagePolicy    httpcache.Policy
	MaxUploadBytes int64
}

// URL is the public path an image is streamed from.
func URL(id string) string { return "/api/images/" + id }

type imageResponse struct {
	storage.Object
	URL string `json:"url"`
}

type uploadForm struct {
	Section string `form:"section" binding:"required,section"`
	Order   *int   `form:"order"`
}

type orderRequest struct {
	Order *float64 `json:"order" binding:"required"`
}

// orderSignature covers the listed sequence and each order value, so a PATCH
// that leaves upload dates and the count untouched still changes the tag.
func orderSignature(objs []storage.Object) string {
	var b strings.Builder
	for _, o := range objs {
		b.WriteString(o.ID)
		b.WriteByte(':')
		if o.Order != nil {
			b.WriteString(strconv.Itoa(*o.Order))
		}
		b.WriteByte(',')
	}
	return b.String()
}

// RegisterImageRoutes mounts the image endpoints on r.
func RegisterImageRoutes(r gin.IRouter, store storage.ObjectStore, opts Options) {
	images.RegisterValidators()

	r.GET("/images", func(c *gin.Context) {
		section, err := images.ParseSection(c.Query("section"))
		if err != nil {
			respond.Error(c, "list images", err)
			return
		}
		list, err := store.List(c.Request.Context(), section)
		if err != nil {
			respond.Error(c, "list images", err)
			return
		}
		out := make([]imageResponse, 0, len(list.Objects))
		for _, o := range list.Objects {
			out = append(out, imageResponse{Object: o, URL: URL(o.ID)})
		}

		if c.Query("noCache") == "1" {
			httpcache.SetNoStore(c.Writer.Header())
			metrics.ConditionalResponses.WithLabelValues("images", metrics.ResultBypass).Inc()
			c.JSON(http.StatusOK, out)
			return
		}
		v := httpcache.NewValidator(list.MaxUploadDate, "images", section, strconv.Itoa(list.Count), orderSignature(list.Objects))
		if httpcache.Conditional(c, v, opts.ListPolicy.String()) {
			metrics.ConditionalResponses.WithLabelValues("images", metrics.ResultNotModified).Inc()
			return
		}
		metrics.ConditionalResponses.WithLabelValues("images", metrics.ResultFull).Inc()
		c.JSON(http.StatusOK, out)
	})

	stream := func(c *gin.Context) {
		id := c.Param("id")
		obj, err := store.Stat(c.Request.Context(), id)
		if err != nil {
			respond.Error(c, "stat image", err)
			return
		}
		// uploadDate never changes, so neither does the tag for a given id
		v := httpcache.NewValidator(obj.UploadDate, obj.ID)
		if httpcache.Conditional(c, v, opts.ImagePolicy.String()) {
			metrics.ConditionalResponses.WithLabelValues("image", metrics.ResultNotModified).Inc()
			return
		}
		ct := obj.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := c.Writer.Header()
		h.Set("Content-Type", ct)
		h.Set("Content-Length", strconv.FormatInt(obj.Length, 10))
		if c.Request.Method == http.MethodHead {
			c.Status(http.StatusOK)
			return
		}

		_, rc, err := store.Open(c.Request.Context(), id)
		if err != nil {
			h.Del("Content-Length")
			respond.Error(c, "open image", err)
			return
		}
		defer rc.Close()
		metrics.ConditionalResponses.WithLabelValues("image", metrics.ResultFull).Inc()
		c.Status(http.StatusOK)
		n, err := io.Copy(c.Writer, storage.NewContextReader(c.Request.Context(), rc))
		metrics.ImageBytesServed.Add(float64(n))
		if err != nil {
			// headers are already sent; the short body against Content-Length tells the client
			logger.WithComponent("images").WithField("id", id).Warnf("stream aborted after %d bytes: %v", n, err)
			_ = c.Error(err)
			c.Abort()
		}
	}
	r.GET("/images/:id", stream)
	r.HEAD("/images/:id", stream)

	r.PATCH("/images/:id", func(c *gin.Context) {
		var req orderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BadRequest(c, "order must be a number")
			return
		}
		if *req.Order != float64(int(*req.Order)) {
			respond.BadRequest(c, "order must be an integer")
			return
		}
		id := c.Param("id")
		if err := store.SetOrder(c.Request.Context(), id, int(*req.Order)); err != nil {
			respond.Error(c, "set image order", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "order": int(*req.Order)})
	})

	r.POST("/images", func(c *gin.Context) {
		if err := ParseMultipart(c, opts.MaxUploadBytes); err != nil {
			respond.Error(c, "upload image", err)
			return
		}
		var form uploadForm
		if err := c.ShouldBindWith(&form, binding.FormMultipart); err != nil {
			respond.BadRequest(c, err.Error())
			return
		}
		obj, err := Upload(c, store, "file", form.Section, form.Order, opts.MaxUploadBytes)
		if err != nil {
			respond.Error(c, "upload image", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": obj.ID, "url": URL(obj.ID), "image": imageResponse{Object: obj, URL: URL(obj.ID)}})
	})

	r.DELETE("/images/:id", func(c *gin.Context) {
		if err := store.Delete(c.Request.Context(), c.Param("id")); err != nil {
			respond.Error(c, "delete image", err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

var (
	ErrMissingFile = apperr.Invalid("missing file")
	ErrTooLarge    = apperr.Invalid("file too large")
	ErrNotImage    = apperr.Invalid("file is not an image")
	ErrNotForm     = apperr.Invalid("expected a multipart form")
)

// multipartMemory is the part of a form kept in memory; larger files spill to disk.
const multipartMemory = 8 << 20

// ParseMultipart parses the request's multipart form, bounding the body at
// maxBytes plus room for the other form fields.
func ParseMultipart(c *gin.Context, maxBytes int64) error {
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+1<<20)
	}
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return ErrTooLarge
		}
		return ErrNotForm
	}
	return nil
}

// Upload stores the multipart file in field under section. The bytes must sniff
// as an image; the part header's content type is kept when it names one.
func Upload(c *gin.Context, store storage.ObjectStore, field, section string, order *int, maxBytes int64) (storage.Object, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return storage.Object{}, ErrMissingFile
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return storage.Object{}, ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return storage.Object{}, err
	}
	defer f.Close()

	sniffed, err := mimetype.DetectReader(f)
	if err != nil {
		return storage.Object{}, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return storage.Object{}, err
	}
	if !strings.HasPrefix(sniffed.String(), "image/") {
		return storage.Object{}, ErrNotImage
	}
	ct := fh.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if !strings.HasPrefix(ct, "image/") {
		ct = sniffed.String()
	}

	obj, err := store.Upload(c.Request.Context(), f, storage.UploadInput{
		Filename:    fh.Filename,
		Section:     section,
		ContentType: ct,
		Order:       order,
		Size:        fh.Size,
	})
	if err != nil {
		return storage.Object{}, err
	}
	metrics.ImageUploads.WithLabelValues(section).Inc()
	return obj, nil
}
