// Package httpcache derives validators for mutable listings and applies the
// conditional-request and Cache-Control rules shared by the read endpoints.
//
// A listing's ETag is a hash of its latest mutation timestamp (plus any extra
// discriminators such as the item count), never of the response body. Whenever
// the timestamp advances, the ETag changes and conditional requests miss.
package httpcache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NoStore is sent to admin requests, which must never observe a cached listing.
const NoStore = "no-store, no-cache, must-revalidate, max-age=0"

// Policy is a public Cache-Control tier.
type Policy struct {
	BrowserMaxAge        time.Duration
	SharedMaxAge         time.Duration
	StaleWhileRevalidate time.Duration
	Immutable            bool
}

func (p Policy) String() string {
	var b strings.Builder
	b.WriteString("public, max-age=")
	b.WriteString(strconv.FormatInt(int64(p.BrowserMaxAge/time.Second), 10))
	if p.SharedMaxAge > 0 {
		b.WriteString(", s-maxage=")
		b.WriteString(strconv.FormatInt(int64(p.SharedMaxAge/time.Second), 10))
	}
	if p.StaleWhileRevalidate > 0 {
		b.WriteString(", stale-while-revalidate=")
		b.WriteString(strconv.FormatInt(int64(p.StaleWhileRevalidate/time.Second), 10))
	}
	if p.Immutable {
		b.WriteString(", immutable")
	}
	return b.String()
}

// ETag hashes the given parts into a strong, quoted entity tag.
func ETag(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// Validator pairs an ETag with the Last-Modified time it was derived from.
type Validator struct {
	ETag         string
	LastModified time.Time
}

// NewValidator builds a validator from a mutation timestamp and optional discriminators.
func NewValidator(lastModified time.Time, extra ...string) Validator {
	parts := make([]string, 0, len(extra)+1)
	if lastModified.IsZero() {
		parts = append(parts, "empty")
	} else {
		parts = append(parts, lastModified.UTC().Format(time.RFC3339Nano))
	}
	parts = append(parts, extra...)
	return Validator{ETag: ETag(parts...), LastModified: lastModified}
}

// Matches reports whether an If-None-Match header value matches etag.
// The header may list several tags and weak tags compare by their opaque part.
func Matches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" || etag == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == want {
			return true
		}
	}
	return false
}

// Apply sets ETag, Cache-Control and Last-Modified on h.
func (v Validator) Apply(h http.Header, cacheControl string) {
	h.Set("ETag", v.ETag)
	h.Set("Cache-Control", cacheControl)
	if !v.LastModified.IsZero() {
		h.Set("Last-Modified", v.LastModified.UTC().Format(http.TimeFormat))
	}
}

// NotModified reports whether r is a conditional GET/HEAD that v satisfies.
func (v Validator) NotModified(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	return Matches(r.Header.Get("If-None-Match"), v.ETag)
}

// SetNoStore marks a response as uncacheable.
func SetNoStore(h http.Header) {
	h.Set("Cache-Control", NoStore)
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

// Conditional applies the validator headers and, when the request already holds the
// current representation, writes 304 and reports true. Callers write the body otherwise.
func Conditional(c *gin.Context, v Validator, cacheControl string) bool {
	v.Apply(c.Writer.Header(), cacheControl)
	if v.NotModified(c.Request) {
		c.Status(http.StatusNotModified)
		c.Writer.WriteHeaderNow()
		return true
	}
	return false
}
