package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	honeybadger "github.com/honeybadger-io/honeybadger-go"
	"github.com/sirupsen/logrus"
)

// Notifier is the subset of the honeybadger client used for reporting.
type Notifier interface {
	Notify(err interface{}, extra ...interface{}) (string, error)
}

// NewHoneybadger returns a configured client, or nil when apiKey is empty.
func NewHoneybadger(apiKey, env string) Notifier {
	if apiKey == "" {
		return nil
	}
	return honeybadger.New(honeybadger.Configuration{APIKey: apiKey, Env: env})
}

// Honeybadger reports panics and 5xx responses. Panics are re-raised so
// gin.Recovery still writes the response. A nil notifier disables reporting.
func Honeybadger(n Notifier, log *logrus.Logger) gin.HandlerFunc {
	if n == nil {
		log.Info("Honeybadger is not active. Set HONEYBADGER_API_KEY to enable error reporting.")
		return func(c *gin.Context) { c.Next() }
	}
	log.Info("Honeybadger error reporting is enabled.")

	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				_, _ = n.Notify(fmt.Sprintf("Panic: %s %s: %v", c.Request.Method, c.Request.URL.Path, rec),
					c.Request, honeybadger.Context{"stack": string(debug.Stack())}, honeybadger.Tags{"panic", "http"})
				log.Error("Recovered from panic, notified Honeybadger: ", rec)
				panic(rec)
			}
		}()

		c.Next()

		if status := c.Writer.Status(); status >= 500 {
			extra := []interface{}{c.Request, honeybadger.Tags{"5XX", "http"}}
			if len(c.Errors) > 0 {
				extra = append(extra, honeybadger.Context{"errors": c.Errors.String()})
			}
			_, _ = n.Notify(fmt.Sprintf("HTTP %d: %s %s", status, c.Request.Method, c.Request.URL.Path), extra...)
			log.Warnf("Honeybadger reported HTTP %d for %s %s", status, c.Request.Method, c.Request.URL.Path)
		}
	}
}
