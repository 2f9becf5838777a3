// Package images defines the site sections images are grouped by.
package images

import (
	"sync"

	"github.com/alien2112/safelines-sub000/pkg/apperr"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var ErrInvalidSection = apperr.Invalid("invalid section")

// Sections is the fixed set of page sections an image can belong to.
var Sections = []string{
	"hero", "about", "services", "projects", "clients", "partners",
	"gallery", "team", "careers", "blog", "contact", "certificates",
}

// CareersSection holds images attached to job postings.
const CareersSection = "careers"

var sectionSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Sections))
	for _, s := range Sections {
		m[s] = struct{}{}
	}
	return m
}()

func ValidSection(s string) bool {
	_, ok := sectionSet[s]
	return ok
}

// ParseSection validates an optional section filter; empty means all sections.
func ParseSection(s string) (string, error) {
	if s == "" || ValidSection(s) {
		return s, nil
	}
	return "", ErrInvalidSection
}

var registerOnce sync.Once

// RegisterValidators adds the "section" tag to gin's binding validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("section", func(fl validator.FieldLevel) bool {
			return ValidSection(fl.Field().String())
		})
	})
}
