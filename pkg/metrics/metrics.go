package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "website"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// ConditionalResponses counts listing/stream responses by outcome:
	// not_modified (304), full (200 with validators) or bypass (no-store).
	ConditionalResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "conditional_responses_total", Help: "Cache-aware responses by endpoint and outcome."},
		[]string{"endpoint", "result"},
	)
	ContentMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "content_mutations_total", Help: "Content writes by collection and operation."},
		[]string{"collection", "op"},
	)
	ImageUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "image_uploads_total", Help: "Image uploads by section."},
		[]string{"section"},
	)
	ImageBytesServed = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "image_bytes_served_total", Help: "Bytes streamed from the image store."},
	)
)

const (
	ResultNotModified = "not_modified"
	ResultFull        = "full"
	ResultBypass      = "bypass"
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(ConditionalResponses)
	reg.MustRegister(ContentMutations)
	reg.MustRegister(ImageUploads)
	reg.MustRegister(ImageBytesServed)
}
