package seeder

import (
	"fmt"
	"math/rand"

	"github.com/brianvoe/gofakeit/v6"
)

// Envelope is the canonical v2 submission shape.
type Envelope struct {
	Type    string                 `json:"type"`
	Message string                 `json:"message,omitempty"`
	Source  string                 `json:"source,omitempty"`
	Tags    []string               `json:"tags,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *ErrorDetail           `json:"error,omitempty"`
}

// ErrorDetail mirrors the collector's nested error shape.
type ErrorDetail struct {
	Message    string  `json:"message"`
	Type       string  `json:"type"`
	StackTrace []Frame `json:"stack_trace,omitempty"`
}

type Frame struct {
	FileName      string `json:"file_name"`
	LineNumber    int    `json:"line_number"`
	DeclaringType string `json:"declaring_type"`
	Name          string `json:"name"`
}

var errorTypes = []string{
	"NullReferenceException",
	"TimeoutException",
	"ConnectionRefusedError",
	"ValidationError",
	"KeyError",
}

var methods = []string{
	"LoadProfile", "SaveOrder", "RenderPage", "FetchInventory", "SyncCart",
}

// GenerateEvent creates one synthetic event of the given type. With
// repeatRate probability the event reuses an earlier signature so the
// collector's dedup path gets exercised.
func GenerateEvent(eventType string, repeatRate float64) Envelope {
	repeat := rand.Float64() < repeatRate

	switch eventType {
	case "error":
		return generateError(repeat)
	case "notfound":
		return generateNotFound(repeat)
	case "featureusage":
		return generateFeatureUsage(repeat)
	default:
		return generateLog(repeat)
	}
}

func pick(values []string, repeat bool) string {
	if repeat {
		return values[0]
	}
	return values[rand.Intn(len(values))]
}

func generateError(repeat bool) Envelope {
	errType := pick(errorTypes, repeat)
	method := pick(methods, repeat)
	return Envelope{
		Type:    "error",
		Message: gofakeit.Sentence(6),
		Tags:    []string{gofakeit.AppName(), "seeded"},
		Error: &ErrorDetail{
			Message: gofakeit.Sentence(8),
			Type:    errType,
			StackTrace: []Frame{
				{
					FileName:      fmt.Sprintf("%s.go", gofakeit.Word()),
					LineNumber:    rand.Intn(500) + 1,
					DeclaringType: "app.handlers",
					Name:          method,
				},
			},
		},
		Data: map[string]interface{}{
			"host":    gofakeit.DomainName(),
			"attempt": rand.Intn(5),
		},
	}
}

func generateNotFound(repeat bool) Envelope {
	path := "/api/" + gofakeit.Word()
	if repeat {
		path = "/api/orders"
	}
	return Envelope{
		Type:   "notfound",
		Source: path,
	}
}

func generateFeatureUsage(repeat bool) Envelope {
	feature := gofakeit.Word()
	if repeat {
		feature = "checkout"
	}
	return Envelope{
		Type:   "featureusage",
		Source: feature,
		Data: map[string]interface{}{
			"user": gofakeit.Username(),
		},
	}
}

func generateLog(repeat bool) Envelope {
	source := gofakeit.AppName()
	if repeat {
		source = "worker"
	}
	return Envelope{
		Type:    "log",
		Source:  source,
		Message: gofakeit.Sentence(10),
		Tags:    []string{"seeded"},
	}
}
