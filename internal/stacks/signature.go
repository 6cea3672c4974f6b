// Package stacks assigns every event to exactly one stack, the
// deduplication unit for a recurring problem within a project.
package stacks

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/stackwatch-systems/stackwatch/internal/models"
)

// ComputeSignature derives the ordered identity pairs and the signature
// hash for an event. Two events with identical identity-relevant fields
// hash identically; tags, message text, and timestamps never contribute.
func ComputeSignature(event *models.Event) ([]models.SignatureItem, string) {
	items := []models.SignatureItem{{Key: "type", Value: event.Type}}

	switch event.Type {
	case models.TypeError:
		if t := event.Error.TargetType(); t != "" {
			items = append(items, models.SignatureItem{Key: "error_type", Value: t})
		}
		if f := event.Error.TargetFrame(); f != nil {
			method := f.Name
			if f.DeclaringType != "" {
				method = f.DeclaringType + "." + f.Name
			}
			items = append(items, models.SignatureItem{Key: "method", Value: method})
		}
	case models.TypeNotFound:
		items = append(items, models.SignatureItem{Key: "path", Value: normalizePath(event.Source)})
	case models.TypeSession, models.TypeSessionEnd, models.TypeHeartbeat:
		if event.User != nil && event.User.Identity != "" {
			items = append(items, models.SignatureItem{Key: "user", Value: event.User.Identity})
		}
	default:
		if event.Source != "" {
			items = append(items, models.SignatureItem{Key: "source", Value: event.Source})
		}
	}

	return items, hashSignature(items)
}

func hashSignature(items []models.SignatureItem) string {
	h := sha256.New()
	for _, item := range items {
		h.Write([]byte(item.Key))
		h.Write([]byte{'='})
		h.Write([]byte(item.Value))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// normalizePath canonicalizes a not-found path: lowercased, query
// stripped, no trailing slash.
func normalizePath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		path = "/"
	}
	return path
}

// Title derives the human-readable stack title from its first event.
func Title(event *models.Event) string {
	switch event.Type {
	case models.TypeError:
		if event.Error != nil {
			if event.Error.Message != "" {
				return event.Error.Message
			}
			if t := event.Error.TargetType(); t != "" {
				return t
			}
		}
	case models.TypeNotFound:
		return normalizePath(event.Source)
	}
	if event.Message != "" {
		return event.Message
	}
	return event.Source
}
