package pipeline

import (
	"context"

	"github.com/stackwatch-systems/stackwatch/internal/models"
)

// DiscardEventStore drops events after classification. Used when no
// search backend is configured and in tests.
type DiscardEventStore struct{}

func (DiscardEventStore) SaveEvent(context.Context, *models.Event) error { return nil }
