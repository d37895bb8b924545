package services

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/pathwayflow/internal/models"
)

// StatusTracker records per-document pipeline progress for operator
// visibility. Tracker failures are logged by the driver and never fail the
// pipeline: the store, not the tracker, is the source of truth.
type StatusTracker interface {
	Update(ctx context.Context, status models.PathwayStatus) error
}

// NopTracker discards status updates. Used when no Firestore collection is
// configured.
type NopTracker struct{}

func (NopTracker) Update(context.Context, models.PathwayStatus) error { return nil }

// FirestoreTracker mirrors document status into a Firestore collection, one
// record per pathway keyed by name.
type FirestoreTracker struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreTracker(client *firestore.Client, collection string) (*FirestoreTracker, error) {
	if client == nil {
		return nil, fmt.Errorf("NewFirestoreTracker: firestore client must be provided")
	}
	if collection == "" {
		return nil, fmt.Errorf("NewFirestoreTracker: collection name must be provided")
	}
	return &FirestoreTracker{client: client, collection: collection}, nil
}

func (t *FirestoreTracker) Update(ctx context.Context, status models.PathwayStatus) error {
	status.UpdatedAt = time.Now().UTC()
	_, err := t.client.Collection(t.collection).Doc(status.PathwayName).Set(ctx, status)
	if err != nil {
		return fmt.Errorf("failed to update status for %s: %w", status.PathwayName, err)
	}
	return nil
}
