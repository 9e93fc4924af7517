package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.avinoo.ir/sso/domain"
)

// AuditLogRepository implements domain.AuditLogRepository on MongoDB. The
// collection is append-only; nothing in the service updates or deletes
// events.
type AuditLogRepository struct {
	collection *mongo.Collection
}

// NewAuditLogRepository creates an AuditLogRepository and ensures its
// indexes.
func NewAuditLogRepository(ctx context.Context, db *mongo.Database) (*AuditLogRepository, error) {
	repo := &AuditLogRepository{collection: db.Collection(AuditLogCollection)}

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("failed to create audit indexes: %w", err)
	}

	return repo, nil
}

// StoreEvent appends one event to the trail.
func (r *AuditLogRepository) StoreEvent(ctx context.Context, event *domain.AuditEvent) error {
	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to store audit event: %w", err)
	}
	return nil
}

// RecentByUser returns the newest events for a user, newest first.
func (r *AuditLogRepository) RecentByUser(ctx context.Context, userID string, limit int64) ([]*domain.AuditEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*domain.AuditEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}
	return events, nil
}

var _ domain.AuditLogRepository = (*AuditLogRepository)(nil)
