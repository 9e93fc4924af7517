package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.avinoo.ir/sso/client"
	serrors "go.avinoo.ir/sso/errors"
)

// ClientRegistry implements client.Registry on MongoDB.
type ClientRegistry struct {
	collection *mongo.Collection
}

// NewClientRegistry creates a ClientRegistry and ensures the unique client
// ID index.
func NewClientRegistry(ctx context.Context, db *mongo.Database) (*ClientRegistry, error) {
	repo := &ClientRegistry{collection: db.Collection(ClientsCollection)}

	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "client_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := repo.collection.Indexes().CreateOne(ctx, index); err != nil {
		return nil, fmt.Errorf("failed to create client indexes: %w", err)
	}

	return repo, nil
}

// Lookup returns the active registration for the given client ID.
func (r *ClientRegistry) Lookup(ctx context.Context, clientID string) (*client.Registration, error) {
	var reg client.Registration
	err := r.collection.FindOne(ctx, bson.M{"client_id": clientID}).Decode(&reg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", serrors.ErrClientNotFound, clientID)
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if !reg.IsActive {
		return nil, fmt.Errorf("%w: %s", serrors.ErrClientInactive, clientID)
	}
	return &reg, nil
}

// Save upserts a registration. Used for provisioning and seeding.
func (r *ClientRegistry) Save(ctx context.Context, reg *client.Registration) error {
	now := time.Now().UTC()
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = now
	}
	reg.UpdatedAt = now

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"client_id": reg.ID}, reg, opts); err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}

var _ client.Registry = (*ClientRegistry)(nil)
