package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.avinoo.ir/sso/domain"
	serrors "go.avinoo.ir/sso/errors"
)

// SessionRepository implements domain.SessionRepository on MongoDB. The
// single-use guarantee rests on ConsumeSession's atomic findAndModify.
type SessionRepository struct {
	collection *mongo.Collection
}

// NewSessionRepository creates a SessionRepository and ensures its indexes. A
// TTL index on expires_at lets MongoDB reclaim expired sessions on its own;
// DeleteExpired exists for deployments where the TTL monitor lags.
func NewSessionRepository(ctx context.Context, db *mongo.Database) (*SessionRepository, error) {
	repo := &SessionRepository{collection: db.Collection(SessionsCollection)}

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
	}
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("failed to create session indexes: %w", err)
	}

	return repo, nil
}

// StoreSession inserts a new session.
func (r *SessionRepository) StoreSession(ctx context.Context, session *domain.AuthorizationSession) error {
	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("session %s already exists", session.ID)
		}
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// GetSession returns a session regardless of its state.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (*domain.AuthorizationSession, error) {
	var session domain.AuthorizationSession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// ConsumeSession flips is_used from false to true and returns the session, in
// one findAndModify. The filter requires unused and unexpired, so of two
// racing calls exactly one matches; the loser distinguishes a missing
// session from a used or expired one with a follow-up read.
func (r *SessionRepository) ConsumeSession(ctx context.Context, id string, now time.Time) (*domain.AuthorizationSession, error) {
	filter := bson.M{
		"_id":        id,
		"is_used":    false,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"is_used": true}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var session domain.AuthorizationSession
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&session)
	if err == nil {
		return &session, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to consume session: %w", err)
	}

	if _, gerr := r.GetSession(ctx, id); gerr != nil {
		return nil, gerr
	}
	return nil, serrors.ErrSessionInvalid
}

// DeleteExpired removes sessions past expiry and returns the count.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.DeletedCount, nil
}

var _ domain.SessionRepository = (*SessionRepository)(nil)
