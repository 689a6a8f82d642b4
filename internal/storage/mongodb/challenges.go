package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lumewell/passkey-backend/internal/domain"
	"github.com/lumewell/passkey-backend/internal/storage"
)

// ChallengeStore implements MongoDB challenge storage
type ChallengeStore struct {
	collection *mongo.Collection
}

func (s *ChallengeStore) Create(ctx context.Context, challenge *domain.Challenge) error {
	_, err := s.collection.InsertOne(ctx, challenge)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	return nil
}

// Consume claims a pending challenge with a single FindOneAndUpdate whose
// filter requires consumed=false and an unexpired record. That one
// operation is the anti-replay guarantee; the follow-up read only
// classifies why a claim missed.
func (s *ChallengeStore) Consume(ctx context.Context, value string) (*domain.Challenge, error) {
	now := time.Now()

	var claimed domain.Challenge
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{
			"_id":        value,
			"consumed":   false,
			"expires_at": bson.M{"$gt": now},
		},
		bson.M{"$set": bson.M{
			"consumed":    true,
			"consumed_at": now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&claimed)
	if err == nil {
		return &claimed, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}

	var existing domain.Challenge
	err = s.collection.FindOne(ctx, bson.M{"_id": value}).Decode(&existing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to classify challenge: %w", err)
	}
	if existing.Consumed {
		return nil, storage.ErrAlreadyConsumed
	}
	return nil, storage.ErrExpired
}

func (s *ChallengeStore) DeleteExpired(ctx context.Context) error {
	_, err := s.collection.DeleteMany(ctx, bson.M{
		"expires_at": bson.M{"$lt": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to delete expired challenges: %w", err)
	}
	return nil
}
