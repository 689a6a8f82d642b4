package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lumewell/passkey-backend/internal/domain"
	"github.com/lumewell/passkey-backend/internal/storage"
)

// CredentialStore implements MongoDB passkey credential storage. The raw
// credential ID bytes are the document _id, which makes the store-wide
// uniqueness constraint a property of the collection itself.
type CredentialStore struct {
	collection *mongo.Collection
}

func (s *CredentialStore) Insert(ctx context.Context, credential *domain.Credential) error {
	_, err := s.collection.InsertOne(ctx, credential)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) GetByID(ctx context.Context, credentialID []byte) (*domain.Credential, error) {
	var credential domain.Credential
	err := s.collection.FindOne(ctx, bson.M{"_id": credentialID}).Decode(&credential)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &credential, nil
}

func (s *CredentialStore) ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.Credential, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"owner_user_id.id": userID.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	credentials := make([]*domain.Credential, 0)
	for cursor.Next(ctx) {
		var credential domain.Credential
		if err := cursor.Decode(&credential); err != nil {
			return nil, fmt.Errorf("failed to decode credential: %w", err)
		}
		credentials = append(credentials, &credential)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return credentials, nil
}

// UpdateSignCount advances the counter with a compare-and-swap: the filter
// only matches when the stored counter would not move backwards, so two
// racing authentications cannot both win with a stale counter.
func (s *CredentialStore) UpdateSignCount(ctx context.Context, credentialID []byte, newCount uint32, usedAt time.Time) error {
	result := s.collection.FindOneAndUpdate(ctx,
		bson.M{
			"_id":        credentialID,
			"sign_count": bson.M{"$lte": newCount},
		},
		bson.M{"$set": bson.M{
			"sign_count":   newCount,
			"last_used_at": usedAt,
		}},
	)

	if err := result.Err(); err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("failed to update sign count: %w", err)
		}
		// The CAS filter did not match: either the credential is gone
		// or its counter is already ahead of newCount.
		count, cerr := s.collection.CountDocuments(ctx, bson.M{"_id": credentialID})
		if cerr != nil {
			return fmt.Errorf("failed to update sign count: %w", cerr)
		}
		if count == 0 {
			return storage.ErrNotFound
		}
		return storage.ErrRegressedCounter
	}
	return nil
}

func (s *CredentialStore) Delete(ctx context.Context, credentialID []byte) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": credentialID})
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if result.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *CredentialStore) DeleteByUser(ctx context.Context, userID domain.UserID) error {
	_, err := s.collection.DeleteMany(ctx, bson.M{"owner_user_id.id": userID.String()})
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}
