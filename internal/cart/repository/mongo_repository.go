package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/era_store/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "carts"

type mongoRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection(collectionName),
		now:        time.Now,
	}
}

// CreateIndexes makes cart_key unique so concurrent upserts cannot create two documents.
func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "cart_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}
	return nil
}

// EnsureIndexes creates collection indexes when repo is backed by MongoDB.
func EnsureIndexes(ctx context.Context, repo CartRepository) error {
	if m, ok := repo.(*mongoRepository); ok {
		return m.CreateIndexes(ctx)
	}
	return nil
}

func (m *mongoRepository) GetCart(ctx context.Context, key string) (*domain.StoredCart, error) {
	var cart domain.StoredCart

	err := m.collection.FindOne(ctx, bson.M{"cart_key": key}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m *mongoRepository) ReplaceItems(ctx context.Context, key string, items []domain.LineItem) error {
	now := m.now()
	if items == nil {
		items = []domain.LineItem{}
	}

	update := bson.M{
		"$set": bson.M{
			"items":      items,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"created_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := m.collection.UpdateOne(ctx, bson.M{"cart_key": key}, update, opts)
	if err != nil {
		return fmt.Errorf("failed to replace cart items: %w", err)
	}
	return nil
}

func (m *mongoRepository) DeleteCart(ctx context.Context, key string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"cart_key": key})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}
