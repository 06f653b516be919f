package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const qrCodesCollection = "qrcodes"

// New connects to MongoDB and verifies the connection with a ping.
// The caller owns the returned client and must disconnect it on shutdown.
func New(ctx context.Context, uri string) (*mongo.Client, error) {
	const op = "database.mongodb.New"

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to mongodb: %w", op, err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("%s: failed to ping mongodb: %w", op, err)
	}

	return client, nil
}

// EnsureIndexes creates the unique index on shortId. Short ID uniqueness
// is enforced here rather than by the generator.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	const op = "database.mongodb.EnsureIndexes"

	_, err := db.Collection(qrCodesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "shortId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("%s: failed to create shortId index: %w", op, err)
	}

	return nil
}
