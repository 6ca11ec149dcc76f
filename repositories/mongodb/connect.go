package mongodb

import (
	// Go Internal Packages
	"context"
	"time"

	// External Packages
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	transactionsCollection = "transactions"
	usersCollection        = "users"
	settingsCollection     = "settings"
)

// Connect connects to the mongodb server and returns the client.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	// Set the server selection timeout to 5 seconds.
	timeout := time.Second * 5
	opts := &options.ClientOptions{ServerSelectionTimeout: &timeout}

	// Create a new MongoDB client with the provided URI and options.
	client, err := mongo.Connect(ctx, opts.ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// Ping the MongoDB server to verify the connection.
	pingErr := client.Ping(ctx, nil)
	if pingErr != nil {
		return nil, pingErr
	}

	// Return the connected client.
	return client, nil
}

// EnsureIndexes creates the lookups used by the webhook receiver, the status endpoints and
// the reconciliation sweeper.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	txIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "gateway_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"gateway_id": bson.M{"$type": "string"}},
			),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "processed", Value: 1}, {Key: "effect_applied", Value: 1}}},
	}
	if _, err := db.Collection(transactionsCollection).Indexes().CreateMany(ctx, txIndexes); err != nil {
		return err
	}

	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
