package db

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CommitteesCollection = "committees"
	MotionsCollection    = "motions"
	UsersCollection      = "users"
)

// extractDBName parses the database name from the URI, defaulting to "committeehub"
func extractDBName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "committeehub"
	}
	if u.Path != "" && u.Path != "/" {
		return u.Path[1:]
	}
	return "committeehub"
}

// ConnectMongoDB establishes a connection to MongoDB using the provided URI
// and returns the database named in its path.
func ConnectMongoDB(ctx context.Context, uri string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := extractDBName(uri)
	slog.Info("connected to MongoDB", "database", dbName)
	return client, client.Database(dbName), nil
}

// EnsureIndexes creates the indexes the stores rely on. Creating an existing
// index is a no-op.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CommitteesCollection: {
			{Keys: bson.D{{Key: "createdBy", Value: 1}}},
			{Keys: bson.D{{Key: "members.user", Value: 1}}},
			{Keys: bson.D{{Key: "members.email", Value: 1}}},
			{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
		},
		MotionsCollection: {
			{Keys: bson.D{{Key: "committee", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "createdBy", Value: 1}}},
		},
	}
	for name, idx := range indexes {
		if _, err := database.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}
	return nil
}
