package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/commentgoat/internal/types"
)

// flagDoc is the stored shape of one flag.
type flagDoc struct {
	Key       string    `bson:"_id"`
	Value     bool      `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps flags in a MongoDB collection, one document per key.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongoStore connects to uri and pings the server.
func NewMongoStore(ctx context.Context, uri, database, collection string, logger *slog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("mongodb connect: %w", err)}
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("mongodb ping: %w", err)}
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_settings"),
	}, nil
}

func (s *MongoStore) Name() string { return "mongodb" }

func (s *MongoStore) Load(ctx context.Context, key string) (bool, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc flagDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, false, nil
	}
	if err != nil {
		return false, false, &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("mongodb find %s: %w", key, err)}
	}
	return doc.Value, true, nil
}

func (s *MongoStore) Save(ctx context.Context, key string, value bool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"value": value, "updated_at": time.Now().UTC()}}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("mongodb upsert %s: %w", key, err)}
	}
	return nil
}

func (s *MongoStore) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := s.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("mongodb delete: %w", err)}
	}
	s.logger.Debug("settings cleared", "deleted", res.DeletedCount)
	return nil
}

func (s *MongoStore) All(ctx context.Context) (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cur, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("mongodb find: %w", err)}
	}
	var docs []flagDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("mongodb decode: %w", err)}
	}

	out := make(map[string]bool, len(docs))
	for _, d := range docs {
		out[d.Key] = d.Value
	}
	return out, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
