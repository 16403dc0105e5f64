package manifest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoEpisode is the stored document shape: the canonical id rides in _id.
type mongoEpisode struct {
	ID      string  `bson:"_id"`
	Episode Episode `bson:"episode"`
}

// MongoStore keeps the manifest in a MongoDB collection, one document per
// canonical episode, upserted by id.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	uri        string
	database   string
	collName   string

	// Merge must stay a single-writer critical section across tasks even
	// though the backing store has its own concurrency control.
	mu sync.Mutex
}

// NewMongoStore creates a Mongo-backed manifest store.
func NewMongoStore(uri, database, collection string) *MongoStore {
	return &MongoStore{
		uri:      uri,
		database: database,
		collName: collection,
	}
}

// Load connects and pings. Connectivity failure at startup is fatal to the
// run, same as an unreadable manifest file.
func (s *MongoStore) Load(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}

	s.client = client
	s.collection = client.Database(s.database).Collection(s.collName)
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (Episode, bool, error) {
	if s.collection == nil {
		return Episode{}, false, ErrNotLoaded
	}

	var doc mongoEpisode
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Episode{}, false, nil
	}
	if err != nil {
		return Episode{}, false, fmt.Errorf("find episode %s: %w", id, err)
	}
	return doc.Episode, true, nil
}

func (s *MongoStore) Merge(ctx context.Context, id string, delta Delta) (Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collection == nil {
		return Episode{}, ErrNotLoaded
	}

	cur, _, err := s.Get(ctx, id)
	if err != nil {
		return Episode{}, err
	}

	merged := delta.apply(cur)
	if err := s.upsert(ctx, id, merged); err != nil {
		return Episode{}, err
	}
	return merged, nil
}

func (s *MongoStore) Put(ctx context.Context, id string, ep Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collection == nil {
		return ErrNotLoaded
	}
	return s.upsert(ctx, id, ep)
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collection == nil {
		return ErrNotLoaded
	}
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete episode %s: %w", id, err)
	}
	return nil
}

func (s *MongoStore) Snapshot(ctx context.Context) (map[string]Episode, error) {
	if s.collection == nil {
		return nil, ErrNotLoaded
	}

	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer cursor.Close(ctx)

	out := make(map[string]Episode)
	for cursor.Next(ctx) {
		var doc mongoEpisode
		if err := cursor.Decode(&doc); err != nil {
			continue // skip undecodable documents
		}
		out[doc.ID] = doc.Episode
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) upsert(ctx context.Context, id string, ep Episode) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$set": bson.M{"episode": ep}}
	opts := options.Update().SetUpsert(true)

	if _, err := s.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("upsert episode %s: %w", id, err)
	}
	return nil
}
