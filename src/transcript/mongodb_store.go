package transcript

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

const mongoCloseTimeout = 5 * time.Second

func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	if collection == "" {
		return nil, errors.New("mongo collection name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &MongoStore{client: client, collection: coll}, nil
}

type mongoTranscriptDocument struct {
	ID             string    `bson:"_id"`
	CreatedAt      time.Time `bson:"created_at"`
	Question       string    `bson:"question"`
	AttachmentText string    `bson:"attachment_text,omitempty"`
	Provider       string    `bson:"provider"`
	Model          string    `bson:"model"`
	Outcome        string    `bson:"outcome"`
	Answer         string    `bson:"answer,omitempty"`
	Error          string    `bson:"error,omitempty"`
	StatusCode     int       `bson:"status_code,omitempty"`
	LatencyMS      int64     `bson:"latency_ms"`
}

func mongoDocument(rec Record) mongoTranscriptDocument {
	return mongoTranscriptDocument(rec)
}

func (d mongoTranscriptDocument) toRecord() Record {
	rec := Record(d)
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec
}

func (ms *MongoStore) Save(ctx context.Context, rec Record) error {
	if ms == nil || ms.collection == nil {
		return nil
	}
	_, err := ms.collection.InsertOne(ctx, mongoDocument(rec))
	return err
}

func (ms *MongoStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if ms == nil || ms.collection == nil {
		return nil, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(clampLimit(limit)))
	cursor, err := ms.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []Record
	for cursor.Next(ctx) {
		var doc mongoTranscriptDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toRecord())
	}
	return out, cursor.Err()
}

func (ms *MongoStore) Close(ctx context.Context) error {
	if ms == nil || ms.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, mongoCloseTimeout)
	defer cancel()
	return ms.client.Disconnect(ctx)
}
