package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tower_bot/internal/config"
	"tower_bot/internal/models"
)

// MongoDB stores watermarks (one document per stream) and run history.
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	state    *mongo.Collection
	history  *mongo.Collection
}

func NewMongoDB(cfg config.StateConfig) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	d := newMongoDB(client, cfg)
	if err := d.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("can't create indices: %w", err)
	}

	return d, nil
}

func newMongoDB(client *mongo.Client, cfg config.StateConfig) *MongoDB {
	database := client.Database(cfg.Mongo.Database)
	return &MongoDB{
		client:   client,
		database: database,
		state:    database.Collection(cfg.Mongo.Collections.State),
		history:  database.Collection(cfg.Mongo.Collections.History),
	}
}

func (d *MongoDB) createIndexes(ctx context.Context) error {
	_, err := d.history.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "started_at", Value: -1}},
	})
	return err
}

func (d *MongoDB) Load(ctx context.Context, stream models.Stream) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var state models.WatermarkState
	err := d.state.FindOne(ctx, bson.M{"_id": string(stream)}).Decode(&state)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return state.Value, true, nil
}

func (d *MongoDB) Save(ctx context.Context, stream models.Stream, value string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": string(stream)}
	update := bson.M{"$set": bson.M{
		"stream":     string(stream),
		"value":      value,
		"updated_at": time.Now().Unix(),
	}}

	_, err := d.state.UpdateOne(ctx, filter, update, opts)
	return err
}

func (d *MongoDB) SaveRunHistory(ctx context.Context, history *models.RunHistory) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := d.history.InsertOne(ctx, history)
	return err
}

// RecentRuns returns the latest run summaries, newest first.
func (d *MongoDB) RecentRuns(ctx context.Context, limit int64) ([]models.RunHistory, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(limit)
	cursor, err := d.history.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find run history: %w", err)
	}
	defer cursor.Close(ctx)

	var runs []models.RunHistory
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}
