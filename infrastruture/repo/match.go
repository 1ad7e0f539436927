package repo

import (
	"context"
	"errors"
	"fmt"

	dmn "github.com/beka-birhanu/vinom-wager/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultHistoryLimit = 20

// MatchRepo handles the persistence of match records.
type MatchRepo struct {
	collection *mongo.Collection
}

// NewMatchRepo creates a new MatchRepo with the given MongoDB client, database name, and collection name.
func NewMatchRepo(client *mongo.Client, dbName, collectionName string) *MatchRepo {
	collection := client.Database(dbName).Collection(collectionName)
	return &MatchRepo{
		collection: collection,
	}
}

// EnsureIndexes creates the player lookup index used by ByPlayer.
func (m *MatchRepo) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "players.address", Value: 1}, {Key: "finishedAt", Value: -1}},
	})
	return err
}

// Save inserts or updates a match record.
// A match id is reused when the same two players are paired again, so the latest outcome wins.
func (m *MatchRepo) Save(ctx context.Context, record *dmn.MatchRecord) error {
	filter := bson.M{"_id": record.ID}
	update := bson.M{
		"$set": bson.M{
			"players":     record.Players,
			"state":       record.State,
			"firstPlayer": record.FirstPlayer,
			"txHash":      record.TxHash,
			"error":       record.Error,
			"createdAt":   record.CreatedAt,
			"finishedAt":  record.FinishedAt,
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return errors.New("unexpected error: " + err.Error())
	}
	return nil
}

// ByID retrieves a match record by its match id.
// Returns dmn.ErrRecordNotFound if there is none.
func (m *MatchRepo) ByID(ctx context.Context, id string) (*dmn.MatchRecord, error) {
	filter := bson.M{"_id": id}
	var record dmn.MatchRecord
	if err := m.collection.FindOne(ctx, filter).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", dmn.ErrRecordNotFound, id)
		}
		return nil, errors.New("unexpected error: " + err.Error())
	}
	return &record, nil
}

// ByPlayer retrieves the most recent matches an address took part in, newest first.
func (m *MatchRepo) ByPlayer(ctx context.Context, address string, limit int64) ([]*dmn.MatchRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	filter := bson.M{"players.address": address}
	opts := options.Find().SetSort(bson.D{{Key: "finishedAt", Value: -1}}).SetLimit(limit)
	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.New("unexpected error: " + err.Error())
	}

	records := []*dmn.MatchRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, errors.New("unexpected error: " + err.Error())
	}
	return records, nil
}
