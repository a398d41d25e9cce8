// Package mongostore implements store.Collection on top of the official Mongo
// driver.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trello-project/microservices/taskgraph-service/logging"
	"trello-project/microservices/taskgraph-service/models"
	"trello-project/microservices/taskgraph-service/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Connect dials uri and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	logging.Logger.Infof("Event ID: DB_CONNECTED, Description: Successfully connected to MongoDB at %s.", uri)
	return client, nil
}

// New wires the three collections of database dbName.
func New(client *mongo.Client, dbName string) *store.Store {
	db := client.Database(dbName)
	logging.Logger.Infof("Event ID: DB_COLLECTION_SET, Description: Using MongoDB database: %s", dbName)
	return &store.Store{
		Users: NewCollection[models.User](db.Collection(store.UsersCollection)),
		Teams: NewCollection[models.Team](db.Collection(store.TeamsCollection)),
		Tasks: NewCollection[models.Task](db.Collection(store.TasksCollection)),
	}
}

// EnsureIndexes creates the unique indexes the services rely on for name and
// identity uniqueness. It is safe to run repeatedly.
func EnsureIndexes(ctx context.Context, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	for collection, keys := range store.UniqueKeys {
		for _, fields := range keys {
			keyDoc := bson.D{}
			for _, f := range fields {
				keyDoc = append(keyDoc, bson.E{Key: f, Value: 1})
			}
			model := mongo.IndexModel{
				Keys:    keyDoc,
				Options: options.Index().SetUnique(true),
			}
			name, err := db.Collection(collection).Indexes().CreateOne(ctx, model)
			if err != nil {
				return fmt.Errorf("failed to create index on %s %v: %w", collection, fields, err)
			}
			logging.Logger.Infof("Event ID: DB_INDEX_READY, Description: Unique index %s on %s ready", name, collection)
		}
	}
	return nil
}

type Collection[T any] struct {
	coll *mongo.Collection
}

func NewCollection[T any](coll *mongo.Collection) *Collection[T] {
	return &Collection[T]{coll: coll}
}

func (c *Collection[T]) FindOne(ctx context.Context, filter store.Filter) (*T, error) {
	var out T
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})
	err := c.coll.FindOne(ctx, toBSONFilter(filter), opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", c.coll.Name(), err)
	}
	return &out, nil
}

func (c *Collection[T]) Find(ctx context.Context, filter store.Filter) ([]T, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := c.coll.Find(ctx, toBSONFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve %s: %w", c.coll.Name(), err)
	}
	defer cursor.Close(ctx)

	out := []T{}
	for cursor.Next(ctx) {
		var doc T
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", c.coll.Name(), err)
		}
		out = append(out, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}

func (c *Collection[T]) InsertOne(ctx context.Context, doc *T) error {
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return wrapWriteError(c.coll.Name(), "insert", err)
	}
	return nil
}

func (c *Collection[T]) UpdateOne(ctx context.Context, filter store.Filter, update *store.Update) (store.UpdateResult, error) {
	res, err := c.coll.UpdateOne(ctx, toBSONFilter(filter), toBSONUpdate(update))
	if err != nil {
		return store.UpdateResult{}, wrapWriteError(c.coll.Name(), "update", err)
	}
	return store.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (c *Collection[T]) UpdateMany(ctx context.Context, filter store.Filter, update *store.Update) (store.UpdateResult, error) {
	res, err := c.coll.UpdateMany(ctx, toBSONFilter(filter), toBSONUpdate(update))
	if err != nil {
		return store.UpdateResult{}, wrapWriteError(c.coll.Name(), "update", err)
	}
	return store.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (c *Collection[T]) DeleteOne(ctx context.Context, filter store.Filter) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, toBSONFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", c.coll.Name(), err)
	}
	return res.DeletedCount, nil
}

func (c *Collection[T]) DeleteMany(ctx context.Context, filter store.Filter) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, toBSONFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", c.coll.Name(), err)
	}
	return res.DeletedCount, nil
}

func wrapWriteError(collection, op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s %s: %v", store.ErrDuplicate, op, collection, err)
	}
	return fmt.Errorf("failed to %s %s: %w", op, collection, err)
}

// toBSONFilter translates a store.Filter. Equality on an array field already
// means containment in Mongo, so OpEq maps to a plain field match.
func toBSONFilter(f store.Filter) bson.M {
	out := bson.M{}
	and := bson.A{}
	for _, cond := range f {
		var clause any
		switch cond.Op {
		case store.OpIn:
			values := cond.Values
			if values == nil {
				values = []string{}
			}
			clause = bson.M{"$in": values}
		default:
			clause = cond.Value
		}
		if _, taken := out[cond.Field]; taken {
			and = append(and, bson.M{cond.Field: clause})
			continue
		}
		out[cond.Field] = clause
	}
	if len(and) > 0 {
		out["$and"] = and
	}
	return out
}

func toBSONUpdate(u *store.Update) bson.M {
	out := bson.M{}
	if u == nil {
		return out
	}
	if len(u.Set) > 0 {
		set := bson.M{}
		for k, v := range u.Set {
			set[k] = v
		}
		out["$set"] = set
	}
	if len(u.Unset) > 0 {
		unset := bson.M{}
		for _, k := range u.Unset {
			unset[k] = ""
		}
		out["$unset"] = unset
	}
	if len(u.AddToSet) > 0 {
		add := bson.M{}
		for k, v := range u.AddToSet {
			add[k] = v
		}
		out["$addToSet"] = add
	}
	if len(u.Pull) > 0 {
		pull := bson.M{}
		for k, v := range u.Pull {
			pull[k] = v
		}
		out["$pull"] = pull
	}
	if len(u.PullAll) > 0 {
		pullAll := bson.M{}
		for k, v := range u.PullAll {
			if v == nil {
				v = []string{}
			}
			pullAll[k] = v
		}
		out["$pullAll"] = pullAll
	}
	return out
}
