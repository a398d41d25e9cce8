// Package memstore is an in-process document store with the same matching and
// update semantics as the Mongo backend. Documents are kept as BSON maps so
// that struct tags, omitempty and integer widths behave exactly as they do on
// the wire.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"trello-project/microservices/taskgraph-service/models"
	"trello-project/microservices/taskgraph-service/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// New returns a Store whose three collections share nothing but the process.
func New() *store.Store {
	return &store.Store{
		Users: NewCollection[models.User](store.UsersCollection, store.UniqueKeys[store.UsersCollection]),
		Teams: NewCollection[models.Team](store.TeamsCollection, store.UniqueKeys[store.TeamsCollection]),
		Tasks: NewCollection[models.Task](store.TasksCollection, store.UniqueKeys[store.TasksCollection]),
	}
}

type Collection[T any] struct {
	name   string
	unique [][]string

	mu   sync.RWMutex
	docs map[string]bson.M
}

func NewCollection[T any](name string, unique [][]string) *Collection[T] {
	return &Collection[T]{
		name:   name,
		unique: unique,
		docs:   map[string]bson.M{},
	}
}

func (c *Collection[T]) FindOne(ctx context.Context, filter store.Filter) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.matching(filter)
	if len(ids) == 0 {
		return nil, store.ErrNoDocument
	}
	return decode[T](c.docs[ids[0]])
}

func (c *Collection[T]) Find(ctx context.Context, filter store.Filter) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := []T{}
	for _, id := range c.matching(filter) {
		v, err := decode[T](c.docs[id])
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func (c *Collection[T]) InsertOne(ctx context.Context, doc *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := encode(doc)
	if err != nil {
		return err
	}
	id, ok := m["_id"].(string)
	if !ok || id == "" {
		return fmt.Errorf("memstore: %s document has no string _id", c.name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[id]; exists {
		return fmt.Errorf("%w: %s _id %s", store.ErrDuplicate, c.name, id)
	}
	if err := c.checkUnique(map[string]bson.M{id: m}); err != nil {
		return err
	}
	c.docs[id] = m
	return nil
}

func (c *Collection[T]) UpdateOne(ctx context.Context, filter store.Filter, update *store.Update) (store.UpdateResult, error) {
	return c.update(ctx, filter, update, true)
}

func (c *Collection[T]) UpdateMany(ctx context.Context, filter store.Filter, update *store.Update) (store.UpdateResult, error) {
	return c.update(ctx, filter, update, false)
}

func (c *Collection[T]) update(ctx context.Context, filter store.Filter, update *store.Update, single bool) (store.UpdateResult, error) {
	var res store.UpdateResult
	if err := ctx.Err(); err != nil {
		return res, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.matching(filter)
	if single && len(ids) > 1 {
		ids = ids[:1]
	}

	changed := map[string]bson.M{}
	for _, id := range ids {
		res.Matched++
		next, err := apply(clone(c.docs[id]), update)
		if err != nil {
			return store.UpdateResult{}, err
		}
		if !reflect.DeepEqual(next, c.docs[id]) {
			changed[id] = next
		}
	}
	if err := c.checkUnique(changed); err != nil {
		return store.UpdateResult{}, err
	}
	for id, doc := range changed {
		c.docs[id] = doc
		res.Modified++
	}
	return res, nil
}

func (c *Collection[T]) DeleteOne(ctx context.Context, filter store.Filter) (int64, error) {
	return c.delete(ctx, filter, true)
}

func (c *Collection[T]) DeleteMany(ctx context.Context, filter store.Filter) (int64, error) {
	return c.delete(ctx, filter, false)
}

func (c *Collection[T]) delete(ctx context.Context, filter store.Filter, single bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.matching(filter)
	if single && len(ids) > 1 {
		ids = ids[:1]
	}
	for _, id := range ids {
		delete(c.docs, id)
	}
	return int64(len(ids)), nil
}

// Len reports the number of stored documents.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// matching returns the ids of the documents that satisfy filter, sorted.
// Callers hold the lock.
func (c *Collection[T]) matching(filter store.Filter) []string {
	ids := []string{}
	for id, doc := range c.docs {
		if matches(doc, filter) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// checkUnique verifies the candidate documents against the unique keys of the
// collection, treating the candidates as replacing their stored versions.
func (c *Collection[T]) checkUnique(candidates map[string]bson.M) error {
	for _, fields := range c.unique {
		seen := map[string]string{}
		for id, doc := range c.docs {
			if next, ok := candidates[id]; ok {
				doc = next
			}
			key, ok := uniqueKey(doc, fields)
			if !ok {
				continue
			}
			if other, dup := seen[key]; dup {
				return fmt.Errorf("%w: %s %s shared by %s and %s", store.ErrDuplicate, c.name, strings.Join(fields, ","), other, id)
			}
			seen[key] = id
		}
		for id, doc := range candidates {
			if _, stored := c.docs[id]; stored {
				continue
			}
			key, ok := uniqueKey(doc, fields)
			if !ok {
				continue
			}
			if other, dup := seen[key]; dup {
				return fmt.Errorf("%w: %s %s shared by %s and %s", store.ErrDuplicate, c.name, strings.Join(fields, ","), other, id)
			}
			seen[key] = id
		}
	}
	return nil
}

func uniqueKey(doc bson.M, fields []string) (string, bool) {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		v, ok := doc[f]
		if !ok {
			return "", false
		}
		parts = append(parts, fmt.Sprintf("%T:%v", v, v))
	}
	return strings.Join(parts, "\x00"), true
}

func matches(doc bson.M, filter store.Filter) bool {
	for _, cond := range filter {
		fv, present := doc[cond.Field]
		switch cond.Op {
		case store.OpEq:
			want := normalize(cond.Value)
			if !present {
				if want != nil {
					return false
				}
				continue
			}
			if !equalOrContains(fv, want) {
				return false
			}
		case store.OpIn:
			if !present {
				return false
			}
			if !anyIn(fv, cond.Values) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equalOrContains(fv, want any) bool {
	if arr, ok := fv.(primitive.A); ok {
		if _, wantArr := want.(primitive.A); !wantArr {
			for _, el := range arr {
				if reflect.DeepEqual(el, want) {
					return true
				}
			}
			return false
		}
	}
	return reflect.DeepEqual(fv, want)
}

func anyIn(fv any, values []string) bool {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	check := func(el any) bool {
		s, ok := el.(string)
		if !ok {
			return false
		}
		_, hit := set[s]
		return hit
	}
	if arr, ok := fv.(primitive.A); ok {
		for _, el := range arr {
			if check(el) {
				return true
			}
		}
		return false
	}
	return check(fv)
}

func apply(doc bson.M, u *store.Update) (bson.M, error) {
	if u == nil {
		return doc, nil
	}
	for field, value := range u.Set {
		if field == "_id" {
			return nil, fmt.Errorf("memstore: _id is immutable")
		}
		doc[field] = normalize(value)
	}
	for _, field := range u.Unset {
		delete(doc, field)
	}
	for field, value := range u.AddToSet {
		arr, err := arrayField(doc, field)
		if err != nil {
			return nil, err
		}
		if !containsString(arr, value) {
			arr = append(arr, value)
		}
		doc[field] = arr
	}
	for field, value := range u.Pull {
		if doc[field] == nil {
			continue
		}
		arr, err := arrayField(doc, field)
		if err != nil {
			return nil, err
		}
		doc[field] = without(arr, map[string]struct{}{value: {}})
	}
	for field, values := range u.PullAll {
		if doc[field] == nil {
			continue
		}
		arr, err := arrayField(doc, field)
		if err != nil {
			return nil, err
		}
		drop := make(map[string]struct{}, len(values))
		for _, v := range values {
			drop[v] = struct{}{}
		}
		doc[field] = without(arr, drop)
	}
	return doc, nil
}

func arrayField(doc bson.M, field string) (primitive.A, error) {
	switch v := doc[field].(type) {
	case nil:
		return primitive.A{}, nil
	case primitive.A:
		return v, nil
	default:
		return nil, fmt.Errorf("memstore: field %s is %T, not an array", field, v)
	}
}

func containsString(arr primitive.A, s string) bool {
	for _, el := range arr {
		if el == s {
			return true
		}
	}
	return false
}

func without(arr primitive.A, drop map[string]struct{}) primitive.A {
	out := primitive.A{}
	for _, el := range arr {
		if s, ok := el.(string); ok {
			if _, hit := drop[s]; hit {
				continue
			}
		}
		out = append(out, el)
	}
	return out
}

// normalize round-trips v through BSON so that it compares equal to values
// decoded from stored documents ([]string becomes primitive.A, int becomes
// int32 and so on).
func normalize(v any) any {
	if v == nil {
		return nil
	}
	raw, err := bson.Marshal(bson.M{"v": v})
	if err != nil {
		return v
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out["v"]
}

func encode(doc any) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decode[T any](m bson.M) (*T, error) {
	raw, err := bson.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out T
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func clone(m bson.M) bson.M {
	out := make(bson.M, len(m))
	for k, v := range m {
		if arr, ok := v.(primitive.A); ok {
			cp := make(primitive.A, len(arr))
			copy(cp, arr)
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}
