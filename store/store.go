// Package store is the document store gateway: CRUD primitives over the
// users, teams and tasks collections. The store guarantees per-document
// atomicity only; callers compose multi-document changes out of idempotent
// set-style updates.
package store

import (
	"context"
	"errors"

	"trello-project/microservices/taskgraph-service/models"
)

var (
	// ErrNoDocument is returned by FindOne when nothing matches.
	ErrNoDocument = errors.New("store: no document matched")
	// ErrDuplicate is returned when a write would violate a unique index.
	ErrDuplicate = errors.New("store: duplicate key")
)

const (
	UsersCollection = "users"
	TeamsCollection = "teams"
	TasksCollection = "tasks"
)

type Op int

const (
	// OpEq matches a scalar field equal to Value, or an array field that
	// contains Value.
	OpEq Op = iota
	// OpIn matches when the field (or any element of an array field) is one
	// of Values.
	OpIn
)

type Cond struct {
	Field  string
	Op     Op
	Value  any
	Values []string
}

// Filter is a conjunction of conditions. The empty filter matches every
// document.
type Filter []Cond

func ByID(id string) Filter {
	return Eq("_id", id)
}

func ByIDs(ids []string) Filter {
	return In("_id", ids)
}

func Eq(field string, value any) Filter {
	return Filter{{Field: field, Op: OpEq, Value: value}}
}

func In(field string, values []string) Filter {
	return Filter{{Field: field, Op: OpIn, Values: values}}
}

func (f Filter) And(other Filter) Filter {
	out := make(Filter, 0, len(f)+len(other))
	out = append(out, f...)
	return append(out, other...)
}

// Update groups the field operators applied by UpdateOne and UpdateMany. A
// field may appear under one operator only.
type Update struct {
	Set      map[string]any
	Unset    []string
	AddToSet map[string]string
	Pull     map[string]string
	PullAll  map[string][]string
}

func NewUpdate() *Update {
	return &Update{}
}

func (u *Update) SetField(field string, value any) *Update {
	if u.Set == nil {
		u.Set = map[string]any{}
	}
	u.Set[field] = value
	return u
}

func (u *Update) UnsetField(field string) *Update {
	u.Unset = append(u.Unset, field)
	return u
}

func (u *Update) AddToSetValue(field, value string) *Update {
	if u.AddToSet == nil {
		u.AddToSet = map[string]string{}
	}
	u.AddToSet[field] = value
	return u
}

func (u *Update) PullValue(field, value string) *Update {
	if u.Pull == nil {
		u.Pull = map[string]string{}
	}
	u.Pull[field] = value
	return u
}

func (u *Update) PullValues(field string, values []string) *Update {
	if u.PullAll == nil {
		u.PullAll = map[string][]string{}
	}
	u.PullAll[field] = values
	return u
}

func (u *Update) IsEmpty() bool {
	return len(u.Set) == 0 && len(u.Unset) == 0 && len(u.AddToSet) == 0 && len(u.Pull) == 0 && len(u.PullAll) == 0
}

type UpdateResult struct {
	Matched  int64
	Modified int64
}

// Collection is the narrow document interface the services depend on.
// Find returns documents sorted by _id so callers get a stable order.
type Collection[T any] interface {
	FindOne(ctx context.Context, filter Filter) (*T, error)
	Find(ctx context.Context, filter Filter) ([]T, error)
	InsertOne(ctx context.Context, doc *T) error
	UpdateOne(ctx context.Context, filter Filter, update *Update) (UpdateResult, error)
	UpdateMany(ctx context.Context, filter Filter, update *Update) (UpdateResult, error)
	DeleteOne(ctx context.Context, filter Filter) (int64, error)
	DeleteMany(ctx context.Context, filter Filter) (int64, error)
}

// Store bundles the three collections. It is built once at start-up and
// handed to every service.
type Store struct {
	Users Collection[models.User]
	Teams Collection[models.Team]
	Tasks Collection[models.Task]
}

// UniqueKeys lists the unique indexes per collection. Both backends enforce
// them.
var UniqueKeys = map[string][][]string{
	UsersCollection: {{models.UserFieldAuthID}, {models.UserFieldUsername}},
	TeamsCollection: {{models.TeamFieldName}},
	TasksCollection: {{models.TaskFieldTeamID, models.TaskFieldName}},
}
