// Package services holds the consistency engine: team membership, the task
// hierarchy and the user directory. Every mutating operation validates all of
// its input, authorizes against team state read from the store, applies an
// ordered sequence of idempotent writes and purges the cache keys it touched
// before returning.
package services

import (
	"context"
	"errors"
	"time"

	"trello-project/microservices/taskgraph-service/apperrors"
	"trello-project/microservices/taskgraph-service/cache"
	"trello-project/microservices/taskgraph-service/logging"
	"trello-project/microservices/taskgraph-service/models"
	"trello-project/microservices/taskgraph-service/notifications"
	"trello-project/microservices/taskgraph-service/store"

	"github.com/google/uuid"
)

// Deps are the shared handles every service works through. Cache and
// Notifier may be nil.
type Deps struct {
	Store    *store.Store
	Cache    *cache.Gateway
	Notifier notifications.Notifier
	Now      func() time.Time
}

type Services struct {
	Teams *TeamService
	Tasks *TaskService
	Users *UserService
}

func New(deps Deps) *Services {
	if deps.Notifier == nil {
		deps.Notifier = notifications.Nop{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	b := &base{
		store:    deps.Store,
		cache:    deps.Cache,
		notifier: deps.Notifier,
		now:      deps.Now,
	}
	teams := &TeamService{base: b}
	return &Services{
		Teams: teams,
		Tasks: &TaskService{base: b},
		Users: &UserService{base: b, teams: teams},
	}
}

type base struct {
	store    *store.Store
	cache    *cache.Gateway
	notifier notifications.Notifier
	now      func() time.Time
}

func newID() string {
	return uuid.NewString()
}

// storeErr classifies a store error: unique index violations are conflicts,
// anything else is a store failure.
func storeErr(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrDuplicate) {
		return apperrors.Conflict(format+": already exists", args...)
	}
	return apperrors.StoreFailure(err, format, args...)
}

func (b *base) loadUser(ctx context.Context, id string) (*models.User, error) {
	u, err := b.store.Users.FindOne(ctx, store.ByID(id))
	if errors.Is(err, store.ErrNoDocument) {
		return nil, apperrors.NotFound("user %s", id)
	}
	if err != nil {
		return nil, storeErr(err, "find user %s", id)
	}
	return u, nil
}

func (b *base) loadTeam(ctx context.Context, id string) (*models.Team, error) {
	t, err := b.store.Teams.FindOne(ctx, store.ByID(id))
	if errors.Is(err, store.ErrNoDocument) {
		return nil, apperrors.NotFound("team %s", id)
	}
	if err != nil {
		return nil, storeErr(err, "find team %s", id)
	}
	return t, nil
}

func (b *base) loadTask(ctx context.Context, id string) (*models.Task, error) {
	t, err := b.store.Tasks.FindOne(ctx, store.ByID(id))
	if errors.Is(err, store.ErrNoDocument) {
		return nil, apperrors.NotFound("task %s", id)
	}
	if err != nil {
		return nil, storeErr(err, "find task %s", id)
	}
	return t, nil
}

// authorizeAdmin reads the team from the store, never from the cache, and
// requires userID to be one of its admins.
func (b *base) authorizeAdmin(ctx context.Context, teamID, userID string) (*models.Team, error) {
	team, err := b.loadTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !team.IsAdmin(userID) {
		return nil, apperrors.PermissionDenied("user %s is not an admin of team %s", userID, teamID)
	}
	return team, nil
}

// exists reports whether filter matches a document other than exceptID.
func exists[T any](ctx context.Context, coll store.Collection[T], filter store.Filter, idOf func(*T) string, exceptID string) (bool, error) {
	docs, err := coll.Find(ctx, filter)
	if err != nil {
		return false, err
	}
	for i := range docs {
		if idOf(&docs[i]) != exceptID {
			return true, nil
		}
	}
	return false, nil
}

// invalidate purges keys after a mutation. Failing to purge is reported:
// the caller's next read could otherwise be stale.
func (b *base) invalidate(ctx context.Context, keys ...string) error {
	if b.cache == nil {
		return nil
	}
	if err := b.cache.Invalidate(ctx, dedupe(keys)...); err != nil {
		return apperrors.StoreFailure(err, "invalidate cache")
	}
	return nil
}

func (b *base) notify(ctx context.Context, userID, message string) {
	err := b.notifier.Notify(ctx, models.Notification{
		UserID:    userID,
		Message:   message,
		CreatedAt: b.now().UTC(),
	})
	if err != nil {
		logging.Logger.Warnf("Event ID: NOTIFICATION_FAILED, Description: Could not notify user %s: %v", userID, err)
	}
}

// orderBy returns docs in the order of ids, skipping ids that did not
// resolve.
func orderBy[T any](ids []string, docs []T, idOf func(*T) string) []T {
	byID := make(map[string]T, len(docs))
	for i := range docs {
		byID[idOf(&docs[i])] = docs[i]
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func idOfUser(u *models.User) string { return u.ID }
func idOfTeam(t *models.Team) string { return t.ID }
func idOfTask(t *models.Task) string { return t.ID }
