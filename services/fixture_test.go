package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trello-project/microservices/taskgraph-service/cache"
	"trello-project/microservices/taskgraph-service/models"
	"trello-project/microservices/taskgraph-service/store"
	"trello-project/microservices/taskgraph-service/store/memstore"
)

var testNow = time.Date(2026, 10, 18, 15, 30, 0, 0, time.UTC)

const futureDate = "2026-12-01"

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (r *recordingNotifier) Notify(ctx context.Context, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Notification{}
	for _, n := range r.sent {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

// switchBackend is an in-memory cache backend that can be made to fail.
type switchBackend struct {
	*cache.MemoryBackend
	mu   sync.Mutex
	down bool
}

func (b *switchBackend) setDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = down
}

func (b *switchBackend) isDown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.down
}

var errCacheDown = errors.New("cache unreachable")

func (b *switchBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if b.isDown() {
		return nil, errCacheDown
	}
	return b.MemoryBackend.Get(ctx, key)
}

func (b *switchBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if b.isDown() {
		return errCacheDown
	}
	return b.MemoryBackend.Set(ctx, key, value, ttl)
}

func (b *switchBackend) Del(ctx context.Context, keys ...string) error {
	if b.isDown() {
		return errCacheDown
	}
	return b.MemoryBackend.Del(ctx, keys...)
}

type fixture struct {
	svc     *Services
	st      *store.Store
	cache   *cache.Gateway
	backend *switchBackend
	notes   *recordingNotifier
}

// newFixture wires the services over the in-memory store and cache and checks
// graph consistency when the test ends.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	backend := &switchBackend{MemoryBackend: cache.NewMemoryBackend(time.Minute)}
	gw := cache.NewGateway(backend, time.Hour)
	notes := &recordingNotifier{}
	f := &fixture{
		svc: New(Deps{
			Store:    st,
			Cache:    gw,
			Notifier: notes,
			Now:      func() time.Time { return testNow },
		}),
		st:      st,
		cache:   gw,
		backend: backend,
		notes:   notes,
	}
	t.Cleanup(func() { checkGraph(t, st) })
	return f
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) user(t *testing.T, username string) *models.User {
	t.Helper()
	u, err := f.svc.Users.CreateUser(context.Background(), CreateUserInput{
		AuthID:    "auth0|" + username,
		Username:  username,
		FirstName: "Test",
		LastName:  "User",
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return u
}

func (f *fixture) team(t *testing.T, owner *models.User, name string) *models.Team {
	t.Helper()
	team, err := f.svc.Teams.CreateTeam(context.Background(), CreateTeamInput{OwnerID: owner.ID, Name: name})
	if err != nil {
		t.Fatalf("CreateTeam(%s): %v", name, err)
	}
	return team
}

func (f *fixture) addMember(t *testing.T, team *models.Team, admin, member *models.User) {
	t.Helper()
	_, err := f.svc.Teams.AddUser(context.Background(), MembershipInput{TeamID: team.ID, ActingUserID: admin.ID, TargetUserID: member.ID})
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
}

func (f *fixture) task(t *testing.T, actor *models.User, team *models.Team, name string, parent *models.Task) *models.Task {
	t.Helper()
	in := CreateTaskInput{
		ActingUserID: actor.ID,
		TeamID:       team.ID,
		Name:         name,
		DueDate:      futureDate,
		Priority:     3,
	}
	if parent != nil {
		in.ParentID = &parent.ID
	}
	task, err := f.svc.Tasks.CreateTask(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateTask(%s): %v", name, err)
	}
	return task
}

func (f *fixture) assign(t *testing.T, task *models.Task, admin, target *models.User) {
	t.Helper()
	_, err := f.svc.Tasks.AssignUser(context.Background(), AssignmentInput{TaskID: task.ID, ActingUserID: admin.ID, TargetUserID: target.ID})
	if err != nil {
		t.Fatalf("AssignUser: %v", err)
	}
}

// stored reads a document straight from the store; nil when absent.
func stored[T any](t *testing.T, coll store.Collection[T], id string) *T {
	t.Helper()
	doc, err := coll.FindOne(context.Background(), store.ByID(id))
	if errors.Is(err, store.ErrNoDocument) {
		return nil
	}
	if err != nil {
		t.Fatalf("FindOne(%s): %v", id, err)
	}
	return doc
}

func has(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// checkGraph asserts every cross-document invariant over the whole store.
func checkGraph(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()
	users, err := st.Users.Find(ctx, store.Filter{})
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	teams, err := st.Teams.Find(ctx, store.Filter{})
	if err != nil {
		t.Fatalf("list teams: %v", err)
	}
	tasks, err := st.Tasks.Find(ctx, store.Filter{})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}

	userByID := map[string]models.User{}
	for _, u := range users {
		userByID[u.ID] = u
	}
	teamByID := map[string]models.Team{}
	for _, tm := range teams {
		teamByID[tm.ID] = tm
	}
	taskByID := map[string]models.Task{}
	for _, tk := range tasks {
		taskByID[tk.ID] = tk
	}

	for _, task := range tasks {
		cur := task
		for steps := 0; cur.ParentID != ""; steps++ {
			if steps > len(tasks) {
				t.Errorf("task %s: cycle in parent chain", task.ID)
				break
			}
			p, ok := taskByID[cur.ParentID]
			if !ok {
				t.Errorf("task %s: parent %s does not exist", cur.ID, cur.ParentID)
				break
			}
			if p.TeamID != task.TeamID {
				t.Errorf("task %s: ancestor %s is in another team", task.ID, p.ID)
			}
			cur = p
		}
		if cur.ParentID == "" && task.Root() != cur.ID {
			t.Errorf("task %s: root is %s, parent chain ends at %s", task.ID, task.Root(), cur.ID)
		}

		if task.ParentID != "" {
			if p, ok := taskByID[task.ParentID]; ok && !has(p.SubtaskIDs, task.ID) {
				t.Errorf("task %s: missing from parent %s subtasks", task.ID, p.ID)
			}
		}
		for _, sid := range task.SubtaskIDs {
			sub, ok := taskByID[sid]
			if !ok {
				t.Errorf("task %s: dangling subtask %s", task.ID, sid)
				continue
			}
			if sub.ParentID != task.ID {
				t.Errorf("task %s: subtask %s points at parent %q", task.ID, sid, sub.ParentID)
			}
		}

		for _, uid := range task.AssignedUserIDs {
			u, ok := userByID[uid]
			if !ok {
				t.Errorf("task %s: assigned user %s does not exist", task.ID, uid)
				continue
			}
			if !has(u.AssignedTasks, task.ID) {
				t.Errorf("task %s: user %s does not list it", task.ID, uid)
			}
		}

		team, ok := teamByID[task.TeamID]
		if !ok {
			t.Errorf("task %s: team %s does not exist", task.ID, task.TeamID)
			continue
		}
		if task.IsRoot() != has(team.ProjectIDs, task.ID) {
			t.Errorf("task %s: root=%v but registered as project=%v", task.ID, task.IsRoot(), has(team.ProjectIDs, task.ID))
		}
	}

	for _, u := range users {
		for _, tid := range u.AssignedTasks {
			task, ok := taskByID[tid]
			if !ok {
				t.Errorf("user %s: assigned task %s does not exist", u.ID, tid)
				continue
			}
			if !has(task.AssignedUserIDs, u.ID) {
				t.Errorf("user %s: task %s does not list them", u.ID, tid)
			}
		}
		for _, tmID := range u.Teams {
			team, ok := teamByID[tmID]
			if !ok {
				t.Errorf("user %s: team %s does not exist", u.ID, tmID)
				continue
			}
			if !team.IsMember(u.ID) {
				t.Errorf("user %s: team %s does not list them", u.ID, tmID)
			}
		}
	}

	for _, team := range teams {
		if len(team.UserIDs) == 0 {
			t.Errorf("team %s: has no members", team.ID)
		}
		if len(team.AdminIDs) == 0 {
			t.Errorf("team %s: has no admins", team.ID)
		}
		for _, a := range team.AdminIDs {
			if !team.IsMember(a) {
				t.Errorf("team %s: admin %s is not a member", team.ID, a)
			}
		}
		for _, m := range team.UserIDs {
			u, ok := userByID[m]
			if !ok {
				t.Errorf("team %s: member %s does not exist", team.ID, m)
				continue
			}
			if !has(u.Teams, team.ID) {
				t.Errorf("team %s: member %s does not list it", team.ID, m)
			}
		}
		for _, pid := range team.ProjectIDs {
			p, ok := taskByID[pid]
			if !ok {
				t.Errorf("team %s: project %s does not exist", team.ID, pid)
				continue
			}
			if !p.IsRoot() || p.TeamID != team.ID {
				t.Errorf("team %s: project %s is not one of its roots", team.ID, pid)
			}
		}
	}
}
