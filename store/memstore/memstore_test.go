package memstore

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"trello-project/microservices/taskgraph-service/models"
	"trello-project/microservices/taskgraph-service/store"
)

func seedTasks(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	tasks := []models.Task{
		{ID: "a", Name: "Root", TeamID: "team1", RootID: "a", SubtaskIDs: []string{"b"}, AssignedUserIDs: []string{"u1"}},
		{ID: "b", Name: "Child", TeamID: "team1", ParentID: "a", RootID: "a", SubtaskIDs: []string{}, AssignedUserIDs: []string{"u1", "u2"}},
		{ID: "c", Name: "Other", TeamID: "team2", RootID: "c", Priority: 3},
	}
	for i := range tasks {
		if err := s.Tasks.InsertOne(ctx, &tasks[i]); err != nil {
			t.Fatalf("InsertOne(%s): %v", tasks[i].ID, err)
		}
	}
}

func TestFindMatchesArrayContainment(t *testing.T) {
	s := New()
	seedTasks(t, s)
	ctx := context.Background()

	got, err := s.Tasks.Find(ctx, store.Eq(models.TaskFieldAssignedUserIDs, "u1"))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("Expected tasks a and b in id order, got %+v", got)
	}

	got, err = s.Tasks.Find(ctx, store.In(models.TaskFieldAssignedUserIDs, []string{"u2", "u9"}))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("Expected only b, got %+v", got)
	}

	got, err = s.Tasks.Find(ctx, store.Eq(models.TaskFieldPriority, 3))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c" {
		t.Errorf("Expected int filter to match c, got %+v", got)
	}
}

func TestFindOneNoDocument(t *testing.T) {
	s := New()
	if _, err := s.Users.FindOne(context.Background(), store.ByID("missing")); !errors.Is(err, store.ErrNoDocument) {
		t.Errorf("Expected ErrNoDocument, got %v", err)
	}
}

func TestUniqueKeys(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Teams.InsertOne(ctx, &models.Team{ID: "t1", Name: "Eng"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	if err := s.Teams.InsertOne(ctx, &models.Team{ID: "t2", Name: "Eng"}); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("Expected duplicate team name, got %v", err)
	}
	if err := s.Teams.InsertOne(ctx, &models.Team{ID: "t1", Name: "Ops"}); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("Expected duplicate id, got %v", err)
	}
	if err := s.Teams.InsertOne(ctx, &models.Team{ID: "t3", Name: "Ops"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	if _, err := s.Teams.UpdateOne(ctx, store.ByID("t3"), store.NewUpdate().SetField(models.TeamFieldName, "Eng")); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("Expected rename onto existing name to fail, got %v", err)
	}

	// Task names are unique per team only.
	if err := s.Tasks.InsertOne(ctx, &models.Task{ID: "x", Name: "Plan", TeamID: "t1"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	if err := s.Tasks.InsertOne(ctx, &models.Task{ID: "y", Name: "Plan", TeamID: "t3"}); err != nil {
		t.Errorf("Expected same name in another team to succeed, got %v", err)
	}
	if err := s.Tasks.InsertOne(ctx, &models.Task{ID: "z", Name: "Plan", TeamID: "t1"}); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("Expected duplicate task name in team, got %v", err)
	}
}

func TestUpdateOperators(t *testing.T) {
	s := New()
	seedTasks(t, s)
	ctx := context.Background()

	res, err := s.Tasks.UpdateOne(ctx, store.ByID("a"), store.NewUpdate().AddToSetValue(models.TaskFieldSubtaskIDs, "b"))
	if err != nil {
		t.Fatalf("UpdateOne: %v", err)
	}
	if res.Matched != 1 || res.Modified != 0 {
		t.Errorf("Expected add-to-set of an existing id to be a no-op, got %+v", res)
	}

	res, err = s.Tasks.UpdateMany(ctx, store.Filter{}, store.NewUpdate().PullValue(models.TaskFieldAssignedUserIDs, "u1"))
	if err != nil {
		t.Fatalf("UpdateMany: %v", err)
	}
	if res.Matched != 3 || res.Modified != 2 {
		t.Errorf("Expected 3 matched 2 modified, got %+v", res)
	}

	if _, err := s.Tasks.UpdateOne(ctx, store.ByID("b"), store.NewUpdate().
		UnsetField(models.TaskFieldParentID).
		SetField(models.TaskFieldRootID, "b").
		SetField(models.TaskFieldCompleted, true)); err != nil {
		t.Fatalf("UpdateOne: %v", err)
	}
	b, err := s.Tasks.FindOne(ctx, store.ByID("b"))
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if b.ParentID != "" || b.RootID != "b" || !b.Completed {
		t.Errorf("Unexpected task after update: %+v", b)
	}
	if !reflect.DeepEqual(b.AssignedUserIDs, []string{"u2"}) {
		t.Errorf("Expected [u2], got %v", b.AssignedUserIDs)
	}

	if _, err := s.Tasks.UpdateOne(ctx, store.ByID("c"), store.NewUpdate().AddToSetValue(models.TaskFieldSubtaskIDs, "d")); err != nil {
		t.Fatalf("UpdateOne on a null array: %v", err)
	}
	c, _ := s.Tasks.FindOne(ctx, store.ByID("c"))
	if !reflect.DeepEqual(c.SubtaskIDs, []string{"d"}) {
		t.Errorf("Expected [d], got %v", c.SubtaskIDs)
	}
}

func TestPullAllAndDelete(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := models.User{ID: "u1", AuthID: "auth0|1", Username: "alice", AssignedTasks: []string{"a", "b", "c"}, Teams: []string{}}
	if err := s.Users.InsertOne(ctx, &u); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	if _, err := s.Users.UpdateMany(ctx, store.In(models.UserFieldAssignedTasks, []string{"a", "c"}),
		store.NewUpdate().PullValues(models.UserFieldAssignedTasks, []string{"a", "c"})); err != nil {
		t.Fatalf("UpdateMany: %v", err)
	}
	got, _ := s.Users.FindOne(ctx, store.ByID("u1"))
	if !reflect.DeepEqual(got.AssignedTasks, []string{"b"}) {
		t.Errorf("Expected [b], got %v", got.AssignedTasks)
	}

	seedTasks(t, s)
	n, err := s.Tasks.DeleteMany(ctx, store.Eq(models.TaskFieldTeamID, "team1"))
	if err != nil || n != 2 {
		t.Fatalf("Expected 2 deleted, got %d, %v", n, err)
	}
	if l := s.Tasks.(*Collection[models.Task]).Len(); l != 1 {
		t.Errorf("Expected 1 task left, got %d", l)
	}
}

func TestCanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Teams.Find(ctx, store.Filter{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
