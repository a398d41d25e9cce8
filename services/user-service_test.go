package services

import (
	"context"
	"errors"
	"testing"

	"trello-project/microservices/taskgraph-service/apperrors"
	"trello-project/microservices/taskgraph-service/models"
	"trello-project/microservices/taskgraph-service/store"
)

func TestCreateUserCreatesPersonalTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Users.CreateUser(ctx, CreateUserInput{AuthID: "auth0|42", Username: " Alice ", FirstName: "Alice", LastName: "Smith"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("Expected username folded to alice, got %q", u.Username)
	}
	if len(u.Teams) != 1 {
		t.Fatalf("Expected one personal team, got %v", u.Teams)
	}
	team := stored(t, f.st.Teams, u.Teams[0])
	if team.Name != PersonalTeamName("alice") || team.Description != personalTeamDescription {
		t.Errorf("Unexpected personal team %+v", team)
	}
	if !team.IsAdmin(u.ID) || len(team.UserIDs) != 1 {
		t.Errorf("Expected alice as sole admin, got %+v", team)
	}

	byAuth, err := f.svc.Users.GetUserByAuthID(ctx, "auth0|42")
	if err != nil || byAuth.ID != u.ID {
		t.Errorf("GetUserByAuthID: %+v, %v", byAuth, err)
	}
}

func TestCreateUserConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	f.team(t, alice, "bob's Team")

	tests := []struct {
		name string
		in   CreateUserInput
	}{
		{"auth id taken", CreateUserInput{AuthID: alice.AuthID, Username: "zed", FirstName: "Zed", LastName: "Doe"}},
		{"username differs only by case", CreateUserInput{AuthID: "auth0|other", Username: "ALICE", FirstName: "Al", LastName: "Doe"}},
		{"personal team name taken", CreateUserInput{AuthID: "auth0|bob", Username: "Bob", FirstName: "Bob", LastName: "Doe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, _ := f.st.Users.Find(ctx, store.Filter{})
			_, err := f.svc.Users.CreateUser(ctx, tt.in)
			if !errors.Is(err, apperrors.ErrConflict) {
				t.Fatalf("Expected Conflict, got %v", err)
			}
			after, _ := f.st.Users.Find(ctx, store.Filter{})
			if len(after) != len(before) {
				t.Errorf("Expected no user written, had %d now %d", len(before), len(after))
			}
		})
	}
}

func TestCreateUserValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateUserInput
	}{
		{"empty auth id", CreateUserInput{Username: "a", FirstName: "A", LastName: "B"}},
		{"bad auth id", CreateUserInput{AuthID: "auth0 42", Username: "a", FirstName: "A", LastName: "B"}},
		{"digits in name", CreateUserInput{AuthID: "x", Username: "a", FirstName: "A1", LastName: "B"}},
		{"long username", CreateUserInput{AuthID: "x", Username: "abcdefghijklmnopqrstuvwxyzabcde", FirstName: "A", LastName: "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Users.CreateUser(ctx, tt.in); !errors.Is(err, apperrors.ErrInvalidArgument) {
				t.Errorf("Expected InvalidArgument, got %v", err)
			}
		})
	}
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	eng := f.team(t, alice, "Eng")
	f.addMember(t, eng, alice, bob)
	task := f.task(t, alice, eng, "Ship v1", nil)
	f.assign(t, task, alice, alice)
	f.assign(t, task, alice, bob)
	personal := alice.Teams[0]

	if _, err := f.svc.Users.GetUser(ctx, alice.ID); err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if _, err := f.svc.Users.DeleteUser(ctx, alice.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if stored(t, f.st.Users, alice.ID) != nil {
		t.Error("Expected user record deleted")
	}
	if _, err := f.svc.Users.GetUser(ctx, alice.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected NotFound from a purged cache, got %v", err)
	}
	if stored(t, f.st.Teams, personal) != nil {
		t.Error("Expected the personal team deleted with its only member")
	}

	team := stored(t, f.st.Teams, eng.ID)
	if team == nil {
		t.Fatal("Expected the shared team to survive")
	}
	if team.IsMember(alice.ID) || !team.IsAdmin(bob.ID) {
		t.Errorf("Expected bob promoted in place of alice, got %+v", team)
	}
	if got := stored(t, f.st.Tasks, task.ID); got.IsAssigned(alice.ID) || !got.IsAssigned(bob.ID) {
		t.Errorf("Expected only alice unassigned, got %v", got.AssignedUserIDs)
	}
}

func TestModifyUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	f.user(t, "bob")

	if _, err := f.svc.Users.ModifyUser(ctx, ModifyUserInput{UserID: alice.ID, Username: ptr("Bob")}); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("Expected Conflict for a taken username, got %v", err)
	}
	if _, err := f.svc.Users.GetUser(ctx, alice.ID); err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if _, err := f.svc.Users.ModifyUser(ctx, ModifyUserInput{UserID: alice.ID, FirstName: ptr("Alicia")}); err != nil {
		t.Fatalf("ModifyUser: %v", err)
	}
	got, err := f.svc.Users.GetUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.FirstName != "Alicia" || got.Username != "alice" || got.LastName != "User" {
		t.Errorf("Expected only the first name changed, got %+v", got)
	}

	// Keeping one's own username is not a conflict.
	if _, err := f.svc.Users.ModifyUser(ctx, ModifyUserInput{UserID: alice.ID, Username: ptr("ALICE")}); err != nil {
		t.Errorf("Expected no-op rename, got %v", err)
	}
}

func TestUserViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	eng := f.team(t, alice, "Eng")
	f.addMember(t, eng, alice, bob)
	first := f.task(t, alice, eng, "Ship v1", nil)
	second := f.task(t, alice, eng, "Docs", nil)
	f.assign(t, second, alice, bob)
	f.assign(t, first, alice, bob)

	teams, err := f.svc.Users.GetTeamsForUser(ctx, bob.ID)
	if err != nil {
		t.Fatalf("GetTeamsForUser: %v", err)
	}
	if len(teams) != 2 || teams[0].Name != PersonalTeamName("bob") || teams[1].ID != eng.ID {
		t.Errorf("Expected personal team then Eng, got %v", teamNames(teams))
	}

	tasks, err := f.svc.Users.GetAssignedTasksForUser(ctx, bob.ID)
	if err != nil {
		t.Fatalf("GetAssignedTasksForUser: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != second.ID || tasks[1].ID != first.ID {
		t.Errorf("Expected tasks in assignment order, got %+v", tasks)
	}

	notes, err := f.svc.Users.ListNotifications(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(notes) != 3 {
		t.Errorf("Expected one team and two task notifications, got %d", len(notes))
	}

	if _, err := f.svc.Users.GetTeamsForUser(ctx, "6f9619ff-8b86-4011-b42d-00cf4fc964ff"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected NotFound, got %v", err)
	}
}

func teamNames(teams []models.Team) []string {
	out := make([]string, 0, len(teams))
	for _, tm := range teams {
		out = append(out, tm.Name)
	}
	return out
}
