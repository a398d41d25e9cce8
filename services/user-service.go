package services

import (
	"context"
	"errors"

	"trello-project/microservices/taskgraph-service/apperrors"
	"trello-project/microservices/taskgraph-service/cache"
	"trello-project/microservices/taskgraph-service/logging"
	"trello-project/microservices/taskgraph-service/models"
	"trello-project/microservices/taskgraph-service/store"
	"trello-project/microservices/taskgraph-service/validation"
)

const personalTeamDescription = "Your personal team for all your tasks"

func PersonalTeamName(username string) string {
	return username + "'s Team"
}

type UserService struct {
	*base
	teams *TeamService
}

type CreateUserInput struct {
	AuthID    string
	Username  string
	FirstName string
	LastName  string
}

type ModifyUserInput struct {
	UserID    string
	Username  *string
	FirstName *string
	LastName  *string
}

// CreateUser registers a user and their personal team.
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	authID, err := validation.AuthID(in.AuthID)
	if err != nil {
		return nil, err
	}
	username, err := validation.Username(in.Username)
	if err != nil {
		return nil, err
	}
	firstName, err := validation.PersonName(in.FirstName, "firstName")
	if err != nil {
		return nil, err
	}
	lastName, err := validation.PersonName(in.LastName, "lastName")
	if err != nil {
		return nil, err
	}

	if err := s.checkUnique(ctx, models.UserFieldAuthID, authID, ""); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, models.UserFieldUsername, username, ""); err != nil {
		return nil, err
	}
	teamName := PersonalTeamName(username)
	if err := s.teams.checkTeamNameFree(ctx, teamName, ""); err != nil {
		return nil, err
	}

	user := &models.User{
		ID:            newID(),
		AuthID:        authID,
		Username:      username,
		FirstName:     firstName,
		LastName:      lastName,
		Teams:         []string{},
		AssignedTasks: []string{},
	}
	if err := s.store.Users.InsertOne(ctx, user); err != nil {
		return nil, storeErr(err, "user %q", username)
	}
	if _, err := s.teams.createTeam(ctx, user.ID, teamName, personalTeamDescription); err != nil {
		return nil, err
	}
	logging.Logger.Infof("Event ID: USER_CREATED, Description: User %s (%s) created", user.ID, username)
	return s.loadUser(ctx, user.ID)
}

func (s *UserService) checkUnique(ctx context.Context, field, value, exceptID string) error {
	taken, err := exists(ctx, s.store.Users, store.Eq(field, value), idOfUser, exceptID)
	if err != nil {
		return storeErr(err, "check %s", field)
	}
	if taken {
		return apperrors.Conflict("%s %q is already taken", field, value)
	}
	return nil
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	userID, err := validation.CheckUUID(userID, "User ID")
	if err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, s.cache, cache.UserKey(userID), func(ctx context.Context) (*models.User, error) {
		return s.loadUser(ctx, userID)
	})
}

func (s *UserService) GetUserByAuthID(ctx context.Context, authID string) (*models.User, error) {
	authID, err := validation.AuthID(authID)
	if err != nil {
		return nil, err
	}
	u, err := s.store.Users.FindOne(ctx, store.Eq(models.UserFieldAuthID, authID))
	if errors.Is(err, store.ErrNoDocument) {
		return nil, apperrors.NotFound("user with authID %s", authID)
	}
	if err != nil {
		return nil, storeErr(err, "find user by authID")
	}
	return u, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.store.Users.Find(ctx, store.Filter{})
	if err != nil {
		return nil, storeErr(err, "list users")
	}
	return users, nil
}

func (s *UserService) GetTeamsForUser(ctx context.Context, userID string) ([]models.Team, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	teams, err := s.store.Teams.Find(ctx, store.ByIDs(user.Teams))
	if err != nil {
		return nil, storeErr(err, "find teams of user %s", user.ID)
	}
	return orderBy(user.Teams, teams, idOfTeam), nil
}

func (s *UserService) GetAssignedTasksForUser(ctx context.Context, userID string) ([]models.Task, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.Tasks.Find(ctx, store.ByIDs(user.AssignedTasks))
	if err != nil {
		return nil, storeErr(err, "find tasks of user %s", user.ID)
	}
	return orderBy(user.AssignedTasks, tasks, idOfTask), nil
}

func (s *UserService) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	userID, err := validation.CheckUUID(userID, "User ID")
	if err != nil {
		return nil, err
	}
	out, err := s.notifier.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.StoreFailure(err, "list notifications of %s", userID)
	}
	return out, nil
}

// DeleteUser removes the user from every team (deleting teams left empty),
// unassigns them from any remaining task and deletes the record.
func (s *UserService) DeleteUser(ctx context.Context, userID string) (*models.User, error) {
	userID, err := validation.CheckUUID(userID, "User ID")
	if err != nil {
		return nil, err
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	teams, err := s.teams.teamsOfUser(ctx, user)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		if _, err := s.teams.removeMember(ctx, &teams[i], user.ID); err != nil {
			return nil, err
		}
	}

	assigned := store.Eq(models.TaskFieldAssignedUserIDs, user.ID)
	tasks, err := s.store.Tasks.Find(ctx, assigned)
	if err != nil {
		return nil, storeErr(err, "find tasks of user %s", user.ID)
	}
	keys := []string{cache.UserKey(user.ID)}
	if len(tasks) > 0 {
		for i := range tasks {
			keys = append(keys, cache.TaskKey(tasks[i].ID), cache.ProjectKey(tasks[i].Root()))
		}
		if _, err := s.store.Tasks.UpdateMany(ctx, assigned,
			store.NewUpdate().PullValue(models.TaskFieldAssignedUserIDs, user.ID)); err != nil {
			return nil, storeErr(err, "unassign user %s", user.ID)
		}
	}

	if _, err := s.store.Users.DeleteOne(ctx, store.ByID(user.ID)); err != nil {
		return nil, storeErr(err, "delete user %s", user.ID)
	}
	if err := s.invalidate(ctx, keys...); err != nil {
		return nil, err
	}
	logging.Logger.Infof("Event ID: USER_DELETED, Description: User %s deleted, left %d teams", user.ID, len(teams))
	return user, nil
}

// ModifyUser is self-service: no admin check, but a new username must still
// be free.
func (s *UserService) ModifyUser(ctx context.Context, in ModifyUserInput) (*models.User, error) {
	userID, err := validation.CheckUUID(in.UserID, "User ID")
	if err != nil {
		return nil, err
	}
	username, err := validation.OptionalString(in.Username, validation.Username)
	if err != nil {
		return nil, err
	}
	firstName, err := validation.OptionalString(in.FirstName, func(v string) (string, error) {
		return validation.PersonName(v, "firstName")
	})
	if err != nil {
		return nil, err
	}
	lastName, err := validation.OptionalString(in.LastName, func(v string) (string, error) {
		return validation.PersonName(v, "lastName")
	})
	if err != nil {
		return nil, err
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	update := store.NewUpdate()
	if username != nil && *username != user.Username {
		if err := s.checkUnique(ctx, models.UserFieldUsername, *username, user.ID); err != nil {
			return nil, err
		}
		update.SetField(models.UserFieldUsername, *username)
	}
	if firstName != nil {
		update.SetField(models.UserFieldFirstName, *firstName)
	}
	if lastName != nil {
		update.SetField(models.UserFieldLastName, *lastName)
	}
	if update.IsEmpty() {
		return user, nil
	}

	if _, err := s.store.Users.UpdateOne(ctx, store.ByID(user.ID), update); err != nil {
		return nil, storeErr(err, "modify user %s", user.ID)
	}
	if err := s.invalidate(ctx, cache.UserKey(user.ID)); err != nil {
		return nil, err
	}
	return s.loadUser(ctx, user.ID)
}
