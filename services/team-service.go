package services

import (
	"context"
	"errors"
	"fmt"

	"trello-project/microservices/taskgraph-service/apperrors"
	"trello-project/microservices/taskgraph-service/cache"
	"trello-project/microservices/taskgraph-service/logging"
	"trello-project/microservices/taskgraph-service/models"
	"trello-project/microservices/taskgraph-service/store"
	"trello-project/microservices/taskgraph-service/validation"
)

type TeamService struct {
	*base
}

type CreateTeamInput struct {
	OwnerID     string
	Name        string
	Description *string
}

type ModifyTeamInput struct {
	TeamID       string
	ActingUserID string
	Name         *string
	Description  *string
}

// MembershipInput names a team, the admin performing the change and the
// user it applies to.
type MembershipInput struct {
	TeamID       string
	ActingUserID string
	TargetUserID string
}

func (in *MembershipInput) validate() error {
	var err error
	if in.TeamID, err = validation.CheckUUID(in.TeamID, "Team ID"); err != nil {
		return err
	}
	if in.ActingUserID, err = validation.CheckUUID(in.ActingUserID, "User ID"); err != nil {
		return err
	}
	if in.TargetUserID, err = validation.CheckUUID(in.TargetUserID, "Target User ID"); err != nil {
		return err
	}
	return nil
}

// CreateTeam creates a team whose sole member and admin is the owner.
func (s *TeamService) CreateTeam(ctx context.Context, in CreateTeamInput) (*models.Team, error) {
	ownerID, err := validation.CheckUUID(in.OwnerID, "Owner ID")
	if err != nil {
		return nil, err
	}
	name, err := validation.TeamName(in.Name)
	if err != nil {
		return nil, err
	}
	description, err := validation.OptionalString(in.Description, validation.TeamDescription)
	if err != nil {
		return nil, err
	}

	if _, err := s.loadUser(ctx, ownerID); err != nil {
		return nil, err
	}
	if err := s.checkTeamNameFree(ctx, name, ""); err != nil {
		return nil, err
	}

	desc := ""
	if description != nil {
		desc = *description
	}
	return s.createTeam(ctx, ownerID, name, desc)
}

// createTeam inserts the team and registers it on the owner. Callers have
// validated the input and checked the name.
func (s *TeamService) createTeam(ctx context.Context, ownerID, name, description string) (*models.Team, error) {
	team := &models.Team{
		ID:          newID(),
		Name:        name,
		Description: description,
		AdminIDs:    []string{ownerID},
		UserIDs:     []string{ownerID},
		ProjectIDs:  []string{},
	}
	if err := s.store.Teams.InsertOne(ctx, team); err != nil {
		return nil, storeErr(err, "team %q", name)
	}
	if _, err := s.store.Users.UpdateOne(ctx, store.ByID(ownerID),
		store.NewUpdate().AddToSetValue(models.UserFieldTeams, team.ID)); err != nil {
		return nil, storeErr(err, "register team %s on user %s", team.ID, ownerID)
	}
	if err := s.invalidate(ctx, cache.TeamKey(team.ID), cache.UserKey(ownerID)); err != nil {
		return nil, err
	}
	logging.Logger.Infof("Event ID: TEAM_CREATED, Description: Team %s (%s) created by %s", team.ID, name, ownerID)
	return team, nil
}

func (s *TeamService) checkTeamNameFree(ctx context.Context, name, exceptID string) error {
	taken, err := exists(ctx, s.store.Teams, store.Eq(models.TeamFieldName, name), idOfTeam, exceptID)
	if err != nil {
		return storeErr(err, "check team name")
	}
	if taken {
		return apperrors.Conflict("team %q already exists", name)
	}
	return nil
}

func (s *TeamService) GetTeam(ctx context.Context, teamID string) (*models.Team, error) {
	teamID, err := validation.CheckUUID(teamID, "Team ID")
	if err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, s.cache, cache.TeamKey(teamID), func(ctx context.Context) (*models.Team, error) {
		return s.loadTeam(ctx, teamID)
	})
}

// GetTeamAdmins returns the admins in promotion order.
func (s *TeamService) GetTeamAdmins(ctx context.Context, teamID string) ([]models.User, error) {
	team, err := s.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return s.usersByID(ctx, team.AdminIDs)
}

func (s *TeamService) GetTeamNonAdmins(ctx context.Context, teamID string) ([]models.User, error) {
	team, err := s.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return s.usersByID(ctx, team.NonAdminIDs())
}

func (s *TeamService) GetTeamMembers(ctx context.Context, teamID string) ([]models.User, error) {
	team, err := s.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return s.usersByID(ctx, team.UserIDs)
}

// GetTeamProjects returns the team's root tasks.
func (s *TeamService) GetTeamProjects(ctx context.Context, teamID string) ([]models.Task, error) {
	team, err := s.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.Tasks.Find(ctx, store.ByIDs(team.ProjectIDs))
	if err != nil {
		return nil, storeErr(err, "find projects of team %s", team.ID)
	}
	return orderBy(team.ProjectIDs, tasks, idOfTask), nil
}

func (b *base) usersByID(ctx context.Context, ids []string) ([]models.User, error) {
	users, err := b.store.Users.Find(ctx, store.ByIDs(ids))
	if err != nil {
		return nil, storeErr(err, "find users")
	}
	return orderBy(ids, users, idOfUser), nil
}

// AddUser makes the target a member. Adding an existing member succeeds and
// changes nothing.
func (s *TeamService) AddUser(ctx context.Context, in MembershipInput) (*models.Team, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	team, err := s.authorizeAdmin(ctx, in.TeamID, in.ActingUserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadUser(ctx, in.TargetUserID); err != nil {
		return nil, err
	}

	if _, err := s.store.Teams.UpdateOne(ctx, store.ByID(team.ID),
		store.NewUpdate().AddToSetValue(models.TeamFieldUserIDs, in.TargetUserID)); err != nil {
		return nil, storeErr(err, "add user %s to team %s", in.TargetUserID, team.ID)
	}
	if _, err := s.store.Users.UpdateOne(ctx, store.ByID(in.TargetUserID),
		store.NewUpdate().AddToSetValue(models.UserFieldTeams, team.ID)); err != nil {
		return nil, storeErr(err, "register team %s on user %s", team.ID, in.TargetUserID)
	}
	if err := s.invalidate(ctx, cache.TeamKey(team.ID), cache.UserKey(in.TargetUserID)); err != nil {
		return nil, err
	}

	if !team.IsMember(in.TargetUserID) {
		s.notify(ctx, in.TargetUserID, fmt.Sprintf("You have been added to team %s", team.Name))
	}
	return s.loadTeam(ctx, team.ID)
}

// RemoveUser takes the target out of the team and unassigns them from every
// task of the team. It returns the updated team, or nil when the target was
// the last member and the team was deleted.
func (s *TeamService) RemoveUser(ctx context.Context, in MembershipInput) (*models.Team, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	team, err := s.authorizeAdmin(ctx, in.TeamID, in.ActingUserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadUser(ctx, in.TargetUserID); err != nil {
		return nil, err
	}
	if !team.IsMember(in.TargetUserID) {
		return team, nil
	}

	deleted, err := s.removeMember(ctx, team, in.TargetUserID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, in.TargetUserID, fmt.Sprintf("You have been removed from team %s", team.Name))
	if deleted {
		return nil, nil
	}
	return s.loadTeam(ctx, team.ID)
}

// removeMember runs the removal cascade without an authorization check. It
// reports whether the team was deleted because no members remained.
func (s *TeamService) removeMember(ctx context.Context, team *models.Team, memberID string) (bool, error) {
	assignedFilter := store.Eq(models.TaskFieldTeamID, team.ID).And(store.Eq(models.TaskFieldAssignedUserIDs, memberID))
	tasks, err := s.store.Tasks.Find(ctx, assignedFilter)
	if err != nil {
		return false, storeErr(err, "find tasks of %s in team %s", memberID, team.ID)
	}
	keys := []string{cache.TeamKey(team.ID), cache.UserKey(memberID)}
	taskIDs := make([]string, 0, len(tasks))
	for i := range tasks {
		taskIDs = append(taskIDs, tasks[i].ID)
		keys = append(keys, cache.TaskKey(tasks[i].ID), cache.ProjectKey(tasks[i].Root()))
	}

	if len(taskIDs) > 0 {
		if _, err := s.store.Tasks.UpdateMany(ctx, assignedFilter,
			store.NewUpdate().PullValue(models.TaskFieldAssignedUserIDs, memberID)); err != nil {
			return false, storeErr(err, "unassign %s from tasks of team %s", memberID, team.ID)
		}
		if _, err := s.store.Users.UpdateOne(ctx, store.ByID(memberID),
			store.NewUpdate().PullValues(models.UserFieldAssignedTasks, taskIDs)); err != nil {
			return false, storeErr(err, "unassign tasks from user %s", memberID)
		}
	}

	if _, err := s.store.Teams.UpdateOne(ctx, store.ByID(team.ID), store.NewUpdate().
		PullValue(models.TeamFieldUserIDs, memberID).
		PullValue(models.TeamFieldAdminIDs, memberID)); err != nil {
		return false, storeErr(err, "remove user %s from team %s", memberID, team.ID)
	}
	if _, err := s.store.Users.UpdateOne(ctx, store.ByID(memberID),
		store.NewUpdate().PullValue(models.UserFieldTeams, team.ID)); err != nil {
		return false, storeErr(err, "remove team %s from user %s", team.ID, memberID)
	}

	current, err := s.loadTeam(ctx, team.ID)
	if err != nil {
		return false, err
	}
	if len(current.UserIDs) == 0 {
		logging.Logger.Infof("Event ID: TEAM_EMPTIED, Description: Last member left team %s, deleting it", team.ID)
		if err := s.deleteTeam(ctx, current); err != nil {
			return false, err
		}
		return true, s.invalidate(ctx, keys...)
	}
	if len(current.AdminIDs) == 0 {
		heir := current.UserIDs[0]
		if _, err := s.store.Teams.UpdateOne(ctx, store.ByID(team.ID),
			store.NewUpdate().AddToSetValue(models.TeamFieldAdminIDs, heir)); err != nil {
			return false, storeErr(err, "promote %s in team %s", heir, team.ID)
		}
		logging.Logger.Infof("Event ID: ADMIN_AUTO_PROMOTED, Description: User %s promoted to admin of team %s", heir, team.ID)
	}
	return false, s.invalidate(ctx, keys...)
}

// PromoteToAdmin fails with Conflict when the target is not a member or is
// already an admin.
func (s *TeamService) PromoteToAdmin(ctx context.Context, in MembershipInput) (*models.Team, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	team, err := s.authorizeAdmin(ctx, in.TeamID, in.ActingUserID)
	if err != nil {
		return nil, err
	}
	if !team.IsMember(in.TargetUserID) {
		return nil, apperrors.Conflict("user %s is not a member of team %s", in.TargetUserID, team.ID)
	}
	if team.IsAdmin(in.TargetUserID) {
		return nil, apperrors.Conflict("user %s is already an admin of team %s", in.TargetUserID, team.ID)
	}

	if _, err := s.store.Teams.UpdateOne(ctx, store.ByID(team.ID),
		store.NewUpdate().AddToSetValue(models.TeamFieldAdminIDs, in.TargetUserID)); err != nil {
		return nil, storeErr(err, "promote %s in team %s", in.TargetUserID, team.ID)
	}
	if err := s.invalidate(ctx, cache.TeamKey(team.ID)); err != nil {
		return nil, err
	}
	s.notify(ctx, in.TargetUserID, fmt.Sprintf("You are now an admin of team %s", team.Name))
	return s.loadTeam(ctx, team.ID)
}

// DeleteTeam removes the team and every task it owns.
func (s *TeamService) DeleteTeam(ctx context.Context, teamID, actingUserID string) (*models.Team, error) {
	teamID, err := validation.CheckUUID(teamID, "Team ID")
	if err != nil {
		return nil, err
	}
	actingUserID, err = validation.CheckUUID(actingUserID, "User ID")
	if err != nil {
		return nil, err
	}
	team, err := s.authorizeAdmin(ctx, teamID, actingUserID)
	if err != nil {
		return nil, err
	}
	if err := s.deleteTeam(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

func (s *TeamService) deleteTeam(ctx context.Context, team *models.Team) error {
	tasks, err := s.store.Tasks.Find(ctx, store.Eq(models.TaskFieldTeamID, team.ID))
	if err != nil {
		return storeErr(err, "find tasks of team %s", team.ID)
	}
	keys := []string{cache.TeamKey(team.ID)}
	taskIDs := make([]string, 0, len(tasks))
	for i := range tasks {
		taskIDs = append(taskIDs, tasks[i].ID)
		keys = append(keys, cache.TaskKey(tasks[i].ID), cache.ProjectKey(tasks[i].Root()))
	}

	if len(taskIDs) > 0 {
		assignees, err := s.store.Users.Find(ctx, store.In(models.UserFieldAssignedTasks, taskIDs))
		if err != nil {
			return storeErr(err, "find assignees of team %s", team.ID)
		}
		for i := range assignees {
			keys = append(keys, cache.UserKey(assignees[i].ID))
		}
		if _, err := s.store.Users.UpdateMany(ctx, store.In(models.UserFieldAssignedTasks, taskIDs),
			store.NewUpdate().PullValues(models.UserFieldAssignedTasks, taskIDs)); err != nil {
			return storeErr(err, "unassign tasks of team %s", team.ID)
		}
		if _, err := s.store.Tasks.DeleteMany(ctx, store.Eq(models.TaskFieldTeamID, team.ID)); err != nil {
			return storeErr(err, "delete tasks of team %s", team.ID)
		}
	}

	members, err := s.store.Users.Find(ctx, store.Eq(models.UserFieldTeams, team.ID))
	if err != nil {
		return storeErr(err, "find members of team %s", team.ID)
	}
	for _, id := range team.UserIDs {
		keys = append(keys, cache.UserKey(id))
	}
	for i := range members {
		keys = append(keys, cache.UserKey(members[i].ID))
	}
	if _, err := s.store.Users.UpdateMany(ctx, store.Eq(models.UserFieldTeams, team.ID),
		store.NewUpdate().PullValue(models.UserFieldTeams, team.ID)); err != nil {
		return storeErr(err, "remove team %s from members", team.ID)
	}

	if _, err := s.store.Teams.DeleteOne(ctx, store.ByID(team.ID)); err != nil {
		return storeErr(err, "delete team %s", team.ID)
	}
	if err := s.invalidate(ctx, keys...); err != nil {
		return err
	}
	logging.Logger.Infof("Event ID: TEAM_DELETED, Description: Team %s deleted with %d tasks", team.ID, len(taskIDs))
	return nil
}

// ModifyTeam updates the fields that are set and leaves the rest unchanged.
func (s *TeamService) ModifyTeam(ctx context.Context, in ModifyTeamInput) (*models.Team, error) {
	teamID, err := validation.CheckUUID(in.TeamID, "Team ID")
	if err != nil {
		return nil, err
	}
	actingUserID, err := validation.CheckUUID(in.ActingUserID, "User ID")
	if err != nil {
		return nil, err
	}
	name, err := validation.OptionalString(in.Name, validation.TeamName)
	if err != nil {
		return nil, err
	}
	description, err := validation.OptionalString(in.Description, validation.TeamDescription)
	if err != nil {
		return nil, err
	}

	team, err := s.authorizeAdmin(ctx, teamID, actingUserID)
	if err != nil {
		return nil, err
	}

	update := store.NewUpdate()
	if name != nil && *name != team.Name {
		if err := s.checkTeamNameFree(ctx, *name, team.ID); err != nil {
			return nil, err
		}
		update.SetField(models.TeamFieldName, *name)
	}
	if description != nil {
		update.SetField(models.TeamFieldDescription, *description)
	}
	if update.IsEmpty() {
		return team, nil
	}

	if _, err := s.store.Teams.UpdateOne(ctx, store.ByID(team.ID), update); err != nil {
		return nil, storeErr(err, "modify team %s", team.ID)
	}
	if err := s.invalidate(ctx, cache.TeamKey(team.ID)); err != nil {
		return nil, err
	}
	return s.loadTeam(ctx, team.ID)
}

// teamsOfUser lists teams that reference the user from either side.
func (s *TeamService) teamsOfUser(ctx context.Context, user *models.User) ([]models.Team, error) {
	teams, err := s.store.Teams.Find(ctx, store.Eq(models.TeamFieldUserIDs, user.ID))
	if err != nil {
		return nil, storeErr(err, "find teams of user %s", user.ID)
	}
	seen := map[string]bool{}
	for i := range teams {
		seen[teams[i].ID] = true
	}
	for _, id := range user.Teams {
		if seen[id] {
			continue
		}
		t, err := s.loadTeam(ctx, id)
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		teams = append(teams, *t)
	}
	return teams, nil
}
