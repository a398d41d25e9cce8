package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"trello-project/microservices/taskgraph-service/apperrors"
	"trello-project/microservices/taskgraph-service/cache"
	"trello-project/microservices/taskgraph-service/logging"
	"trello-project/microservices/taskgraph-service/models"
	"trello-project/microservices/taskgraph-service/store"
	"trello-project/microservices/taskgraph-service/validation"
)

type TaskService struct {
	*base
}

type CreateTaskInput struct {
	ActingUserID string
	TeamID       string
	Name         string
	DueDate      string
	Priority     int
	ParentID     *string
	Description  *string
}

// ModifyTaskInput is a partial update. A ParentID pointing at an empty
// string detaches the task and makes it a project of its team.
type ModifyTaskInput struct {
	TaskID       string
	ActingUserID string
	Name         *string
	Description  *string
	DueDate      *string
	Priority     *int
	Completed    *bool
	ParentID     *string
}

type AssignmentInput struct {
	TaskID       string
	ActingUserID string
	TargetUserID string
}

func (in *AssignmentInput) validate() error {
	var err error
	if in.TaskID, err = validation.CheckUUID(in.TaskID, "Task ID"); err != nil {
		return err
	}
	if in.ActingUserID, err = validation.CheckUUID(in.ActingUserID, "User ID"); err != nil {
		return err
	}
	if in.TargetUserID, err = validation.CheckUUID(in.TargetUserID, "Assigned ID"); err != nil {
		return err
	}
	return nil
}

// CreateTask creates a project when no parent is given, otherwise a subtask
// that shares its parent's root.
func (s *TaskService) CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, error) {
	actingUserID, err := validation.CheckUUID(in.ActingUserID, "User ID")
	if err != nil {
		return nil, err
	}
	teamID, err := validation.CheckUUID(in.TeamID, "Team ID")
	if err != nil {
		return nil, err
	}
	name, err := validation.TaskName(in.Name)
	if err != nil {
		return nil, err
	}
	dueDate, err := validation.TaskDueDate(in.DueDate, s.now())
	if err != nil {
		return nil, err
	}
	priority, err := validation.TaskPriority(in.Priority)
	if err != nil {
		return nil, err
	}
	description, err := validation.OptionalString(in.Description, validation.TaskDescription)
	if err != nil {
		return nil, err
	}
	var parentID string
	if in.ParentID != nil {
		if parentID, err = validation.CheckUUID(*in.ParentID, "Parent ID"); err != nil {
			return nil, err
		}
	}

	team, err := s.authorizeAdmin(ctx, teamID, actingUserID)
	if err != nil {
		return nil, err
	}
	if err := s.checkTaskNameFree(ctx, team.ID, name, ""); err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:              newID(),
		Name:            name,
		DueDate:         dueDate,
		Priority:        priority,
		TeamID:          team.ID,
		SubtaskIDs:      []string{},
		AssignedUserIDs: []string{},
	}
	if description != nil {
		task.Description = *description
	}
	task.RootID = task.ID
	if parentID != "" {
		parent, err := s.loadTask(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if parent.TeamID != team.ID {
			return nil, apperrors.InvalidArgument("parent task %s belongs to another team", parentID)
		}
		task.ParentID = parent.ID
		task.RootID = parent.Root()
	}

	if err := s.store.Tasks.InsertOne(ctx, task); err != nil {
		return nil, storeErr(err, "task %q in team %s", name, team.ID)
	}

	keys := []string{cache.TeamKey(team.ID), cache.ProjectKey(task.RootID)}
	if task.IsRoot() {
		if _, err := s.store.Teams.UpdateOne(ctx, store.ByID(team.ID),
			store.NewUpdate().AddToSetValue(models.TeamFieldProjectIDs, task.ID)); err != nil {
			return nil, storeErr(err, "register project %s on team %s", task.ID, team.ID)
		}
	} else {
		if _, err := s.store.Tasks.UpdateOne(ctx, store.ByID(task.ParentID),
			store.NewUpdate().AddToSetValue(models.TaskFieldSubtaskIDs, task.ID)); err != nil {
			return nil, storeErr(err, "link task %s under %s", task.ID, task.ParentID)
		}
		keys = append(keys, cache.TaskKey(task.ParentID))
	}
	if err := s.invalidate(ctx, keys...); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) checkTaskNameFree(ctx context.Context, teamID, name, exceptID string) error {
	filter := store.Eq(models.TaskFieldTeamID, teamID).And(store.Eq(models.TaskFieldName, name))
	taken, err := exists(ctx, s.store.Tasks, filter, idOfTask, exceptID)
	if err != nil {
		return storeErr(err, "check task name")
	}
	if taken {
		return apperrors.Conflict("task %q already exists in team %s", name, teamID)
	}
	return nil
}

func (s *TaskService) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	taskID, err := validation.CheckUUID(taskID, "Task ID")
	if err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, s.cache, cache.TaskKey(taskID), func(ctx context.Context) (*models.Task, error) {
		return s.loadTask(ctx, taskID)
	})
}

// GetSubtasks returns the direct subtasks in link order.
func (s *TaskService) GetSubtasks(ctx context.Context, taskID string) ([]models.Task, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	subtasks, err := s.store.Tasks.Find(ctx, store.ByIDs(task.SubtaskIDs))
	if err != nil {
		return nil, storeErr(err, "find subtasks of %s", task.ID)
	}
	return orderBy(task.SubtaskIDs, subtasks, idOfTask), nil
}

// GetParent returns nil for a root task.
func (s *TaskService) GetParent(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsRoot() {
		return nil, nil
	}
	return s.GetTask(ctx, task.ParentID)
}

func (s *TaskService) GetRoot(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Root() == task.ID {
		return task, nil
	}
	return s.GetTask(ctx, task.Root())
}

func (s *TaskService) GetAssignedUsers(ctx context.Context, taskID string) ([]models.User, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.usersByID(ctx, task.AssignedUserIDs)
}

// GetProgress is 1 or 0 for a leaf and the mean of the subtasks' progress
// otherwise. It is computed from the store on every call.
func (s *TaskService) GetProgress(ctx context.Context, taskID string) (float64, error) {
	taskID, err := validation.CheckUUID(taskID, "Task ID")
	if err != nil {
		return 0, err
	}
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return 0, err
	}
	project, err := s.store.Tasks.Find(ctx, store.Eq(models.TaskFieldRootID, task.Root()))
	if err != nil {
		return 0, storeErr(err, "load project %s", task.Root())
	}
	byID := make(map[string]*models.Task, len(project)+1)
	for i := range project {
		byID[project[i].ID] = &project[i]
	}
	byID[task.ID] = task
	return s.progress(ctx, task, byID, map[string]bool{})
}

func (s *TaskService) progress(ctx context.Context, task *models.Task, byID map[string]*models.Task, visiting map[string]bool) (float64, error) {
	if visiting[task.ID] {
		return 0, apperrors.StoreFailure(errors.New("cycle in subtask links"), "progress of %s", task.ID)
	}
	visiting[task.ID] = true
	defer delete(visiting, task.ID)

	var (
		sum   float64
		count int
	)
	for _, id := range task.SubtaskIDs {
		sub, ok := byID[id]
		if !ok {
			t, err := s.store.Tasks.FindOne(ctx, store.ByID(id))
			if errors.Is(err, store.ErrNoDocument) {
				// dangling link left by an interrupted cascade
				continue
			}
			if err != nil {
				return 0, storeErr(err, "find subtask %s", id)
			}
			byID[id] = t
			sub = t
		}
		p, err := s.progress(ctx, sub, byID, visiting)
		if err != nil {
			return 0, err
		}
		sum += p
		count++
	}
	if count == 0 {
		if task.Completed {
			return 1, nil
		}
		return 0, nil
	}
	return sum / float64(count), nil
}

// GetFullProjectTree returns every task reachable from rootID through
// subtask links, root included, sorted by id. rootID must name a project
// root; trees are only cached under their root's key.
func (s *TaskService) GetFullProjectTree(ctx context.Context, rootID string) ([]models.Task, error) {
	rootID, err := validation.CheckUUID(rootID, "Project Root ID")
	if err != nil {
		return nil, err
	}
	tree, err := cache.Fetch(ctx, s.cache, cache.ProjectKey(rootID), func(ctx context.Context) (*[]models.Task, error) {
		root, err := s.loadTask(ctx, rootID)
		if err != nil {
			return nil, err
		}
		if !root.IsRoot() {
			return nil, apperrors.InvalidArgument("task %s is not a project root, its root is %s", root.ID, root.Root())
		}
		tasks, err := s.subtree(ctx, root)
		if err != nil {
			return nil, err
		}
		sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
		return &tasks, nil
	})
	if err != nil {
		return nil, err
	}
	return *tree, nil
}

// subtree walks subtask links breadth first, one query per level. The root
// is the first element.
func (b *base) subtree(ctx context.Context, root *models.Task) ([]models.Task, error) {
	out := []models.Task{*root}
	seen := map[string]bool{root.ID: true}
	frontier := root.SubtaskIDs
	for len(frontier) > 0 {
		level, err := b.store.Tasks.Find(ctx, store.ByIDs(frontier))
		if err != nil {
			return nil, storeErr(err, "walk subtasks of %s", root.ID)
		}
		frontier = nil
		for i := range level {
			if seen[level[i].ID] {
				continue
			}
			seen[level[i].ID] = true
			out = append(out, level[i])
			frontier = append(frontier, level[i].SubtaskIDs...)
		}
	}
	return out, nil
}

// ModifyTask applies a partial update. Moving a task keeps it in its team,
// rewrites the root of the whole moved subtree and moves the project
// registration with it.
func (s *TaskService) ModifyTask(ctx context.Context, in ModifyTaskInput) (*models.Task, error) {
	taskID, err := validation.CheckUUID(in.TaskID, "Task ID")
	if err != nil {
		return nil, err
	}
	actingUserID, err := validation.CheckUUID(in.ActingUserID, "User ID")
	if err != nil {
		return nil, err
	}
	name, err := validation.OptionalString(in.Name, validation.TaskName)
	if err != nil {
		return nil, err
	}
	description, err := validation.OptionalString(in.Description, validation.TaskDescription)
	if err != nil {
		return nil, err
	}
	dueDate, err := validation.OptionalString(in.DueDate, func(v string) (string, error) {
		return validation.TaskDueDate(v, s.now())
	})
	if err != nil {
		return nil, err
	}
	if in.Priority != nil {
		if _, err := validation.TaskPriority(*in.Priority); err != nil {
			return nil, err
		}
	}
	var newParentID *string
	if in.ParentID != nil {
		id := ""
		if *in.ParentID != "" {
			if id, err = validation.CheckUUID(*in.ParentID, "Parent ID"); err != nil {
				return nil, err
			}
		}
		newParentID = &id
	}

	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	team, err := s.authorizeAdmin(ctx, task.TeamID, actingUserID)
	if err != nil {
		return nil, err
	}

	update := store.NewUpdate()
	if name != nil && *name != task.Name {
		if err := s.checkTaskNameFree(ctx, team.ID, *name, task.ID); err != nil {
			return nil, err
		}
		update.SetField(models.TaskFieldName, *name)
	}
	if description != nil {
		update.SetField(models.TaskFieldDescription, *description)
	}
	if dueDate != nil {
		update.SetField(models.TaskFieldDueDate, *dueDate)
	}
	if in.Priority != nil {
		update.SetField(models.TaskFieldPriority, *in.Priority)
	}
	if in.Completed != nil {
		update.SetField(models.TaskFieldCompleted, *in.Completed)
	}

	var move *reparent
	if newParentID != nil && *newParentID != task.ParentID {
		if move, err = s.planMove(ctx, task, *newParentID); err != nil {
			return nil, err
		}
		if move.parent == nil {
			update.UnsetField(models.TaskFieldParentID)
		} else {
			update.SetField(models.TaskFieldParentID, move.parent.ID)
		}
		update.SetField(models.TaskFieldRootID, move.newRoot)
	}

	if update.IsEmpty() {
		return task, nil
	}
	if _, err := s.store.Tasks.UpdateOne(ctx, store.ByID(task.ID), update); err != nil {
		return nil, storeErr(err, "modify task %s", task.ID)
	}

	keys := []string{cache.TaskKey(task.ID), cache.TeamKey(team.ID), cache.ProjectKey(task.Root())}
	if move != nil {
		moved, err := s.applyMove(ctx, task, move)
		if err != nil {
			return nil, err
		}
		keys = append(keys, moved...)
	}
	if err := s.invalidate(ctx, keys...); err != nil {
		return nil, err
	}
	return s.loadTask(ctx, task.ID)
}

type reparent struct {
	// parent is nil when the task is detached into a project.
	parent      *models.Task
	newRoot     string
	descendants []models.Task
}

// planMove validates a move of task under newParentID ("" to detach) before
// anything is written.
func (s *TaskService) planMove(ctx context.Context, task *models.Task, newParentID string) (*reparent, error) {
	sub, err := s.subtree(ctx, task)
	if err != nil {
		return nil, err
	}
	move := &reparent{newRoot: task.ID, descendants: sub[1:]}
	if newParentID == "" {
		return move, nil
	}
	if newParentID == task.ID {
		return nil, apperrors.InvalidArgument("task %s cannot be its own parent", task.ID)
	}
	for i := range move.descendants {
		if move.descendants[i].ID == newParentID {
			return nil, apperrors.InvalidArgument("task %s cannot move under its own subtask %s", task.ID, newParentID)
		}
	}
	parent, err := s.loadTask(ctx, newParentID)
	if err != nil {
		return nil, err
	}
	if parent.TeamID != task.TeamID {
		return nil, apperrors.InvalidArgument("parent task %s belongs to another team", newParentID)
	}
	move.parent = parent
	move.newRoot = parent.Root()
	return move, nil
}

// applyMove links the task into its new place, unlinks the old one and
// rewrites the root of every descendant. It returns the cache keys touched.
func (s *TaskService) applyMove(ctx context.Context, task *models.Task, move *reparent) ([]string, error) {
	keys := []string{cache.ProjectKey(move.newRoot)}

	if move.parent != nil {
		if _, err := s.store.Tasks.UpdateOne(ctx, store.ByID(move.parent.ID),
			store.NewUpdate().AddToSetValue(models.TaskFieldSubtaskIDs, task.ID)); err != nil {
			return nil, storeErr(err, "link task %s under %s", task.ID, move.parent.ID)
		}
		keys = append(keys, cache.TaskKey(move.parent.ID))
	} else {
		if _, err := s.store.Teams.UpdateOne(ctx, store.ByID(task.TeamID),
			store.NewUpdate().AddToSetValue(models.TeamFieldProjectIDs, task.ID)); err != nil {
			return nil, storeErr(err, "register project %s", task.ID)
		}
	}

	if task.IsRoot() {
		if _, err := s.store.Teams.UpdateOne(ctx, store.ByID(task.TeamID),
			store.NewUpdate().PullValue(models.TeamFieldProjectIDs, task.ID)); err != nil {
			return nil, storeErr(err, "unregister project %s", task.ID)
		}
		keys = append(keys, cache.ProjectKey(task.ID))
	} else {
		if _, err := s.store.Tasks.UpdateOne(ctx, store.ByID(task.ParentID),
			store.NewUpdate().PullValue(models.TaskFieldSubtaskIDs, task.ID)); err != nil {
			return nil, storeErr(err, "unlink task %s from %s", task.ID, task.ParentID)
		}
		keys = append(keys, cache.TaskKey(task.ParentID))
	}

	if len(move.descendants) > 0 {
		ids := make([]string, 0, len(move.descendants))
		for i := range move.descendants {
			ids = append(ids, move.descendants[i].ID)
			keys = append(keys, cache.TaskKey(move.descendants[i].ID))
		}
		if _, err := s.store.Tasks.UpdateMany(ctx, store.ByIDs(ids),
			store.NewUpdate().SetField(models.TaskFieldRootID, move.newRoot)); err != nil {
			return nil, storeErr(err, "rewrite root of subtree %s", task.ID)
		}
	}
	logging.Logger.Infof("Event ID: TASK_MOVED, Description: Task %s moved, new root %s", task.ID, move.newRoot)
	return keys, nil
}

// AssignUser assigns a team member to the task. Both sides of the
// assignment are written; a failure of either is reported.
func (s *TaskService) AssignUser(ctx context.Context, in AssignmentInput) (*models.Task, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	task, team, err := s.authorizeTask(ctx, in.TaskID, in.ActingUserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadUser(ctx, in.TargetUserID); err != nil {
		return nil, err
	}
	if !team.IsMember(in.TargetUserID) {
		return nil, apperrors.PermissionDenied("user %s is not a member of team %s", in.TargetUserID, team.ID)
	}
	if task.IsAssigned(in.TargetUserID) {
		return nil, apperrors.Conflict("user %s is already assigned to task %s", in.TargetUserID, task.ID)
	}

	if _, err := s.store.Tasks.UpdateOne(ctx, store.ByID(task.ID),
		store.NewUpdate().AddToSetValue(models.TaskFieldAssignedUserIDs, in.TargetUserID)); err != nil {
		return nil, storeErr(err, "assign %s to task %s", in.TargetUserID, task.ID)
	}
	if _, err := s.store.Users.UpdateOne(ctx, store.ByID(in.TargetUserID),
		store.NewUpdate().AddToSetValue(models.UserFieldAssignedTasks, task.ID)); err != nil {
		return nil, storeErr(err, "record task %s on user %s", task.ID, in.TargetUserID)
	}
	if err := s.invalidate(ctx, cache.TaskKey(task.ID), cache.UserKey(in.TargetUserID), cache.ProjectKey(task.Root())); err != nil {
		return nil, err
	}
	s.notify(ctx, in.TargetUserID, fmt.Sprintf("You have been assigned to task %s", task.Name))
	return s.loadTask(ctx, task.ID)
}

// UnassignUser is the inverse of AssignUser.
func (s *TaskService) UnassignUser(ctx context.Context, in AssignmentInput) (*models.Task, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	task, _, err := s.authorizeTask(ctx, in.TaskID, in.ActingUserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadUser(ctx, in.TargetUserID); err != nil {
		return nil, err
	}
	if !task.IsAssigned(in.TargetUserID) {
		return nil, apperrors.Conflict("user %s is not assigned to task %s", in.TargetUserID, task.ID)
	}

	if _, err := s.store.Tasks.UpdateOne(ctx, store.ByID(task.ID),
		store.NewUpdate().PullValue(models.TaskFieldAssignedUserIDs, in.TargetUserID)); err != nil {
		return nil, storeErr(err, "unassign %s from task %s", in.TargetUserID, task.ID)
	}
	if _, err := s.store.Users.UpdateOne(ctx, store.ByID(in.TargetUserID),
		store.NewUpdate().PullValue(models.UserFieldAssignedTasks, task.ID)); err != nil {
		return nil, storeErr(err, "remove task %s from user %s", task.ID, in.TargetUserID)
	}
	if err := s.invalidate(ctx, cache.TaskKey(task.ID), cache.UserKey(in.TargetUserID), cache.ProjectKey(task.Root())); err != nil {
		return nil, err
	}
	s.notify(ctx, in.TargetUserID, fmt.Sprintf("You have been unassigned from task %s", task.Name))
	return s.loadTask(ctx, task.ID)
}

// authorizeTask loads the task and requires userID to administer its team.
func (s *TaskService) authorizeTask(ctx context.Context, taskID, userID string) (*models.Task, *models.Team, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	team, err := s.authorizeAdmin(ctx, task.TeamID, userID)
	if err != nil {
		return nil, nil, err
	}
	return task, team, nil
}

// DeleteTask deletes the task together with its whole subtree and returns
// the deleted task.
func (s *TaskService) DeleteTask(ctx context.Context, taskID, actingUserID string) (*models.Task, error) {
	taskID, err := validation.CheckUUID(taskID, "Task ID")
	if err != nil {
		return nil, err
	}
	actingUserID, err = validation.CheckUUID(actingUserID, "User ID")
	if err != nil {
		return nil, err
	}
	task, _, err := s.authorizeTask(ctx, taskID, actingUserID)
	if err != nil {
		return nil, err
	}

	var keys []string
	deleted := map[string]bool{}
	if err := s.deleteCascade(ctx, task, deleted, &keys); err != nil {
		// Purge what was already removed before reporting.
		_ = s.invalidate(ctx, keys...)
		return nil, err
	}
	if err := s.invalidate(ctx, keys...); err != nil {
		return nil, err
	}
	logging.Logger.Infof("Event ID: TASK_DELETED, Description: Task %s deleted with %d tasks in its subtree", task.ID, len(deleted))
	return task, nil
}

func (s *TaskService) deleteCascade(ctx context.Context, task *models.Task, deleted map[string]bool, keys *[]string) error {
	if deleted[task.ID] {
		return nil
	}
	deleted[task.ID] = true
	*keys = append(*keys, cache.TaskKey(task.ID), cache.TeamKey(task.TeamID), cache.ProjectKey(task.Root()))

	// (a) unassign from every user that still references the task
	assignees, err := s.store.Users.Find(ctx, store.Eq(models.UserFieldAssignedTasks, task.ID))
	if err != nil {
		return storeErr(err, "find assignees of %s", task.ID)
	}
	for _, id := range task.AssignedUserIDs {
		*keys = append(*keys, cache.UserKey(id))
	}
	for i := range assignees {
		*keys = append(*keys, cache.UserKey(assignees[i].ID))
	}
	if len(assignees) > 0 {
		if _, err := s.store.Users.UpdateMany(ctx, store.Eq(models.UserFieldAssignedTasks, task.ID),
			store.NewUpdate().PullValue(models.UserFieldAssignedTasks, task.ID)); err != nil {
			return storeErr(err, "unassign task %s", task.ID)
		}
	}

	// (b) unregister the project
	if task.IsRoot() {
		if _, err := s.store.Teams.UpdateOne(ctx, store.ByID(task.TeamID),
			store.NewUpdate().PullValue(models.TeamFieldProjectIDs, task.ID)); err != nil {
			return storeErr(err, "unregister project %s", task.ID)
		}
		*keys = append(*keys, cache.ProjectKey(task.ID))
	}

	// (c) children first
	children, err := s.childrenOf(ctx, task)
	if err != nil {
		return err
	}
	for i := range children {
		if err := s.deleteCascade(ctx, &children[i], deleted, keys); err != nil {
			return err
		}
	}

	// (d) unlink from the parent
	if !task.IsRoot() {
		if _, err := s.store.Tasks.UpdateOne(ctx, store.ByID(task.ParentID),
			store.NewUpdate().PullValue(models.TaskFieldSubtaskIDs, task.ID)); err != nil {
			return storeErr(err, "unlink task %s from %s", task.ID, task.ParentID)
		}
		*keys = append(*keys, cache.TaskKey(task.ParentID))
	}

	// (f) the record itself
	if _, err := s.store.Tasks.DeleteOne(ctx, store.ByID(task.ID)); err != nil {
		return storeErr(err, "delete task %s", task.ID)
	}
	return nil
}

// childrenOf returns the tasks linked from subtaskIDs plus any task whose
// parentID points here, so half-linked children are not orphaned.
func (s *TaskService) childrenOf(ctx context.Context, task *models.Task) ([]models.Task, error) {
	linked, err := s.store.Tasks.Find(ctx, store.ByIDs(task.SubtaskIDs))
	if err != nil {
		return nil, storeErr(err, "find subtasks of %s", task.ID)
	}
	pointing, err := s.store.Tasks.Find(ctx, store.Eq(models.TaskFieldParentID, task.ID))
	if err != nil {
		return nil, storeErr(err, "find children of %s", task.ID)
	}
	seen := map[string]bool{}
	out := make([]models.Task, 0, len(linked)+len(pointing))
	for _, list := range [][]models.Task{linked, pointing} {
		for i := range list {
			if seen[list[i].ID] {
				continue
			}
			seen[list[i].ID] = true
			out = append(out, list[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
