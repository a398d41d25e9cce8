package models

// Task documents live in the tasks collection. A task without a parent is its
// own root and is registered on its team as a project.
type Task struct {
	ID              string   `bson:"_id" json:"id"`
	Name            string   `bson:"name" json:"name"`
	Description     string   `bson:"description,omitempty" json:"description,omitempty"`
	DueDate         string   `bson:"dueDate" json:"dueDate"`
	Priority        int      `bson:"priority" json:"priority"`
	TeamID          string   `bson:"teamID" json:"teamId"`
	ParentID        string   `bson:"parentID,omitempty" json:"parentId,omitempty"`
	RootID          string   `bson:"rootID" json:"rootId"`
	SubtaskIDs      []string `bson:"subtaskIDs" json:"subtaskIds"`
	AssignedUserIDs []string `bson:"assignedUserIDs" json:"assignedUserIds"`
	Completed       bool     `bson:"completed" json:"completed"`
}

const (
	TaskFieldID              = "_id"
	TaskFieldName            = "name"
	TaskFieldDescription     = "description"
	TaskFieldDueDate         = "dueDate"
	TaskFieldPriority        = "priority"
	TaskFieldTeamID          = "teamID"
	TaskFieldParentID        = "parentID"
	TaskFieldRootID          = "rootID"
	TaskFieldSubtaskIDs      = "subtaskIDs"
	TaskFieldAssignedUserIDs = "assignedUserIDs"
	TaskFieldCompleted       = "completed"
)

func (t *Task) IsRoot() bool {
	return t.ParentID == ""
}

func (t *Task) IsLeaf() bool {
	return len(t.SubtaskIDs) == 0
}

func (t *Task) IsAssigned(userID string) bool {
	return contains(t.AssignedUserIDs, userID)
}

// Root returns the id of the task's project root, falling back to the task
// itself for roots written without one.
func (t *Task) Root() string {
	if t.RootID == "" {
		return t.ID
	}
	return t.RootID
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
