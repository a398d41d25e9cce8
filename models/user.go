package models

// User documents live in the users collection. Teams and AssignedTasks are
// back-references maintained by the team and task services.
type User struct {
	ID            string   `bson:"_id" json:"id"`
	AuthID        string   `bson:"authID" json:"authId"`
	Username      string   `bson:"username" json:"username"`
	FirstName     string   `bson:"firstName" json:"firstName"`
	LastName      string   `bson:"lastName" json:"lastName"`
	Teams         []string `bson:"teams" json:"teams"`
	AssignedTasks []string `bson:"assignedTasks" json:"assignedTasks"`
}

const (
	UserFieldID            = "_id"
	UserFieldAuthID        = "authID"
	UserFieldUsername      = "username"
	UserFieldFirstName     = "firstName"
	UserFieldLastName      = "lastName"
	UserFieldTeams         = "teams"
	UserFieldAssignedTasks = "assignedTasks"
)

func (u *User) IsAssigned(taskID string) bool {
	return contains(u.AssignedTasks, taskID)
}
