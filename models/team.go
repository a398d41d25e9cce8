package models

// Team documents live in the teams collection. AdminIDs is always a subset of
// UserIDs; ProjectIDs lists the team's root tasks.
type Team struct {
	ID          string   `bson:"_id" json:"id"`
	Name        string   `bson:"name" json:"name"`
	Description string   `bson:"description,omitempty" json:"description,omitempty"`
	AdminIDs    []string `bson:"adminIds" json:"adminIds"`
	UserIDs     []string `bson:"userIds" json:"userIds"`
	ProjectIDs  []string `bson:"projectIDs" json:"projectIds"`
}

const (
	TeamFieldID          = "_id"
	TeamFieldName        = "name"
	TeamFieldDescription = "description"
	TeamFieldAdminIDs    = "adminIds"
	TeamFieldUserIDs     = "userIds"
	TeamFieldProjectIDs  = "projectIDs"
)

func (t *Team) IsAdmin(userID string) bool {
	return contains(t.AdminIDs, userID)
}

func (t *Team) IsMember(userID string) bool {
	return contains(t.UserIDs, userID)
}

// NonAdminIDs returns members that are not admins, in membership order.
func (t *Team) NonAdminIDs() []string {
	out := []string{}
	for _, id := range t.UserIDs {
		if !t.IsAdmin(id) {
			out = append(out, id)
		}
	}
	return out
}
