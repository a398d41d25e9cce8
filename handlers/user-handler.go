package handlers

import (
	"net/http"

	"trello-project/microservices/taskgraph-service/apperrors"
	"trello-project/microservices/taskgraph-service/services"

	"github.com/gorilla/mux"
)

type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

type createUserRequest struct {
	AuthID    string `json:"authId"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type modifyUserRequest struct {
	Username  *string `json:"username"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.service.CreateUser(r.Context(), services.CreateUserInput{
		AuthID:    req.AuthID,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) GetUserByAuthID(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUserByAuthID(r.Context(), mux.Vars(r)["authID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// selfOnly rejects requests where the acting user is not the user in the path.
func selfOnly(r *http.Request) (string, error) {
	userID := mux.Vars(r)["userID"]
	if actingUser(r) != userID {
		return "", apperrors.PermissionDenied("users can only change their own account")
	}
	return userID, nil
}

func (h *UserHandler) ModifyUser(w http.ResponseWriter, r *http.Request) {
	userID, err := selfOnly(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req modifyUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.service.ModifyUser(r.Context(), services.ModifyUserInput{
		UserID:    userID,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := selfOnly(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.service.DeleteUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) GetTeamsForUser(w http.ResponseWriter, r *http.Request) {
	teams, err := h.service.GetTeamsForUser(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (h *UserHandler) GetAssignedTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.GetAssignedTasksForUser(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *UserHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := selfOnly(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	notes, err := h.service.ListNotifications(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}
