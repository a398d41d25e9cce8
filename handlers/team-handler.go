package handlers

import (
	"net/http"

	"trello-project/microservices/taskgraph-service/services"

	"github.com/gorilla/mux"
)

type TeamHandler struct {
	service *services.TeamService
}

func NewTeamHandler(service *services.TeamService) *TeamHandler {
	return &TeamHandler{service: service}
}

type createTeamRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type modifyTeamRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type memberRequest struct {
	UserID string `json:"userId"`
}

func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	team, err := h.service.CreateTeam(r.Context(), services.CreateTeamInput{
		OwnerID:     actingUser(r),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.service.GetTeam(r.Context(), mux.Vars(r)["teamID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (h *TeamHandler) ModifyTeam(w http.ResponseWriter, r *http.Request) {
	var req modifyTeamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	team, err := h.service.ModifyTeam(r.Context(), services.ModifyTeamInput{
		TeamID:       mux.Vars(r)["teamID"],
		ActingUserID: actingUser(r),
		Name:         req.Name,
		Description:  req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (h *TeamHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.service.DeleteTeam(r.Context(), mux.Vars(r)["teamID"], actingUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (h *TeamHandler) GetMembers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.GetTeamMembers(r.Context(), mux.Vars(r)["teamID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *TeamHandler) GetAdmins(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.GetTeamAdmins(r.Context(), mux.Vars(r)["teamID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *TeamHandler) GetNonAdmins(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.GetTeamNonAdmins(r.Context(), mux.Vars(r)["teamID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *TeamHandler) GetProjects(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.GetTeamProjects(r.Context(), mux.Vars(r)["teamID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// membership builds the input for routes that name the target in the body.
func membership(r *http.Request) (services.MembershipInput, error) {
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		return services.MembershipInput{}, err
	}
	return services.MembershipInput{
		TeamID:       mux.Vars(r)["teamID"],
		ActingUserID: actingUser(r),
		TargetUserID: req.UserID,
	}, nil
}

func (h *TeamHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	in, err := membership(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	team, err := h.service.AddUser(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (h *TeamHandler) PromoteToAdmin(w http.ResponseWriter, r *http.Request) {
	in, err := membership(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	team, err := h.service.PromoteToAdmin(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// RemoveUser answers 204 when removing the last member deleted the team.
func (h *TeamHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	team, err := h.service.RemoveUser(r.Context(), services.MembershipInput{
		TeamID:       vars["teamID"],
		ActingUserID: actingUser(r),
		TargetUserID: vars["userID"],
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if team == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, team)
}
