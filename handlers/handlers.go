// Package handlers exposes the services over HTTP with gorilla/mux.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"trello-project/microservices/taskgraph-service/apperrors"
	"trello-project/microservices/taskgraph-service/logging"
	"trello-project/microservices/taskgraph-service/services"

	"github.com/gorilla/mux"
)

// UserIDHeader carries the id of the user performing the request. Identity
// is established upstream; this service trusts the header.
const UserIDHeader = "User-ID"

// NewRouter registers every route on a fresh router wrapped in CORS and
// request logging.
func NewRouter(svc *services.Services, corsOrigin string) http.Handler {
	users := NewUserHandler(svc.Users)
	teams := NewTeamHandler(svc.Teams)
	tasks := NewTaskHandler(svc.Tasks)

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/users", users.CreateUser).Methods(http.MethodPost)
	r.HandleFunc("/api/users", users.ListUsers).Methods(http.MethodGet)
	r.HandleFunc("/api/users/auth/{authID}", users.GetUserByAuthID).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userID}", users.GetUser).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userID}", users.ModifyUser).Methods(http.MethodPatch)
	r.HandleFunc("/api/users/{userID}", users.DeleteUser).Methods(http.MethodDelete)
	r.HandleFunc("/api/users/{userID}/teams", users.GetTeamsForUser).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userID}/tasks", users.GetAssignedTasks).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{userID}/notifications", users.ListNotifications).Methods(http.MethodGet)

	r.HandleFunc("/api/teams", teams.CreateTeam).Methods(http.MethodPost)
	r.HandleFunc("/api/teams/{teamID}", teams.GetTeam).Methods(http.MethodGet)
	r.HandleFunc("/api/teams/{teamID}", teams.ModifyTeam).Methods(http.MethodPatch)
	r.HandleFunc("/api/teams/{teamID}", teams.DeleteTeam).Methods(http.MethodDelete)
	r.HandleFunc("/api/teams/{teamID}/members", teams.GetMembers).Methods(http.MethodGet)
	r.HandleFunc("/api/teams/{teamID}/members", teams.AddUser).Methods(http.MethodPost)
	r.HandleFunc("/api/teams/{teamID}/members/{userID}", teams.RemoveUser).Methods(http.MethodDelete)
	r.HandleFunc("/api/teams/{teamID}/non-admins", teams.GetNonAdmins).Methods(http.MethodGet)
	r.HandleFunc("/api/teams/{teamID}/admins", teams.GetAdmins).Methods(http.MethodGet)
	r.HandleFunc("/api/teams/{teamID}/admins", teams.PromoteToAdmin).Methods(http.MethodPost)
	r.HandleFunc("/api/teams/{teamID}/projects", teams.GetProjects).Methods(http.MethodGet)

	r.HandleFunc("/api/tasks", tasks.CreateTask).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{taskID}", tasks.GetTask).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{taskID}", tasks.ModifyTask).Methods(http.MethodPatch)
	r.HandleFunc("/api/tasks/{taskID}", tasks.DeleteTask).Methods(http.MethodDelete)
	r.HandleFunc("/api/tasks/{taskID}/assignees", tasks.GetAssignedUsers).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{taskID}/assignees", tasks.AssignUser).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{taskID}/assignees/{userID}", tasks.UnassignUser).Methods(http.MethodDelete)
	r.HandleFunc("/api/tasks/{taskID}/subtasks", tasks.GetSubtasks).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{taskID}/parent", tasks.GetParent).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{taskID}/root", tasks.GetRoot).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{taskID}/progress", tasks.GetProgress).Methods(http.MethodGet)
	r.HandleFunc("/api/projects/{rootID}/tree", tasks.GetProjectTree).Methods(http.MethodGet)

	return enableCORS(corsOrigin, logRequests(r))
}

func enableCORS(origin string, next http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+UserIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.Logger.Debugf("Event ID: HTTP_REQUEST, Description: %s %s -> %d in %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func actingUser(r *http.Request) string {
	return r.Header.Get(UserIDHeader)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.InvalidArgument("invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger.Warnf("Event ID: RESPONSE_ENCODE_FAILED, Description: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func statusOf(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindInvalidArgument:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindPermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	kind := apperrors.KindOf(err)
	if status == http.StatusInternalServerError {
		logging.Logger.Errorf("Event ID: REQUEST_FAILED, Description: %s %s: %v", r.Method, r.URL.Path, err)
	} else {
		logging.Logger.Infof("Event ID: REQUEST_REJECTED, Description: %s %s: %v", r.Method, r.URL.Path, err)
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind.String()})
}
