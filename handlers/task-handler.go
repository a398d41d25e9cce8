package handlers

import (
	"net/http"

	"trello-project/microservices/taskgraph-service/services"
	"trello-project/microservices/taskgraph-service/validation"

	"github.com/gorilla/mux"
)

type TaskHandler struct {
	service *services.TaskService
}

func NewTaskHandler(service *services.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

type createTaskRequest struct {
	TeamID      string  `json:"teamId"`
	Name        string  `json:"name"`
	DueDate     string  `json:"dueDate"`
	Priority    int     `json:"priority"`
	ParentID    *string `json:"parentId"`
	Description *string `json:"description"`
}

// modifyTaskRequest: "parentId": "" detaches the task into a new project.
type modifyTaskRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	DueDate     *string `json:"dueDate"`
	Priority    *int    `json:"priority"`
	Completed   *bool   `json:"completed"`
	ParentID    *string `json:"parentId"`
}

type progressResponse struct {
	TaskID   string  `json:"taskId"`
	Progress float64 `json:"progress"`
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := h.service.CreateTask(r.Context(), services.CreateTaskInput{
		ActingUserID: actingUser(r),
		TeamID:       req.TeamID,
		Name:         req.Name,
		DueDate:      req.DueDate,
		Priority:     req.Priority,
		ParentID:     req.ParentID,
		Description:  req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.GetTask(r.Context(), mux.Vars(r)["taskID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) ModifyTask(w http.ResponseWriter, r *http.Request) {
	var req modifyTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := h.service.ModifyTask(r.Context(), services.ModifyTaskInput{
		TaskID:       mux.Vars(r)["taskID"],
		ActingUserID: actingUser(r),
		Name:         req.Name,
		Description:  req.Description,
		DueDate:      req.DueDate,
		Priority:     req.Priority,
		Completed:    req.Completed,
		ParentID:     req.ParentID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.DeleteTask(r.Context(), mux.Vars(r)["taskID"], actingUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) GetAssignedUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.GetAssignedUsers(r.Context(), mux.Vars(r)["taskID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *TaskHandler) AssignUser(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := h.service.AssignUser(r.Context(), services.AssignmentInput{
		TaskID:       mux.Vars(r)["taskID"],
		ActingUserID: actingUser(r),
		TargetUserID: req.UserID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) UnassignUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	task, err := h.service.UnassignUser(r.Context(), services.AssignmentInput{
		TaskID:       vars["taskID"],
		ActingUserID: actingUser(r),
		TargetUserID: vars["userID"],
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) GetSubtasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.GetSubtasks(r.Context(), mux.Vars(r)["taskID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetParent answers 204 for a project root.
func (h *TaskHandler) GetParent(w http.ResponseWriter, r *http.Request) {
	parent, err := h.service.GetParent(r.Context(), mux.Vars(r)["taskID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if parent == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, parent)
}

func (h *TaskHandler) GetRoot(w http.ResponseWriter, r *http.Request) {
	root, err := h.service.GetRoot(r.Context(), mux.Vars(r)["taskID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, root)
}

func (h *TaskHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	taskID, err := validation.CheckUUID(mux.Vars(r)["taskID"], "Task ID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	progress, err := h.service.GetProgress(r.Context(), taskID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{TaskID: taskID, Progress: progress})
}

func (h *TaskHandler) GetProjectTree(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.GetFullProjectTree(r.Context(), mux.Vars(r)["rootID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}
