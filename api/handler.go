package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/lithammer/shortuuid/v4"

	"clipforge/config"
	"clipforge/logging"
	"clipforge/state"
	"clipforge/task"
)

var log = logging.GetLogger()

type Handler struct {
	orc   *task.Orchestrator
	store state.Store
	cfg   *config.Config
}

func NewHandler(orc *task.Orchestrator, store state.Store, cfg *config.Config) *Handler {
	return &Handler{orc: orc, store: store, cfg: cfg}
}

type CreateTaskRequest struct {
	task.VideoParams
	TaskID string `json:"task_id"`
	StopAt string `json:"stop_at"`
}

// handleCreateTask accepts a generation request, records it as queued, and
// runs the pipeline in the background.
func (h *Handler) handleCreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Subject == "" && req.Script == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video_subject or video_script is required"})
		return
	}

	taskID := req.TaskID
	if taskID == "" {
		taskID = shortuuid.New()
	}

	stopAt := task.Stage(req.StopAt)
	if !task.ValidStage(stopAt) {
		stopAt = task.StageVideo
	}

	if err := h.store.Update(taskID, task.StateQueued, 0, nil); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task", "details": err.Error()})
		return
	}

	params := req.VideoParams
	go func() {
		if _, err := h.orc.Run(context.Background(), taskID, &params, stopAt); err != nil {
			log.Errorf("task %s: %v", taskID, err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID})
}

// handleGetTask returns the stored record of one task.
func (h *Handler) handleGetTask(c *gin.Context) {
	taskID := c.Param("taskId")

	rec, err := h.store.Get(taskID)
	if errors.Is(err, state.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "State store unavailable", "details": err.Error()})
		return
	}

	rec["task_id"] = taskID
	c.JSON(http.StatusOK, rec)
}

// handleDeleteTask removes a task's record and its working directory.
func (h *Handler) handleDeleteTask(c *gin.Context) {
	taskID := c.Param("taskId")

	if _, err := h.store.Get(taskID); errors.Is(err, state.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	if err := h.store.Delete(taskID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete task", "details": err.Error()})
		return
	}
	if err := os.RemoveAll(filepath.Join(h.cfg.TaskDir, taskID)); err != nil {
		log.Warnf("could not remove task dir for %s: %v", taskID, err)
	}

	c.Status(http.StatusNoContent)
}

// handleGetFile serves one artifact from a task's working directory.
func (h *Handler) handleGetFile(c *gin.Context) {
	taskID := c.Param("taskId")
	// Base strips any path traversal attempt.
	filename := filepath.Base(c.Param("filename"))

	path := filepath.Join(h.cfg.TaskDir, taskID, filename)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	c.File(path)
}
