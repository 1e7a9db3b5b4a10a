package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/IshaanNene/commentgoat/internal/config"
	"github.com/IshaanNene/commentgoat/internal/engine"
	"github.com/IshaanNene/commentgoat/internal/settings"
	"github.com/IshaanNene/commentgoat/internal/types"
)

// Job status values.
const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// RunRequest is the body of POST /api/v1/runs.
type RunRequest struct {
	URL string `json:"url" binding:"required"`
	// Policy is one of count, days or all; Value picks 1000|10000 for count
	// and 1|7 for days.
	Policy string `json:"policy" binding:"required"`
	Value  int    `json:"value"`
	Output string `json:"output"`
}

// Job tracks one run started over HTTP.
type Job struct {
	ID         string    `json:"id"`
	Origin     string    `json:"origin"`
	URL        string    `json:"url"`
	Policy     string    `json:"policy"`
	Trigger    string    `json:"trigger"`
	Output     string    `json:"output"`
	Status     string    `json:"status"`
	Pages      int       `json:"pages"`
	Records    int       `json:"records"`
	Skipped    int       `json:"skipped"`
	Percent    float64   `json:"percent"`
	ETA        string    `json:"eta,omitempty"`
	LastURL    string    `json:"last_url,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

func outputName(req RunRequest, id string) string {
	if req.Output != "" {
		return filepath.Base(req.Output)
	}
	return fmt.Sprintf("comments-%s-%s.txt", strings.ToLower(req.Policy), id[:8])
}

func (s *Server) handleCreateRun(c *gin.Context) {
	if s.runner == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody("runner not attached"))
		return
	}

	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	origin, err := config.OriginOf(req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	trigger, policy, err := settings.ResolveTrigger(req.Policy, req.Value, s.perPage)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if trigger == settings.TriggerPreload20 || trigger == settings.TriggerPreload100 {
		c.JSON(http.StatusBadRequest, errorBody("preload runs are only available from the CLI"))
		return
	}
	if err := s.flags.CheckTrigger(c.Request.Context(), trigger); err != nil {
		if errors.Is(err, types.ErrTriggerDisabled) {
			c.JSON(http.StatusForbidden, errorBody(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
		return
	}

	s.jobsMu.Lock()
	if _, busy := s.byOrigin[origin]; busy || s.runner.Busy(origin) {
		s.jobsMu.Unlock()
		c.JSON(http.StatusConflict, errorBody(types.ErrRunInProgress.Error()))
		return
	}

	id := uuid.New().String()
	output := outputName(req, id)
	sink, err := s.sinks(output)
	if err != nil {
		s.jobsMu.Unlock()
		c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
		return
	}

	job := &Job{
		ID:        id,
		Origin:    origin,
		URL:       req.URL,
		Policy:    policy.String(),
		Trigger:   trigger.Key(),
		Output:    output,
		Status:    JobRunning,
		StartedAt: time.Now(),
	}
	s.jobs[id] = job
	s.byOrigin[origin] = id
	s.wg.Add(1)
	s.jobsMu.Unlock()

	s.logger.Info("run accepted", "id", id, "origin", origin, "policy", policy.String())
	go s.execute(job, policy, sink)

	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": JobRunning})
}

func (s *Server) execute(job *Job, policy types.Policy, sink engine.Sink) {
	defer s.wg.Done()

	state, err := s.runner.Run(s.baseCtx, job.Origin, policy, job.URL, sink)
	if state == nil {
		// Rejected before the runner took ownership of the sink.
		_ = sink.Close()
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if state != nil {
		job.Pages = state.Pages
		job.Records = state.Records
		job.Skipped = state.Skipped
		job.LastURL = state.LastURL
	}
	job.FinishedAt = time.Now()
	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
	} else {
		job.Status = JobCompleted
		job.Percent = 100
		job.ETA = ""
	}
	if s.byOrigin[job.Origin] == job.ID {
		delete(s.byOrigin, job.Origin)
	}
}

// Progress updates the job running for p.Origin.
func (s *Server) Progress(p engine.Progress) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job, ok := s.jobs[s.byOrigin[p.Origin]]
	if !ok {
		return
	}
	job.Pages = p.Pages
	job.Records = p.Records
	job.Percent = p.Percent
	job.ETA = p.ETA.Round(time.Second).String()
}

func (s *Server) handleGetRun(c *gin.Context) {
	s.jobsMu.RLock()
	job, ok := s.jobs[c.Param("id")]
	var snapshot Job
	if ok {
		snapshot = *job
	}
	s.jobsMu.RUnlock()

	if !ok {
		c.JSON(http.StatusNotFound, errorBody("run not found"))
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleListRuns(c *gin.Context) {
	s.jobsMu.RLock()
	list := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		list = append(list, *job)
	}
	s.jobsMu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].StartedAt.Before(list[j].StartedAt) })
	c.JSON(http.StatusOK, gin.H{"runs": list, "count": len(list)})
}
