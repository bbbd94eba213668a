package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const deadJobsDefaultLimit = 50

// ListDeadJobs returns jobs that exhausted their retry budget. The last
// error is included so an operator can decide whether a requeue makes sense.
func (s *Server) ListDeadJobs(c *gin.Context) {
	orgID, err := orgFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	limit := deadJobsDefaultLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	jobs, err := s.jobSvc.ListDead(c.Request.Context(), orgID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// RequeueJob puts a dead job back in the queue with a fresh attempt budget.
func (s *Server) RequeueJob(c *gin.Context) {
	orgID, err := orgFromRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	jobID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	job, err := s.jobSvc.Requeue(c.Request.Context(), orgID, jobID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}
