package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status string            `json:"status"`
	Time   string            `json:"time"`
	Checks map[string]string `json:"checks"`
}

// status handles GET /health
func (s *Server) status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	if s.health == nil {
		checks["database"] = "not configured"
	} else if err := s.health.Ping(c.Request.Context()); err != nil {
		checks["database"] = "error: " + err.Error()
		status = "unhealthy"
	} else {
		checks["database"] = "ok"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, healthResponse{
		Status: status,
		Time:   time.Now().Format(time.RFC3339),
		Checks: checks,
	})
}
