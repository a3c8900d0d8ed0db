package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status      string                     `json:"status" doc:"Overall status: healthy or unhealthy"`
	Components  map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
	Restaurants int                        `json:"restaurants" doc:"Number of restaurants served"`
	Uptime      string                     `json:"uptime" doc:"Time since the server started"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	overall := "healthy"
	db := s.checkDatabase(ctx)
	if db.Status != "healthy" {
		overall = "unhealthy"
	}

	// Best effort.
	count, _ := s.store.CountRestaurants(ctx)

	return &HealthOutput{Body: HealthResponse{
		Status:      overall,
		Components:  map[string]ComponentHealth{"database": db},
		Restaurants: count,
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
	}}, nil
}

func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("database health check failed", "error", err)
		return ComponentHealth{Status: "unhealthy", Message: err.Error()}
	}
	return ComponentHealth{Status: "healthy", Latency: time.Since(start).String()}
}
