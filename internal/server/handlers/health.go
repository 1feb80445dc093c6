package handlers

import "context"

// HealthRequest is the request type for health check (empty).
type HealthRequest struct{}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status string `json:"status"`
	// Tables is the number of tables currently cached.
	Tables int `json:"tables"`
}

// Health reports that the server is up and how many tables it holds. It
// does not query the database.
func (h *TableHandler) Health(ctx context.Context, req HealthRequest) (*HealthResponse, error) {
	return &HealthResponse{Status: "ok", Tables: len(h.store.Loaded())}, nil
}
