package health

import "github.com/hilthontt/ticketchat/internal/application/chat"

// healthResponse represents the health status of the service
type healthResponse struct {
	Status    string     `json:"status"`    // ok or unhealthy
	Timestamp string     `json:"timestamp"` // RFC3339
	Uptime    string     `json:"uptime"`
	Chat      chat.Stats `json:"chat"`
}
