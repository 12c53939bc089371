package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// handleSystemStatus reports database reachability and uptime
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	if err := s.db.Conn().Ping(); err != nil {
		dbStatus = "unreachable"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"database":       dbStatus,
		"database_path":  s.db.Path(),
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}
