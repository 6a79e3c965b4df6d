package server

import "github.com/harvestlabs/grantscout/internal/research"

// HTTPError is the JSON error body rendered by the error handler
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest is the signup payload
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest is the login payload
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a JWT for Bearer flows
type TokenResponse struct {
	Token string `json:"token"`
}

// StreamFrame is one SSE data frame on the research stream. Exactly one of
// Progress, Done/Report or Error is set per frame.
type StreamFrame struct {
	Progress string           `json:"progress,omitempty"`
	Done     bool             `json:"done,omitempty"`
	Report   *research.Report `json:"report,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// MonitorRequest creates a scheduled re-research of a saved farm query
type MonitorRequest struct {
	Query    string `json:"query"`
	FarmType string `json:"farmType,omitempty"`
	Location string `json:"location,omitempty"`
	CronExpr string `json:"cronExpr"`
	Enabled  *bool  `json:"enabled,omitempty"`
}
