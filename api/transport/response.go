package transport

import (
	"encoding/json"
	"io"

	"github.com/fastygo/companion/domain"
)

// Attachment is a file to upload.
type Attachment struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// AuthResponse is returned by sign-in and sign-up. Token is optional.
type AuthResponse struct {
	Message string       `json:"message,omitempty"`
	Token   string       `json:"token,omitempty"`
	User    *domain.User `json:"user"`
}

// ProfileResponse is returned by profile reads and edits.
type ProfileResponse struct {
	Message string       `json:"message,omitempty"`
	User    *domain.User `json:"user"`
}

// ChatResult is what the chat service hands to the UI. It never carries a Go error.
type ChatResult struct {
	Success     bool   `json:"success"`
	BotResponse string `json:"botResponse"`
	Error       string `json:"error,omitempty"`
}

// HealthStatus is the decoded health check body.
type HealthStatus struct {
	Status  string          `json:"status"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Healthy reports whether the backend declared itself healthy.
func (h HealthStatus) Healthy() bool {
	switch h.Status {
	case "ok", "healthy", "up", "success":
		return true
	}
	return false
}

// ChatReply is the backend chat body. Backends differ on the field name.
type ChatReply struct {
	Response    string `json:"response"`
	BotResponse string `json:"botResponse"`
	Reply       string `json:"reply"`
}

// Text returns the first non-empty reply field.
func (r ChatReply) Text() string {
	for _, s := range []string{r.BotResponse, r.Response, r.Reply} {
		if s != "" {
			return s
		}
	}
	return ""
}

// DecodeUser reads a user from either an envelope ({"user": {...}, "token": "..."})
// or a bare user object. The token is empty when the backend issued none.
func DecodeUser(raw json.RawMessage) (*domain.User, string, error) {
	var env AuthResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, "", err
	}
	if env.User.IsSignedIn() {
		return env.User, env.Token, nil
	}
	var bare domain.User
	if err := json.Unmarshal(raw, &bare); err != nil {
		return nil, "", err
	}
	if !bare.IsSignedIn() {
		return nil, "", domain.NewError(domain.ErrCodeInvalid, "response did not include a user")
	}
	return &bare, env.Token, nil
}
