package transport

// LoginRequest is the sign-in payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the sign-up payload.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AssessmentRequest carries questionnaire answers.
type AssessmentRequest struct {
	UserID  string         `json:"userId,omitempty"`
	Answers map[string]any `json:"answers"`
}

// ChatRequest is a single chat turn.
type ChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId,omitempty"`
}

// ProfileUpdate holds editable profile fields. Empty fields are not sent.
type ProfileUpdate struct {
	Name   string
	Age    string
	Gender string
	Bio    string
	// Image is optional; when set it is uploaded as the profileImage part.
	Image *Attachment
}

// Fields returns the non-empty form fields.
func (p ProfileUpdate) Fields() map[string]string {
	fields := make(map[string]string)
	for k, v := range map[string]string{
		"name":   p.Name,
		"age":    p.Age,
		"gender": p.Gender,
		"bio":    p.Bio,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}
