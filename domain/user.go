package domain

import "encoding/json"

// Onboarding steps derived from the completion flags.
const (
	StepProfile    = "profile"
	StepAssessment = "assessment"
	StepHome       = "home"
)

// User is the session record for the signed-in user.
type User struct {
	ID                   string `json:"id"`
	Email                string `json:"email"`
	Name                 string `json:"name"`
	IsProfileComplete    bool   `json:"isProfileComplete"`
	IsAssessmentComplete bool   `json:"isAssessmentComplete"`
	ProfileImage         string `json:"profileImage,omitempty"`
	Token                string `json:"token,omitempty"`
}

func (u *User) IsSignedIn() bool {
	return u != nil && u.ID != ""
}

// NextStep reports which onboarding screen comes next for this user.
func (u *User) NextStep() string {
	switch {
	case u == nil:
		return ""
	case !u.IsProfileComplete:
		return StepProfile
	case !u.IsAssessmentComplete:
		return StepAssessment
	default:
		return StepHome
	}
}

// Clone returns a copy that callers may mutate freely.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// UnmarshalJSON accepts the Mongo-style "_id" key some backend responses use.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var aux struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*u = User(aux.plain)
	if u.ID == "" {
		u.ID = aux.MongoID
	}
	return nil
}
