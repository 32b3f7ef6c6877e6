package domain

// Assessment is a completed questionnaire keyed by question id.
type Assessment struct {
	Answers map[string]any
}

func (a *Assessment) Validate() error {
	if a == nil || len(a.Answers) == 0 {
		return NewError(ErrCodeInvalid, "assessment has no answers")
	}
	return nil
}
