package transport

// Backend paths, relative to the versioned base URL.
const (
	PathSignIn       = "/auth/signin"
	PathSignUp       = "/auth/signup"
	PathAssessment   = "/assessment/submit"
	PathAudioAnalyze = "/audio/analyze"
	PathProfileEdit  = "/profile/edit"
	PathUserProfile  = "/user/profile"
	PathChatSend     = "/chat/send"
	PathHealth       = "/health"
)
