package domain

// FallbackBotResponse is shown in the chat when the backend cannot answer.
const FallbackBotResponse = "I'm having trouble connecting right now. Please try again in a moment."
