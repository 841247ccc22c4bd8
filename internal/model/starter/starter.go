package starter

// Starter is a canned prompt the widget offers before the first message.
type Starter struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Icon    string `json:"icon,omitempty"`
}

// Seed provides the default conversation starters.
func Seed() []Starter {
	return []Starter{
		{
			ID:      "capabilities",
			Title:   "What can you do?",
			Message: "What kinds of questions can you help me with?",
			Icon:    "💡",
		},
		{
			ID:      "explain",
			Title:   "Explain a concept",
			Message: "Can you explain how webhooks work in simple terms?",
			Icon:    "📚",
		},
		{
			ID:      "ideas",
			Title:   "Brainstorm ideas",
			Message: "Help me brainstorm ideas for automating my daily workflow.",
			Icon:    "🧠",
		},
		{
			ID:      "write",
			Title:   "Help me write",
			Message: "Help me write a short, friendly welcome email for new customers.",
			Icon:    "✍️",
		},
	}
}
