package ports

import "context"

// Notifier delivers human-readable status messages. Calls are fire-and-forget:
// failure or latency must never block a trading cycle.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// CommentaryRequest carries the latest action plus market context for the
// free-text commentary generator.
type CommentaryRequest struct {
	Action    string
	Symbol    string
	Price     float64
	Reasoning []string
	Mode      string
	Zone      string
}

// Commentator produces best-effort prose about the latest action. Like
// Notifier, it is decoupled from the decision and execution path.
type Commentator interface {
	Comment(ctx context.Context, req CommentaryRequest) (string, error)
}
