package variables

import "context"

// SessionAPI queries the analysis service's conversation variables,
// scoped by the session identifier carried in a response. The second
// return reports whether the variable exists in the session.
type SessionAPI interface {
	ConversationVariable(ctx context.Context, conversationID, name string) (any, bool, error)
}
