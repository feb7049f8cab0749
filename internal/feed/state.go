// Package feed holds the client-side feed state: a paginated post list with
// a guarded load state machine, and optimistic like/dislike updates with
// rollback on failure.
package feed

// State is the load state of a Controller. Exactly one is active at a time.
type State int

const (
	StateIdle State = iota
	StateInitialLoading
	StateRefreshing
	StateLoadingMore
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitialLoading:
		return "initial_loading"
	case StateRefreshing:
		return "refreshing"
	case StateLoadingMore:
		return "loading_more"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Loading reports whether a feed request is in flight.
func (s State) Loading() bool {
	return s == StateInitialLoading || s == StateRefreshing || s == StateLoadingMore
}
