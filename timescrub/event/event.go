// Package event defines what the engine exposes to its host UI: navigation
// intents, the current selection, the active diff request and artifact
// readiness. The routing layer acts on intents; the engine never performs
// page transitions itself.
package event

// Intent asks the routing layer to show the snapshot with CompactKey.
type Intent struct {
	URL        string `json:"url"`
	Index      int    `json:"index"`
	CompactKey string `json:"compact_key"`
	Timestamp  string `json:"timestamp"`
}

// Selection mirrors the engine's selection state after every change.
type Selection struct {
	URL             string `json:"url"`
	Current         string `json:"current"` // compact key supplied by the route
	Length          int    `json:"length"`
	SelectedIndex   int    `json:"selected_index"`
	DiffTargetIndex int    `json:"diff_target_index"`
	CanPrev         bool   `json:"can_prev"`
	CanNext         bool   `json:"can_next"`
	Bookmarked      bool   `json:"bookmarked"`
	Comparing       bool   `json:"comparing"`
	Mode            string `json:"mode"`
	Status          string `json:"status"`
	Loading         bool   `json:"loading"`
	Error           string `json:"error,omitempty"`
}

// Request is the active diff request. From and To hold canonical
// timestamps; the keys hold their compact forms.
type Request struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	From       string `json:"from"`
	To         string `json:"to"`
	FromKey    string `json:"from_key"`
	ToKey      string `json:"to_key"`
	Mode       string `json:"mode"`
	Generation uint64 `json:"generation"`
}

// Artifact reports that the active request's render artifact changed
// status. Detail is pipeline specific (diff ratio, per-side load state).
type Artifact struct {
	RequestID string `json:"request_id"`
	Mode      string `json:"mode"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Detail    any    `json:"detail,omitempty"`
}
