package domain

// SelectionSpan addresses a passage of the canonical text by rune offsets.
// Invariants: Start >= 0, Length > 0, Start+Length <= rune length of the
// canonical text.
type SelectionSpan struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// HighlightSpan marks the passage currently highlighted in the rendered
// document. It is promoted from the selection span when an action starts
// and cleared when the action fails.
type HighlightSpan struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// RawSelection is what the rendering layer reports when the user selects
// text. BlockChain lists block IDs innermost first for the block containing
// the selection start; Fragment and Offset locate the start within that
// block's rendered fragments, in runes.
type RawSelection struct {
	Text       string   `json:"text"`
	BlockChain []string `json:"blockChain"`
	Fragment   int      `json:"fragment"`
	Offset     int      `json:"offset"`
	InContent  bool     `json:"inContent"`
	Collapsed  bool     `json:"collapsed"`
}

// ActionState is the loading/result/error triple of one selection action.
type ActionState struct {
	Loading bool   `json:"loading"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SelectionState aggregates the selection feature state for the UI.
// Explanation and Alternates results are mutually exclusive: starting one
// action clears the other's result and error.
type SelectionState struct {
	Span        *SelectionSpan `json:"span,omitempty"`
	Highlight   *HighlightSpan `json:"highlight,omitempty"`
	Explanation ActionState    `json:"explanation"`
	Alternates  ActionState    `json:"alternates"`
}
