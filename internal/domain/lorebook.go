package domain

// LorebookEntry is one entry of a host-managed keyword-triggered knowledge
// base. The parser only ever reads Content; Key and Comment feed the
// tag-library index.
type LorebookEntry struct {
	UID       string   `json:"uid,omitempty"`
	Content   string   `json:"content"`
	Key       []string `json:"key,omitempty"`
	Comment   string   `json:"comment,omitempty"`
	ScanDepth int      `json:"scanDepth,omitempty"`
	Disabled  bool     `json:"disabled,omitempty"`
}

// TagDefinition is one tag-library index record: a keyword mapped back to the
// entry text that defines it.
type TagDefinition struct {
	Keyword    string `json:"keyword"`
	Definition string `json:"definition"`
	Lorebook   string `json:"lorebook"`
	EntryUID   string `json:"entryUid,omitempty"`
}

// ChatMessage is a message event pushed by the host.
type ChatMessage struct {
	ID             string `json:"id,omitempty"`
	Text           string `json:"text"`
	IsUserAuthored bool   `json:"isUser"`
}
