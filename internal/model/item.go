package model

// ContentType tells the render and publish stages what kind of media to produce
type ContentType string

const (
	ContentTypeImage ContentType = "image"
	ContentTypeVideo ContentType = "video"
)

// IsVideo reports whether the content is published as a video
func (c ContentType) IsVideo() bool {
	return c == ContentTypeVideo
}

// ScheduledItem is one due unit of content produced by a module's due-item query
type ScheduledItem struct {
	ModuleID    string            `json:"moduleId"`
	ItemID      string            `json:"itemId"`
	UserID      string            `json:"userId"`
	DisplayName string            `json:"displayName"`
	AccountRef  string            `json:"accountRef"`
	ContentType ContentType       `json:"contentType"`
	Payload     map[string]string `json:"payload,omitempty"`
}

// Key identifies the item within one dispatch tick
func (i ScheduledItem) Key() string {
	return i.ModuleID + "/" + i.ItemID
}

// Scope returns the (user, account) pair used for history and deduplication
func (i ScheduledItem) Scope() Scope {
	return Scope{UserID: i.UserID, AccountRef: i.AccountRef}
}

// Scope is the (user, target account) pair history is evaluated against
type Scope struct {
	UserID     string `json:"userId"`
	AccountRef string `json:"accountRef"`
}

func (s Scope) String() string {
	return s.UserID + ":" + s.AccountRef
}

// GeneratedContent is produced by the generation collaborator and lives for one pipeline execution
type GeneratedContent struct {
	Text           string `json:"text"`
	VisualPrompt   string `json:"visualPrompt"`
	DedupSignature string `json:"dedupSignature,omitempty"`
}
