package models

type Stream string

const (
	StreamPosts    Stream = "posts"
	StreamMessages Stream = "messages"
)

func (s Stream) Valid() bool {
	return s == StreamPosts || s == StreamMessages
}

// FeedItem is one post or private message fetched from Reddit. RawText is the
// post title or the message body depending on the stream.
type FeedItem struct {
	ID        string
	CreatedAt int64
	Author    string
	RawText   string
	Subject   string
	Body      string
	IsComment bool
	URL       string
}

type Account struct {
	ID       int64
	Username string
}

type ContentRecord struct {
	ID          int64
	Link        string
	FloorNumber string
}

type WatermarkState struct {
	ID        string `bson:"_id"`
	Stream    string `bson:"stream"`
	Value     string `bson:"value"`
	UpdatedAt int64  `bson:"updated_at"`
}

type ItemOutcome struct {
	Stream  string `bson:"stream"`
	ItemID  string `bson:"item_id"`
	Author  string `bson:"author"`
	Intent  string `bson:"intent"`
	Outcome string `bson:"outcome"`
}

type StreamSummary struct {
	Stream    string `bson:"stream"`
	Fetched   int    `bson:"fetched"`
	New       int    `bson:"new"`
	Matched   int    `bson:"matched"`
	Previous  int64  `bson:"previous"`
	Candidate int64  `bson:"candidate"`
	Advanced  bool   `bson:"advanced"`
	Error     string `bson:"error,omitempty"`
}

type RunHistory struct {
	ID         string          `bson:"_id"`
	StartedAt  int64           `bson:"started_at"`
	FinishedAt int64           `bson:"finished_at"`
	Duration   int             `bson:"duration_ms"`
	Streams    []StreamSummary `bson:"streams"`
	Items      []ItemOutcome   `bson:"items"`
	Status     string          `bson:"status"` // success, auth_failed
}
