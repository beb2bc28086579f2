package pipeline

// Log field constants
const (
	LogFieldRunID      = "run_id"
	LogFieldChannel    = "channel"
	LogFieldChannelID  = "channel_id"
	LogFieldMsgID      = "msg_id"
	LogFieldCursor     = "cursor"
	LogFieldFileName   = "file_name"
	LogFieldLink       = "link"
	LogFieldMatched    = "matched"
	LogFieldRecorded   = "recorded"
	LogFieldReferenced = "referenced"
	LogFieldCount      = "count"
)

// Download kind label values.
const (
	kindDocument = "document"
	kindPhoto    = "photo"
)
