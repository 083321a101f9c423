package dialogue

// CallbackEvent is a button press already extracted from the platform update.
type CallbackEvent struct {
	ChatID    int64
	UserID    int64
	UserName  string
	MessageID int
	Data      string
	QueryID   string
}

// MessageEvent is an inbound text message.
type MessageEvent struct {
	ChatID   int64
	UserID   int64
	UserName string
	Text     string
}
