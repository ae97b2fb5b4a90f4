package bus

// InboundMessage is the normalized envelope handed to the embedding host.
// Media is carried as parallel slices (index i of each slice describes the
// same attachment); the singular MediaPath/MediaURL/MediaMIME fields mirror
// the first element for hosts that only care about one attachment. All media
// fields are present only when the message actually carried media.
type InboundMessage struct {
	Channel    string            `json:"channel"`
	SenderID   string            `json:"sender_id"`
	SenderName string            `json:"sender_name,omitempty"`
	ChatID     string            `json:"chat_id"`
	Content    string            `json:"content"`
	SessionKey string            `json:"session_key"`
	Timestamp  int64             `json:"timestamp,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`

	MediaPaths []string `json:"media_paths,omitempty"`
	MediaURLs  []string `json:"media_urls,omitempty"`
	MediaMIMEs []string `json:"media_mimes,omitempty"`
	MediaPath  string   `json:"media_path,omitempty"`
	MediaURL   string   `json:"media_url,omitempty"`
	MediaMIME  string   `json:"media_mime,omitempty"`
}

// OutboundMessage is a host reply awaiting delivery. MediaURLs may hold
// http(s) URLs, local paths, file:// URLs or base64 data URLs; Voice asks
// the channel to deliver the first attachment as a voice record.
type OutboundMessage struct {
	Channel   string   `json:"channel"`
	ChatID    string   `json:"chat_id"`
	Content   string   `json:"content"`
	MediaURLs []string `json:"media_urls,omitempty"`
	Voice     bool     `json:"voice,omitempty"`
	ReplyTo   string   `json:"reply_to,omitempty"`
}

type MessageHandler func(InboundMessage) error
