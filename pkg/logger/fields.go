package logger

const (
	FieldChannel   = "channel"
	FieldChatID    = "chat_id"
	FieldSenderID  = "sender_id"
	FieldGroupID   = "group_id"
	FieldMessageID = "message_id"
	FieldAction    = "action"
	FieldRetcode   = "retcode"
	FieldPreview   = "preview"
	FieldError     = "error"
)
