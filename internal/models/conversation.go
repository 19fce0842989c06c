package models

// Conversation is a derived view, recomputed per listing request: one row per
// counterpart the viewer has ever exchanged a message with.
type Conversation struct {
	Counterpart *Profile `json:"counterpart"`
	LastMessage *Message `json:"lastMessage"`
	UnreadCount int64    `json:"unreadCount"`
}

// ChatStats is the admin dashboard summary.
type ChatStats struct {
	TotalChats     int64 `json:"totalChats"`
	OnlineUsers    int   `json:"onlineUsers"`
	UnreadMessages int64 `json:"unreadMessages"`
	RespondedChats int64 `json:"respondedChats"`
}
