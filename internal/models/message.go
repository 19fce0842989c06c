package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attachment kinds accepted on a message.
const (
	AttachmentImage    = "image"
	AttachmentVideo    = "video"
	AttachmentAudio    = "audio"
	AttachmentDocument = "document"
)

func ValidAttachmentKind(kind string) bool {
	switch kind {
	case AttachmentImage, AttachmentVideo, AttachmentAudio, AttachmentDocument:
		return true
	}
	return false
}

// Attachment is a reference to media stored by the media service; this
// service never touches the bytes.
type Attachment struct {
	URL  string `bson:"url" json:"url"`
	Kind string `bson:"kind" json:"kind"`
}

// Message is the one durable chat entity. A message belongs to exactly one
// ordered (sender, recipient) pair; conversations group by the unordered pair.
// is_read only ever flips false -> true.
type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID    string             `bson:"sender_id" json:"senderId"`
	RecipientID string             `bson:"recipient_id" json:"recipientId"`
	Body        string             `bson:"body" json:"message"`
	Attachment  *Attachment        `bson:"attachment,omitempty" json:"attachment,omitempty"`
	IsRead      bool               `bson:"is_read" json:"isRead"`
	ReadAt      *time.Time         `bson:"read_at,omitempty" json:"readAt,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`

	// Resolved at read time from the users collection, never stored.
	Sender *Profile `bson:"-" json:"sender,omitempty"`
}

// CounterpartOf returns the other participant from the viewer's side.
func (m *Message) CounterpartOf(viewerID string) string {
	if m.SenderID == viewerID {
		return m.RecipientID
	}
	return m.SenderID
}
