package entities

import (
	"time"

	"gorm.io/datatypes"

	"parley-server/internal/domain/conversation"
)

// Conversation is the identity row: id, owner, title, timestamps. The chat
// payload lives in a 1:1 side table so a conversation can exist before its
// first completed turn is stored.
type Conversation struct {
	ID        uint      `gorm:"primaryKey"`
	PublicID  string    `gorm:"type:varchar(32);uniqueIndex;not null"`
	UserID    string    `gorm:"type:varchar(64);index:idx_conversation_owner_created,priority:1;not null"`
	Title     string    `gorm:"type:varchar(100);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_conversation_owner_created,priority:2,sort:desc"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Chat *ConversationChat `gorm:"foreignKey:ConversationID"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// ConversationChat holds the versioned chat payload document for one
// conversation.
type ConversationChat struct {
	ID             uint           `gorm:"primaryKey"`
	ConversationID uint           `gorm:"uniqueIndex;not null"`
	Payload        datatypes.JSON `gorm:"not null"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
}

func (ConversationChat) TableName() string {
	return "conversation_chats"
}

// EtoD maps an entity to the domain conversation, decoding the chat payload
// when one is attached.
func EtoD(e Conversation) (*conversation.Conversation, error) {
	out := &conversation.Conversation{
		ID:        e.ID,
		PublicID:  e.PublicID,
		UserID:    e.UserID,
		Title:     e.Title,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if e.Chat != nil && len(e.Chat.Payload) > 0 {
		payload, err := conversation.DecodePayload(e.Chat.Payload)
		if err != nil {
			return nil, err
		}
		out.Payload = payload
	}
	return out, nil
}

// NewConversationEntity maps a domain conversation to its identity row.
func NewConversationEntity(c *conversation.Conversation) Conversation {
	return Conversation{
		ID:       c.ID,
		PublicID: c.PublicID,
		UserID:   c.UserID,
		Title:    c.Title,
	}
}
