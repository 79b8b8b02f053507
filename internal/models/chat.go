package models

import (
	"time"

	"github.com/google/uuid"
)

// ChannelType is the messaging surface a chat session lives on. The set of
// known values is closed; anything else read from storage is kept verbatim so
// dispatch can reject it.
type ChannelType string

const (
	ChannelWhatsApp  ChannelType = "WhatsApp"
	ChannelInstagram ChannelType = "Instagram"
	ChannelFacebook  ChannelType = "Facebook"
)

// ChatSession is a conversation with an LLM, optionally handed off to a
// live channel session.
// @Description ChatSession is a conversation with an LLM.
type ChatSession struct {
	ID                uuid.UUID     `json:"id" gorm:"type:uuid;primary_key"`
	Title             string        `json:"title,omitempty" gorm:"type:varchar(255)"`
	ChannelType       ChannelType   `json:"channel_type" gorm:"type:varchar(50)"`
	WhatsAppInstance  string        `json:"whatsapp_instance,omitempty" gorm:"column:whatsapp_instance;type:varchar(255)"`
	InstagramInstance string        `json:"instagram_instance,omitempty" gorm:"type:varchar(255)"`
	Prompt            string        `json:"prompt,omitempty" gorm:"type:text"`
	SelectedModel     string        `json:"selected_model,omitempty" gorm:"type:varchar(255)"`
	Response          string        `json:"response,omitempty" gorm:"type:text"`
	IsLive            bool          `json:"is_live"`
	LiveSessionURL    string        `json:"live_session_url,omitempty" gorm:"type:text"`
	Revision          int64         `json:"revision" gorm:"not null;default:0"`
	CreatedAt         time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
	Messages          []ChatMessage `json:"messages,omitempty" gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE;"`

	// Current model choice; never persisted.
	Model string `json:"model,omitempty" gorm:"-"`
}

// Saved reports whether the session has left the draft state.
func (s *ChatSession) Saved() bool {
	return s != nil && s.ID != uuid.Nil
}

// ChannelInstance returns the channel account the session is bound to.
func (s *ChatSession) ChannelInstance() string {
	switch s.ChannelType {
	case ChannelWhatsApp:
		return s.WhatsAppInstance
	case ChannelInstagram:
		return s.InstagramInstance
	}
	return ""
}

// ChatMessage is one entry of a session's conversation history.
type ChatMessage struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	ChatID    uuid.UUID `json:"chat_id" gorm:"type:uuid;not null;index"`
	Idx       int       `json:"idx"`
	Role      string    `json:"role" gorm:"type:varchar(50)"`
	Content   string    `json:"content" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// ChannelMessage is a message exchanged over a channel account on behalf of
// a chat session.
type ChannelMessage struct {
	ID              uuid.UUID   `json:"id" gorm:"type:uuid;primary_key"`
	ChatID          uuid.UUID   `json:"chat_id" gorm:"type:uuid;not null;index"`
	ChannelType     ChannelType `json:"channel_type" gorm:"type:varchar(50);index"`
	ChannelInstance string      `json:"channel_instance,omitempty" gorm:"type:varchar(255)"`
	Role            string      `json:"role" gorm:"type:varchar(50)"`
	Type            string      `json:"type" gorm:"type:varchar(50);default:text"`
	Content         string      `json:"content" gorm:"type:text"`
	RespondedTo     bool        `json:"responded_to"`
	Timestamp       time.Time   `json:"timestamp"`
}

// Message is the wire shape of a chat turn sent to a completion provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
