package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ai-integration/internal/database"
	"ai-integration/internal/models"
)

// ChatStore persists chat sessions, their history and channel messages.
type ChatStore struct {
	db *gorm.DB
}

// NewChatStore creates a ChatStore.
func NewChatStore(db *gorm.DB) *ChatStore {
	return &ChatStore{db: db}
}

// Create saves a draft session, assigning its id.
func (s *ChatStore) Create(ctx context.Context, chat *models.ChatSession) error {
	if chat.ID == uuid.Nil {
		chat.ID = uuid.New()
	}
	chat.Revision = 1
	return database.Translate(s.db.WithContext(ctx).Create(chat).Error, "chat "+chat.ID.String())
}

// Get loads a session with its history.
func (s *ChatStore) Get(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	var chat models.ChatSession
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("idx ASC") }).
		First(&chat, "id = ?", id).Error
	if err != nil {
		return nil, database.Translate(err, "chat "+id.String())
	}
	return &chat, nil
}

// Save writes the session's own fields if it is still at chat.Revision, and
// bumps the revision. A session changed in the meantime yields ErrConflict.
func (s *ChatStore) Save(ctx context.Context, chat *models.ChatSession) error {
	if err := update(s.db.WithContext(ctx), chat); err != nil {
		return err
	}
	chat.Revision++
	return nil
}

// SaveExchange saves the session like Save and appends turns to its history
// in the same transaction. Nothing is written when the revision check fails.
func (s *ChatStore) SaveExchange(ctx context.Context, chat *models.ChatSession, turns ...models.Message) error {
	var stored []models.ChatMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := update(tx, chat); err != nil {
			return err
		}
		var err error
		stored, err = appendTurns(tx, chat.ID, turns)
		return database.Translate(err, "history of chat "+chat.ID.String())
	})
	if err != nil {
		return err
	}
	chat.Revision++
	chat.Messages = append(chat.Messages, stored...)
	return nil
}

// Clear resets the session's prompt and response, deletes its history and
// the messages its channel account exchanged for it, and bumps the revision.
// It returns how many channel messages were removed. A session changed since
// chat.Revision is left untouched and yields ErrConflict.
func (s *ChatStore) Clear(ctx context.Context, chat *models.ChatSession) (int64, error) {
	cleared := *chat
	cleared.Prompt = ""
	cleared.Response = ""
	cleared.Messages = nil

	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := update(tx, &cleared); err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", chat.ID).Delete(&models.ChatMessage{}).Error; err != nil {
			return database.Translate(err, "history of chat "+chat.ID.String())
		}
		var err error
		deleted, err = deleteChannelMessages(tx, chat.ID, chat.ChannelType, chat.ChannelInstance())
		return database.Translate(err, "channel messages of chat "+chat.ID.String())
	})
	if err != nil {
		return 0, err
	}
	cleared.Revision++
	*chat = cleared
	return deleted, nil
}

func update(tx *gorm.DB, chat *models.ChatSession) error {
	res := tx.Model(&models.ChatSession{}).
		Where("id = ? AND revision = ?", chat.ID, chat.Revision).
		Updates(map[string]interface{}{
			"title":              chat.Title,
			"channel_type":       chat.ChannelType,
			"whatsapp_instance":  chat.WhatsAppInstance,
			"instagram_instance": chat.InstagramInstance,
			"prompt":             chat.Prompt,
			"selected_model":     chat.SelectedModel,
			"response":           chat.Response,
			"is_live":            chat.IsLive,
			"live_session_url":   chat.LiveSessionURL,
			"revision":           chat.Revision + 1,
		})
	if res.Error != nil {
		return database.Translate(res.Error, "chat "+chat.ID.String())
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.ChatSession{}).Where("id = ?", chat.ID).Count(&count).Error; err != nil {
			return database.Translate(err, "chat "+chat.ID.String())
		}
		if count == 0 {
			return models.NotFoundf("chat %s", chat.ID)
		}
		return fmt.Errorf("chat %s changed since revision %d: %w", chat.ID, chat.Revision, models.ErrConflict)
	}
	return nil
}

// AppendMessage adds a message at the end of the session's history.
func (s *ChatStore) AppendMessage(ctx context.Context, chatID uuid.UUID, msg models.Message) (models.ChatMessage, error) {
	var stored []models.ChatMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		stored, err = appendTurns(tx, chatID, []models.Message{msg})
		return err
	})
	if err != nil {
		return models.ChatMessage{}, database.Translate(err, "message of chat "+chatID.String())
	}
	return stored[0], nil
}

func appendTurns(tx *gorm.DB, chatID uuid.UUID, turns []models.Message) ([]models.ChatMessage, error) {
	if len(turns) == 0 {
		return nil, nil
	}
	var maxIdx int
	if err := tx.Model(&models.ChatMessage{}).
		Where("chat_id = ?", chatID).
		Select("COALESCE(MAX(idx), 0)").
		Scan(&maxIdx).Error; err != nil {
		return nil, err
	}
	rows := make([]models.ChatMessage, 0, len(turns))
	for i, t := range turns {
		rows = append(rows, models.ChatMessage{
			ID:      uuid.New(),
			ChatID:  chatID,
			Idx:     maxIdx + i + 1,
			Role:    t.Role,
			Content: t.Content,
		})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// History returns the session's messages in order.
func (s *ChatStore) History(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	var rows []models.ChatMessage
	if err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("idx ASC").Find(&rows).Error; err != nil {
		return nil, database.Translate(err, "history of chat "+chatID.String())
	}
	history := make([]models.Message, 0, len(rows))
	for _, r := range rows {
		history = append(history, models.Message{Role: r.Role, Content: r.Content})
	}
	return history, nil
}

// AddChannelMessage records a message exchanged over a channel account.
func (s *ChatStore) AddChannelMessage(ctx context.Context, msg *models.ChannelMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return database.Translate(s.db.WithContext(ctx).Create(msg).Error, "channel message")
}

// deleteChannelMessages deletes the channel messages of a session on
// channel, restricted to instance when it is set.
func deleteChannelMessages(tx *gorm.DB, chatID uuid.UUID, channel models.ChannelType, instance string) (int64, error) {
	q := tx.Where("chat_id = ? AND channel_type = ?", chatID, channel)
	if instance != "" {
		q = q.Where("channel_instance = ?", instance)
	}
	res := q.Delete(&models.ChannelMessage{})
	return res.RowsAffected, res.Error
}
