package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
)

const messageKeyPrefix = "message:"

// Sticker is a sticker attached to a message.
type Sticker struct {
	ID   snowflake.ID `json:"id"`
	Name string       `json:"name"`
}

// Message is a snapshot of an original message.
type Message struct {
	ID          snowflake.ID         `json:"id"`
	GuildID     snowflake.ID         `json:"guild_id"`
	ChannelID   snowflake.ID         `json:"channel_id"`
	AuthorID    snowflake.ID         `json:"author_id"`
	AuthorIsBot bool                 `json:"author_is_bot"`
	Content     string               `json:"content"`
	Embeds      []discord.Embed      `json:"embeds,omitempty"`
	Attachments []discord.Attachment `json:"attachments,omitempty"`
	Stickers    []Sticker            `json:"stickers,omitempty"`
	ReferenceID *snowflake.ID        `json:"reference_id,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// HasImage reports whether the message carries an image attachment or an embed with an image.
func (m *Message) HasImage() bool {
	for i := range m.Attachments {
		if ct := m.Attachments[i].ContentType; ct != nil && strings.HasPrefix(*ct, "image") {
			return true
		}
	}

	for i := range m.Embeds {
		if m.Embeds[i].Image != nil || m.Embeds[i].Thumbnail != nil {
			return true
		}
	}

	return false
}

// MessageFromDiscord converts a gateway or REST message.
func MessageFromDiscord(raw *discord.Message) *Message {
	m := &Message{
		ID:          raw.ID,
		ChannelID:   raw.ChannelID,
		AuthorID:    raw.Author.ID,
		AuthorIsBot: raw.Author.Bot,
		Content:     raw.Content,
		Embeds:      raw.Embeds,
		Attachments: raw.Attachments,
		CreatedAt:   raw.CreatedAt,
	}

	if raw.GuildID != nil {
		m.GuildID = *raw.GuildID
	}

	for _, s := range raw.StickerItems {
		m.Stickers = append(m.Stickers, Sticker{ID: s.ID, Name: s.Name})
	}

	if raw.MessageReference != nil && raw.MessageReference.MessageID != nil {
		id := *raw.MessageReference.MessageID
		m.ReferenceID = &id
	}

	return m
}

// MessageStore persists message snapshots. A found result with a nil message
// means the message is known to be deleted.
type MessageStore interface {
	Get(ctx context.Context, messageID snowflake.ID) (*Message, bool, error)
	Put(ctx context.Context, m *Message) error
	Delete(ctx context.Context, messageID snowflake.ID) error
}

type messageRecord struct {
	Deleted bool     `json:"deleted,omitempty"`
	Message *Message `json:"message,omitempty"`
}

// RedisMessageStore keeps message snapshots in Redis so every cluster shares them.
type RedisMessageStore struct {
	client rueidis.Client
	ttl    time.Duration
}

// NewRedisMessageStore creates a RedisMessageStore whose entries expire after ttl.
func NewRedisMessageStore(client rueidis.Client, ttl time.Duration) *RedisMessageStore {
	return &RedisMessageStore{client: client, ttl: ttl}
}

func messageKey(id snowflake.ID) string {
	return messageKeyPrefix + strconv.FormatUint(uint64(id), 10)
}

// Get implements MessageStore.
func (s *RedisMessageStore) Get(ctx context.Context, messageID snowflake.ID) (*Message, bool, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(messageKey(messageID)).Build()).AsBytes()
	if err != nil {
		if errors.Is(err, rueidis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get message snapshot: %w", err)
	}

	var record messageRecord
	if err := sonic.Unmarshal(data, &record); err != nil {
		return nil, false, fmt.Errorf("failed to decode message snapshot: %w", err)
	}

	if record.Deleted {
		return nil, true, nil
	}

	return record.Message, true, nil
}

// Put implements MessageStore.
func (s *RedisMessageStore) Put(ctx context.Context, m *Message) error {
	return s.write(ctx, m.ID, messageRecord{Message: m})
}

// Delete implements MessageStore.
func (s *RedisMessageStore) Delete(ctx context.Context, messageID snowflake.ID) error {
	return s.write(ctx, messageID, messageRecord{Deleted: true})
}

func (s *RedisMessageStore) write(ctx context.Context, id snowflake.ID, record messageRecord) error {
	data, err := sonic.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode message snapshot: %w", err)
	}

	cmd := s.client.B().Set().Key(messageKey(id)).Value(rueidis.BinaryString(data)).Ex(s.ttl).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to store message snapshot: %w", err)
	}

	return nil
}
