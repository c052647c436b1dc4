// Package publish sends finished posts to the channel and notices to operators.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"photopost-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/rs/zerolog/log"
)

// ChannelPublisher posts photos with captions to one channel.
type ChannelPublisher struct {
	bot  telegoapi.BotAPI
	chat telego.ChatID
}

// NewChannelPublisher targets the channel by numeric id, or by @username when id is zero.
func NewChannelPublisher(bot telegoapi.BotAPI, channelID int64, channelUsername string) (*ChannelPublisher, error) {
	if bot == nil {
		return nil, errors.New("bot cannot be nil")
	}
	var chat telego.ChatID
	switch {
	case channelID != 0:
		chat = tu.ID(channelID)
	case channelUsername != "":
		chat = tu.Username(channelUsername)
	default:
		return nil, errors.New("channel id or username is required")
	}
	return &ChannelPublisher{bot: bot, chat: chat}, nil
}

// Channel returns a printable channel identifier for logs and post records.
func (p *ChannelPublisher) Channel() string {
	if p.chat.Username != "" {
		return p.chat.Username
	}
	return strconv.FormatInt(p.chat.ID, 10)
}

// Publish sends the photo bytes with caption and returns the channel message id.
func (p *ChannelPublisher) Publish(ctx context.Context, data []byte, caption string) (int, error) {
	if len(data) == 0 {
		return 0, errors.New("empty photo payload")
	}

	params := tu.Photo(p.chat, tu.File(tu.NameReader(bytes.NewReader(data), "photo.jpg"))).
		WithCaption(caption)

	msg, err := p.bot.SendPhoto(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("failed to send photo to %s: %w", p.Channel(), err)
	}
	if msg == nil {
		return 0, nil
	}

	log.Info().Str("channel", p.Channel()).Int("message_id", msg.MessageID).Msg("Photo published")
	return msg.MessageID, nil
}

// OperatorNotifier sends plain text to every operator.
type OperatorNotifier struct {
	bot       telegoapi.BotAPI
	operators []int64
}

func NewOperatorNotifier(bot telegoapi.BotAPI, operators []int64) *OperatorNotifier {
	return &OperatorNotifier{bot: bot, operators: append([]int64(nil), operators...)}
}

// NotifyOperators returns how many operators received the message. Failures are logged only.
func (n *OperatorNotifier) NotifyOperators(ctx context.Context, text string) int {
	sent := 0
	for _, id := range n.operators {
		if _, err := n.bot.SendMessage(ctx, tu.Message(tu.ID(id), text)); err != nil {
			log.Warn().Err(err).Int64("user_id", id).Msg("Failed to notify operator")
			continue
		}
		sent++
	}
	return sent
}
