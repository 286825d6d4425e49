package alerting

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

type channelSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts messages to a Discord channel as a bot.
type DiscordNotifier struct {
	sender    channelSender
	channelID string
	logger    zerolog.Logger
}

// NewDiscordNotifier opens a bot session for the given token.
func NewDiscordNotifier(botToken, channelID string, logger zerolog.Logger) (*DiscordNotifier, error) {
	if botToken == "" {
		return nil, errors.New("discord bot token is required")
	}
	if channelID == "" {
		return nil, errors.New("discord channel id is required")
	}
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return newDiscordNotifier(session, channelID, logger), nil
}

func newDiscordNotifier(sender channelSender, channelID string, logger zerolog.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		sender:    sender,
		channelID: channelID,
		logger:    logger.With().Str("component", "alert_discord").Logger(),
	}
}

// Send posts text to the configured channel.
func (n *DiscordNotifier) Send(ctx context.Context, text string) error {
	if _, err := n.sender.ChannelMessageSend(n.channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	n.logger.Info().Str("channel_id", n.channelID).Msg("告警已发送 (Discord)")
	return nil
}

var _ Notifier = (*DiscordNotifier)(nil)
