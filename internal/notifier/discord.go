package notifier

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/gdg-garage/shuttle-planner/internal/models"
)

type Action string

const (
	ActionAdded   Action = "added"
	ActionUpdated Action = "updated"
	ActionRemoved Action = "removed"
)

type Notifier interface {
	NotifyRegistration(action Action, shuttle models.Shuttle, registration models.Registration) error
}

// MessageSender is the part of *discordgo.Session the notifier uses.
type MessageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type DiscordNotifier struct {
	session   MessageSender
	channelID string
	logger    *slog.Logger
}

func NewDiscordNotifier(session MessageSender, channelID string, logger *slog.Logger) *DiscordNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscordNotifier{
		session:   session,
		channelID: channelID,
		logger:    logger.With("component", "notifier"),
	}
}

// NewDiscordSession opens a bot session for the notifier.
func NewDiscordSession(botToken string) (*discordgo.Session, error) {
	if botToken == "" {
		return nil, fmt.Errorf("discord bot token is empty")
	}
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return session, nil
}

func (n *DiscordNotifier) NotifyRegistration(action Action, shuttle models.Shuttle, registration models.Registration) error {
	if n.session == nil {
		return fmt.Errorf("discord session is nil")
	}
	if n.channelID == "" {
		return fmt.Errorf("discord channel ID is empty")
	}

	_, err := n.session.ChannelMessageSend(n.channelID, registrationMessage(action, shuttle, registration))
	if err != nil {
		n.logger.Error("failed to send discord message", "error", err)
		return err
	}

	return nil
}

func registrationMessage(action Action, shuttle models.Shuttle, registration models.Registration) string {
	status := "registered"
	switch action {
	case ActionUpdated:
		status = "updated registration"
	case ActionRemoved:
		status = "cancelled registration 😢"
	}

	passengers := "1 passenger"
	if registration.Guests > 0 {
		passengers = fmt.Sprintf("%d passengers total", registration.PartySize())
	}

	return fmt.Sprintf("🚌 **Shuttle Update**\n**Name:** %s\n**Status:** %s\n**Shuttle:** %s (%s)\n**Party:** %s",
		registration.Name,
		status,
		shuttle.Time,
		shuttle.Type,
		passengers,
	)
}
