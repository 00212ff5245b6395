// Package discord hosts the chat-platform side of the delivery backend: the
// bot session, the command surface (!register, !unlink, !check) consumed
// from a designated channel, and the Messenger implementation used by the
// delivery orchestrator.
package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/avendel/go-delivery-backend/internal/config"
	"github.com/avendel/go-delivery-backend/internal/services"
)

// NameResolver resolves a game-platform username to its account id. The
// roblox client implements it.
type NameResolver interface {
	LookupUserID(ctx context.Context, username string) (string, error)
}

// Bot owns the Discord session and the chat command surface.
type Bot struct {
	cfg      config.DiscordConfig
	session  *discordgo.Session
	mappings *services.MappingService
	checks   *services.CheckService
	resolver NameResolver
	log      zerolog.Logger
}

// New builds the bot and registers its handlers. The session is not opened
// yet; call Open. The check service is attached afterwards via
// AttachCheckService because its delivery orchestrator needs the bot as its
// Messenger.
func New(cfg config.DiscordConfig, mappings *services.MappingService, resolver NameResolver, log zerolog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	b := &Bot{
		cfg:      cfg,
		session:  session,
		mappings: mappings,
		resolver: resolver,
		log:      log.With().Str("component", "discord").Logger(),
	}
	session.AddHandler(b.onMessageCreate)
	return b, nil
}

// AttachCheckService wires the manual check flow. Must be called before
// Open.
func (b *Bot) AttachCheckService(c *services.CheckService) {
	b.checks = c
}

// Open connects the gateway session.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	b.log.Info().Msg("discord session open")
	return nil
}

// Close shuts the gateway session down.
func (b *Bot) Close() error {
	return b.session.Close()
}

// Ready reports whether the gateway session has completed its handshake.
// Surfaced by the health endpoint.
func (b *Bot) Ready() bool {
	return b.session != nil && b.session.DataReady
}

// ParseCommand splits a prefixed command message into its name and argument.
// Returns ok=false for anything that is not a command.
func ParseCommand(prefix, content string) (cmd, arg string, ok bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", "", false
	}
	cmd = strings.ToLower(fields[0])
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}
	return cmd, arg, true
}

// onMessageCreate routes prefixed commands from the designated channel.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if b.cfg.CommandChannelID != "" && m.ChannelID != b.cfg.CommandChannelID {
		return
	}
	cmd, arg, ok := ParseCommand(b.cfg.CommandPrefix, m.Content)
	if !ok {
		return
	}

	ctx := context.Background()
	switch cmd {
	case "register":
		b.handleRegister(ctx, m, arg)
	case "unlink":
		b.handleUnlink(m)
	case "check":
		b.handleCheck(ctx, m)
	}
}

// handleRegister resolves the given username, links it to the invoking chat
// identity, and deletes the triggering message so usernames do not linger in
// the channel.
func (b *Bot) handleRegister(ctx context.Context, m *discordgo.MessageCreate, username string) {
	if strings.TrimSpace(username) == "" {
		b.transientReply(m.ChannelID, "Usage: "+b.cfg.CommandPrefix+"register <username>")
		return
	}

	externalID, err := b.resolver.LookupUserID(ctx, username)
	if err != nil {
		b.log.Warn().Err(err).Str("username", username).Msg("register lookup failed")
		b.transientReply(m.ChannelID, fmt.Sprintf("Could not find a user named %q.", username))
		return
	}

	b.mappings.Link(externalID, m.Author.ID)

	if err := b.session.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
		b.log.Warn().Err(err).Msg("could not delete register message")
	}
	b.transientReply(m.ChannelID, fmt.Sprintf("Linked %s to <@%s>.", username, m.Author.ID))
	b.log.Info().Str("external_id", externalID).Str("chat_id", m.Author.ID).Msg("identity linked")
}

// handleUnlink removes the invoking user's mapping.
func (b *Bot) handleUnlink(m *discordgo.MessageCreate) {
	externalID, err := b.mappings.Unlink(m.Author.ID)
	if err != nil {
		b.transientReply(m.ChannelID, "No linked account found.")
		return
	}
	b.transientReply(m.ChannelID, "Unlinked account "+externalID+".")
	b.log.Info().Str("external_id", externalID).Str("chat_id", m.Author.ID).Msg("identity unlinked")
}

// handleCheck runs the manual ownership-poll-and-deliver flow for the
// invoking user.
func (b *Bot) handleCheck(ctx context.Context, m *discordgo.MessageCreate) {
	if b.checks == nil {
		b.transientReply(m.ChannelID, "Checks are not available right now.")
		return
	}
	report, err := b.checks.Run(ctx, m.Author.ID)
	if err != nil {
		b.transientReply(m.ChannelID, "No linked account found. Use "+b.cfg.CommandPrefix+"register <username> first.")
		return
	}

	switch {
	case report.Delivered > 0:
		b.transientReply(m.ChannelID, fmt.Sprintf("Delivered %d product(s). Check your DMs!", report.Delivered))
	case report.Failed > 0:
		b.transientReply(m.ChannelID, "Delivery failed, please contact support.")
	case report.AlreadyClaimed > 0 && report.NotOwned == 0:
		b.transientReply(m.ChannelID, "Everything you own has already been delivered.")
	default:
		b.transientReply(m.ChannelID, "No owned products found.")
	}
}

// transientReply posts a notice that cleans itself up after the configured
// delay, keeping the command channel free of clutter.
func (b *Bot) transientReply(channelID, content string) {
	msg, err := b.session.ChannelMessageSend(channelID, content)
	if err != nil {
		b.log.Warn().Err(err).Msg("notice send failed")
		return
	}
	time.AfterFunc(b.cfg.NoticeTTL, func() {
		if err := b.session.ChannelMessageDelete(channelID, msg.ID); err != nil {
			b.log.Debug().Err(err).Msg("notice cleanup failed")
		}
	})
}
