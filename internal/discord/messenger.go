// Package discord hosts the chat-platform side of the delivery backend.
// This file implements services.Messenger on top of the bot session, giving
// the delivery orchestrator direct messages, file attachments, role grants,
// and the operator proof broadcast.
package discord

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bwmarrin/discordgo"

	"github.com/avendel/go-delivery-backend/internal/services"
)

var _ services.Messenger = (*Bot)(nil)

// dmChannel opens (or reuses) the DM channel with the given user.
func (b *Bot) dmChannel(userID string) (string, error) {
	ch, err := b.session.UserChannelCreate(userID)
	if err != nil {
		return "", fmt.Errorf("dm channel for %s: %w", userID, err)
	}
	return ch.ID, nil
}

// SendDM implements services.Messenger.
func (b *Bot) SendDM(_ context.Context, chatID, content string) error {
	channelID, err := b.dmChannel(chatID)
	if err != nil {
		return err
	}
	_, err = b.session.ChannelMessageSend(channelID, content)
	return err
}

// SendFile implements services.Messenger. The caller verifies the file
// exists before invoking.
func (b *Bot) SendFile(_ context.Context, chatID, path, caption string) error {
	channelID, err := b.dmChannel(chatID)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: caption,
		Files: []*discordgo.File{{
			Name:   filepath.Base(path),
			Reader: f,
		}},
	})
	return err
}

// GrantRole implements services.Messenger. The grant is idempotent: when the
// member already holds the role, nothing is changed and granted is false.
func (b *Bot) GrantRole(_ context.Context, chatID, roleID string) (bool, error) {
	if b.cfg.GuildID == "" {
		return false, fmt.Errorf("no guild configured")
	}
	member, err := b.session.GuildMember(b.cfg.GuildID, chatID)
	if err != nil {
		return false, fmt.Errorf("member lookup: %w", err)
	}
	for _, r := range member.Roles {
		if r == roleID {
			return false, nil
		}
	}
	if err := b.session.GuildMemberRoleAdd(b.cfg.GuildID, chatID, roleID); err != nil {
		return false, fmt.Errorf("role add: %w", err)
	}
	return true, nil
}

// Broadcast implements services.Messenger. A no-op when no proof channel is
// configured.
func (b *Bot) Broadcast(_ context.Context, content string) error {
	if b.cfg.ProofChannelID == "" {
		return nil
	}
	_, err := b.session.ChannelMessageSend(b.cfg.ProofChannelID, content)
	return err
}
