// Package services – DeliveryService
//
// This file implements the delivery orchestrator: one delivery attempt is an
// ordered sequence of best-effort side effects against the chat platform.
// Each step's failure is caught and recorded individually; later steps still
// run and nothing is rolled back. The overall attempt succeeds iff the core
// file transmission step succeeded.
package services

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/avendel/go-delivery-backend/internal/catalog"
)

// deliveries counts delivery attempts by flow kind and outcome.
var deliveries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "deliveries_total",
		Help: "Delivery attempts by flow kind and outcome.",
	},
	[]string{"kind", "outcome"},
)

func init() {
	prometheus.MustRegister(deliveries)
}

// Messenger is the chat-platform surface the orchestrator needs. The Discord
// bot implements it; tests substitute fakes.
type Messenger interface {
	// SendDM sends a direct message to the chat identity.
	SendDM(ctx context.Context, chatID, content string) error
	// SendFile sends the file at path as a direct-message attachment.
	SendFile(ctx context.Context, chatID, path, caption string) error
	// GrantRole assigns roleID to the chat identity. Implementations must be
	// idempotent: granted is false when the role was already held.
	GrantRole(ctx context.Context, chatID, roleID string) (granted bool, err error)
	// Broadcast posts to the operator-facing proof channel. A no-op when no
	// channel is configured.
	Broadcast(ctx context.Context, content string) error
}

// Result is the per-step outcome record of one delivery attempt, kept so
// partial failures can be diagnosed instead of collapsing into one boolean.
type Result struct {
	// Confirmed reports whether the purchase-confirmation notice was sent.
	Confirmed bool
	// FileConfigured reports whether the deliverable existed on disk.
	FileConfigured bool
	// FileSent reports whether the deliverable was transmitted.
	FileSent bool
	// RoleGranted reports whether the role grant changed anything (false
	// when already held or when the step failed).
	RoleGranted bool
	// Announced reports whether the proof broadcast was posted.
	Announced bool

	// ConfirmErr, FileErr, RoleErr, BroadcastErr hold the individual step
	// failures, if any.
	ConfirmErr   error
	FileErr      error
	RoleErr      error
	BroadcastErr error
}

// Succeeded reports whether the core file transmission step succeeded. A
// missing deliverable counts as failure even though the buyer was notified.
func (r Result) Succeeded() bool {
	return r.FileConfigured && r.FileErr == nil
}

// DeliveryService performs one delivery attempt: confirmation notice, file
// transmission, role grant, proof broadcast — in that order, best effort.
type DeliveryService struct {
	// Messenger is the chat-platform client.
	Messenger Messenger
	// Log receives per-step failure diagnostics.
	Log zerolog.Logger
}

// NewDeliveryService constructs a DeliveryService.
func NewDeliveryService(m Messenger, log zerolog.Logger) *DeliveryService {
	return &DeliveryService{
		Messenger: m,
		Log:       log.With().Str("component", "delivery").Logger(),
	}
}

// Deliver executes one delivery attempt of product to chatID. Failures in
// individual steps are logged and recorded in the Result; they never abort
// the remaining steps.
func (s *DeliveryService) Deliver(ctx context.Context, chatID string, product catalog.Product) Result {
	var res Result
	lg := s.Log.With().Str("chat_id", chatID).Str("product_id", product.ID).Logger()

	// (a) purchase confirmation
	confirm := fmt.Sprintf("Thank you for purchasing **%s**! %s", product.Name, product.Description)
	if err := s.Messenger.SendDM(ctx, chatID, confirm); err != nil {
		res.ConfirmErr = err
		lg.Warn().Err(err).Msg("confirmation notice failed")
	} else {
		res.Confirmed = true
	}

	// (b) file transmission, or a notice when the deliverable is missing
	if _, err := os.Stat(product.FilePath); err == nil {
		res.FileConfigured = true
		caption := fmt.Sprintf("Here is your copy of %s.", product.Name)
		if err := s.Messenger.SendFile(ctx, chatID, product.FilePath, caption); err != nil {
			res.FileErr = err
			lg.Error().Err(err).Msg("file transmission failed")
		} else {
			res.FileSent = true
		}
	} else {
		lg.Error().Str("path", product.FilePath).Msg("deliverable not configured")
		notice := fmt.Sprintf("Your purchase of %s is registered, but the file is not configured yet. Please contact support.", product.Name)
		if err := s.Messenger.SendDM(ctx, chatID, notice); err != nil {
			lg.Warn().Err(err).Msg("not-configured notice failed")
		}
	}

	// (c) one-time role grant; skipped when already held
	if product.RoleID != "" {
		granted, err := s.Messenger.GrantRole(ctx, chatID, product.RoleID)
		if err != nil {
			res.RoleErr = err
			lg.Warn().Err(err).Msg("role grant failed")
		} else if granted {
			res.RoleGranted = true
			if err := s.Messenger.SendDM(ctx, chatID, "You have been given the customer role."); err != nil {
				lg.Warn().Err(err).Msg("role notice failed")
			}
		}
	}

	// (d) operator-facing proof of purchase, worded from the actual outcome
	// so the channel never claims a delivery that did not happen
	proof := fmt.Sprintf("Delivered **%s** to <@%s>.", product.Name, chatID)
	if !res.Succeeded() {
		proof = fmt.Sprintf("Delivery of **%s** to <@%s> failed; buyer was notified.", product.Name, chatID)
	}
	if err := s.Messenger.Broadcast(ctx, proof); err != nil {
		res.BroadcastErr = err
		lg.Warn().Err(err).Msg("proof broadcast failed")
	} else {
		res.Announced = true
	}

	return res
}
