// Package roblox provides the outbound clients for the game platform: the
// users API (username → id resolution) and the inventory API (entitlement
// ownership polling).
package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/avendel/go-delivery-backend/internal/config"
)

// ErrUserNotFound is returned when the users API resolves no account for a
// username.
var ErrUserNotFound = errors.New("roblox user not found")

// ownershipPolls counts inventory API queries by result. "down" covers
// transport and decode failures, which the caller treats as not owned.
var ownershipPolls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ownership_polls_total",
		Help: "Inventory API ownership queries.",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(ownershipPolls)
}

// Client talks to the public Roblox APIs. It is safe for concurrent use.
type Client struct {
	usersURL     string
	inventoryURL string
	http         *http.Client
	log          zerolog.Logger
}

// New builds a client from configuration.
func New(cfg config.RobloxConfig, log zerolog.Logger) *Client {
	return &Client{
		usersURL:     strings.TrimRight(cfg.UsersAPIURL, "/"),
		inventoryURL: strings.TrimRight(cfg.InventoryAPIURL, "/"),
		http:         &http.Client{Timeout: cfg.Timeout},
		log:          log.With().Str("component", "roblox").Logger(),
	}
}

// usernameLookup is the users API request body.
type usernameLookup struct {
	Usernames          []string `json:"usernames"`
	ExcludeBannedUsers bool     `json:"excludeBannedUsers"`
}

// usernameResult is the subset of the users API response we read.
type usernameResult struct {
	Data []struct {
		ID                int64  `json:"id"`
		RequestedUsername string `json:"requestedUsername"`
	} `json:"data"`
}

// LookupUserID resolves a username to the account id via the users API.
// Returns ErrUserNotFound when no account matches; other errors indicate a
// transport or decode failure.
func (c *Client) LookupUserID(ctx context.Context, username string) (string, error) {
	username = norm.NFC.String(strings.TrimSpace(username))
	if username == "" {
		return "", ErrUserNotFound
	}

	body, err := json.Marshal(usernameLookup{
		Usernames:          []string{username},
		ExcludeBannedUsers: true,
	})
	if err != nil {
		return "", err
	}

	url := c.usersURL + "/v1/usernames/users"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("users api: unexpected status %d", resp.StatusCode)
	}

	var out usernameResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("users api: decode: %w", err)
	}
	if len(out.Data) == 0 || out.Data[0].ID == 0 {
		return "", ErrUserNotFound
	}
	return fmt.Sprintf("%d", out.Data[0].ID), nil
}

// inventoryResult is the subset of the inventory API response we read.
type inventoryResult struct {
	Data []json.RawMessage `json:"data"`
}

// OwnsEntitlement reports whether the account currently owns the game pass.
// Any transport or parse failure is treated as "does not own" (fail-closed)
// rather than propagated; the failure is logged. Each call issues one fresh
// query; there is no caching.
func (c *Client) OwnsEntitlement(ctx context.Context, externalID, entitlementID string) bool {
	url := fmt.Sprintf("%s/v1/users/%s/items/GamePass/%s", c.inventoryURL, externalID, entitlementID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		ownershipPolls.WithLabelValues("down").Inc()
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		ownershipPolls.WithLabelValues("down").Inc()
		c.log.Warn().Err(err).Str("external_id", externalID).Msg("inventory query failed")
		return false
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		ownershipPolls.WithLabelValues("down").Inc()
		c.log.Warn().Int("status", resp.StatusCode).Str("external_id", externalID).Msg("inventory query rejected")
		return false
	}

	var out inventoryResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		ownershipPolls.WithLabelValues("down").Inc()
		c.log.Warn().Err(err).Str("external_id", externalID).Msg("inventory response undecodable")
		return false
	}

	if len(out.Data) > 0 {
		ownershipPolls.WithLabelValues("owned").Inc()
		return true
	}
	ownershipPolls.WithLabelValues("not_owned").Inc()
	return false
}

// drainClose consumes the remainder of a response body before closing so the
// underlying connection can be reused.
func drainClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 1<<20))
	_ = rc.Close()
}
