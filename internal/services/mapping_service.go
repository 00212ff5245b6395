// Package services – MappingService
//
// This file implements the bidirectional lookup between external-platform
// ids and chat-platform ids. Forward resolution is a map lookup; reverse
// resolution scans all entries, which is acceptable at the expected table
// size (tens of mappings, not thousands).
package services

import (
	"strings"

	"github.com/avendel/go-delivery-backend/internal/domain"
	"github.com/avendel/go-delivery-backend/internal/repo"
)

// MappingService manages the identity mapping table held in the cached state
// document. At most one chat identity exists per external identity; Link
// overwrites unconditionally (last write wins).
type MappingService struct {
	// Cache is the state document cache backing all mapping operations.
	Cache *repo.Cache
}

// NewMappingService constructs a MappingService over the given cache.
func NewMappingService(cache *repo.Cache) *MappingService {
	return &MappingService{Cache: cache}
}

// Link creates or overwrites the mapping externalID → chatID and schedules
// persistence.
func (s *MappingService) Link(externalID, chatID string) {
	s.Cache.Update(func(doc *domain.StateDocument) {
		doc.Mappings[externalID] = chatID
	})
}

// Unlink removes the mapping currently pointing at chatID and returns the
// external id that was removed. Returns ErrMappingNotFound when no entry
// points at chatID; nothing is mutated in that case. Scan and delete run in
// one cache callback, so a Link racing the scan cannot have its fresh entry
// deleted.
func (s *MappingService) Unlink(chatID string) (string, error) {
	var removed string
	s.Cache.TryUpdate(func(doc *domain.StateDocument) bool {
		for ext, chat := range doc.Mappings {
			if chat == chatID {
				removed = ext
				delete(doc.Mappings, ext)
				return true
			}
		}
		return false
	})
	if removed == "" {
		return "", ErrMappingNotFound
	}
	return removed, nil
}

// Resolve returns the chat id mapped to externalID, or false when absent.
func (s *MappingService) Resolve(externalID string) (string, bool) {
	var chatID string
	s.Cache.View(func(doc *domain.StateDocument) {
		chatID = doc.Mappings[externalID]
	})
	return chatID, strings.TrimSpace(chatID) != ""
}

// ResolveChat returns the external id currently mapped to chatID, or false
// when absent. Reverse scan, same cost note as Unlink.
func (s *MappingService) ResolveChat(chatID string) (string, bool) {
	var externalID string
	s.Cache.View(func(doc *domain.StateDocument) {
		for ext, chat := range doc.Mappings {
			if chat == chatID {
				externalID = ext
				return
			}
		}
	})
	return externalID, externalID != ""
}
