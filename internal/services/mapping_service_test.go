package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/avendel/go-delivery-backend/internal/domain"
)

func TestLinkAndResolve(t *testing.T) {
	s := NewMappingService(newTestCache(t))

	s.Link("261", "d1")

	chatID, ok := s.Resolve("261")
	if !ok || chatID != "d1" {
		t.Fatalf("Resolve = (%q, %v); want (d1, true)", chatID, ok)
	}
	if _, ok := s.Resolve("999"); ok {
		t.Fatalf("unmapped id resolved")
	}
}

func TestLink_LastWriteWins(t *testing.T) {
	s := NewMappingService(newTestCache(t))

	s.Link("261", "old-chat")
	s.Link("261", "new-chat")

	chatID, ok := s.Resolve("261")
	if !ok || chatID != "new-chat" {
		t.Fatalf("Resolve = (%q, %v); want overwrite to new-chat", chatID, ok)
	}
	// Exactly one entry remains.
	s.Cache.View(func(doc *domain.StateDocument) {
		if len(doc.Mappings) != 1 {
			t.Fatalf("mapping table has %d entries; want 1", len(doc.Mappings))
		}
	})
}

func TestUnlink(t *testing.T) {
	s := NewMappingService(newTestCache(t))
	s.Link("261", "d1")

	removed, err := s.Unlink("d1")
	if err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if removed != "261" {
		t.Fatalf("removed = %q; want 261", removed)
	}
	if _, ok := s.Resolve("261"); ok {
		t.Fatalf("mapping survived unlink")
	}
}

func TestUnlink_NotFoundMutatesNothing(t *testing.T) {
	s := NewMappingService(newTestCache(t))
	s.Link("261", "d1")

	if _, err := s.Unlink("stranger"); !errors.Is(err, ErrMappingNotFound) {
		t.Fatalf("err = %v; want ErrMappingNotFound", err)
	}
	if chatID, ok := s.Resolve("261"); !ok || chatID != "d1" {
		t.Fatalf("unrelated mapping disturbed: (%q, %v)", chatID, ok)
	}
}

func TestUnlink_ConcurrentRelinkSurvives(t *testing.T) {
	// An Unlink racing a Link that repoints the same external id must never
	// delete the fresh entry: either the Link lands first and Unlink finds
	// nothing, or Unlink removes the old entry before the Link lands. In both
	// orders the new mapping survives.
	for i := 0; i < 200; i++ {
		s := NewMappingService(newTestCache(t))
		s.Link("261", "d1")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.Unlink("d1")
		}()
		go func() {
			defer wg.Done()
			s.Link("261", "d2")
		}()
		wg.Wait()

		if chatID, ok := s.Resolve("261"); !ok || chatID != "d2" {
			t.Fatalf("iteration %d: Resolve = (%q, %v); want (d2, true)", i, chatID, ok)
		}
	}
}

func TestResolveChat(t *testing.T) {
	s := NewMappingService(newTestCache(t))
	s.Link("261", "d1")
	s.Link("262", "d2")

	externalID, ok := s.ResolveChat("d2")
	if !ok || externalID != "262" {
		t.Fatalf("ResolveChat = (%q, %v); want (262, true)", externalID, ok)
	}
	if _, ok := s.ResolveChat("d3"); ok {
		t.Fatalf("unknown chat id resolved")
	}
}
