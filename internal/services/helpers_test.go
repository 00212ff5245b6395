package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/avendel/go-delivery-backend/internal/catalog"
	"github.com/avendel/go-delivery-backend/internal/domain"
	"github.com/avendel/go-delivery-backend/internal/repo"
)

// ----- Shared fakes -----

// nullRemote satisfies repo.Remote without any remote I/O. Tests exercise
// state through the cache's working document; flushing is irrelevant here.
type nullRemote struct{}

func (nullRemote) Load(ctx context.Context) (*domain.StateDocument, error) {
	return domain.NewStateDocument(), nil
}

func (nullRemote) Store(ctx context.Context, doc *domain.StateDocument) error {
	return nil
}

// newTestCache returns a loaded cache with a debounce long enough that no
// flush fires during a test.
func newTestCache(t *testing.T) *repo.Cache {
	t.Helper()
	c := repo.NewCache(nullRemote{}, repo.CacheOptions{Debounce: time.Hour}, zerolog.Nop())
	c.Load(context.Background())
	return c
}

// fakeMessenger records calls and fails individual steps on demand.
type fakeMessenger struct {
	mu sync.Mutex

	dms        []string // contents of SendDM calls
	dmErr      error
	files      []string // paths of SendFile calls
	fileErr    error
	roleCalls  int
	roleHeld   bool // role already held: GrantRole returns (false, nil)
	roleErr    error
	broadcasts []string
	bcastErr   error
}

func (m *fakeMessenger) SendDM(ctx context.Context, chatID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dmErr != nil {
		return m.dmErr
	}
	m.dms = append(m.dms, content)
	return nil
}

func (m *fakeMessenger) SendFile(ctx context.Context, chatID, path, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fileErr != nil {
		return m.fileErr
	}
	m.files = append(m.files, path)
	return nil
}

func (m *fakeMessenger) GrantRole(ctx context.Context, chatID, roleID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roleCalls++
	if m.roleErr != nil {
		return false, m.roleErr
	}
	return !m.roleHeld, nil
}

func (m *fakeMessenger) Broadcast(ctx context.Context, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bcastErr != nil {
		return m.bcastErr
	}
	m.broadcasts = append(m.broadcasts, content)
	return nil
}

func (m *fakeMessenger) fileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

// testProduct writes a real deliverable to disk so the file-exists gate in
// the orchestrator passes.
func testProduct(t *testing.T, id string) catalog.Product {
	t.Helper()
	path := filepath.Join(t.TempDir(), id+".rbxm")
	if err := os.WriteFile(path, []byte("asset"), 0o600); err != nil {
		t.Fatalf("write deliverable: %v", err)
	}
	return catalog.Product{
		ID:            id,
		EntitlementID: "ent-" + id,
		FilePath:      path,
		RoleID:        "role-1",
		Name:          "Test " + id,
		Description:   "test product",
	}
}

// missingProduct has no deliverable on disk.
func missingProduct(id string) catalog.Product {
	return catalog.Product{
		ID:            id,
		EntitlementID: "ent-" + id,
		FilePath:      filepath.Join(os.TempDir(), "definitely-missing", id+".rbxm"),
		RoleID:        "role-1",
		Name:          "Test " + id,
	}
}
