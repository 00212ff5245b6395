package roblox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/avendel/go-delivery-backend/internal/config"
)

func newTestClient(usersURL, inventoryURL string) *Client {
	return New(config.RobloxConfig{
		UsersAPIURL:     usersURL,
		InventoryAPIURL: inventoryURL,
		Timeout:         2 * time.Second,
	}, zerolog.Nop())
}

func TestLookupUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/usernames/users" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body struct {
			Usernames          []string `json:"usernames"`
			ExcludeBannedUsers bool     `json:"excludeBannedUsers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(body.Usernames) != 1 || body.Usernames[0] != "builderman" {
			t.Errorf("usernames = %v", body.Usernames)
		}
		if !body.ExcludeBannedUsers {
			t.Errorf("expected excludeBannedUsers=true")
		}
		_, _ = w.Write([]byte(`{"data":[{"id":156,"requestedUsername":"builderman"}]}`))
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL, srv.URL).LookupUserID(context.Background(), "  builderman ")
	if err != nil {
		t.Fatalf("LookupUserID: %v", err)
	}
	if id != "156" {
		t.Fatalf("id = %q; want 156", id)
	}
}

func TestLookupUserID_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, srv.URL).LookupUserID(context.Background(), "ghost")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v; want ErrUserNotFound", err)
	}
}

func TestLookupUserID_EmptyUsername(t *testing.T) {
	_, err := newTestClient("http://unused", "http://unused").LookupUserID(context.Background(), "   ")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v; want ErrUserNotFound", err)
	}
}

func TestLookupUserID_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, srv.URL).LookupUserID(context.Background(), "builderman")
	if err == nil || errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestOwnsEntitlement_Owned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/users/261/items/GamePass/824516723" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[{"id":824516723}]}`))
	}))
	defer srv.Close()

	if !newTestClient(srv.URL, srv.URL).OwnsEntitlement(context.Background(), "261", "824516723") {
		t.Fatalf("expected owned")
	}
}

func TestOwnsEntitlement_NotOwned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	if newTestClient(srv.URL, srv.URL).OwnsEntitlement(context.Background(), "261", "824516723") {
		t.Fatalf("expected not owned")
	}
}

func TestOwnsEntitlement_FailClosed(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"bad json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{broken`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()
			if newTestClient(srv.URL, srv.URL).OwnsEntitlement(context.Background(), "261", "x") {
				t.Fatalf("expected fail-closed false")
			}
		})
	}
}

func TestOwnsEntitlement_TransportDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	if newTestClient(srv.URL, srv.URL).OwnsEntitlement(context.Background(), "261", "x") {
		t.Fatalf("expected fail-closed false when store unreachable")
	}
}
