package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestJellyfinClient(t *testing.T, handler http.HandlerFunc) (*JellyfinClient, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewJellyfinClient(ConnectionParams{
		ServerName: "jf-test",
		URL:        server.URL,
		Token:      "test_token",
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client, server
}

func TestNewJellyfinClient(t *testing.T) {
	t.Run("With Valid Params", func(t *testing.T) {
		client, err := NewJellyfinClient(ConnectionParams{
			ServerName: "jf-main",
			URL:        "http://localhost:8096/",
			Token:      "abc",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if client.Name() != "jf-main" {
			t.Errorf("expected name 'jf-main', got %s", client.Name())
		}
		if client.baseURL != "http://localhost:8096" {
			t.Errorf("expected trailing slash to be trimmed, got %s", client.baseURL)
		}
	})

	t.Run("Missing URL", func(t *testing.T) {
		_, err := NewJellyfinClient(ConnectionParams{Token: "abc"})
		if err == nil {
			t.Error("expected error for missing url")
		}
	})

	t.Run("Missing Token", func(t *testing.T) {
		_, err := NewJellyfinClient(ConnectionParams{URL: "http://localhost:8096"})
		if err == nil {
			t.Error("expected error for missing token")
		}
	})

	t.Run("Default Name", func(t *testing.T) {
		client, err := NewJellyfinClient(ConnectionParams{URL: "http://localhost:8096", Token: "abc"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if client.Name() != "jellyfin" {
			t.Errorf("expected default name 'jellyfin', got %s", client.Name())
		}
	})

	t.Run("Client Interface", func(t *testing.T) {
		client, _ := NewJellyfinClient(ConnectionParams{URL: "http://localhost:8096", Token: "abc"})
		var _ Client = client
	})
}

func TestJellyfinConnection(t *testing.T) {
	t.Run("TestConnection Success", func(t *testing.T) {
		var gotAuth string
		client, _ := newTestJellyfinClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(map[string]string{"Id": "server-1"})
		})

		if !client.TestConnection(context.Background()) {
			t.Error("expected connection test to succeed")
		}
		if gotAuth != `MediaBrowser Token="test_token"` {
			t.Errorf("unexpected authorization header: %s", gotAuth)
		}
	})

	t.Run("TestConnection Failure", func(t *testing.T) {
		client, _ := newTestJellyfinClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		if client.TestConnection(context.Background()) {
			t.Error("expected connection test to fail")
		}
	})

	t.Run("Operations Before Open", func(t *testing.T) {
		client, _ := newTestJellyfinClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request should reach the server before Open")
		})

		_, err := client.ListUsers(context.Background())
		if !errors.Is(err, ErrNotOpened) {
			t.Errorf("expected ErrNotOpened, got %v", err)
		}
	})
}

func TestJellyfinCreateUser(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client, _ := newTestJellyfinClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet && r.URL.Path == "/Users":
				json.NewEncoder(w).Encode([]JellyfinUser{{ID: "u1", Name: "alice"}})
			case r.Method == http.MethodPost && r.URL.Path == "/Users/New":
				var payload map[string]string
				json.NewDecoder(r.Body).Decode(&payload)
				if payload["Name"] != "bob" {
					t.Errorf("expected Name 'bob', got %s", payload["Name"])
				}
				if payload["Password"] != "hunter2" {
					t.Errorf("expected password to be forwarded")
				}
				json.NewEncoder(w).Encode(JellyfinUser{ID: "u2", Name: "bob"})
			default:
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
		})

		client.Open(context.Background())
		user, err := client.CreateUser(context.Background(), UserSpec{Username: "bob", Password: "hunter2", Email: "bob@example.com"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if user.ExternalID != "u2" {
			t.Errorf("expected external id 'u2', got %s", user.ExternalID)
		}
		if user.Email != "bob@example.com" {
			t.Errorf("expected email to carry over, got %s", user.Email)
		}
	})

	t.Run("Username Taken", func(t *testing.T) {
		created := false
		client, _ := newTestJellyfinClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/Users/New" {
				created = true
			}
			json.NewEncoder(w).Encode([]JellyfinUser{{ID: "u1", Name: "Alice"}})
		})

		client.Open(context.Background())
		_, err := client.CreateUser(context.Background(), UserSpec{Username: "alice"})
		if !errors.Is(err, ErrUsernameTaken) {
			t.Errorf("expected ErrUsernameTaken for case-insensitive match, got %v", err)
		}
		if created {
			t.Error("no create call should be made when the name is taken")
		}
	})

	t.Run("Missing Username", func(t *testing.T) {
		client, _ := newTestJellyfinClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request should be made")
		})

		client.Open(context.Background())
		_, err := client.CreateUser(context.Background(), UserSpec{Username: "  "})
		if err == nil {
			t.Error("expected error for blank username")
		}
	})
}

func TestJellyfinDeleteUser(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client, _ := newTestJellyfinClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete || r.URL.Path != "/Users/u1" {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			w.WriteHeader(http.StatusNoContent)
		})

		client.Open(context.Background())
		deleted, err := client.DeleteUser(context.Background(), "u1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !deleted {
			t.Error("expected deleted to be true")
		}
	})

	t.Run("Missing User Is Not An Error", func(t *testing.T) {
		client, _ := newTestJellyfinClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		client.Open(context.Background())
		deleted, err := client.DeleteUser(context.Background(), "ghost")
		if err != nil {
			t.Fatalf("expected no error for missing user, got %v", err)
		}
		if deleted {
			t.Error("expected deleted to be false")
		}
	})
}

func TestJellyfinPolicyUpdates(t *testing.T) {
	// policyServer serves one user and records the policy written back.
	policyServer := func(t *testing.T, initial JellyfinPolicy, written *JellyfinPolicy) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet && r.URL.Path == "/Users/u1":
				json.NewEncoder(w).Encode(JellyfinUser{ID: "u1", Name: "alice", Policy: &initial})
			case r.Method == http.MethodPost && r.URL.Path == "/Users/u1/Policy":
				json.NewDecoder(r.Body).Decode(written)
				w.WriteHeader(http.StatusNoContent)
			default:
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
		}
	}

	t.Run("SetLibraryAccess", func(t *testing.T) {
		var written JellyfinPolicy
		client, _ := newTestJellyfinClient(t, policyServer(t, JellyfinPolicy{EnableAllFolders: true, EnableMediaPlayback: true}, &written))

		client.Open(context.Background())
		ok, err := client.SetLibraryAccess(context.Background(), "u1", []string{"lib1", "lib2"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !ok {
			t.Error("expected supported operation to report true")
		}

		if written.EnableAllFolders {
			t.Error("expected EnableAllFolders to be cleared")
		}
		if len(written.EnabledFolders) != 2 {
			t.Errorf("expected 2 enabled folders, got %v", written.EnabledFolders)
		}
		if !written.EnableMediaPlayback {
			t.Error("unrelated policy fields must survive the read-modify-write")
		}
	})

	t.Run("SetLibraryAccess Empty Revokes All", func(t *testing.T) {
		var written JellyfinPolicy
		client, _ := newTestJellyfinClient(t, policyServer(t, JellyfinPolicy{EnableAllFolders: true}, &written))

		client.Open(context.Background())
		ok, err := client.SetLibraryAccess(context.Background(), "u1", []string{})
		if err != nil || !ok {
			t.Fatalf("expected success, got ok=%v err=%v", ok, err)
		}

		if written.EnableAllFolders {
			t.Error("expected EnableAllFolders to be cleared")
		}
		if written.EnabledFolders == nil || len(written.EnabledFolders) != 0 {
			t.Errorf("expected explicit empty folder list, got %v", written.EnabledFolders)
		}
	})

	t.Run("SetUserEnabled", func(t *testing.T) {
		var written JellyfinPolicy
		client, _ := newTestJellyfinClient(t, policyServer(t, JellyfinPolicy{}, &written))

		client.Open(context.Background())
		ok, err := client.SetUserEnabled(context.Background(), "u1", false)
		if err != nil || !ok {
			t.Fatalf("expected success, got ok=%v err=%v", ok, err)
		}

		if !written.IsDisabled {
			t.Error("expected disabling the user to set IsDisabled")
		}
	})

	t.Run("UpdatePermissions", func(t *testing.T) {
		var written JellyfinPolicy
		client, _ := newTestJellyfinClient(t, policyServer(t, JellyfinPolicy{}, &written))

		client.Open(context.Background())
		ok, err := client.UpdatePermissions(context.Background(), "u1", Permissions{
			AllowDownload: true,
			AllowStream:   true,
		})
		if err != nil || !ok {
			t.Fatalf("expected success, got ok=%v err=%v", ok, err)
		}

		if !written.EnableContentDownloading {
			t.Error("expected download flag to map to EnableContentDownloading")
		}
		if !written.EnableMediaPlayback {
			t.Error("expected stream flag to map to EnableMediaPlayback")
		}
		if written.EnableSyncTranscoding || written.EnableMediaConversion {
			t.Error("unset flags must map to false")
		}
	})

	t.Run("Missing User Reports False", func(t *testing.T) {
		client, _ := newTestJellyfinClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		client.Open(context.Background())
		ok, err := client.SetUserEnabled(context.Background(), "ghost", true)
		if err != nil {
			t.Fatalf("expected no error for missing user, got %v", err)
		}
		if ok {
			t.Error("expected false for missing user")
		}
	})
}

func TestJellyfinLibraries(t *testing.T) {
	client, _ := newTestJellyfinClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/Library/MediaFolders") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]JellyfinFolder{
			{ID: "f1", Name: "Movies", CollectionType: "movies"},
			{ID: "f2", Name: "Shows", CollectionType: "tvshows"},
		})
	})

	client.Open(context.Background())
	libraries, err := client.Libraries(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(libraries) != 2 {
		t.Fatalf("expected 2 libraries, got %d", len(libraries))
	}
	if libraries[0].ExternalID != "f1" || libraries[0].Name != "Movies" {
		t.Errorf("unexpected library mapping: %+v", libraries[0])
	}
}
