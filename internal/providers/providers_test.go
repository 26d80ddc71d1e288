package providers

import (
	"errors"
	"fmt"
	"testing"
)

func TestCapabilitySet(t *testing.T) {
	t.Run("Has", func(t *testing.T) {
		set := NewCapabilitySet(CapCreateUser, CapDeleteUser)

		if !set.Has(CapCreateUser) {
			t.Error("expected set to contain create_user")
		}
		if !set.Has(CapDeleteUser) {
			t.Error("expected set to contain delete_user")
		}
		if set.Has(CapEnableDisableUser) {
			t.Error("expected set to not contain enable_disable_user")
		}
	})

	t.Run("Empty Set", func(t *testing.T) {
		set := NewCapabilitySet()
		if set.Has(CapCreateUser) {
			t.Error("expected empty set to contain nothing")
		}
	})

	t.Run("Capability String", func(t *testing.T) {
		tests := []struct {
			cap  Capability
			want string
		}{
			{CapCreateUser, "create_user"},
			{CapDeleteUser, "delete_user"},
			{CapLibraryAccess, "library_access"},
			{CapEnableDisableUser, "enable_disable_user"},
			{CapDownloadPermission, "download_permission"},
			{Capability(99), ""},
		}

		for _, tt := range tests {
			if got := tt.cap.String(); got != tt.want {
				t.Errorf("Capability(%d).String() = %q, want %q", tt.cap, got, tt.want)
			}
		}
	})
}

func TestUserKind(t *testing.T) {
	t.Run("Zero Value Is Friend", func(t *testing.T) {
		var kind UserKind
		if kind != KindFriend {
			t.Errorf("expected zero value to be KindFriend, got %v", kind)
		}
	})

	t.Run("String", func(t *testing.T) {
		if got := KindFriend.String(); got != "friend" {
			t.Errorf("expected 'friend', got %q", got)
		}
		if got := KindHome.String(); got != "home" {
			t.Errorf("expected 'home', got %q", got)
		}
	})
}

func TestProviderError(t *testing.T) {
	t.Run("Error Message", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := NewError("create_user", "plex-main", cause)

		msg := err.Error()
		if msg != "provider plex-main: create_user: connection refused" {
			t.Errorf("unexpected error message: %s", msg)
		}
	})

	t.Run("Unwrap", func(t *testing.T) {
		cause := fmt.Errorf("timeout")
		err := NewError("list_users", "jellyfin-main", cause)

		if !errors.Is(err, cause) {
			t.Error("expected errors.Is to find the wrapped cause")
		}
	})

	t.Run("Wrapped Sentinel", func(t *testing.T) {
		err := NewError("create_user", "plex-main", ErrNotOpened)

		if !errors.Is(err, ErrNotOpened) {
			t.Error("expected errors.Is to find ErrNotOpened through the wrapper")
		}
	})
}

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"AlreadyExists", ErrAlreadyExists, true},
		{"UsernameTaken", ErrUsernameTaken, true},
		{"EmailRequired", ErrEmailRequired, true},
		{"Wrapped UsernameTaken", NewError("create_user", "s", ErrUsernameTaken), true},
		{"NotOpened", ErrNotOpened, false},
		{"Generic", fmt.Errorf("boom"), false},
		{"Nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConflict(tt.err); got != tt.want {
				t.Errorf("IsConflict(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
