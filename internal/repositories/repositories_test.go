package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/usher/internal/models"
	"github.com/desertthunder/usher/internal/shared"
)

// newTestDB creates an in-memory database with the full schema applied.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func TestNextSequence(t *testing.T) {
	db := newTestDB(t)

	t.Run("Increments Per Table", func(t *testing.T) {
		first, err := NextSequence(db, "invitations")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		second, err := NextSequence(db, "invitations")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if second != first+1 {
			t.Errorf("expected sequence to increment, got %d then %d", first, second)
		}
	})

	t.Run("Tables Are Independent", func(t *testing.T) {
		userSeq, err := NextSequence(db, "users")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if userSeq != 1 {
			t.Errorf("expected first users sequence to be 1, got %d", userSeq)
		}
	})
}

func TestIDColumns(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
	}{
		{"Empty", nil},
		{"Single", []string{"a"}},
		{"Multiple", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitIDs(joinIDs(tt.ids))
			if len(got) != len(tt.ids) {
				t.Fatalf("expected %d ids, got %d", len(tt.ids), len(got))
			}
			for i := range tt.ids {
				if got[i] != tt.ids[i] {
					t.Errorf("id %d: expected %s, got %s", i, tt.ids[i], got[i])
				}
			}
		})
	}
}

func TestMediaServerRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewMediaServerRepository(db)

	t.Run("Create And Get", func(t *testing.T) {
		server := models.NewMediaServer(0, "plex-main", "plex", "http://localhost:32400")
		if err := repo.Create(server); err != nil {
			t.Fatalf("failed to create server: %v", err)
		}
		if server.ID() == "" {
			t.Fatal("expected generated id")
		}

		got, err := repo.Get(server.ID())
		if err != nil {
			t.Fatalf("failed to get server: %v", err)
		}
		if got.Name() != "plex-main" || got.ServerType() != "plex" {
			t.Errorf("unexpected server: %s/%s", got.Name(), got.ServerType())
		}
	})

	t.Run("GetByName", func(t *testing.T) {
		got, err := repo.GetByName("plex-main")
		if err != nil {
			t.Fatalf("failed to get server by name: %v", err)
		}
		if got.URL() != "http://localhost:32400" {
			t.Errorf("unexpected url: %s", got.URL())
		}

		_, err = repo.GetByName("ghost")
		if !errors.Is(err, shared.ErrServerNotFound) {
			t.Errorf("expected ErrServerNotFound, got %v", err)
		}
	})

	t.Run("List Filters By Type", func(t *testing.T) {
		jf := models.NewMediaServer(0, "jf-main", "jellyfin", "http://localhost:8096")
		if err := repo.Create(jf); err != nil {
			t.Fatalf("failed to create server: %v", err)
		}

		servers, err := repo.List(map[string]any{"server_type": "jellyfin"})
		if err != nil {
			t.Fatalf("failed to list servers: %v", err)
		}
		if len(servers) != 1 || servers[0].Name() != "jf-main" {
			t.Errorf("unexpected filtered list: %d servers", len(servers))
		}
	})

	t.Run("Soft Delete", func(t *testing.T) {
		server := models.NewMediaServer(0, "temp", "plex", "http://localhost:1")
		if err := repo.Create(server); err != nil {
			t.Fatalf("failed to create server: %v", err)
		}

		if err := repo.Delete(server.ID()); err != nil {
			t.Fatalf("failed to delete server: %v", err)
		}

		if _, err := repo.Get(server.ID()); err == nil {
			t.Error("expected deleted server to be invisible")
		}
		if err := repo.Delete(server.ID()); err == nil {
			t.Error("expected double delete to fail")
		}
	})
}

func TestInvitationRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewInvitationRepository(db)

	t.Run("Create And GetByCode", func(t *testing.T) {
		invitation := models.NewInvitation(0, "WELCOME", []string{"s1", "s2"})
		maxUses := 3
		invitation.SetMaxUses(&maxUses)
		invitation.SetLibraryIDs([]string{"lib1"})
		invitation.SetPermissions(models.PermissionFlags{AllowDownload: true, AllowStream: true})

		if err := repo.Create(invitation); err != nil {
			t.Fatalf("failed to create invitation: %v", err)
		}

		got, err := repo.GetByCode("WELCOME")
		if err != nil {
			t.Fatalf("failed to get invitation: %v", err)
		}

		if len(got.ServerIDs()) != 2 {
			t.Errorf("expected 2 server ids, got %v", got.ServerIDs())
		}
		if got.MaxUses() == nil || *got.MaxUses() != 3 {
			t.Errorf("expected max uses 3, got %v", got.MaxUses())
		}
		if len(got.LibraryIDs()) != 1 || got.LibraryIDs()[0] != "lib1" {
			t.Errorf("expected library ids to round-trip, got %v", got.LibraryIDs())
		}
		if !got.Permissions().AllowDownload {
			t.Error("expected download permission to round-trip")
		}
		if !got.Enabled() {
			t.Error("expected new invitation to be enabled")
		}
	})

	t.Run("Unknown Code", func(t *testing.T) {
		_, err := repo.GetByCode("GHOST")
		if !errors.Is(err, shared.ErrInviteNotFound) {
			t.Errorf("expected ErrInviteNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		invitation, err := repo.GetByCode("WELCOME")
		if err != nil {
			t.Fatalf("failed to get invitation: %v", err)
		}

		invitation.SetEnabled(false)
		expiry := time.Now().Add(24 * time.Hour)
		invitation.SetExpiresAt(&expiry)

		if err := repo.Update(invitation); err != nil {
			t.Fatalf("failed to update invitation: %v", err)
		}

		got, err := repo.Get(invitation.ID())
		if err != nil {
			t.Fatalf("failed to get invitation: %v", err)
		}
		if got.Enabled() {
			t.Error("expected invitation to be disabled")
		}
		if got.ExpiresAt() == nil {
			t.Error("expected expiry to be set")
		}
	})

	t.Run("List Filters By Enabled", func(t *testing.T) {
		enabled := models.NewInvitation(0, "OPEN", []string{"s1"})
		if err := repo.Create(enabled); err != nil {
			t.Fatalf("failed to create invitation: %v", err)
		}

		invitations, err := repo.List(map[string]any{"enabled": true})
		if err != nil {
			t.Fatalf("failed to list invitations: %v", err)
		}
		if len(invitations) != 1 || invitations[0].Code() != "OPEN" {
			t.Errorf("unexpected enabled list: %d invitations", len(invitations))
		}
	})
}

func TestUserRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	t.Run("Create And Get", func(t *testing.T) {
		user := models.NewUser(0, "ident-1", "server-1", "ext-1", "alice")
		user.SetEmail("alice@example.com")

		if err := repo.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		got, err := repo.Get(user.ID())
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.Username() != "alice" || got.Email() != "alice@example.com" {
			t.Errorf("unexpected user: %s/%s", got.Username(), got.Email())
		}
		if got.ServerID() != "server-1" || got.ExternalID() != "ext-1" {
			t.Errorf("unexpected server binding: %s/%s", got.ServerID(), got.ExternalID())
		}
	})

	t.Run("Validation Failure", func(t *testing.T) {
		user := models.NewUser(0, "", "server-1", "ext-2", "bob")
		if err := repo.Create(user); err == nil {
			t.Error("expected validation error for missing identity id")
		}
	})

	t.Run("List Filters", func(t *testing.T) {
		other := models.NewUser(0, "ident-2", "server-2", "ext-3", "carol")
		if err := repo.Create(other); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		byServer, err := repo.List(map[string]any{"server_id": "server-2"})
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(byServer) != 1 || byServer[0].Username() != "carol" {
			t.Errorf("unexpected server filter result: %d users", len(byServer))
		}

		byIdentity, err := repo.List(map[string]any{"identity_id": "ident-1"})
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(byIdentity) != 1 || byIdentity[0].Username() != "alice" {
			t.Errorf("unexpected identity filter result: %d users", len(byIdentity))
		}
	})

	t.Run("Soft Delete Excludes From List", func(t *testing.T) {
		users, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		before := len(users)

		if err := repo.Delete(users[0].ID()); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}

		users, err = repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(users) != before-1 {
			t.Errorf("expected %d users after delete, got %d", before-1, len(users))
		}
	})
}

func TestIdentityRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewIdentityRepository(db)

	t.Run("Create And Get", func(t *testing.T) {
		identity := models.NewIdentity(0, "Alice", "invite-1")
		if err := repo.Create(identity); err != nil {
			t.Fatalf("failed to create identity: %v", err)
		}

		got, err := repo.Get(identity.ID())
		if err != nil {
			t.Fatalf("failed to get identity: %v", err)
		}
		if got.DisplayName() != "Alice" {
			t.Errorf("unexpected display name: %s", got.DisplayName())
		}
	})

	t.Run("List By Invitation", func(t *testing.T) {
		identities, err := repo.List(map[string]any{"invitation_id": "invite-1"})
		if err != nil {
			t.Fatalf("failed to list identities: %v", err)
		}
		if len(identities) != 1 {
			t.Errorf("expected 1 identity, got %d", len(identities))
		}
	})
}

func TestFinalizeRedemption(t *testing.T) {
	setup := func(t *testing.T) (*sql.DB, *models.Invitation) {
		db := newTestDB(t)

		invitation := models.NewInvitation(0, "REDEEM", []string{"server-1", "server-2"})
		maxUses := 1
		invitation.SetMaxUses(&maxUses)
		if err := NewInvitationRepository(db).Create(invitation); err != nil {
			t.Fatalf("failed to create invitation: %v", err)
		}
		return db, invitation
	}

	t.Run("Commits Identity Users And Use Count Together", func(t *testing.T) {
		db, invitation := setup(t)

		identity := models.NewIdentity(0, "Bob", invitation.ID())
		users := []*models.User{
			models.NewUser(0, "pending", "server-1", "bob@example.com", "bob"),
			models.NewUser(0, "pending", "server-2", "u-42", "bob"),
		}

		if err := FinalizeRedemption(db, invitation, identity, users); err != nil {
			t.Fatalf("failed to finalize redemption: %v", err)
		}

		if identity.ID() == "" {
			t.Fatal("expected generated identity id")
		}
		for _, user := range users {
			if user.IdentityID() != identity.ID() {
				t.Errorf("expected user to be bound to identity, got %s", user.IdentityID())
			}
			if user.InvitationID() != invitation.ID() {
				t.Errorf("expected user to record the invitation, got %s", user.InvitationID())
			}
		}

		stored, err := NewUserRepository(db).List(map[string]any{"identity_id": identity.ID()})
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(stored) != 2 {
			t.Errorf("expected 2 stored users, got %d", len(stored))
		}

		got, err := NewInvitationRepository(db).Get(invitation.ID())
		if err != nil {
			t.Fatalf("failed to get invitation: %v", err)
		}
		if got.UseCount() != 1 {
			t.Errorf("expected use count 1, got %d", got.UseCount())
		}
		if invitation.UseCount() != 1 {
			t.Errorf("expected in-memory use count to follow, got %d", invitation.UseCount())
		}
	})

	t.Run("Exhausted Invitation Writes Nothing", func(t *testing.T) {
		db, invitation := setup(t)

		first := models.NewIdentity(0, "Bob", invitation.ID())
		err := FinalizeRedemption(db, invitation, first, []*models.User{
			models.NewUser(0, "pending", "server-1", "bob@example.com", "bob"),
		})
		if err != nil {
			t.Fatalf("failed to finalize first redemption: %v", err)
		}

		second := models.NewIdentity(0, "Carol", invitation.ID())
		err = FinalizeRedemption(db, invitation, second, []*models.User{
			models.NewUser(0, "pending", "server-1", "carol@example.com", "carol"),
		})
		if !errors.Is(err, shared.ErrInviteMaxUses) {
			t.Fatalf("expected ErrInviteMaxUses, got %v", err)
		}

		users, err := NewUserRepository(db).List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(users) != 1 {
			t.Errorf("expected the failed redemption to write no users, got %d", len(users))
		}
	})

	t.Run("Invalid User Aborts The Transaction", func(t *testing.T) {
		db, invitation := setup(t)

		identity := models.NewIdentity(0, "Bob", invitation.ID())
		users := []*models.User{
			models.NewUser(0, "pending", "server-1", "bob@example.com", "bob"),
			models.NewUser(0, "pending", "", "", ""),
		}

		if err := FinalizeRedemption(db, invitation, identity, users); err == nil {
			t.Fatal("expected validation error")
		}

		stored, err := NewUserRepository(db).List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(stored) != 0 {
			t.Errorf("expected no users after aborted transaction, got %d", len(stored))
		}

		got, err := NewInvitationRepository(db).Get(invitation.ID())
		if err != nil {
			t.Fatalf("failed to get invitation: %v", err)
		}
		if got.UseCount() != 0 {
			t.Errorf("expected use count unchanged, got %d", got.UseCount())
		}
	})
}
