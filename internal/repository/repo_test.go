package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTest(t *testing.T) *Repo {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepo(db)
}

func TestSettingsDefaultsAndUpdate(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()

	s, err := r.UpsertSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("UpsertSettings: %v", err)
	}
	if s.PlaylistLimit != 50 || s.IdleTimeoutSeconds != 300 || !s.LeaveIfNoListeners || s.DefaultVolume != 40 || s.DefaultQueuePageSize != 10 {
		t.Fatalf("defaults = %+v", s)
	}

	s.DefaultVolume = 70
	s.LeaveIfNoListeners = false
	s.IdleTimeoutSeconds = 60
	if err := r.UpdateSettings(ctx, s); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	got, err := r.UpsertSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("UpsertSettings: %v", err)
	}
	if got.DefaultVolume != 70 || got.LeaveIfNoListeners || got.IdleTimeout().Seconds() != 60 {
		t.Errorf("updated = %+v", got)
	}
}

func TestPlaylists(t *testing.T) {
	svc := NewPlaylistService(openTest(t))
	ctx := context.Background()

	if _, err := svc.Save(ctx, "g1", "alice", "  Chill ", "https://example.com/chill"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := svc.Save(ctx, "g1", "bob", "chill", "https://example.com/other"); !errors.Is(err, ErrPlaylistExists) {
		t.Fatalf("duplicate Save = %v, want ErrPlaylistExists", err)
	}
	if _, err := svc.Save(ctx, "g2", "bob", "chill", "https://example.com/other"); err != nil {
		t.Fatalf("same name in other guild: %v", err)
	}
	svc.Save(ctx, "g1", "bob", "Workout", "https://example.com/gym")

	p, err := svc.Find(ctx, "g1", "CHILL")
	if err != nil || p.URL != "https://example.com/chill" || p.AuthorID != "alice" {
		t.Fatalf("Find = %+v, %v", p, err)
	}
	list, err := svc.List(ctx, "g1")
	if err != nil || len(list) != 2 || list[0].Name != "chill" || list[1].Name != "workout" {
		t.Fatalf("List = %+v, %v", list, err)
	}
	names, err := svc.Suggest(ctx, "g1", "wo")
	if err != nil || len(names) != 1 || names[0] != "workout" {
		t.Errorf("Suggest = %v, %v", names, err)
	}

	if err := svc.Remove(ctx, "g1", "bob", "chill", false); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Remove by non-owner = %v", err)
	}
	if err := svc.Remove(ctx, "g1", "bob", "chill", true); err != nil {
		t.Errorf("forced Remove = %v", err)
	}
	if _, err := svc.Find(ctx, "g1", "chill"); !errors.Is(err, ErrPlaylistNotFound) {
		t.Errorf("Find after remove = %v", err)
	}
	if err := svc.Remove(ctx, "g1", "alice", "nope", false); !errors.Is(err, ErrPlaylistNotFound) {
		t.Errorf("Remove missing = %v", err)
	}
}
