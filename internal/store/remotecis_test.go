package store

import (
	"context"
	"errors"
	"testing"

	"github.com/distributed-ci/dci-server/internal/model"
)

func createTestRemoteCI(t *testing.T, s *Store, name, teamID string) *model.RemoteCI {
	t.Helper()
	r := &model.RemoteCI{Name: name, TeamID: teamID}
	if err := s.CreateRemoteCI(context.Background(), r); err != nil {
		t.Fatalf("CreateRemoteCI: %v", err)
	}
	return r
}

func createTestTeam(t *testing.T, s *Store, name string) *model.Team {
	t.Helper()
	team := &model.Team{Name: name}
	if err := s.CreateTeam(context.Background(), team); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	return team
}

func TestCreateRemoteCIGeneratesSecret(t *testing.T) {
	s := newTestStore(t)

	team := createTestTeam(t, s, "partner")
	rci := createTestRemoteCI(t, s, "lab-1", team.ID)

	if rci.APISecret == "" {
		t.Fatal("expected a generated api_secret")
	}
	other := createTestRemoteCI(t, s, "lab-2", team.ID)
	if other.APISecret == rci.APISecret {
		t.Error("two remotecis should not share an api_secret")
	}
}

func TestListRemoteCIsTeamScope(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t1 := createTestTeam(t, s, "team-1")
	t2 := createTestTeam(t, s, "team-2")
	createTestRemoteCI(t, s, "lab-1", t1.ID)
	createTestRemoteCI(t, s, "lab-2", t1.ID)
	createTestRemoteCI(t, s, "lab-3", t2.ID)

	all, err := s.ListRemoteCIs(ctx, "")
	if err != nil {
		t.Fatalf("ListRemoteCIs: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d remotecis, want 3", len(all))
	}

	scoped, err := s.ListRemoteCIs(ctx, t1.ID)
	if err != nil {
		t.Fatalf("ListRemoteCIs scoped: %v", err)
	}
	if len(scoped) != 2 {
		t.Errorf("got %d remotecis for team-1, want 2", len(scoped))
	}
}

func TestRotateAPISecret(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	team := createTestTeam(t, s, "partner")
	rci := createTestRemoteCI(t, s, "lab-1", team.ID)

	secret, newEtag, err := s.RotateAPISecret(ctx, rci.ID, rci.Etag)
	if err != nil {
		t.Fatalf("RotateAPISecret: %v", err)
	}
	if secret == rci.APISecret {
		t.Error("rotation should produce a new secret")
	}
	if newEtag == rci.Etag {
		t.Error("rotation should produce a new etag")
	}

	// The stored secret is the new one.
	signer, err := s.GetSigner(ctx, "remoteci", rci.ID)
	if err != nil {
		t.Fatalf("GetSigner: %v", err)
	}
	if signer.APISecret != secret {
		t.Error("store should hold the rotated secret")
	}

	// Rotating with the consumed etag fails.
	if _, _, err := s.RotateAPISecret(ctx, rci.ID, rci.Etag); !errors.Is(err, ErrEtagMismatch) {
		t.Fatalf("got %v, want ErrEtagMismatch", err)
	}
}

func TestGetSigner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	team := createTestTeam(t, s, "partner")
	rci := createTestRemoteCI(t, s, "lab-1", team.ID)

	feeder := &model.Feeder{Name: "feed-1", TeamID: team.ID}
	if err := s.CreateFeeder(ctx, feeder); err != nil {
		t.Fatalf("CreateFeeder: %v", err)
	}

	signer, err := s.GetSigner(ctx, "remoteci", rci.ID)
	if err != nil {
		t.Fatalf("GetSigner(remoteci): %v", err)
	}
	if signer.APISecret != rci.APISecret {
		t.Error("remoteci signer should carry its api_secret")
	}

	signer, err = s.GetSigner(ctx, "feeder", feeder.ID)
	if err != nil {
		t.Fatalf("GetSigner(feeder): %v", err)
	}
	if signer.APISecret != feeder.APISecret {
		t.Error("feeder signer should carry its api_secret")
	}

	// Unknown client types resolve to nothing, without error.
	signer, err = s.GetSigner(ctx, "telltale", rci.ID)
	if signer != nil || err != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", signer, err)
	}

	// Unknown ids are a lookup failure.
	if _, err := s.GetSigner(ctx, "remoteci", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestGetSignerIgnoresArchived(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	team := createTestTeam(t, s, "partner")
	rci := createTestRemoteCI(t, s, "lab-1", team.ID)

	if err := s.ArchiveRemoteCI(ctx, rci.ID, rci.Etag); err != nil {
		t.Fatalf("ArchiveRemoteCI: %v", err)
	}
	if _, err := s.GetSigner(ctx, "remoteci", rci.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound for archived remoteci", err)
	}
}

func TestArchiveAndPurgeRemoteCIs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	team := createTestTeam(t, s, "partner")
	rci := createTestRemoteCI(t, s, "lab-1", team.ID)

	if err := s.ArchiveRemoteCI(ctx, rci.ID, rci.Etag); err != nil {
		t.Fatalf("ArchiveRemoteCI: %v", err)
	}

	live, err := s.ListRemoteCIs(ctx, "")
	if err != nil {
		t.Fatalf("ListRemoteCIs: %v", err)
	}
	if len(live) != 0 {
		t.Errorf("got %d live remotecis, want 0", len(live))
	}

	archived, err := s.ListArchivedRemoteCIs(ctx)
	if err != nil {
		t.Fatalf("ListArchivedRemoteCIs: %v", err)
	}
	if len(archived) != 1 {
		t.Fatalf("got %d archived remotecis, want 1", len(archived))
	}

	n, err := s.PurgeArchivedRemoteCIs(ctx)
	if err != nil {
		t.Fatalf("PurgeArchivedRemoteCIs: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	if _, err := s.GetRemoteCI(ctx, rci.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound after purge", err)
	}
}

func TestRConfigurations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	team := createTestTeam(t, s, "partner")
	rci := createTestRemoteCI(t, s, "lab-1", team.ID)

	cfg := &model.RConfiguration{Name: "nightly", Topic: "OSP16", Component: "puddle"}
	if err := s.CreateRConfiguration(ctx, rci.ID, cfg); err != nil {
		t.Fatalf("CreateRConfiguration: %v", err)
	}

	configs, err := s.ListRConfigurations(ctx, rci.ID)
	if err != nil {
		t.Fatalf("ListRConfigurations: %v", err)
	}
	if len(configs) != 1 || configs[0].Name != "nightly" {
		t.Fatalf("got %+v, want the nightly configuration", configs)
	}

	got, err := s.GetRConfiguration(ctx, rci.ID, cfg.ID)
	if err != nil {
		t.Fatalf("GetRConfiguration: %v", err)
	}
	if got.Topic != "OSP16" {
		t.Errorf("got topic %q, want %q", got.Topic, "OSP16")
	}

	if err := s.ArchiveRConfiguration(ctx, rci.ID, cfg.ID); err != nil {
		t.Fatalf("ArchiveRConfiguration: %v", err)
	}
	configs, err = s.ListRConfigurations(ctx, rci.ID)
	if err != nil {
		t.Fatalf("ListRConfigurations after archive: %v", err)
	}
	if len(configs) != 0 {
		t.Errorf("got %d configurations after archive, want 0", len(configs))
	}
}
