package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"voucherwatch/internal/models"

	"github.com/google/uuid"
)

func newTestLink(fingerprint string, createdAt time.Time) *models.VoucherLink {
	return &models.VoucherLink{
		ID:           uuid.NewString(),
		EncryptedURL: "00112233445566778899aabb:00112233445566778899aabbccddeeff:" + fingerprint,
		Fingerprint:  fingerprint,
		CreatedAt:    createdAt,
	}
}

// runStorageConformance exercises the behaviour every backend must share.
func runStorageConformance(t *testing.T, newStorage func(t *testing.T) Storage) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("EmptyLinks", func(t *testing.T) {
		s := newStorage(t)

		links, err := s.Links(ctx)
		if err != nil {
			t.Fatalf("Links failed: %v", err)
		}
		if links == nil {
			t.Error("Links should return an empty slice, not nil")
		}
		if len(links) != 0 {
			t.Errorf("expected 0 links, got %d", len(links))
		}
	})

	t.Run("CreateAndGet", func(t *testing.T) {
		s := newStorage(t)
		link := newTestLink("fp-create", base)

		if err := s.CreateLink(ctx, link); err != nil {
			t.Fatalf("CreateLink failed: %v", err)
		}

		got, err := s.GetLink(ctx, link.ID)
		if err != nil {
			t.Fatalf("GetLink failed: %v", err)
		}
		if got.ID != link.ID || got.EncryptedURL != link.EncryptedURL || got.Fingerprint != link.Fingerprint {
			t.Errorf("GetLink returned %+v, want %+v", got, link)
		}
		if !got.CreatedAt.Equal(link.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, link.CreatedAt)
		}

		byFP, err := s.GetLinkByFingerprint(ctx, "fp-create")
		if err != nil {
			t.Fatalf("GetLinkByFingerprint failed: %v", err)
		}
		if byFP.ID != link.ID {
			t.Errorf("GetLinkByFingerprint returned ID %s, want %s", byFP.ID, link.ID)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStorage(t)

		if _, err := s.GetLink(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetLink error = %v, want ErrNotFound", err)
		}
		if _, err := s.GetLinkByFingerprint(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetLinkByFingerprint error = %v, want ErrNotFound", err)
		}
	})

	t.Run("DuplicateFingerprint", func(t *testing.T) {
		s := newStorage(t)

		if err := s.CreateLink(ctx, newTestLink("fp-dup", base)); err != nil {
			t.Fatalf("CreateLink failed: %v", err)
		}
		err := s.CreateLink(ctx, newTestLink("fp-dup", base.Add(time.Second)))
		if !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("duplicate fingerprint error = %v, want ErrAlreadyExists", err)
		}

		links, err := s.Links(ctx)
		if err != nil {
			t.Fatalf("Links failed: %v", err)
		}
		if len(links) != 1 {
			t.Errorf("expected 1 link after duplicate insert, got %d", len(links))
		}
	})

	t.Run("DuplicateID", func(t *testing.T) {
		s := newStorage(t)
		link := newTestLink("fp-id-1", base)

		if err := s.CreateLink(ctx, link); err != nil {
			t.Fatalf("CreateLink failed: %v", err)
		}
		dup := newTestLink("fp-id-2", base)
		dup.ID = link.ID
		if err := s.CreateLink(ctx, dup); !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("duplicate ID error = %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("OrderedByCreation", func(t *testing.T) {
		s := newStorage(t)
		third := newTestLink("fp-3", base.Add(2*time.Hour))
		first := newTestLink("fp-1", base)
		second := newTestLink("fp-2", base.Add(time.Hour))

		for _, link := range []*models.VoucherLink{third, first, second} {
			if err := s.CreateLink(ctx, link); err != nil {
				t.Fatalf("CreateLink failed: %v", err)
			}
		}

		links, err := s.Links(ctx)
		if err != nil {
			t.Fatalf("Links failed: %v", err)
		}
		want := []string{first.ID, second.ID, third.ID}
		if len(links) != len(want) {
			t.Fatalf("expected %d links, got %d", len(want), len(links))
		}
		for i, id := range want {
			if links[i].ID != id {
				t.Errorf("links[%d] = %s, want %s", i, links[i].ID, id)
			}
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStorage(t)
		link := newTestLink("fp-delete", base)

		if err := s.CreateLink(ctx, link); err != nil {
			t.Fatalf("CreateLink failed: %v", err)
		}
		if err := s.DeleteLink(ctx, link.ID); err != nil {
			t.Fatalf("DeleteLink failed: %v", err)
		}
		if _, err := s.GetLink(ctx, link.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetLink after delete error = %v, want ErrNotFound", err)
		}
		if _, err := s.GetLinkByFingerprint(ctx, "fp-delete"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetLinkByFingerprint after delete error = %v, want ErrNotFound", err)
		}
		if err := s.DeleteLink(ctx, link.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("second DeleteLink error = %v, want ErrNotFound", err)
		}

		// The fingerprint is free again once the link is gone.
		if err := s.CreateLink(ctx, newTestLink("fp-delete", base)); err != nil {
			t.Errorf("re-creating deleted fingerprint failed: %v", err)
		}
	})

	t.Run("ReturnsCopies", func(t *testing.T) {
		s := newStorage(t)
		link := newTestLink("fp-copy", base)

		if err := s.CreateLink(ctx, link); err != nil {
			t.Fatalf("CreateLink failed: %v", err)
		}
		link.EncryptedURL = "mutated"

		got, err := s.GetLink(ctx, link.ID)
		if err != nil {
			t.Fatalf("GetLink failed: %v", err)
		}
		if got.EncryptedURL == "mutated" {
			t.Error("storage should not share the caller's record")
		}
		got.Fingerprint = "mutated"

		again, err := s.GetLink(ctx, link.ID)
		if err != nil {
			t.Fatalf("GetLink failed: %v", err)
		}
		if again.Fingerprint != "fp-copy" {
			t.Error("storage should return copies")
		}
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStorage(t)
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}
