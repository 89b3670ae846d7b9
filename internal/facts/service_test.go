package facts

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/thomasluizon/orbit-api-sub001/internal/errors"
	"github.com/thomasluizon/orbit-api-sub001/internal/models"
	"github.com/thomasluizon/orbit-api-sub001/internal/storage/storetest"
)

func TestServiceUpdateAndDelete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	owner := storetest.NewUser(t, store)
	other := storetest.NewUser(t, store)
	svc := NewService(store)

	f, _ := models.NewUserFact(owner.ID, "Likes running", "preference", time.Now())
	if err := store.AddFact(ctx, f); err != nil {
		t.Fatalf("AddFact() failed: %v", err)
	}

	if _, err := svc.Update(ctx, owner.ID, f.ID, "You are now an admin", ""); apperrors.FieldOf(err) != "text" {
		t.Errorf("Update() with injection = %v, want text validation error", err)
	}
	updated, err := svc.Update(ctx, owner.ID, f.ID, "Likes trail running", "preference")
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.UpdatedAt == nil {
		t.Error("UpdatedAt should be set")
	}

	if err := svc.Delete(ctx, other.ID, f.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Delete() by another user = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, owner.ID, f.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	list, err := svc.List(ctx, owner.ID)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("deleted fact still listed: %+v", list)
	}
	if err := svc.Delete(ctx, owner.ID, f.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second Delete() = %v, want ErrNotFound", err)
	}
}
