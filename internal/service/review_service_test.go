package service

import (
	"context"
	"testing"

	"servio/marketplace-core/internal/apperr"
	"servio/marketplace-core/internal/models"
)

func completedHire(t *testing.T, env *testEnv) *models.Hire {
	t.Helper()
	seedProfiles(env)
	hire, err := env.hires.Create(context.Background(), svcID, clientID, provID)
	if err != nil {
		t.Fatal(err)
	}
	env.store.setHireStatus(hire.ID, models.HireStatusCompleted)
	hire.Status = models.HireStatusCompleted
	return hire
}

func TestSubmitRequiresCompletedHire(t *testing.T) {
	env := newTestEnv(t, false)
	seedProfiles(env)
	ctx := context.Background()

	hire, err := env.hires.Create(ctx, svcID, clientID, provID)
	if err != nil {
		t.Fatal(err)
	}

	for _, status := range []models.HireStatus{
		models.HireStatusPending, models.HireStatusAccepted, models.HireStatusRejected,
	} {
		env.store.setHireStatus(hire.ID, status)
		_, err := env.reviews.Submit(ctx, SubmitReviewInput{HireID: hire.ID, ClientID: clientID, Rating: 5})
		if err == nil {
			t.Fatalf("review accepted on %s hire", status)
		}
		if apperr.Is(err, apperr.KindConflict) {
			t.Fatalf("non-completed hire must not report Conflict, got %v", err)
		}
	}
}

func TestSubmitRatingRange(t *testing.T) {
	env := newTestEnv(t, false)
	hire := completedHire(t, env)
	ctx := context.Background()

	for _, rating := range []int{0, -1, 6, 100} {
		_, err := env.reviews.Submit(ctx, SubmitReviewInput{HireID: hire.ID, ClientID: clientID, Rating: rating})
		if !apperr.Is(err, apperr.KindInvalidArgument) {
			t.Fatalf("rating %d: got %v, want InvalidArgument", rating, err)
		}
	}
}

func TestSubmitRequiresHireClient(t *testing.T) {
	env := newTestEnv(t, false)
	hire := completedHire(t, env)
	ctx := context.Background()

	if _, err := env.reviews.Submit(ctx, SubmitReviewInput{HireID: hire.ID, ClientID: provID, Rating: 5}); !apperr.Is(err, apperr.KindNotAuthorized) {
		t.Fatalf("provider reviewing own hire: got %v, want NotAuthorized", err)
	}
	if _, err := env.reviews.Submit(ctx, SubmitReviewInput{HireID: "no-such-hire", ClientID: clientID, Rating: 5}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("missing hire: got %v, want NotFound", err)
	}
}

func TestSubmitStoredUnchanged(t *testing.T) {
	env := newTestEnv(t, false)
	hire := completedHire(t, env)
	ctx := context.Background()

	photos := []string{"ref-1", "ref-2", "ref-3"}
	review, err := env.reviews.Submit(ctx, SubmitReviewInput{
		HireID:   hire.ID,
		ClientID: clientID,
		Rating:   5,
		Comment:  "excellent work",
		Photos:   photos,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := env.reviews.GetForHire(ctx, hire.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != review.ID || got.Rating != 5 || got.Comment != "excellent work" {
		t.Fatalf("stored review differs: %+v", got)
	}
	if got.ServiceID != svcID {
		t.Fatalf("review service id = %s, want inherited from hire", got.ServiceID)
	}
	if len(got.Photos) != 3 || got.Photos[0] != "ref-1" || got.Photos[2] != "ref-3" {
		t.Fatalf("photo order not preserved: %v", got.Photos)
	}

	listed, err := env.reviews.ListForService(ctx, svcID)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].ID != review.ID {
		t.Fatalf("service review listing = %+v", listed)
	}
}

func TestSubmitDuplicateConflict(t *testing.T) {
	env := newTestEnv(t, false)
	hire := completedHire(t, env)
	ctx := context.Background()

	if _, err := env.reviews.Submit(ctx, SubmitReviewInput{HireID: hire.ID, ClientID: clientID, Rating: 4}); err != nil {
		t.Fatal(err)
	}
	_, err := env.reviews.Submit(ctx, SubmitReviewInput{HireID: hire.ID, ClientID: clientID, Rating: 5})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("duplicate review: got %v, want Conflict", err)
	}

	got, _ := env.reviews.GetForHire(ctx, hire.ID)
	if got.Rating != 4 {
		t.Fatalf("first review overwritten, rating = %d", got.Rating)
	}
}
