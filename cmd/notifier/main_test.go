package main

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/parkwatch/internal/core/domain"
	"github.com/samirrijal/parkwatch/internal/core/usecases"
)

type stubFavorites struct {
	users []string
	err   error
}

func (s *stubFavorites) FavoritedLotIDs(ctx context.Context) ([]string, error) { return nil, nil }

func (s *stubFavorites) UsersForLot(ctx context.Context, lotID string) ([]string, error) {
	return s.users, s.err
}

type stubNotifier struct {
	fail map[string]bool
	sent []string
}

func (n *stubNotifier) SendPush(ctx context.Context, userID, title, body string) error {
	if n.fail[userID] {
		return errors.New("gateway down")
	}
	n.sent = append(n.sent, userID)
	return nil
}

var moyuaFree = &domain.AvailabilityEvent{ID: "e1", LotID: "p1", LotName: "Plaza Moyua", OccupancyRate: 55}

func TestDirectHandler_NotifiesEveryRecipient(t *testing.T) {
	notifier := &stubNotifier{}
	h := directHandler(usecases.NewAvailabilityService(&stubFavorites{users: []string{"ane", "jon"}}, notifier))

	if err := h(context.Background(), moyuaFree); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.sent) != 2 {
		t.Errorf("expected 2 pushes, got %v", notifier.sent)
	}
}

func TestDirectHandler_PartialFailureIsAcked(t *testing.T) {
	notifier := &stubNotifier{fail: map[string]bool{"jon": true}}
	h := directHandler(usecases.NewAvailabilityService(&stubFavorites{users: []string{"ane", "jon"}}, notifier))

	if err := h(context.Background(), moyuaFree); err != nil {
		t.Fatalf("expected partial failure to be acked, got %v", err)
	}
}

func TestDirectHandler_NothingSentIsRetried(t *testing.T) {
	notifier := &stubNotifier{fail: map[string]bool{"ane": true}}
	h := directHandler(usecases.NewAvailabilityService(&stubFavorites{users: []string{"ane"}}, notifier))
	if err := h(context.Background(), moyuaFree); err == nil {
		t.Error("expected error when every push failed")
	}

	h = directHandler(usecases.NewAvailabilityService(&stubFavorites{err: errors.New("db down")}, &stubNotifier{}))
	if err := h(context.Background(), moyuaFree); err == nil {
		t.Error("expected error when recipients cannot be read")
	}
}

func TestDirectHandler_NoRecipients(t *testing.T) {
	h := directHandler(usecases.NewAvailabilityService(&stubFavorites{}, &stubNotifier{}))
	if err := h(context.Background(), moyuaFree); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
