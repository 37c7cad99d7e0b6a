package action

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kurobane/sagabrawl/cache/local"
)

type defendPrompt struct {
	AttackID int64  `json:"attack_id"`
	Kind     string `json:"kind"`
}

func newPromptStore(t *testing.T, ttl time.Duration) *PromptStore {
	t.Helper()
	c, err := local.NewCache(local.Config{GCInterval: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return NewPromptStore(c, ttl)
}

func TestPromptSaveClaim(t *testing.T) {
	s := newPromptStore(t, time.Minute)
	ctx := context.Background()

	ok, err := s.Save(ctx, "room-1", 7, "defend", defendPrompt{AttackID: 3, Kind: "block"})
	if err != nil || !ok {
		t.Fatalf("Save = %v, %v", ok, err)
	}

	var got defendPrompt
	if err := s.Claim(ctx, "room-1", 7, "defend", &got); err != nil {
		t.Fatal(err)
	}
	if got.AttackID != 3 || got.Kind != "block" {
		t.Errorf("payload = %+v", got)
	}

	// A prompt can only be claimed once.
	if err := s.Claim(ctx, "room-1", 7, "defend", &got); !errors.Is(err, ErrPromptExpired) {
		t.Errorf("second claim err = %v, want ErrPromptExpired", err)
	}
}

func TestPromptDoesNotReplaceLiveOne(t *testing.T) {
	s := newPromptStore(t, time.Minute)
	ctx := context.Background()

	if ok, _ := s.Save(ctx, "room-1", 7, "defend", defendPrompt{AttackID: 1}); !ok {
		t.Fatal("first save should win")
	}
	if ok, _ := s.Save(ctx, "room-1", 7, "defend", defendPrompt{AttackID: 2}); ok {
		t.Error("second save should be refused while the first is live")
	}
}

func TestPromptExpires(t *testing.T) {
	s := newPromptStore(t, 10*time.Millisecond)
	ctx := context.Background()

	if ok, _ := s.Save(ctx, "room-1", 7, "defend", defendPrompt{AttackID: 1}); !ok {
		t.Fatal("save failed")
	}
	time.Sleep(20 * time.Millisecond)
	var got defendPrompt
	if err := s.Claim(ctx, "room-1", 7, "defend", &got); !errors.Is(err, ErrPromptExpired) {
		t.Errorf("err = %v, want ErrPromptExpired", err)
	}
}
