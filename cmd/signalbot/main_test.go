package main

import (
	"context"
	"testing"
	"time"

	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/internal/lock"
	"github.com/Alias1177/SignalBot/internal/store"
)

func TestBuildVoters(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer fs.Close()

	profile, err := config.ParseProfile(nil)
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}

	voters, err := buildVoters(profile, fs, time.Second)
	if err != nil {
		t.Fatalf("buildVoters: %v", err)
	}
	want := []string{"gpt", "rules", "caption"}
	if len(voters) != len(want) {
		t.Fatalf("got %d voters, want %d", len(voters), len(want))
	}
	for i, v := range voters {
		if v.ID() != want[i] {
			t.Errorf("voter %d = %s, want %s", i, v.ID(), want[i])
		}
	}

	profile.Advisors = append(profile.Advisors, config.AdvisorConfig{ID: "x", Kind: "oracle"})
	if _, err := buildVoters(profile, fs, time.Second); err == nil {
		t.Error("expected error for unknown advisor kind")
	}
}

func TestNewLockerWithoutRedis(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, closeFn, err := newLocker(ctx, &config.Config{})
	if err != nil {
		t.Fatalf("newLocker: %v", err)
	}
	defer closeFn()
	if _, ok := l.(*lock.Local); !ok {
		t.Errorf("locker = %T, want *lock.Local", l)
	}
}
