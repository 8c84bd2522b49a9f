// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the market aggregator fan-out and routing.

package markets

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// --- Stub platform client ---

type stubClient struct {
	platform Platform
	snaps    []Snapshot
	getErr   error
	listErr  error
	delay    time.Duration
	panics   bool
}

func (s *stubClient) Platform() Platform { return s.platform }

func (s *stubClient) Get(ctx context.Context, nativeID string) (Snapshot, error) {
	if s.getErr != nil {
		return Snapshot{}, s.getErr
	}
	for _, snap := range s.snaps {
		if snap.ID == s.platform.MarketID(nativeID) {
			return snap, nil
		}
	}
	return Snapshot{}, ErrMarketNotFound
}

func (s *stubClient) Search(ctx context.Context, query string, limit int) ([]Snapshot, error) {
	if s.panics {
		panic("stub client exploded")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.snaps, nil
}

func (s *stubClient) Trending(ctx context.Context, limit int) ([]Snapshot, error) {
	return s.Search(ctx, "", limit)
}

func snapFor(p Platform, nativeID, title string, prob float64) Snapshot {
	return Snapshot{
		ID:          p.MarketID(nativeID),
		Platform:    p,
		Title:       title,
		Probability: floatPtr(prob),
		Active:      true,
	}
}

func TestAggregator_RejectsDuplicatePlatforms(t *testing.T) {
	_, err := NewAggregator(
		&stubClient{platform: PlatformManifold},
		&stubClient{platform: PlatformManifold},
	)
	if err == nil {
		t.Fatal("expected error for duplicate platform clients")
	}
}

func TestSearchAll_IsolatesFailedPlatform(t *testing.T) {
	good := &stubClient{platform: PlatformManifold, snaps: []Snapshot{
		snapFor(PlatformManifold, "m1", "Will it rain tomorrow", 0.4),
	}}
	bad := &stubClient{platform: PlatformMetaculus, listErr: errors.New("upstream 503")}

	agg, err := NewAggregator(good, bad)
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}

	results := agg.SearchAll(context.Background(), "rain", 10)
	if len(results) != 2 {
		t.Fatalf("expected entries for both platforms, got %d", len(results))
	}
	if got := len(results[PlatformManifold]); got != 1 {
		t.Errorf("healthy platform: got %d snapshots, want 1", got)
	}
	if got := results[PlatformMetaculus]; got == nil || len(got) != 0 {
		t.Errorf("failed platform should contribute an empty slice, got %v", got)
	}
}

func TestSearchAll_IsolatesPanickingPlatform(t *testing.T) {
	good := &stubClient{platform: PlatformManifold, snaps: []Snapshot{
		snapFor(PlatformManifold, "m1", "Fed cuts rates", 0.7),
	}}
	explosive := &stubClient{platform: PlatformPredictIt, panics: true}

	agg, _ := NewAggregator(good, explosive)
	results := agg.SearchAll(context.Background(), "fed", 10)

	if len(results[PlatformManifold]) != 1 {
		t.Errorf("healthy platform result lost: %v", results[PlatformManifold])
	}
	if len(results[PlatformPredictIt]) != 0 {
		t.Errorf("panicking platform should yield empty results")
	}
}

func TestSearchAll_WaitsForAllPlatforms(t *testing.T) {
	slow := &stubClient{
		platform: PlatformMetaculus,
		delay:    50 * time.Millisecond,
		snaps:    []Snapshot{snapFor(PlatformMetaculus, "777", "Slow question", 0.55)},
	}
	fast := &stubClient{platform: PlatformManifold, snaps: []Snapshot{
		snapFor(PlatformManifold, "m1", "Fast question", 0.2),
	}}

	agg, _ := NewAggregator(fast, slow)
	results := agg.SearchAll(context.Background(), "question", 10)

	if len(results[PlatformMetaculus]) != 1 {
		t.Error("slow platform result missing; fan-out returned before join")
	}
}

func TestGet_RoutesByPrefix(t *testing.T) {
	manifold := &stubClient{platform: PlatformManifold, snaps: []Snapshot{
		snapFor(PlatformManifold, "abc", "Manifold market", 0.5),
	}}
	predictit := &stubClient{platform: PlatformPredictIt, getErr: errors.New("should not be called")}

	agg, _ := NewAggregator(manifold, predictit)
	snap, err := agg.Get(context.Background(), "manifold-abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Platform != PlatformManifold {
		t.Errorf("routed to %s, want manifold", snap.Platform)
	}
}

func TestGet_UnknownPrefixProbesInOrder(t *testing.T) {
	first := &stubClient{platform: PlatformPolymarket, getErr: ErrMarketNotFound}
	second := &stubClient{platform: PlatformManifold, snaps: []Snapshot{
		{ID: PlatformManifold.MarketID("raw-id"), Platform: PlatformManifold, Title: "Found by probe"},
	}}

	agg, _ := NewAggregator(first, second)
	// "raw-id" carries no recognized platform token.
	snap, err := agg.Get(context.Background(), "raw-id")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Title != "Found by probe" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestGet_NotFoundAnywhere(t *testing.T) {
	agg, _ := NewAggregator(
		&stubClient{platform: PlatformPolymarket},
		&stubClient{platform: PlatformManifold},
	)
	_, err := agg.Get(context.Background(), "nope")
	if !errors.Is(err, ErrMarketNotFound) {
		t.Fatalf("expected ErrMarketNotFound, got %v", err)
	}
}

func TestGet_UnconfiguredPlatform(t *testing.T) {
	agg, _ := NewAggregator(&stubClient{platform: PlatformManifold})
	_, err := agg.Get(context.Background(), "predictit-123")
	if !errors.Is(err, ErrMarketNotFound) {
		t.Fatalf("expected ErrMarketNotFound for unconfigured platform, got %v", err)
	}
}

func TestSearchAllFlat_InterleavesRoundRobin(t *testing.T) {
	a := &stubClient{platform: PlatformPolymarket, snaps: []Snapshot{
		snapFor(PlatformPolymarket, "p1", "A1", 0.1),
		snapFor(PlatformPolymarket, "p2", "A2", 0.2),
		snapFor(PlatformPolymarket, "p3", "A3", 0.3),
	}}
	b := &stubClient{platform: PlatformManifold, snaps: []Snapshot{
		snapFor(PlatformManifold, "m1", "B1", 0.1),
	}}

	agg, _ := NewAggregator(a, b)
	flat := agg.SearchAllFlat(context.Background(), "x", 10)

	want := []string{"pm-p1", "manifold-m1", "pm-p2", "pm-p3"}
	if len(flat) != len(want) {
		t.Fatalf("got %d results, want %d: %+v", len(flat), len(want), flat)
	}
	for i, id := range want {
		if flat[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, flat[i].ID, id)
		}
	}
}

func TestSearchAllFlat_RespectsLimit(t *testing.T) {
	var snaps []Snapshot
	for i := 0; i < 30; i++ {
		snaps = append(snaps, snapFor(PlatformManifold, fmt.Sprintf("m%d", i), "Q", 0.5))
	}
	agg, _ := NewAggregator(&stubClient{platform: PlatformManifold, snaps: snaps})

	flat := agg.SearchAllFlat(context.Background(), "q", 5)
	if len(flat) != 5 {
		t.Fatalf("got %d results, want 5", len(flat))
	}
}
