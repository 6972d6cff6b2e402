// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

package tags

import (
	"context"
	"slices"
	"testing"

	"github.com/tikibozo/kometa-ai/internal/kometa"
	"github.com/tikibozo/kometa-ai/internal/radarr"
	"github.com/tikibozo/kometa-ai/internal/state"
)

type fakeRadarr struct {
	tags        []radarr.Tag
	nextTagID   int
	created     []string
	updateCalls int
}

func newFakeRadarr(tags ...radarr.Tag) *fakeRadarr {
	next := 1
	for _, t := range tags {
		if t.ID >= next {
			next = t.ID + 1
		}
	}
	return &fakeRadarr{tags: tags, nextTagID: next}
}

func (f *fakeRadarr) Ping(context.Context) error                    { return nil }
func (f *fakeRadarr) GetMovies(context.Context) ([]*radarr.Movie, error) { return nil, nil }

func (f *fakeRadarr) GetTags(context.Context) ([]radarr.Tag, error) {
	return append([]radarr.Tag(nil), f.tags...), nil
}

func (f *fakeRadarr) CreateTag(_ context.Context, label string) (radarr.Tag, error) {
	tag := radarr.Tag{ID: f.nextTagID, Label: label}
	f.nextTagID++
	f.tags = append(f.tags, tag)
	f.created = append(f.created, label)
	return tag, nil
}

func (f *fakeRadarr) UpdateMovieTags(_ context.Context, movie *radarr.Movie, tags []int) error {
	f.updateCalls++
	movie.Tags = tags
	return nil
}

func newTestStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func testCollection() *kometa.Collection {
	return &kometa.Collection{
		Name:    "Film Noir",
		Slug:    "film-noir",
		Enabled: true,
	}
}

func newReconciler(t *testing.T, rc radarr.Interface, dryRun bool) *Reconciler {
	t.Helper()
	r := NewReconciler(rc, newTestStore(t), dryRun)
	if err := r.RefreshTagCache(context.Background()); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestApplyAddsAndRemoves(t *testing.T) {
	fake := newFakeRadarr(radarr.Tag{ID: 10, Label: "KAI-film-noir"})
	r := newReconciler(t, fake, false)
	c := testCollection()

	movies := []*radarr.Movie{
		{ID: 1, Title: "Detour", Tags: []int{3}},      // included, untagged
		{ID: 2, Title: "Heat", Tags: []int{10, 3}},    // excluded, tagged
		{ID: 3, Title: "Laura", Tags: []int{10}},      // included, already tagged
		{ID: 4, Title: "Big Sleep", Tags: []int{}},    // excluded, untagged
	}

	changes, err := r.Apply(context.Background(), c, movies, []int{1, 3})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if len(changes) != 2 {
		t.Fatalf("changes = %+v, want add and remove", changes)
	}
	byMovie := map[int]string{}
	for _, ch := range changes {
		byMovie[ch.MovieID] = ch.Action
	}
	if byMovie[1] != "added" || byMovie[2] != "removed" {
		t.Errorf("actions = %v", byMovie)
	}
	if fake.updateCalls != 2 {
		t.Errorf("update calls = %d, want 2", fake.updateCalls)
	}

	// Foreign tags untouched on both mutated movies.
	if !slices.Contains(movies[0].Tags, 3) || !slices.Contains(movies[0].Tags, 10) {
		t.Errorf("movie 1 tags = %v", movies[0].Tags)
	}
	if !slices.Contains(movies[1].Tags, 3) || slices.Contains(movies[1].Tags, 10) {
		t.Errorf("movie 2 tags = %v", movies[1].Tags)
	}
}

func TestApplyCreatesTagOnDemand(t *testing.T) {
	fake := newFakeRadarr()
	r := newReconciler(t, fake, false)

	movies := []*radarr.Movie{{ID: 1, Title: "Detour"}}
	if _, err := r.Apply(context.Background(), testCollection(), movies, []int{1}); err != nil {
		t.Fatal(err)
	}

	if len(fake.created) != 1 || fake.created[0] != "KAI-film-noir" {
		t.Errorf("created tags = %v", fake.created)
	}

	// The new ID is cached: a second apply must not create again.
	if _, err := r.Apply(context.Background(), testCollection(), movies, []int{1}); err != nil {
		t.Fatal(err)
	}
	if len(fake.created) != 1 {
		t.Errorf("tag created twice: %v", fake.created)
	}
}

func TestApplyIdempotent(t *testing.T) {
	fake := newFakeRadarr(radarr.Tag{ID: 10, Label: "KAI-film-noir"})
	r := newReconciler(t, fake, false)
	c := testCollection()
	movies := []*radarr.Movie{
		{ID: 1, Title: "Detour"},
		{ID: 2, Title: "Heat", Tags: []int{10}},
	}

	first, err := r.Apply(context.Background(), c, movies, []int{1})
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 {
		t.Fatalf("first pass changes = %d, want 2", len(first))
	}

	second, err := r.Apply(context.Background(), c, movies, []int{1})
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 0 {
		t.Errorf("second pass changes = %+v, want none", second)
	}
	if fake.updateCalls != 2 {
		t.Errorf("update calls = %d, want 2 (no rewrites)", fake.updateCalls)
	}
}

func TestApplyDryRun(t *testing.T) {
	fake := newFakeRadarr()
	r := newReconciler(t, fake, true)

	movies := []*radarr.Movie{{ID: 1, Title: "Detour"}}
	changes, err := r.Apply(context.Background(), testCollection(), movies, []int{1})
	if err != nil {
		t.Fatal(err)
	}

	if len(changes) != 1 || changes[0].Action != "added" {
		t.Errorf("dry-run diff = %+v", changes)
	}
	if fake.updateCalls != 0 {
		t.Error("dry run wrote tags")
	}
	if len(fake.created) != 0 {
		t.Error("dry run created a tag")
	}
}

func TestApplyExcludeTagGate(t *testing.T) {
	fake := newFakeRadarr(
		radarr.Tag{ID: 10, Label: "KAI-film-noir"},
		radarr.Tag{ID: 20, Label: "skip-ai"},
	)
	r := newReconciler(t, fake, false)
	c := testCollection()
	c.ExcludeTags = []string{"skip-ai"}

	movies := []*radarr.Movie{
		{ID: 1, Title: "Detour", Tags: []int{20}},     // gated out, stays untagged
		{ID: 2, Title: "Laura", Tags: []int{20, 10}},  // gated out, loses the tag
		{ID: 3, Title: "Heat", Tags: []int{}},         // not gated, gets the tag
	}

	changes, err := r.Apply(context.Background(), c, movies, []int{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}

	byMovie := map[int]string{}
	for _, ch := range changes {
		byMovie[ch.MovieID] = ch.Action
	}
	if len(changes) != 2 || byMovie[2] != "removed" || byMovie[3] != "added" {
		t.Errorf("changes = %+v", changes)
	}
}

func TestApplyIncludeTagGate(t *testing.T) {
	fake := newFakeRadarr(
		radarr.Tag{ID: 10, Label: "KAI-film-noir"},
		radarr.Tag{ID: 30, Label: "criterion"},
	)
	r := newReconciler(t, fake, false)
	c := testCollection()
	c.IncludeTags = []string{"criterion"}

	movies := []*radarr.Movie{
		{ID: 1, Title: "Detour", Tags: []int{30}},
		{ID: 2, Title: "Heat", Tags: []int{}},
	}

	changes, err := r.Apply(context.Background(), c, movies, []int{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 1 || changes[0].MovieID != 1 || changes[0].Action != "added" {
		t.Errorf("changes = %+v, want only the gated-in movie", changes)
	}
}

func TestApplyLogsChanges(t *testing.T) {
	fake := newFakeRadarr()
	store := newTestStore(t)
	r := NewReconciler(fake, store, false)
	if err := r.RefreshTagCache(context.Background()); err != nil {
		t.Fatal(err)
	}

	movies := []*radarr.Movie{{ID: 1, Title: "Detour"}}
	if _, err := r.Apply(context.Background(), testCollection(), movies, []int{1}); err != nil {
		t.Fatal(err)
	}

	logged := store.Changes()
	if len(logged) != 1 {
		t.Fatalf("logged changes = %d, want 1", len(logged))
	}
	if logged[0].Action != "added" || logged[0].Tag != "KAI-film-noir" || logged[0].Title != "Detour" {
		t.Errorf("logged change = %+v", logged[0])
	}
}
