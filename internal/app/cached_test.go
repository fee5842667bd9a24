package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumenhn/lumen/internal/adapters/fallbackstore"
	"github.com/lumenhn/lumen/internal/adapters/memorycache"
	"github.com/lumenhn/lumen/internal/adapters/persistence"
	"github.com/lumenhn/lumen/internal/cachemanager"
	"github.com/lumenhn/lumen/internal/domain"
)

const storyID = int64(8863)

func newManager(t *testing.T) *cachemanager.Manager {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	store := persistence.NewStore(t.TempDir(), time.Now, logger)
	t.Cleanup(func() { _ = store.Close() })
	require.True(t, store.Available(context.Background()))

	fallback, err := fallbackstore.New(t.TempDir(), "lumen")
	require.NoError(t, err)

	memory := memorycache.New(100)
	t.Cleanup(memory.Stop)

	manager := cachemanager.New(memory, store, fallback, time.Now, logger)
	t.Cleanup(manager.Close)

	return manager
}

type panicStoryProvider struct {
	t *testing.T
}

func (p *panicStoryProvider) GetStory(ctx context.Context, id int64) (*domain.Story, error) {
	p.t.Helper()
	p.t.Fatal("should not be called")
	return nil, nil
}

type mockedStoryProvider struct {
	t     *testing.T
	story *domain.Story
	err   error
}

func (m *mockedStoryProvider) GetStory(ctx context.Context, id int64) (*domain.Story, error) {
	m.t.Helper()

	require.Equal(m.t, storyID, id)

	return m.story, m.err
}

type mockedUserProvider struct {
	profile *domain.UserProfile
	err     error
}

func (m *mockedUserProvider) GetUserProfile(ctx context.Context, id string) (*domain.UserProfile, error) {
	return m.profile, m.err
}

type recordingListProvider struct {
	requested []string
	list      *domain.StoryList
}

func (r *recordingListProvider) GetStoryList(ctx context.Context, name string) (*domain.StoryList, error) {
	r.requested = append(r.requested, name)
	return r.list, nil
}

func TestBuildGetStoryWithCache(t *testing.T) {
	t.Parallel()

	t.Run("second lookup is served from cache", func(t *testing.T) {
		t.Parallel()

		manager := newManager(t)
		provider := &mockedStoryProvider{
			t:     t,
			story: &domain.Story{ID: storyID, By: "dhouston", Title: "My YC app: Dropbox", Score: 104},
		}

		story, err := BuildGetStoryWithCache(manager, provider)(t.Context(), storyID)
		require.NoError(t, err)
		require.Equal(t, "My YC app: Dropbox", story.Title)

		story, err = BuildGetStoryWithCache(manager, &panicStoryProvider{t: t})(t.Context(), storyID)
		require.NoError(t, err)
		require.Equal(t, "My YC app: Dropbox", story.Title)
	})

	t.Run("missing story maps to ErrStoryNotFound", func(t *testing.T) {
		t.Parallel()

		manager := newManager(t)
		provider := &mockedStoryProvider{t: t, story: nil}

		_, err := BuildGetStoryWithCache(manager, provider)(t.Context(), storyID)
		require.ErrorIs(t, err, domain.ErrStoryNotFound)
	})

	t.Run("provider errors surface on a cold miss", func(t *testing.T) {
		t.Parallel()

		providerErr := errors.New("upstream down")
		manager := newManager(t)
		provider := &mockedStoryProvider{t: t, err: providerErr}

		_, err := BuildGetStoryWithCache(manager, provider)(t.Context(), storyID)
		require.ErrorIs(t, err, providerErr)
	})
}

func TestBuildGetUserProfileWithCache(t *testing.T) {
	t.Parallel()

	t.Run("missing user maps to ErrUserNotFound", func(t *testing.T) {
		t.Parallel()

		manager := newManager(t)

		_, err := BuildGetUserProfileWithCache(manager, &mockedUserProvider{})(t.Context(), "ghost")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("profile round-trips through the cache", func(t *testing.T) {
		t.Parallel()

		manager := newManager(t)
		provider := &mockedUserProvider{
			profile: &domain.UserProfile{ID: "pg", Karma: 155111},
		}

		profile, err := BuildGetUserProfileWithCache(manager, provider)(t.Context(), "pg")
		require.NoError(t, err)
		require.Equal(t, 155111, profile.Karma)
	})
}

func TestBuildGetStoryListWithCache(t *testing.T) {
	t.Parallel()

	t.Run("newest is canonicalized to new", func(t *testing.T) {
		t.Parallel()

		manager := newManager(t)
		provider := &recordingListProvider{
			list: &domain.StoryList{Name: "new", IDs: []int64{1, 2, 3}},
		}
		getList := BuildGetStoryListWithCache(manager, provider)

		list, err := getList(t.Context(), "newest")
		require.NoError(t, err)
		require.Equal(t, []int64{1, 2, 3}, list.IDs)
		require.Equal(t, []string{"new"}, provider.requested)

		// The canonical alias hits the same cache entry.
		list, err = getList(t.Context(), "new")
		require.NoError(t, err)
		require.Equal(t, []int64{1, 2, 3}, list.IDs)
		require.Equal(t, []string{"new"}, provider.requested)
	})
}
