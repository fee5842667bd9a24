// Package app composes adapters into the operations the ports serve. The
// build functions wrap upstream providers with the cache manager so repeated
// requests for the same story, user or article preview hit storage instead
// of the network.
package app

import (
	"context"
	"fmt"

	"github.com/lumenhn/lumen/internal/cachekeys"
	"github.com/lumenhn/lumen/internal/cachemanager"
	"github.com/lumenhn/lumen/internal/domain"
)

type GetStory func(ctx context.Context, id int64) (*domain.Story, error)

type storyProvider interface {
	GetStory(ctx context.Context, id int64) (*domain.Story, error)
}

func BuildGetStoryWithCache(manager *cachemanager.Manager, provider storyProvider) GetStory {
	return func(ctx context.Context, id int64) (*domain.Story, error) {
		story, err := cachemanager.GetWithSWRAs(
			ctx, manager, cachemanager.TypeStory, cachekeys.StoryKey(id),
			func(ctx context.Context) (*domain.Story, error) {
				return provider.GetStory(ctx, id)
			},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to get story %d: %w", id, err)
		}
		if story == nil {
			return nil, domain.ErrStoryNotFound
		}
		return story, nil
	}
}

type GetUserProfile func(ctx context.Context, id string) (*domain.UserProfile, error)

type userProvider interface {
	GetUserProfile(ctx context.Context, id string) (*domain.UserProfile, error)
}

func BuildGetUserProfileWithCache(manager *cachemanager.Manager, provider userProvider) GetUserProfile {
	return func(ctx context.Context, id string) (*domain.UserProfile, error) {
		profile, err := cachemanager.GetWithSWRAs(
			ctx, manager, cachemanager.TypeUser, cachekeys.UserKey(id),
			func(ctx context.Context) (*domain.UserProfile, error) {
				return provider.GetUserProfile(ctx, id)
			},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to get user %q: %w", id, err)
		}
		if profile == nil {
			return nil, domain.ErrUserNotFound
		}
		return profile, nil
	}
}

type GetStoryList func(ctx context.Context, name string) (*domain.StoryList, error)

type storyListProvider interface {
	GetStoryList(ctx context.Context, name string) (*domain.StoryList, error)
}

func BuildGetStoryListWithCache(manager *cachemanager.Manager, provider storyListProvider) GetStoryList {
	return func(ctx context.Context, name string) (*domain.StoryList, error) {
		canonical := domain.CanonicalListName(name)
		list, err := cachemanager.GetWithSWRAs(
			ctx, manager, cachemanager.TypeStoryList, cachekeys.StoryListKey(canonical),
			func(ctx context.Context) (*domain.StoryList, error) {
				return provider.GetStoryList(ctx, canonical)
			},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to get story list %q: %w", canonical, err)
		}
		return list, nil
	}
}

type FetchArticleOgMeta func(ctx context.Context, articleURL string) (domain.OgMeta, error)

type ogMetaProvider interface {
	FetchArticleOgMeta(ctx context.Context, articleURL string) (domain.OgMeta, error)
}

// BuildFetchArticleOgMetaWithCache keeps the edge's own copy of extracted
// preview metadata, under the same type and key shape the reader uses, so
// repeated crawler hits do not refetch third-party pages.
func BuildFetchArticleOgMetaWithCache(manager *cachemanager.Manager, provider ogMetaProvider) FetchArticleOgMeta {
	return func(ctx context.Context, articleURL string) (domain.OgMeta, error) {
		meta, err := cachemanager.GetWithSWRAs(
			ctx, manager, cachemanager.TypeOgImage, "og:"+articleURL,
			func(ctx context.Context) (*domain.OgMeta, error) {
				fetched, err := provider.FetchArticleOgMeta(ctx, articleURL)
				if err != nil {
					return nil, err
				}
				return &fetched, nil
			},
		)
		if err != nil {
			return domain.OgMeta{}, fmt.Errorf("failed to fetch og metadata: %w", err)
		}
		if meta == nil {
			return domain.OgMeta{}, nil
		}
		return *meta, nil
	}
}
