package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/lumenhn/lumen/internal/domain"
)

// Default TTLs for the typed collections. The cache manager layers its own
// per-type policy on top for generic entries.
const (
	StoryTTL     = 30 * time.Minute
	StoryListTTL = 10 * time.Minute
	UserTTL      = 1 * time.Hour
)

const legacyListKeyPrefix = "storyList_"

func storyKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s *Store) getJSON(ctx context.Context, collection string, key string, target any) bool {
	data := s.Get(ctx, collection, key)
	if data == nil {
		return false
	}
	if err := json.Unmarshal(data, target); err != nil {
		// We wrote this payload ourselves; a parse failure is unexpected.
		s.logger.Warn("Failed to unmarshal cache record", "collection", collection, "error", err.Error())
		return false
	}
	return true
}

func (s *Store) setJSON(ctx context.Context, collection string, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("persistence: failed to marshal record: %w", err)
	}
	return s.Set(ctx, collection, key, data, ttl)
}

func (s *Store) GetStory(ctx context.Context, id int64) *domain.Story {
	var story domain.Story
	if !s.getJSON(ctx, CollectionStories, storyKey(id), &story) {
		return nil
	}
	return &story
}

func (s *Store) SetStory(ctx context.Context, story domain.Story) error {
	return s.setJSON(ctx, CollectionStories, storyKey(story.ID), story, StoryTTL)
}

// GetStories returns the cached subset of the requested ids. Missing and
// expired entries are simply absent from the result.
func (s *Store) GetStories(ctx context.Context, ids []int64) map[int64]*domain.Story {
	stories := make(map[int64]*domain.Story, len(ids))
	for _, id := range ids {
		if story := s.GetStory(ctx, id); story != nil {
			stories[id] = story
		}
	}
	return stories
}

func (s *Store) SetStories(ctx context.Context, stories []domain.Story) error {
	for _, story := range stories {
		if err := s.SetStory(ctx, story); err != nil {
			return err
		}
	}
	return nil
}

// GetStoryList normalizes the list name ("newest" -> "new"), tries the
// canonical key, and on a miss transparently migrates any record written
// under the legacy "storyList_<name>" key.
func (s *Store) GetStoryList(ctx context.Context, name string) *domain.StoryList {
	canonical := domain.CanonicalListName(name)

	var list domain.StoryList
	if s.getJSON(ctx, CollectionStoryLists, canonical, &list) {
		return &list
	}

	legacyKey := legacyListKeyPrefix + canonical
	data := s.Get(ctx, CollectionStoryLists, legacyKey)
	if data == nil {
		return nil
	}

	if err := json.Unmarshal(data, &list); err != nil {
		s.logger.Warn("Failed to unmarshal legacy story list", "key", legacyKey, "error", err.Error())
		return nil
	}
	list.Name = canonical

	// Move to the canonical key. Best effort: on failure the legacy record
	// is still served and migration retries on the next read.
	if err := s.setJSON(ctx, CollectionStoryLists, canonical, list, StoryListTTL); err != nil {
		s.logger.Warn("Failed to migrate legacy story list", "key", legacyKey, "error", err.Error())
		return &list
	}
	if err := s.Delete(ctx, CollectionStoryLists, legacyKey); err != nil {
		s.logger.Warn("Failed to delete legacy story list", "key", legacyKey, "error", err.Error())
	}

	return &list
}

func (s *Store) SetStoryList(ctx context.Context, list domain.StoryList) error {
	list.Name = domain.CanonicalListName(list.Name)
	return s.setJSON(ctx, CollectionStoryLists, list.Name, list, StoryListTTL)
}

func (s *Store) GetUserProfile(ctx context.Context, id string) *domain.UserProfile {
	var user domain.UserProfile
	if !s.getJSON(ctx, CollectionUsers, id, &user) {
		return nil
	}
	return &user
}

func (s *Store) SetUserProfile(ctx context.Context, user domain.UserProfile) error {
	return s.setJSON(ctx, CollectionUsers, user.ID, user, UserTTL)
}
