package persistence

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/lumenhn/lumen/internal/adapters/fallbackstore"
	"github.com/lumenhn/lumen/internal/domain"
)

// MigratedFlagKey marks a completed import in the fallback store. It must
// stay stable across versions: changing it would re-run the import.
const MigratedFlagKey = "cacheMigratedToDb"

// ImportFromFallback imports entries an older version persisted in the
// key-value store into the database. Provenance is tagged by key shape:
// "user_*" keys are user profiles, keys containing "stories" are story
// lists. Safe to run multiple times: a persisted flag skips completed
// imports, and re-importing the same record is an overwrite.
func (s *Store) ImportFromFallback(ctx context.Context, fallback *fallbackstore.Store) error {
	if done, _ := fallbackstore.GetJSON[bool](fallback, MigratedFlagKey); done {
		return nil
	}

	if !s.Available(ctx) {
		// Nothing to import into; leave the flag unset so a later start with
		// a working database picks the entries up.
		return nil
	}

	for _, key := range fallback.Keys() {
		data, found := fallback.Get(key)
		if !found {
			continue
		}

		switch {
		case strings.HasPrefix(key, "user_"):
			var user domain.UserProfile
			if err := json.Unmarshal(data, &user); err != nil {
				s.logger.Warn("Skipping unparseable legacy user entry", "key", key, "error", err.Error())
				continue
			}
			if user.ID == "" {
				user.ID = strings.TrimPrefix(key, "user_")
			}
			if err := s.SetUserProfile(ctx, user); err != nil {
				return err
			}

		case strings.Contains(key, "stories"):
			var list domain.StoryList
			if err := json.Unmarshal(data, &list); err != nil {
				s.logger.Warn("Skipping unparseable legacy story list entry", "key", key, "error", err.Error())
				continue
			}
			if list.Name == "" {
				list.Name = listNameFromLegacyKey(key)
			}
			if err := s.SetStoryList(ctx, list); err != nil {
				return err
			}
		}
	}

	if err := fallbackstore.SetJSON(fallback, MigratedFlagKey, true); err != nil {
		return err
	}

	s.logger.Info("Imported legacy key-value cache entries")
	return nil
}

func listNameFromLegacyKey(key string) string {
	name := strings.TrimSuffix(key, "_stories")
	name = strings.TrimPrefix(name, "stories_")
	return domain.CanonicalListName(name)
}
