package cachemanager

import (
	"time"

	"github.com/lumenhn/lumen/internal/adapters/persistence"
)

// Logical cache types. The routing table below is fixed at startup; it is
// policy, not configuration.
const (
	TypeStory      = "story"
	TypeStoryList  = "storyList"
	TypeUser       = "user"
	TypeSearch     = "search"
	TypeMetadata   = "metadata"
	TypePreference = "preference"
	TypeImage      = "image"
	TypeOgImage    = "ogImage"
)

type Tier int

const (
	TierPersistent Tier = iota
	TierFallback
)

type TypeConfig struct {
	Primary Tier
	// HasFallback routes a best-effort secondary write to the key-value
	// store, which also serves reads when the primary misses.
	HasFallback bool
	TTL         time.Duration
	// Collection within the persistent store; ignored for fallback-primary
	// types.
	Collection string
}

const DefaultTTL = 5 * time.Minute

const TTLInfinite = persistence.TTLInfinite

var typeConfigs = map[string]TypeConfig{
	TypeStory:      {Primary: TierPersistent, HasFallback: true, TTL: persistence.StoryTTL, Collection: persistence.CollectionStories},
	TypeStoryList:  {Primary: TierPersistent, HasFallback: true, TTL: persistence.StoryListTTL, Collection: persistence.CollectionStoryLists},
	TypeUser:       {Primary: TierPersistent, HasFallback: true, TTL: persistence.UserTTL, Collection: persistence.CollectionUsers},
	TypeSearch:     {Primary: TierPersistent, TTL: 15 * time.Minute, Collection: persistence.CollectionAPICache},
	TypeMetadata:   {Primary: TierPersistent, TTL: 24 * time.Hour, Collection: persistence.CollectionAPICache},
	TypePreference: {Primary: TierFallback, TTL: TTLInfinite},
	TypeImage:      {Primary: TierPersistent, TTL: 7 * 24 * time.Hour, Collection: persistence.CollectionAPICache},
	TypeOgImage:    {Primary: TierPersistent, HasFallback: true, TTL: 7 * 24 * time.Hour, Collection: persistence.CollectionAPICache},
}

// ConfigFor returns the routing policy for a cache type. Unknown types get
// the persistent tier with the default TTL.
func ConfigFor(cacheType string) TypeConfig {
	if config, ok := typeConfigs[cacheType]; ok {
		return config
	}
	return TypeConfig{
		Primary:    TierPersistent,
		TTL:        DefaultTTL,
		Collection: persistence.CollectionAPICache,
	}
}
