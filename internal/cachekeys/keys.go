// Package cachekeys builds the stable string keys used by the cache layer.
//
// Keys are versioned so a bump of Version invalidates every previously
// written entry without touching stored data.
package cachekeys

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lumenhn/lumen/internal/domain"
)

const Version = "v1"

// Build returns "<version>:<resource>" or "<version>:<resource>:<params>".
// The params segment is deterministic: objects are serialized with their keys
// sorted lexicographically, arrays keep their order, and nil serializes to
// the literal "null". Two parameter values with the same key/value pairs
// always produce the same key regardless of declaration order.
func Build(resource string, params ...any) string {
	if len(params) == 0 {
		return fmt.Sprintf("%s:%s", Version, resource)
	}
	return fmt.Sprintf("%s:%s:%s", Version, resource, canonicalize(params[0]))
}

func canonicalize(params any) string {
	raw, err := json.Marshal(params)
	if err != nil {
		// Unmarshalable params (channels, funcs) should never reach the cache
		// layer. Fall back to the type name so the key is still stable.
		return fmt.Sprintf("%T", params)
	}

	// Round-trip through any: encoding/json sorts map keys on marshal, which
	// makes object serialization order-independent. Struct field order is
	// stable by definition, so the round-trip only matters for maps.
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw)
	}

	sorted, err := json.Marshal(decoded)
	if err != nil {
		return string(raw)
	}

	return string(sorted)
}

func StoryListKey(listName string) string {
	return Build("storyList", domain.CanonicalListName(listName))
}

func StoryKey(id int64) string {
	return Build("story", strconv.FormatInt(id, 10))
}

func UserKey(id string) string {
	return Build("user", id)
}
