package cache

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Tag groups cache keys that a single domain event invalidates together
type Tag string

const (
	TagRisk      Tag = "risk"
	TagAnalytics Tag = "analytics"
	TagVault     Tag = "vault"
	TagPortfolio Tag = "portfolio"

	// TagAll matches every registered key. It is never stored in the index.
	TagAll Tag = "*"
)

// KnownTags lists the concrete tags
var KnownTags = []Tag{TagRisk, TagAnalytics, TagVault, TagPortfolio}

// ParseTag maps a case-insensitive name to a Tag. "all" is accepted for TagAll.
func ParseTag(s string) (Tag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "risk":
		return TagRisk, nil
	case "analytics":
		return TagAnalytics, nil
	case "vault":
		return TagVault, nil
	case "portfolio":
		return TagPortfolio, nil
	case "*", "all":
		return TagAll, nil
	default:
		return "", fmt.Errorf("unknown cache tag %q", s)
	}
}

// TagIndex maps tags to keys and keys to tags. Both maps are updated under
// the same lock so they never disagree.
type TagIndex struct {
	mu        sync.Mutex
	tagToKeys map[Tag]map[string]struct{}
	keyToTags map[string]map[Tag]struct{}
}

// NewTagIndex creates an empty index
func NewTagIndex() *TagIndex {
	return &TagIndex{
		tagToKeys: make(map[Tag]map[string]struct{}),
		keyToTags: make(map[string]map[Tag]struct{}),
	}
}

// Register adds key under every tag. Already present pairs are left alone.
// TagAll and empty tags are ignored, so a key registered with no concrete
// tag is never indexed.
func (ti *TagIndex) Register(key string, tags ...Tag) {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	for _, tag := range tags {
		if tag == "" || tag == TagAll {
			continue
		}
		keys, ok := ti.tagToKeys[tag]
		if !ok {
			keys = make(map[string]struct{})
			ti.tagToKeys[tag] = keys
		}
		keys[key] = struct{}{}

		set, ok := ti.keyToTags[key]
		if !ok {
			set = make(map[Tag]struct{})
			ti.keyToTags[key] = set
		}
		set[tag] = struct{}{}
	}
}

// Take removes and returns every key indexed under tag, sorted. For TagAll
// it returns every indexed key and empties the index.
func (ti *TagIndex) Take(tag Tag) []string {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	var keys []string
	if tag == TagAll {
		for k := range ti.keyToTags {
			keys = append(keys, k)
		}
		ti.tagToKeys = make(map[Tag]map[string]struct{})
		ti.keyToTags = make(map[string]map[Tag]struct{})
		sort.Strings(keys)
		return keys
	}

	for k := range ti.tagToKeys[tag] {
		keys = append(keys, k)
		ti.removeLocked(k)
	}
	sort.Strings(keys)
	return keys
}

// Remove drops key from the index and reports whether it was indexed
func (ti *TagIndex) Remove(key string) bool {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	return ti.removeLocked(key)
}

func (ti *TagIndex) removeLocked(key string) bool {
	tags, ok := ti.keyToTags[key]
	if !ok {
		return false
	}
	for tag := range tags {
		if keys := ti.tagToKeys[tag]; keys != nil {
			delete(keys, key)
			if len(keys) == 0 {
				delete(ti.tagToKeys, tag)
			}
		}
	}
	delete(ti.keyToTags, key)
	return true
}

// TagsOf returns the tags key is registered under, sorted
func (ti *TagIndex) TagsOf(key string) []Tag {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	var tags []Tag
	for tag := range ti.keyToTags[key] {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// KeysOf returns the keys indexed under tag, sorted
func (ti *TagIndex) KeysOf(tag Tag) []string {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	var keys []string
	for k := range ti.tagToKeys[tag] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of indexed keys
func (ti *TagIndex) Len() int {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	return len(ti.keyToTags)
}
