package statistics

import (
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// NormalizeLocale collapses a region qualified tag to its base language code.
// "en-US" and "en_GB" become "en"; tags without a separator at index 2 are
// returned unchanged.
func NormalizeLocale(tag string) string {
	if len(tag) <= 2 {
		return tag
	}
	if tag[2] == '-' || tag[2] == '_' {
		return tag[:2]
	}
	return tag
}

// CategoryCounter is an append-only frequency table over a categorical
// attribute. Keys are compared case-insensitively and stored lower-cased.
type CategoryCounter struct {
	counts map[string]int
}

// NewCategoryCounter creates an empty counter
func NewCategoryCounter() *CategoryCounter {
	return &CategoryCounter{counts: make(map[string]int)}
}

// Increment counts one occurrence of a raw key
func (c *CategoryCounter) Increment(rawKey string) {
	c.counts[strings.ToLower(rawKey)]++
}

// IncrementNormalized counts one occurrence of an already normalized key.
// Normalizing the key again is a no-op, so counts do not depend on whether
// the caller normalized first.
func (c *CategoryCounter) IncrementNormalized(normalizedKey string) {
	c.counts[strings.ToLower(NormalizeLocale(normalizedKey))]++
}

// Count returns the count stored for key
func (c *CategoryCounter) Count(key string) int {
	return c.counts[strings.ToLower(key)]
}

// Len returns the number of distinct keys
func (c *CategoryCounter) Len() int {
	return len(c.counts)
}

// Merge adds every count of other to c
func (c *CategoryCounter) Merge(other *CategoryCounter) {
	if other == nil {
		return
	}
	for key, n := range other.counts {
		c.counts[key] += n
	}
}

// CategoryEntry is one row of a top-K table
type CategoryEntry struct {
	Key   string
	Share PercentagePair
}

// TopK returns the k most frequent keys with their share of total. Rows are
// ordered by count descending, then key ascending. k <= 0 returns every key.
func (c *CategoryCounter) TopK(k, total int) []CategoryEntry {
	entries := make([]CategoryEntry, 0, len(c.counts))
	for key, n := range c.counts {
		entries = append(entries, CategoryEntry{Key: key, Share: NewPercentagePair(n, total)})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Share.Count != entries[j].Share.Count {
			return entries[i].Share.Count > entries[j].Share.Count
		}
		return entries[i].Key < entries[j].Key
	})

	if k > 0 && len(entries) > k {
		entries = entries[:k]
	}
	return entries
}

type categoryEntryJSON struct {
	Key        string   `json:"key"`
	Count      int      `json:"count"`
	Total      int      `json:"total"`
	Percentage *float64 `json:"percentage"`
}

// MarshalJSON flattens the entry into key, count, total and percentage
func (e CategoryEntry) MarshalJSON() ([]byte, error) {
	out := categoryEntryJSON{Key: e.Key, Count: e.Share.Count, Total: e.Share.Total}
	if pct, ok := e.Share.Percentage(); ok {
		out.Percentage = &pct
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a flattened entry
func (e *CategoryEntry) UnmarshalJSON(data []byte) error {
	var in categoryEntryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	e.Key = in.Key
	e.Share = NewPercentagePair(in.Count, in.Total)
	return nil
}
