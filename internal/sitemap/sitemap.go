// Package sitemap diffs ordered snapshots of (url, last-modified) pairs and
// assembles the seed list for a batch crawl.
package sitemap

// Entry is one snapshot row. LastModified is compared by exact string
// inequality; no date-tolerance logic is applied.
type Entry struct {
	URL          string `json:"url"`
	LastModified string `json:"last_modified"`
}

// Diff compares two snapshots. An entry of newEntries is added when its URL
// is absent from oldEntries, and changed when present with a different
// LastModified. Output order follows newEntries.
func Diff(newEntries, oldEntries []Entry) (added, changed []string) {
	old := make(map[string]string, len(oldEntries))
	for _, e := range oldEntries {
		old[e.URL] = e.LastModified
	}
	for _, e := range newEntries {
		lastMod, ok := old[e.URL]
		switch {
		case !ok:
			added = append(added, e.URL)
		case lastMod != e.LastModified:
			changed = append(changed, e.URL)
		}
	}
	return added, changed
}

// SeedPolicy selects where updated URLs land relative to the rest of the
// snapshot when seeding a batch crawl.
type SeedPolicy string

// Seed policies.
const (
	PrependUpdated SeedPolicy = "prepend"
	AppendUpdated  SeedPolicy = "append"
)

// SeedList merges added and changed URLs with the previously-uncrawled
// remainder of the snapshot, ordered by policy. Duplicates keep their first
// occurrence.
func SeedList(added, changed, remaining []string, policy SeedPolicy) []string {
	updated := make([]string, 0, len(added)+len(changed))
	updated = append(updated, added...)
	updated = append(updated, changed...)

	var ordered []string
	if policy == AppendUpdated {
		ordered = append(remaining, updated...)
	} else {
		ordered = append(updated, remaining...)
	}

	seen := make(map[string]bool, len(ordered))
	seeds := make([]string, 0, len(ordered))
	for _, u := range ordered {
		if seen[u] {
			continue
		}
		seen[u] = true
		seeds = append(seeds, u)
	}
	return seeds
}

// Remainder returns the snapshot URLs that are in neither added nor changed,
// in snapshot order.
func Remainder(entries []Entry, added, changed []string) []string {
	updated := make(map[string]bool, len(added)+len(changed))
	for _, u := range added {
		updated[u] = true
	}
	for _, u := range changed {
		updated[u] = true
	}
	var rest []string
	for _, e := range entries {
		if !updated[e.URL] {
			rest = append(rest, e.URL)
		}
	}
	return rest
}
