package campaigns

import (
	"slices"
	"strings"
)

// SortKey selects the campaign list order
type SortKey string

const (
	SortCreated   SortKey = "created_at"
	SortName      SortKey = "name"
	SortProgress  SortKey = "progress"
	SortReplyRate SortKey = "replyRate"
)

// ParseSortKey maps a query parameter to a sort key. Unknown values fall
// back to newest first.
func ParseSortKey(s string) SortKey {
	switch SortKey(s) {
	case SortName, SortProgress, SortReplyRate:
		return SortKey(s)
	default:
		return SortCreated
	}
}

// ListOptions controls Filter and Sort
type ListOptions struct {
	Search string
	Stage  Stage // empty matches every stage
	Sort   SortKey
}

// Filter returns the campaigns whose name or goal contains search
// (case-insensitive) and whose stage matches, in input order.
func Filter(cs []Campaign, search string, stage Stage) []Campaign {
	needle := strings.ToLower(search)
	out := make([]Campaign, 0, len(cs))
	for _, c := range cs {
		if stage != "" && c.Stage != stage {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(c.Name), needle) &&
			!strings.Contains(strings.ToLower(c.Goal), needle) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Sort returns a sorted copy of cs. Equal elements keep their input order.
func Sort(cs []Campaign, key SortKey) []Campaign {
	out := slices.Clone(cs)
	slices.SortStableFunc(out, compareBy(key))
	return out
}

// Apply filters then sorts
func Apply(cs []Campaign, opts ListOptions) []Campaign {
	return Sort(Filter(cs, opts.Search, opts.Stage), opts.Sort)
}

func compareBy(key SortKey) func(a, b Campaign) int {
	switch key {
	case SortName:
		return func(a, b Campaign) int { return strings.Compare(a.Name, b.Name) }
	case SortProgress:
		return func(a, b Campaign) int { return b.Progress - a.Progress }
	case SortReplyRate:
		return func(a, b Campaign) int {
			switch {
			case a.ReplyRate > b.ReplyRate:
				return -1
			case a.ReplyRate < b.ReplyRate:
				return 1
			}
			return 0
		}
	default:
		return func(a, b Campaign) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
}
