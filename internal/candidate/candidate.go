package candidate

import "sort"

// ImageReference identifies one artifact in a registry by repository and tag.
type ImageReference struct {
	// Repository is the namespace portion, e.g. "team/app". Never contains ':'.
	Repository string

	// Tag is the tag within Repository, e.g. "v1".
	Tag string
}

// String returns the serialized form "repository:tag".
func (r ImageReference) String() string {
	return r.Repository + ":" + r.Tag
}

// Item is a single candidate image with an optional caller-facing alias.
type Item struct {
	// DisplayName is reported instead of the image reference when set.
	DisplayName string

	// Image is the reference probed on the registry.
	Image ImageReference
}

// Name returns the alias if one was given, otherwise "repository:tag".
func (i Item) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Image.String()
}

// Repositories returns the distinct repositories referenced by items, sorted.
func Repositories(items []Item) []string {
	seen := make(map[string]bool, len(items))
	repos := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item.Image.Repository] {
			continue
		}
		seen[item.Image.Repository] = true
		repos = append(repos, item.Image.Repository)
	}
	sort.Strings(repos)
	return repos
}
