package domain

import "slices"

// Favorites is the user's starred coin ids, in the order they were added.
type Favorites []string

// Contains reports whether coinID is starred.
func (f Favorites) Contains(coinID string) bool {
	return slices.Contains(f, coinID)
}

// Toggle stars or unstars coinID and returns the new list.
func (f Favorites) Toggle(coinID string) Favorites {
	if i := slices.Index(f, coinID); i >= 0 {
		return slices.Delete(slices.Clone(f), i, i+1)
	}
	return append(slices.Clone(f), coinID)
}
