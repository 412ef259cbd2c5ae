package model

// Category represents a merchant category code from the catalog store.
// Categories are immutable reference data; transactions and rules refer to
// them by id and those references must be validated before use.
type Category struct {
	Description string
	Sector      string
	ID          int64
}

// CategoryIndex is a lookup table of categories keyed by id.
type CategoryIndex map[int64]Category

// NewCategoryIndex builds an index from a category slice.
func NewCategoryIndex(categories []Category) CategoryIndex {
	idx := make(CategoryIndex, len(categories))
	for _, c := range categories {
		idx[c.ID] = c
	}
	return idx
}

// Sector returns the sector of the category with the given id, or "" when
// the id is unknown.
func (idx CategoryIndex) Sector(id int64) string {
	if c, ok := idx[id]; ok {
		return c.Sector
	}
	return ""
}

// Contains reports whether every id in the given set refers to a known
// category. The first unknown id is returned for error reporting.
func (idx CategoryIndex) Contains(ids []int64) (bool, int64) {
	for _, id := range ids {
		if _, ok := idx[id]; !ok {
			return false, id
		}
	}
	return true, 0
}
