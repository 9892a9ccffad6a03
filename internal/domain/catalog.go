package domain

// CatalogEntry maps a merchant category code to a display category.
type CatalogEntry struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Catalog is the read-only merchant category lookup consumed by the engine.
// Implementations are supplied by the caller; the engine never maintains
// catalog data itself. Unknown codes are not an error: callers fall back
// to a generic category.
type Catalog interface {
	// Lookup returns the entry for a category code. The second return is
	// false when the code is not in the catalog.
	Lookup(code string) (CatalogEntry, bool)
}

// Fallback category names for codes the catalog does not know.
const (
	// CategoryUnknown labels recommendations for unrecognized codes.
	CategoryUnknown = "Unknown"

	// CategoryOther buckets unrecognized codes in spending analyses.
	CategoryOther = "Other"
)
