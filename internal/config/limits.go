package config

const (
	// MaxFolderNameLength is the maximum length for folder names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxFolderNameLength = 255

	// MaxDocumentNameLength is the maximum length for document names.
	MaxDocumentNameLength = 255

	// MaxCategoryNameLength is the maximum length for category names.
	MaxCategoryNameLength = 100

	// DefaultDocumentPageSize and MaxDocumentPageSize bound document listings.
	DefaultDocumentPageSize = 50
	MaxDocumentPageSize     = 500

	// DefaultUncachedBatch is the default number of references returned for background caching.
	DefaultUncachedBatch = 100
)
