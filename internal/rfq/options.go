package rfq

// Options is the crawl configuration threaded through the scanner,
// fingerprinter and extractor.
type Options struct {
	// FilterTags are case-insensitive substrings marking folders to skip.
	FilterTags []string
	// FileFilterTags are case-insensitive filename suffixes excluded from
	// hashing and file listings.
	FileFilterTags []string
	// RFQFolderNames are the names of RFQ roots inside a project folder,
	// matched case-insensitively.
	RFQFolderNames []string
}

// DefaultOptions returns the built-in crawl configuration.
func DefaultOptions() Options {
	return Options{
		FilterTags:     []string{"Template", "archive"},
		FileFilterTags: []string{".db"},
		RFQFolderNames: []string{"RFQ", "Supplier RFQ", "Contractor", "1-RFQ"},
	}
}
