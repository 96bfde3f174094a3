package core

import "time"

// BookmarksTable is the change-feed table name for bookmark rows.
const BookmarksTable = "bookmarks"

// Timeout defaults for store calls and page probing
const (
	DefaultStoreTimeout = 10 * time.Second
	DefaultTitleTimeout = 5 * time.Second
)

// Feed defaults
const (
	DefaultFeedBuffer   = 64
	DefaultPingInterval = 30 * time.Second
)

// Resource limits
const (
	MaxTitleLength   = 512
	MaxURLLength     = 2048
	MaxTitlePageSize = 1 * 1024 * 1024 // 1MB
)

// HTTP client configuration
const (
	UserAgent = "Mozilla/5.0 (compatible; marksync/1.0)"
)
