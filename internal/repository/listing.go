package repository

import "strings"

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

const defaultPageSize = 20

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// SortConfig holds sorting configuration for list queries
type SortConfig struct {
	Field string // API field name
	Order SortOrder
}

// DefaultSortConfig sorts by creation time, newest first.
func DefaultSortConfig() SortConfig {
	return SortConfig{Field: "createdAt", Order: SortOrderDesc}
}

// ParseSortOrder parses a string into SortOrder, defaulting to desc
func ParseSortOrder(s string) SortOrder {
	if strings.ToLower(s) == "asc" {
		return SortOrderAsc
	}
	return SortOrderDesc
}

// BuildOrderClause maps the API sort field through a whitelist of columns.
// Fields outside the whitelist fall back to defaultColumn.
func BuildOrderClause(config SortConfig, fieldMap map[string]string, defaultColumn string) string {
	column, ok := fieldMap[config.Field]
	if !ok {
		column = defaultColumn
	}
	if config.Order == SortOrderAsc {
		return column + " ASC"
	}
	return column + " DESC"
}

// NormalizePage clamps page and page size to the accepted range.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
