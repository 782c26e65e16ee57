package constants

// Single-table key layout shared with the rest of the platform.
const (
	ItemPartitionPrefix   = "ITEM#"
	ItemMetadataSortKey   = "METADATA"
	UserPartitionPrefix   = "USER#"
	ActivitySortKeyPrefix = "ACTIVITY#"
	EntityTypeItem        = "Item"
	EntityTypeActivity    = "Activity"
)
