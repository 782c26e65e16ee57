package domain

// Item is the store's view of a shareable item.
type Item struct {
	ItemID      string
	Name        *string
	OwnerUserID string
	SharedCount int64
	IsPublic    bool
	UpdatedAt   string
}

// DisplayName returns the item name, or nil when the item has none.
func (i Item) DisplayName() *string {
	if i.Name == nil || *i.Name == "" {
		return nil
	}
	return i.Name
}
