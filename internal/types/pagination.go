package types

// ListResponse is a generic list response wrapper.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

// NewListResponse wraps items, normalising nil to an empty array.
func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Data: items, Count: len(items)}
}

// HistoryFilter narrows history listings. Zero values match all.
type HistoryFilter struct {
	CustomerID string
	Channel    Channel
	Status     NotificationStatus
	Limit      int
}
