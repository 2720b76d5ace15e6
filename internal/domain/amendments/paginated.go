package amendments

// ListFilter narrows List. Zero values mean no filter.
type ListFilter struct {
	Status   Status
	UF       string
	Year     int
	Page     int
	PageSize int
}

// PaginatedResult represents a paginated response with data and metadata
type PaginatedResult struct {
	Data       []*Amendment `json:"data"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	Total      int64        `json:"totalItems"`
	TotalPages int          `json:"totalPages"`
}
