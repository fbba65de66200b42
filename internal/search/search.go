package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Snippet      string  `json:"snippet"`
	City         string  `json:"city"`
	PropertyType string  `json:"propertyType,omitempty"`
	Price        float64 `json:"price,omitempty"`
	Featured     bool    `json:"featured"`
}

// Query describes a quick-search request.
type Query struct {
	Text   string
	City   string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a free-text listing search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push listings into a search index.
type Indexer interface {
	IndexListing(l ListingRecord) error
	DeleteListing(id string) error
}

// ListingRecord is the data we index for a published listing.
type ListingRecord struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Address      string  `json:"address"`
	City         string  `json:"city"`
	PropertyType string  `json:"propertyType"`
	Price        float64 `json:"price"`
	Featured     bool    `json:"featured"`
}
