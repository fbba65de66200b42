package search

import "testing"

func TestServiceBlankQueryReturnsEmptyEnvelope(t *testing.T) {
	svc := NewService(nil, NewPgLike(nil))

	resp := svc.Search(Query{Text: "   "})
	if resp.Results == nil {
		t.Error("results should be an empty slice, not nil")
	}
	if len(resp.Results) != 0 || resp.Total != 0 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestServiceSkipsIndexingWithoutMeilisearch(t *testing.T) {
	svc := NewService(nil, NewPgLike(nil))

	// Must not panic or touch the database.
	svc.IndexListing(ListingRecord{ID: "prop_1", Title: "Loft"})
	svc.DeleteListing("prop_1")
}
