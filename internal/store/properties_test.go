package store

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestBuildPropertySearchAlwaysScopesToPublishedPublic(t *testing.T) {
	where, args, orderBy, err := buildPropertySearch(PropertyFilter{})
	if err != nil {
		t.Fatalf("buildPropertySearch: %v", err)
	}
	if where != "status = 'published' AND visibility = 'public'" {
		t.Fatalf("unexpected where clause: %s", where)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
	if orderBy != "is_featured DESC, listing_created_at DESC" {
		t.Fatalf("unexpected default order: %s", orderBy)
	}
}

func TestBuildPropertySearchCompilesEveryFilter(t *testing.T) {
	filter := PropertyFilter{
		Query:        "garden flat",
		PriceMin:     floatPtr(500),
		PriceMax:     floatPtr(2500),
		Bedrooms:     intPtr(2),
		Bathrooms:    intPtr(1),
		PropertyType: "apartment",
		City:         "London",
		AreaMin:      floatPtr(40),
		AreaMax:      floatPtr(120),
		Features:     []string{FeatureBalcony, FeaturePetsAllowed},
	}

	where, args, _, err := buildPropertySearch(filter)
	if err != nil {
		t.Fatalf("buildPropertySearch: %v", err)
	}

	for _, fragment := range []string{
		"title ILIKE $1",
		"description ILIKE $1",
		"address ILIKE $1",
		"price >= $2",
		"price <= $3",
		"bedrooms = $4",
		"bathrooms = $5",
		"property_type = $6",
		"city ILIKE $7",
		"area_sqm >= $8",
		"area_sqm <= $9",
		"features @> $10::jsonb",
	} {
		if !strings.Contains(where, fragment) {
			t.Fatalf("where clause missing %q:\n%s", fragment, where)
		}
	}

	if len(args) != 10 {
		t.Fatalf("expected 10 args, got %d: %v", len(args), args)
	}
	if args[0] != "%garden flat%" {
		t.Fatalf("unexpected query arg: %v", args[0])
	}

	var wanted map[string]bool
	if err := json.Unmarshal([]byte(args[9].(string)), &wanted); err != nil {
		t.Fatalf("feature arg is not json: %v", err)
	}
	if !wanted[FeatureBalcony] || !wanted[FeaturePetsAllowed] {
		t.Fatalf("feature containment arg missing keys: %v", wanted)
	}
}

func TestBuildPropertySearchSortKeys(t *testing.T) {
	cases := []struct {
		sortBy string
		want   string
	}{
		{"price_asc", "price ASC NULLS LAST"},
		{"price_desc", "price DESC NULLS LAST"},
		{"date_newest", "listing_created_at DESC"},
		{"date_oldest", "listing_created_at ASC"},
		{"", "is_featured DESC, listing_created_at DESC"},
		{"bogus", "is_featured DESC, listing_created_at DESC"},
	}
	for _, tc := range cases {
		_, _, orderBy, err := buildPropertySearch(PropertyFilter{SortBy: tc.sortBy})
		if err != nil {
			t.Fatalf("buildPropertySearch(%q): %v", tc.sortBy, err)
		}
		if orderBy != tc.want {
			t.Fatalf("sortBy %q: got order %q, want %q", tc.sortBy, orderBy, tc.want)
		}
	}
}

func TestDecodeImagesReplacesInvalidEntriesInPlace(t *testing.T) {
	raw := []byte(`[
		{"url": "https://cdn.example.com/a.jpg", "publicId": "a"},
		{"url": "", "publicId": "b"},
		{"url": "https://cdn.example.com/c.jpg", "publicId": ""},
		{"url": "https://cdn.example.com/d.jpg", "publicId": "d"}
	]`)

	images := decodeImages(raw)
	if len(images) != 4 {
		t.Fatalf("expected 4 images, got %d", len(images))
	}
	if images[0].PublicID != "a" || images[3].PublicID != "d" {
		t.Fatalf("valid entries must survive in order: %v", images)
	}
	if images[1] != PlaceholderImage || images[2] != PlaceholderImage {
		t.Fatalf("invalid entries must become the placeholder: %v", images)
	}
}

func TestDecodeImagesToleratesMalformedJSON(t *testing.T) {
	if got := decodeImages([]byte(`{"not":"a list"`)); got != nil {
		t.Fatalf("malformed images must decode to nil, got %v", got)
	}
	if got := decodeImages(nil); got != nil {
		t.Fatalf("absent images must decode to nil, got %v", got)
	}
}

func TestDecodeFeaturesRoundTrip(t *testing.T) {
	features := map[string]bool{
		FeatureFurnished:   true,
		FeatureParking:     false,
		"privateCinema":    true, // unknown keys survive
	}

	encoded, err := encodeFeatures(features)
	if err != nil {
		t.Fatalf("encodeFeatures: %v", err)
	}
	decoded := decodeFeatures(encoded.([]byte))
	if !reflect.DeepEqual(decoded, features) {
		t.Fatalf("round trip mismatch: got %v want %v", decoded, features)
	}

	if got := decodeFeatures([]byte(`not json`)); got != nil {
		t.Fatalf("malformed features must decode to nil, got %v", got)
	}
	if got := decodeFeatures([]byte(`{}`)); got != nil {
		t.Fatalf("empty features must decode to nil, got %v", got)
	}
}

func TestEncodeNilFeaturesAndImagesStayNull(t *testing.T) {
	features, err := encodeFeatures(nil)
	if err != nil || features != nil {
		t.Fatalf("nil features must encode to SQL NULL, got %v err %v", features, err)
	}
	images, err := encodeImages(nil)
	if err != nil || images != nil {
		t.Fatalf("nil images must encode to SQL NULL, got %v err %v", images, err)
	}
}
