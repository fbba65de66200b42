package export

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"rentfolio/api/internal/store"
)

// DataStore defines the interface for listing data access
type DataStore interface {
	GetProperty(ctx context.Context, id string) (store.Property, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
}

// Service generates listing brochures
type Service struct {
	store DataStore
}

// NewService creates a new brochure service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Brochure renders a listing as a downloadable PDF
func (s *Service) Brochure(ctx context.Context, req Request) (*Result, error) {
	property, err := s.store.GetProperty(ctx, req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	data := buildBrochureData(property)

	// Owner contact is best effort; the brochure still renders without it.
	if owner, err := s.store.GetUserByID(ctx, property.UserID); err == nil {
		data.OwnerName = owner.DisplayName()
		data.OwnerEmail = owner.Email
		if owner.Phone != nil {
			data.OwnerPhone = *owner.Phone
		}
	}

	html, err := RenderBrochureHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render brochure: %w", err)
	}

	return exportPDF(html, property.Title)
}

func buildBrochureData(p store.Property) BrochureData {
	data := BrochureData{
		Title:       p.Title,
		Featured:    p.IsFeatured,
		GeneratedAt: time.Now(),
	}

	if p.Price != nil {
		data.PriceLabel = currencySymbol(p.Currency) + formatAmount(*p.Price) + " pcm"
	}

	var parts []string
	if p.Address != nil && *p.Address != "" {
		parts = append(parts, *p.Address)
	}
	if p.City != "" {
		parts = append(parts, p.City)
	}
	if p.Country != "" {
		parts = append(parts, p.Country)
	}
	data.Location = strings.Join(parts, ", ")

	if p.PropertyType != nil {
		data.PropertyType = *p.PropertyType
	}
	if p.Bedrooms != nil {
		data.Bedrooms = strconv.Itoa(*p.Bedrooms)
	}
	if p.Bathrooms != nil {
		data.Bathrooms = strconv.Itoa(*p.Bathrooms)
	}
	if p.AreaSqm != nil {
		data.Area = formatAmount(*p.AreaSqm) + " sqm"
	}
	if p.AvailabilityDate != nil {
		data.AvailableOn = p.AvailabilityDate.Format("Jan 2, 2006")
	}
	if p.Description != nil {
		data.Description = *p.Description
	}

	for key, enabled := range p.Features {
		if enabled {
			data.Features = append(data.Features, featureLabel(key))
		}
	}
	sort.Strings(data.Features)

	for _, img := range p.Images {
		if img.URL != "" && img.PublicID != store.PlaceholderImage.PublicID {
			data.Images = append(data.Images, img.URL)
		}
	}
	if len(data.Images) > 4 {
		data.Images = data.Images[:4]
	}

	return data
}

func currencySymbol(currency string) string {
	switch strings.ToUpper(currency) {
	case "GBP":
		return "£"
	case "EUR":
		return "€"
	case "USD":
		return "$"
	default:
		return currency + " "
	}
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

var featureLabels = map[string]string{
	store.FeatureAirConditioning:      "Air conditioning",
	store.FeatureBalcony:              "Balcony",
	store.FeatureFurnished:            "Furnished",
	store.FeatureGarden:               "Garden",
	store.FeatureParking:              "Parking",
	store.FeaturePetsAllowed:          "Pets allowed",
	store.FeatureWheelchairAccessible: "Wheelchair accessible",
	store.FeatureElevator:             "Elevator",
	store.FeatureGym:                  "Gym",
	store.FeatureSecuritySystem:       "Security system",
	store.FeatureSwimmingPool:         "Swimming pool",
	store.FeatureWifi:                 "WiFi",
}

// featureLabel maps a feature key to display text. Unknown keys are shown
// as-is so owner-defined features still appear on the brochure.
func featureLabel(key string) string {
	if label, ok := featureLabels[key]; ok {
		return label
	}
	return key
}
