package store

import "time"

type User struct {
	ID                    string
	Email                 string
	PasswordHash          string
	FirstName             string
	LastName              string
	AvatarURL             *string
	Phone                 *string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// DisplayName is the name shown in sessions and emails.
func (u User) DisplayName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Email
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Listing lifecycle states.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusRented    = "rented"
	StatusArchived  = "archived"
	StatusExpired   = "expired"
)

// Ad types.
const (
	AdTypeStandard = "standard"
	AdTypeFeatured = "featured"
)

// Visibility values.
const (
	VisibilityPublic   = "public"
	VisibilityPrivate  = "private"
	VisibilityUnlisted = "unlisted"
)

// Promotion states.
const (
	PromotionActive   = "active"
	PromotionInactive = "inactive"
	PromotionExpired  = "expired"
)

// Well-known feature keys. The features map is open; listings may carry
// arbitrary keys, but these are the ones the search UI filters on.
const (
	FeatureAirConditioning      = "airConditioning"
	FeatureBalcony              = "balcony"
	FeatureFurnished            = "furnished"
	FeatureGarden               = "garden"
	FeatureParking              = "parking"
	FeaturePetsAllowed          = "petsAllowed"
	FeatureWheelchairAccessible = "wheelchairAccessible"
	FeatureElevator             = "elevator"
	FeatureGym                  = "gym"
	FeatureSecuritySystem       = "securitySystem"
	FeatureSwimmingPool         = "swimmingPool"
	FeatureWifi                 = "wifi"
)

// PropertyImage is a single photo attached to a listing.
type PropertyImage struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// PlaceholderImage stands in for image entries with missing url or publicId.
var PlaceholderImage = PropertyImage{URL: "/placeholder.svg", PublicID: "placeholder"}

type Property struct {
	ID               string
	UserID           string
	Title            string
	Description      *string
	Address          *string
	City             string
	Country          string
	Latitude         *float64
	Longitude        *float64
	Price            *float64
	Currency         string
	PropertyType     *string
	Bedrooms         *int
	Bathrooms        *int
	AreaSqm          *float64
	Features         map[string]bool
	Images           []PropertyImage
	VirtualTourURL   *string
	Status           string
	AvailabilityDate *time.Time
	IsFeatured       bool
	FeaturedUntil    *time.Time
	AdType           string
	ViewsCount       int
	ContactClicks    int
	ListingCreatedAt time.Time
	ListingExpiresAt *time.Time
	PromotionStatus  string
	Visibility       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PropertyUpdate carries a partial update; nil fields are left untouched.
type PropertyUpdate struct {
	Title            *string
	Description      *string
	Address          *string
	City             *string
	Country          *string
	Latitude         *float64
	Longitude        *float64
	Price            *float64
	Currency         *string
	PropertyType     *string
	Bedrooms         *int
	Bathrooms        *int
	AreaSqm          *float64
	Features         map[string]bool
	Images           []PropertyImage
	VirtualTourURL   *string
	AvailabilityDate *time.Time
	Visibility       *string
}

// PropertyFilter is the search input compiled into SQL by SearchProperties.
// Only published, public listings are ever matched.
type PropertyFilter struct {
	Query        string
	PriceMin     *float64
	PriceMax     *float64
	Bedrooms     *int
	Bathrooms    *int
	PropertyType string
	City         string
	AreaMin      *float64
	AreaMax      *float64
	Features     []string
	SortBy       string
	Page         int
	Limit        int
}

type SubscriptionPlan struct {
	ID                  string
	Name                string
	Price               float64
	Interval            string
	StripePriceID       *string
	PaypalPlanID        *string
	Features            []string
	MaxListings         *int
	MaxFeaturedListings int
	ListingDuration     int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type Subscription struct {
	ID                   string
	UserID               string
	PlanID               string
	Status               string
	StripeSubscriptionID *string
	PaypalSubscriptionID *string
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	CancelAtPeriodEnd    bool
	CanceledAt           *time.Time
	TrialStart           *time.Time
	TrialEnd             *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Plan                 *SubscriptionPlan
}

// Notification statuses.
const (
	NotificationSent      = "sent"
	NotificationDelivered = "delivered"
	NotificationRead      = "read"
	NotificationArchived  = "archived"
)

type Notification struct {
	ID        string
	UserID    string
	Type      string
	Message   string
	Data      map[string]any
	Status    string
	ReadAt    *time.Time
	CreatedAt time.Time
}
