package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"rentfolio/api/internal/auth"
	"rentfolio/api/internal/authpw"
	"rentfolio/api/internal/config"
	"rentfolio/api/internal/email"
	"rentfolio/api/internal/export"
	"rentfolio/api/internal/media"
	"rentfolio/api/internal/rbac"
	"rentfolio/api/internal/search"
	"rentfolio/api/internal/store"
	"rentfolio/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// Free tier limits, applied when a user has no subscription.
const (
	freeMaxListings     = 1
	freeMaxFeatured     = 0
	freeListingDuration = 30
	featuredDuration    = 30
)

type PropertyInput struct {
	Title            string                `json:"title"`
	Description      *string               `json:"description"`
	Address          *string               `json:"address"`
	City             string                `json:"city"`
	Country          string                `json:"country"`
	Latitude         *float64              `json:"latitude"`
	Longitude        *float64              `json:"longitude"`
	Price            *float64              `json:"price"`
	Currency         string                `json:"currency"`
	PropertyType     *string               `json:"propertyType"`
	Bedrooms         *int                  `json:"bedrooms"`
	Bathrooms        *int                  `json:"bathrooms"`
	AreaSqm          *float64              `json:"areaSqm"`
	Features         map[string]bool       `json:"features"`
	Images           []store.PropertyImage `json:"images"`
	VirtualTourURL   *string               `json:"virtualTourUrl"`
	AvailabilityDate *time.Time            `json:"availabilityDate"`
	Visibility       string                `json:"visibility"`
}

type PropertyUpdateInput struct {
	Title            *string               `json:"title"`
	Description      *string               `json:"description"`
	Address          *string               `json:"address"`
	City             *string               `json:"city"`
	Country          *string               `json:"country"`
	Latitude         *float64              `json:"latitude"`
	Longitude        *float64              `json:"longitude"`
	Price            *float64              `json:"price"`
	Currency         *string               `json:"currency"`
	PropertyType     *string               `json:"propertyType"`
	Bedrooms         *int                  `json:"bedrooms"`
	Bathrooms        *int                  `json:"bathrooms"`
	AreaSqm          *float64              `json:"areaSqm"`
	Features         map[string]bool       `json:"features"`
	Images           []store.PropertyImage `json:"images"`
	VirtualTourURL   *string               `json:"virtualTourUrl"`
	AvailabilityDate *time.Time            `json:"availabilityDate"`
	Visibility       *string               `json:"visibility"`
}

type ProfileUpdateInput struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	AvatarURL *string `json:"avatarUrl"`
	Phone     *string `json:"phone"`
}

type PlanInput struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Price               float64  `json:"price"`
	Interval            string   `json:"interval"`
	Features            []string `json:"features"`
	MaxListings         *int     `json:"maxListings"`
	MaxFeaturedListings int      `json:"maxFeaturedListings"`
	ListingDuration     int      `json:"listingDuration"`
}

var allowedVisibility = map[string]struct{}{
	store.VisibilityPublic:   {},
	store.VisibilityPrivate:  {},
	store.VisibilityUnlisted: {},
}

var allowedPlanIntervals = map[string]struct{}{
	"month": {},
	"year":  {},
	"free":  {},
}

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	UpdateUserProfile(ctx context.Context, userID string, firstName, lastName, avatarURL, phone *string) error
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	SearchProperties(context.Context, store.PropertyFilter) ([]store.Property, int, error)
	GetProperty(context.Context, string) (store.Property, error)
	ListUserProperties(context.Context, string) ([]store.Property, error)
	InsertProperty(context.Context, store.Property) error
	UpdateProperty(context.Context, string, string, store.PropertyUpdate) (bool, error)
	DeleteProperty(context.Context, string, string) (bool, error)
	PublishProperty(context.Context, string, string, time.Time) (bool, error)
	MarkPropertyRented(context.Context, string, string) (bool, error)
	ArchiveProperty(context.Context, string, string) (bool, error)
	FeatureProperty(context.Context, string, string, time.Time) (bool, error)
	SetPropertyImages(context.Context, string, string, []store.PropertyImage) (bool, error)
	CountPublishedListings(context.Context, string) (int, error)
	CountFeaturedListings(context.Context, string) (int, error)
	IncrementPropertyViews(context.Context, string) error
	IncrementContactClicks(context.Context, string) error
	ExpirePublishedListings(context.Context, time.Time) (int64, error)
	ExpireFeaturedListings(context.Context, time.Time) (int64, error)

	ListPlans(context.Context) ([]store.SubscriptionPlan, error)
	GetPlan(context.Context, string) (store.SubscriptionPlan, error)
	UpsertPlan(context.Context, store.SubscriptionPlan) error
	GetUserSubscription(context.Context, string) (*store.Subscription, error)
	InsertSubscription(context.Context, store.Subscription) error

	InsertNotification(context.Context, store.Notification) error
	ListNotifications(ctx context.Context, userID, status string, page, limit int) ([]store.Notification, int, error)
	MarkNotificationRead(context.Context, string, string) (bool, error)
	MarkAllNotificationsRead(context.Context, string) error
	DeleteNotification(context.Context, string, string) (bool, error)

	Ping(ctx context.Context) error
}

// refreshSessionStore is the subset of session state that can live in
// Redis instead of Postgres.
type refreshSessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions refreshSessionStore
	authpw   *authpw.Service
	search   *search.Service
	media    *media.Store
	email    *email.Service
	export   *export.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, searchSvc *search.Service, mediaStore *media.Store, emailSvc *email.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: dataStore,
		authpw:   authpw.NewService(dataStore),
		search:   searchSvc,
		media:    mediaStore,
		email:    emailSvc,
		export:   export.NewService(dataStore),
	}
}

// NewWithSessionStore keeps refresh tokens in Redis instead of Postgres.
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions refreshSessionStore, searchSvc *search.Service, mediaStore *media.Store, emailSvc *email.Service) *Service {
	service := New(cfg, dataStore, searchSvc, mediaStore, emailSvc)
	service.sessions = sessions
	return service
}

func (s *Service) Bootstrap(ctx context.Context) error {
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// SignUp registers an account and kicks off the verification flow.
func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (*authpw.SignUpResponse, error) {
	resp, err := s.authpw.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.SMTPConfigured() {
		verifyURL := strings.TrimRight(s.cfg.AppBaseURL, "/") + "/verify-email?token=" + resp.VerificationToken
		if err := s.email.SendVerificationEmail(req.Email, req.FirstName, verifyURL); err != nil {
			log.Printf("signup: send verification email: %v", err)
		}
	}

	welcome := store.Notification{
		ID:      util.NewID("ntf"),
		UserID:  resp.UserID,
		Type:    "system",
		Message: fmt.Sprintf("Welcome to Rentfolio, %s! Your account is ready.", strings.TrimSpace(req.FirstName)),
		Data:    map[string]any{"welcomeMessage": true},
		Status:  store.NotificationSent,
	}
	if err := s.store.InsertNotification(ctx, welcome); err != nil {
		log.Printf("signup: insert welcome notification: %v", err)
	}

	return resp, nil
}

// VerifyEmail confirms an address and, when SMTP is up, sends the welcome
// email.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	return s.authpw.VerifyEmail(ctx, token)
}

// RequestPasswordReset creates a reset token and mails it when SMTP is up.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) (string, error) {
	token, err := s.authpw.RequestPasswordReset(ctx, emailAddr)
	if err != nil || token == "" {
		return token, err
	}
	if s.SMTPConfigured() {
		resetURL := strings.TrimRight(s.cfg.AppBaseURL, "/") + "/reset-password?token=" + token
		if err := s.email.SendPasswordResetEmail(emailAddr, "", resetURL); err != nil {
			log.Printf("reset: send reset email: %v", err)
		}
	}
	return token, nil
}

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	record, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The session backend may only hold the user ID; load the full profile.
	user, err := s.store.GetUserByID(ctx, record.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName(),
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName(),
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName(),
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, input ProfileUpdateInput) (map[string]any, error) {
	if err := s.store.UpdateUserProfile(ctx, userID, input.FirstName, input.LastName, input.AvatarURL, input.Phone); err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return userPayload(user), nil
}

func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	return s.authpw.ChangePassword(ctx, userID, currentPassword, newPassword)
}

// SearchProperties runs the public listing search. Only published, public
// listings are matched; the total count uses the same compiled filter as
// the page, so the two always agree.
func (s *Service) SearchProperties(ctx context.Context, filter store.PropertyFilter) (map[string]any, error) {
	properties, total, err := s.store.SearchProperties(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 9
	}
	totalPages := (total + limit - 1) / limit

	items := make([]map[string]any, 0, len(properties))
	for _, p := range properties {
		items = append(items, propertyPayload(p, false))
	}
	return map[string]any{
		"properties": items,
		"total":      total,
		"page":       page,
		"limit":      limit,
		"totalPages": totalPages,
	}, nil
}

// GetProperty returns one listing. Non-owners only see published, public
// listings; the owner always sees their own regardless of state.
func (s *Service) GetProperty(ctx context.Context, propertyID, viewerID string) (map[string]any, error) {
	p, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	isOwner := viewerID != "" && viewerID == p.UserID
	if !isOwner && (p.Status != store.StatusPublished || p.Visibility != store.VisibilityPublic) {
		return nil, sql.ErrNoRows
	}
	return propertyPayload(p, isOwner), nil
}

func (s *Service) RecordPropertyView(ctx context.Context, propertyID string) error {
	return s.store.IncrementPropertyViews(ctx, propertyID)
}

func (s *Service) RecordContactClick(ctx context.Context, propertyID string) error {
	return s.store.IncrementContactClicks(ctx, propertyID)
}

func (s *Service) CreateProperty(ctx context.Context, session Session, input PropertyInput) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	visibility := input.Visibility
	if visibility == "" {
		visibility = store.VisibilityPublic
	}
	if _, ok := allowedVisibility[visibility]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid visibility", nil)
	}

	property := store.Property{
		ID:               util.NewID("prop"),
		UserID:           session.UserID,
		Title:            title,
		Description:      input.Description,
		Address:          input.Address,
		City:             strings.TrimSpace(input.City),
		Country:          strings.TrimSpace(input.Country),
		Latitude:         input.Latitude,
		Longitude:        input.Longitude,
		Price:            input.Price,
		Currency:         strings.ToUpper(strings.TrimSpace(input.Currency)),
		PropertyType:     input.PropertyType,
		Bedrooms:         input.Bedrooms,
		Bathrooms:        input.Bathrooms,
		AreaSqm:          input.AreaSqm,
		Features:         input.Features,
		Images:           input.Images,
		VirtualTourURL:   input.VirtualTourURL,
		Status:           store.StatusDraft,
		AvailabilityDate: input.AvailabilityDate,
		Visibility:       visibility,
	}
	if err := s.store.InsertProperty(ctx, property); err != nil {
		return nil, err
	}

	created, err := s.store.GetProperty(ctx, property.ID)
	if err != nil {
		return nil, err
	}
	return propertyPayload(created, true), nil
}

func (s *Service) UpdateProperty(ctx context.Context, session Session, propertyID string, input PropertyUpdateInput) (map[string]any, error) {
	if input.Visibility != nil {
		if _, ok := allowedVisibility[*input.Visibility]; !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid visibility", nil)
		}
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title cannot be blank", nil)
	}

	update := store.PropertyUpdate{
		Title:            input.Title,
		Description:      input.Description,
		Address:          input.Address,
		City:             input.City,
		Country:          input.Country,
		Latitude:         input.Latitude,
		Longitude:        input.Longitude,
		Price:            input.Price,
		Currency:         input.Currency,
		PropertyType:     input.PropertyType,
		Bedrooms:         input.Bedrooms,
		Bathrooms:        input.Bathrooms,
		AreaSqm:          input.AreaSqm,
		Features:         input.Features,
		Images:           input.Images,
		VirtualTourURL:   input.VirtualTourURL,
		AvailabilityDate: input.AvailabilityDate,
		Visibility:       input.Visibility,
	}
	changed, err := s.store.UpdateProperty(ctx, propertyID, session.UserID, update)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, sql.ErrNoRows
	}

	p, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	s.syncSearchIndex(p)
	return propertyPayload(p, true), nil
}

func (s *Service) DeleteProperty(ctx context.Context, session Session, propertyID string) error {
	changed, err := s.store.DeleteProperty(ctx, propertyID, session.UserID)
	if err != nil {
		return err
	}
	if !changed {
		return sql.ErrNoRows
	}
	if s.search != nil {
		s.search.DeleteListing(propertyID)
	}
	if s.media != nil {
		go s.media.RemoveAll(context.Background(), propertyID)
	}
	return nil
}

// PublishProperty moves a draft listing live. The plan quota is checked
// here, not at creation: drafts are always free.
func (s *Service) PublishProperty(ctx context.Context, session Session, propertyID string) (map[string]any, error) {
	maxListings, _, duration, err := s.planLimits(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	published, err := s.store.CountPublishedListings(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if maxListings >= 0 && published >= maxListings {
		return nil, domainError(http.StatusConflict, "LISTING_QUOTA_EXCEEDED", "Your plan's published listing limit is reached", map[string]any{
			"limit": maxListings,
			"used":  published,
		})
	}

	expiresAt := time.Now().AddDate(0, 0, duration)
	changed, err := s.store.PublishProperty(ctx, propertyID, session.UserID, expiresAt)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, sql.ErrNoRows
	}

	p, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	s.syncSearchIndex(p)
	s.notify(ctx, session.UserID, "property",
		fmt.Sprintf("Your listing %q is now live.", p.Title),
		map[string]any{"propertyId": p.ID})
	return propertyPayload(p, true), nil
}

// FeatureProperty promotes a published listing. Featured slots come from
// the plan; the free tier has none.
func (s *Service) FeatureProperty(ctx context.Context, session Session, propertyID string) (map[string]any, error) {
	_, maxFeatured, _, err := s.planLimits(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	featured, err := s.store.CountFeaturedListings(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if featured >= maxFeatured {
		return nil, domainError(http.StatusConflict, "FEATURED_QUOTA_EXCEEDED", "Your plan's featured listing limit is reached", map[string]any{
			"limit": maxFeatured,
			"used":  featured,
		})
	}

	until := time.Now().AddDate(0, 0, featuredDuration)
	changed, err := s.store.FeatureProperty(ctx, propertyID, session.UserID, until)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, sql.ErrNoRows
	}

	p, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	s.syncSearchIndex(p)
	return propertyPayload(p, true), nil
}

func (s *Service) MarkPropertyRented(ctx context.Context, session Session, propertyID string) (map[string]any, error) {
	return s.transition(ctx, session, propertyID, s.store.MarkPropertyRented)
}

func (s *Service) ArchiveProperty(ctx context.Context, session Session, propertyID string) (map[string]any, error) {
	return s.transition(ctx, session, propertyID, s.store.ArchiveProperty)
}

func (s *Service) transition(ctx context.Context, session Session, propertyID string, op func(context.Context, string, string) (bool, error)) (map[string]any, error) {
	changed, err := op(ctx, propertyID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, sql.ErrNoRows
	}
	if s.search != nil {
		s.search.DeleteListing(propertyID)
	}
	p, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return propertyPayload(p, true), nil
}

func (s *Service) MyProperties(ctx context.Context, session Session) (map[string]any, error) {
	properties, err := s.store.ListUserProperties(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(properties))
	for _, p := range properties {
		items = append(items, propertyPayload(p, true))
	}
	return map[string]any{"properties": items}, nil
}

func (s *Service) MySubscription(ctx context.Context, session Session) (map[string]any, error) {
	sub, err := s.store.GetUserSubscription(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	published, err := s.store.CountPublishedListings(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	featured, err := s.store.CountFeaturedListings(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	maxListings, maxFeatured, duration, err := s.planLimits(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	var planItem any
	var subItem any
	if sub != nil {
		subItem = subscriptionPayload(*sub)
		if sub.Plan != nil {
			planItem = planPayload(*sub.Plan)
		}
	}
	var maxListingsItem any
	if maxListings >= 0 {
		maxListingsItem = maxListings
	}
	return map[string]any{
		"subscription": subItem,
		"plan":         planItem,
		"usage": map[string]any{
			"publishedListings":   published,
			"maxListings":         maxListingsItem,
			"featuredListings":    featured,
			"maxFeaturedListings": maxFeatured,
			"listingDurationDays": duration,
		},
	}, nil
}

func (s *Service) ListPlans(ctx context.Context) (map[string]any, error) {
	plans, err := s.store.ListPlans(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(plans))
	for _, plan := range plans {
		items = append(items, planPayload(plan))
	}
	return map[string]any{"plans": items}, nil
}

func (s *Service) UpsertPlan(ctx context.Context, input PlanInput) (map[string]any, error) {
	planID := strings.TrimSpace(input.ID)
	name := strings.TrimSpace(input.Name)
	if planID == "" || name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "id and name are required", nil)
	}
	if _, ok := allowedPlanIntervals[input.Interval]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "interval must be month, year, or free", nil)
	}
	if input.ListingDuration <= 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "listingDuration must be positive", nil)
	}

	plan := store.SubscriptionPlan{
		ID:                  planID,
		Name:                name,
		Price:               input.Price,
		Interval:            input.Interval,
		Features:            input.Features,
		MaxListings:         input.MaxListings,
		MaxFeaturedListings: input.MaxFeaturedListings,
		ListingDuration:     input.ListingDuration,
	}
	if err := s.store.UpsertPlan(ctx, plan); err != nil {
		return nil, err
	}
	saved, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	return planPayload(saved), nil
}

// Subscribe attaches a plan to the user. Payment capture is out of scope;
// the subscription activates immediately.
func (s *Service) Subscribe(ctx context.Context, session Session, planID string) (map[string]any, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	periodEnd := now.AddDate(0, 1, 0)
	if plan.Interval == "year" {
		periodEnd = now.AddDate(1, 0, 0)
	}
	sub := store.Subscription{
		ID:                 util.NewID("sub"),
		UserID:             session.UserID,
		PlanID:             plan.ID,
		Status:             "active",
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd,
	}
	if err := s.store.InsertSubscription(ctx, sub); err != nil {
		return nil, err
	}
	s.notify(ctx, session.UserID, "subscription",
		fmt.Sprintf("You are now on the %s plan.", plan.Name),
		map[string]any{"planId": plan.ID})
	return s.MySubscription(ctx, session)
}

func (s *Service) Notifications(ctx context.Context, session Session, status string, page, limit int) (map[string]any, error) {
	notifications, total, err := s.store.ListNotifications(ctx, session.UserID, status, page, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(notifications))
	for _, n := range notifications {
		items = append(items, notificationPayload(n))
	}
	return map[string]any{"notifications": items, "total": total}, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, session Session, notificationID string) error {
	changed, err := s.store.MarkNotificationRead(ctx, notificationID, session.UserID)
	if err != nil {
		return err
	}
	if !changed {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, session Session) error {
	return s.store.MarkAllNotificationsRead(ctx, session.UserID)
}

func (s *Service) DeleteNotification(ctx context.Context, session Session, notificationID string) error {
	changed, err := s.store.DeleteNotification(ctx, notificationID, session.UserID)
	if err != nil {
		return err
	}
	if !changed {
		return sql.ErrNoRows
	}
	return nil
}

// QuickSearch is the lightweight text search backed by Meilisearch with a
// Postgres ILIKE fallback.
func (s *Service) QuickSearch(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

// Brochure renders a published public listing as a PDF.
func (s *Service) Brochure(ctx context.Context, propertyID string) (*export.Result, error) {
	p, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if p.Status != store.StatusPublished || p.Visibility != store.VisibilityPublic {
		return nil, sql.ErrNoRows
	}
	return s.export.Brochure(ctx, export.Request{PropertyID: propertyID})
}

// UploadPropertyImage stores one photo and appends it to the listing.
func (s *Service) UploadPropertyImage(ctx context.Context, session Session, propertyID string, reader io.Reader, size int64, contentType string) (map[string]any, error) {
	if s.media == nil {
		return nil, domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Image storage is not configured", nil)
	}
	p, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if p.UserID != session.UserID {
		return nil, sql.ErrNoRows
	}

	image, err := s.media.Upload(ctx, propertyID, reader, size, contentType)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "UPLOAD_FAILED", err.Error(), nil)
	}

	images := append(p.Images, image)
	if _, err := s.store.SetPropertyImages(ctx, propertyID, session.UserID, images); err != nil {
		return nil, err
	}

	updated, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	s.syncSearchIndex(updated)
	return propertyPayload(updated, true), nil
}

// ExpireListings runs the expiry sweep. It is idempotent; the caller runs
// it on a ticker.
func (s *Service) ExpireListings(ctx context.Context) (int64, int64, error) {
	now := time.Now()
	expired, err := s.store.ExpirePublishedListings(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	unfeatured, err := s.store.ExpireFeaturedListings(ctx, now)
	if err != nil {
		return expired, 0, err
	}
	return expired, unfeatured, nil
}

// planLimits resolves the caller's quota. maxListings of -1 means
// unlimited.
func (s *Service) planLimits(ctx context.Context, userID string) (maxListings, maxFeatured, durationDays int, err error) {
	sub, err := s.store.GetUserSubscription(ctx, userID)
	if err != nil {
		return 0, 0, 0, err
	}
	if sub == nil || sub.Plan == nil {
		return freeMaxListings, freeMaxFeatured, freeListingDuration, nil
	}
	plan := sub.Plan
	maxListings = -1
	if plan.MaxListings != nil {
		maxListings = *plan.MaxListings
	}
	durationDays = plan.ListingDuration
	if durationDays <= 0 {
		durationDays = freeListingDuration
	}
	return maxListings, plan.MaxFeaturedListings, durationDays, nil
}

func (s *Service) syncSearchIndex(p store.Property) {
	if s.search == nil {
		return
	}
	if p.Status != store.StatusPublished || p.Visibility != store.VisibilityPublic {
		s.search.DeleteListing(p.ID)
		return
	}
	record := search.ListingRecord{
		ID:       p.ID,
		Title:    p.Title,
		City:     p.City,
		Featured: p.IsFeatured,
	}
	if p.Description != nil {
		record.Description = *p.Description
	}
	if p.Address != nil {
		record.Address = *p.Address
	}
	if p.PropertyType != nil {
		record.PropertyType = *p.PropertyType
	}
	if p.Price != nil {
		record.Price = *p.Price
	}
	s.search.IndexListing(record)
}

func (s *Service) notify(ctx context.Context, userID, kind, message string, data map[string]any) {
	err := s.store.InsertNotification(ctx, store.Notification{
		ID:      util.NewID("ntf"),
		UserID:  userID,
		Type:    kind,
		Message: message,
		Data:    data,
		Status:  store.NotificationSent,
	})
	if err != nil {
		log.Printf("notify: insert %s for %s: %v", kind, userID, err)
	}
}

func userPayload(user store.User) map[string]any {
	return map[string]any{
		"id":              user.ID,
		"email":           user.Email,
		"firstName":       user.FirstName,
		"lastName":        user.LastName,
		"avatarUrl":       user.AvatarURL,
		"phone":           user.Phone,
		"role":            user.Role,
		"isEmailVerified": user.IsEmailVerified,
		"createdAt":       user.CreatedAt.Format(time.RFC3339),
	}
}

func propertyPayload(p store.Property, includePrivate bool) map[string]any {
	images := p.Images
	if images == nil {
		images = []store.PropertyImage{}
	}
	features := p.Features
	if features == nil {
		features = map[string]bool{}
	}
	payload := map[string]any{
		"id":               p.ID,
		"userId":           p.UserID,
		"title":            p.Title,
		"description":      p.Description,
		"address":          p.Address,
		"city":             p.City,
		"country":          p.Country,
		"latitude":         p.Latitude,
		"longitude":        p.Longitude,
		"price":            p.Price,
		"currency":         p.Currency,
		"propertyType":     p.PropertyType,
		"bedrooms":         p.Bedrooms,
		"bathrooms":        p.Bathrooms,
		"areaSqm":          p.AreaSqm,
		"features":         features,
		"images":           images,
		"virtualTourUrl":   p.VirtualTourURL,
		"status":           p.Status,
		"availabilityDate": formatTimePtr(p.AvailabilityDate),
		"isFeatured":       p.IsFeatured,
		"adType":           p.AdType,
		"viewsCount":       p.ViewsCount,
		"listingCreatedAt": p.ListingCreatedAt.Format(time.RFC3339),
		"visibility":       p.Visibility,
	}
	if includePrivate {
		payload["contactClicks"] = p.ContactClicks
		payload["featuredUntil"] = formatTimePtr(p.FeaturedUntil)
		payload["listingExpiresAt"] = formatTimePtr(p.ListingExpiresAt)
		payload["promotionStatus"] = p.PromotionStatus
		payload["createdAt"] = p.CreatedAt.Format(time.RFC3339)
		payload["updatedAt"] = p.UpdatedAt.Format(time.RFC3339)
	}
	return payload
}

func planPayload(plan store.SubscriptionPlan) map[string]any {
	features := plan.Features
	if features == nil {
		features = []string{}
	}
	return map[string]any{
		"id":                  plan.ID,
		"name":                plan.Name,
		"price":               plan.Price,
		"interval":            plan.Interval,
		"features":            features,
		"maxListings":         plan.MaxListings,
		"maxFeaturedListings": plan.MaxFeaturedListings,
		"listingDuration":     plan.ListingDuration,
	}
}

func subscriptionPayload(sub store.Subscription) map[string]any {
	return map[string]any{
		"id":                 sub.ID,
		"planId":             sub.PlanID,
		"status":             sub.Status,
		"currentPeriodStart": sub.CurrentPeriodStart.Format(time.RFC3339),
		"currentPeriodEnd":   sub.CurrentPeriodEnd.Format(time.RFC3339),
		"cancelAtPeriodEnd":  sub.CancelAtPeriodEnd,
	}
}

func notificationPayload(n store.Notification) map[string]any {
	data := n.Data
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		"id":        n.ID,
		"type":      n.Type,
		"message":   n.Message,
		"data":      data,
		"status":    n.Status,
		"readAt":    formatTimePtr(n.ReadAt),
		"createdAt": n.CreatedAt.Format(time.RFC3339),
	}
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
