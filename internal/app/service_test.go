package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"rentfolio/api/internal/auth"
	"rentfolio/api/internal/authpw"
	"rentfolio/api/internal/config"
	"rentfolio/api/internal/export"
	"rentfolio/api/internal/store"
)

// fakeStore implements the service's data store with per-test function
// fields. Unset fields return zero values so tests only wire what they
// exercise.
type fakeStore struct {
	getUserByID          func(ctx context.Context, id string) (store.User, error)
	updateUserProfile    func(ctx context.Context, userID string, firstName, lastName, avatarURL, phone *string) error
	saveRefreshSession   func(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	lookupRefreshSession func(ctx context.Context, tokenHash string) (store.User, error)
	revokeRefreshSession func(ctx context.Context, tokenHash string) error
	revokeAccessToken    func(ctx context.Context, jti string, expiresAt time.Time) error
	isAccessTokenRevoked func(ctx context.Context, jti string) (bool, error)

	searchProperties       func(ctx context.Context, filter store.PropertyFilter) ([]store.Property, int, error)
	getProperty            func(ctx context.Context, id string) (store.Property, error)
	listUserProperties     func(ctx context.Context, userID string) ([]store.Property, error)
	insertProperty         func(ctx context.Context, p store.Property) error
	updateProperty         func(ctx context.Context, id, userID string, update store.PropertyUpdate) (bool, error)
	deleteProperty         func(ctx context.Context, id, userID string) (bool, error)
	publishProperty        func(ctx context.Context, id, userID string, expiresAt time.Time) (bool, error)
	markPropertyRented     func(ctx context.Context, id, userID string) (bool, error)
	archiveProperty        func(ctx context.Context, id, userID string) (bool, error)
	featureProperty        func(ctx context.Context, id, userID string, until time.Time) (bool, error)
	setPropertyImages      func(ctx context.Context, id, userID string, images []store.PropertyImage) (bool, error)
	countPublishedListings func(ctx context.Context, userID string) (int, error)
	countFeaturedListings  func(ctx context.Context, userID string) (int, error)
	incrementViews         func(ctx context.Context, id string) error
	incrementClicks        func(ctx context.Context, id string) error
	expirePublished        func(ctx context.Context, now time.Time) (int64, error)
	expireFeatured         func(ctx context.Context, now time.Time) (int64, error)

	listPlans           func(ctx context.Context) ([]store.SubscriptionPlan, error)
	getPlan             func(ctx context.Context, id string) (store.SubscriptionPlan, error)
	upsertPlan          func(ctx context.Context, plan store.SubscriptionPlan) error
	getUserSubscription func(ctx context.Context, userID string) (*store.Subscription, error)
	insertSubscription  func(ctx context.Context, sub store.Subscription) error

	insertNotification       func(ctx context.Context, n store.Notification) error
	listNotifications        func(ctx context.Context, userID, status string, page, limit int) ([]store.Notification, int, error)
	markNotificationRead     func(ctx context.Context, id, userID string) (bool, error)
	markAllNotificationsRead func(ctx context.Context, userID string) error
	deleteNotification       func(ctx context.Context, id, userID string) (bool, error)

	getUserByEmail              func(ctx context.Context, email string) (store.User, error)
	createUser                  func(ctx context.Context, user store.User) error
	updateUserVerificationToken func(ctx context.Context, userID, token string, expiresAt time.Time) error
	verifyUserEmail             func(ctx context.Context, token string) error
	updateUserPassword          func(ctx context.Context, userID, passwordHash string) error
	createPasswordReset         func(ctx context.Context, userID, token string, expiresAt time.Time) error
	getPasswordReset            func(ctx context.Context, token string) (string, error)
	markPasswordResetUsed       func(ctx context.Context, token string) error

	ping func(ctx context.Context) error
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if f.getUserByID != nil {
		return f.getUserByID(ctx, id)
	}
	return store.User{ID: id, Email: id + "@example.com", Role: "owner"}, nil
}

func (f *fakeStore) UpdateUserProfile(ctx context.Context, userID string, firstName, lastName, avatarURL, phone *string) error {
	if f.updateUserProfile != nil {
		return f.updateUserProfile(ctx, userID, firstName, lastName, avatarURL, phone)
	}
	return nil
}

func (f *fakeStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	if f.saveRefreshSession != nil {
		return f.saveRefreshSession(ctx, tokenHash, userID, expiresAt)
	}
	return nil
}

func (f *fakeStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	if f.lookupRefreshSession != nil {
		return f.lookupRefreshSession(ctx, tokenHash)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if f.revokeRefreshSession != nil {
		return f.revokeRefreshSession(ctx, tokenHash)
	}
	return nil
}

func (f *fakeStore) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	if f.revokeAccessToken != nil {
		return f.revokeAccessToken(ctx, jti, expiresAt)
	}
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if f.isAccessTokenRevoked != nil {
		return f.isAccessTokenRevoked(ctx, jti)
	}
	return false, nil
}

func (f *fakeStore) SearchProperties(ctx context.Context, filter store.PropertyFilter) ([]store.Property, int, error) {
	if f.searchProperties != nil {
		return f.searchProperties(ctx, filter)
	}
	return nil, 0, nil
}

func (f *fakeStore) GetProperty(ctx context.Context, id string) (store.Property, error) {
	if f.getProperty != nil {
		return f.getProperty(ctx, id)
	}
	return store.Property{}, sql.ErrNoRows
}

func (f *fakeStore) ListUserProperties(ctx context.Context, userID string) ([]store.Property, error) {
	if f.listUserProperties != nil {
		return f.listUserProperties(ctx, userID)
	}
	return nil, nil
}

func (f *fakeStore) InsertProperty(ctx context.Context, p store.Property) error {
	if f.insertProperty != nil {
		return f.insertProperty(ctx, p)
	}
	return nil
}

func (f *fakeStore) UpdateProperty(ctx context.Context, id, userID string, update store.PropertyUpdate) (bool, error) {
	if f.updateProperty != nil {
		return f.updateProperty(ctx, id, userID, update)
	}
	return false, nil
}

func (f *fakeStore) DeleteProperty(ctx context.Context, id, userID string) (bool, error) {
	if f.deleteProperty != nil {
		return f.deleteProperty(ctx, id, userID)
	}
	return false, nil
}

func (f *fakeStore) PublishProperty(ctx context.Context, id, userID string, expiresAt time.Time) (bool, error) {
	if f.publishProperty != nil {
		return f.publishProperty(ctx, id, userID, expiresAt)
	}
	return false, nil
}

func (f *fakeStore) MarkPropertyRented(ctx context.Context, id, userID string) (bool, error) {
	if f.markPropertyRented != nil {
		return f.markPropertyRented(ctx, id, userID)
	}
	return false, nil
}

func (f *fakeStore) ArchiveProperty(ctx context.Context, id, userID string) (bool, error) {
	if f.archiveProperty != nil {
		return f.archiveProperty(ctx, id, userID)
	}
	return false, nil
}

func (f *fakeStore) FeatureProperty(ctx context.Context, id, userID string, until time.Time) (bool, error) {
	if f.featureProperty != nil {
		return f.featureProperty(ctx, id, userID, until)
	}
	return false, nil
}

func (f *fakeStore) SetPropertyImages(ctx context.Context, id, userID string, images []store.PropertyImage) (bool, error) {
	if f.setPropertyImages != nil {
		return f.setPropertyImages(ctx, id, userID, images)
	}
	return false, nil
}

func (f *fakeStore) CountPublishedListings(ctx context.Context, userID string) (int, error) {
	if f.countPublishedListings != nil {
		return f.countPublishedListings(ctx, userID)
	}
	return 0, nil
}

func (f *fakeStore) CountFeaturedListings(ctx context.Context, userID string) (int, error) {
	if f.countFeaturedListings != nil {
		return f.countFeaturedListings(ctx, userID)
	}
	return 0, nil
}

func (f *fakeStore) IncrementPropertyViews(ctx context.Context, id string) error {
	if f.incrementViews != nil {
		return f.incrementViews(ctx, id)
	}
	return nil
}

func (f *fakeStore) IncrementContactClicks(ctx context.Context, id string) error {
	if f.incrementClicks != nil {
		return f.incrementClicks(ctx, id)
	}
	return nil
}

func (f *fakeStore) ExpirePublishedListings(ctx context.Context, now time.Time) (int64, error) {
	if f.expirePublished != nil {
		return f.expirePublished(ctx, now)
	}
	return 0, nil
}

func (f *fakeStore) ExpireFeaturedListings(ctx context.Context, now time.Time) (int64, error) {
	if f.expireFeatured != nil {
		return f.expireFeatured(ctx, now)
	}
	return 0, nil
}

func (f *fakeStore) ListPlans(ctx context.Context) ([]store.SubscriptionPlan, error) {
	if f.listPlans != nil {
		return f.listPlans(ctx)
	}
	return nil, nil
}

func (f *fakeStore) GetPlan(ctx context.Context, id string) (store.SubscriptionPlan, error) {
	if f.getPlan != nil {
		return f.getPlan(ctx, id)
	}
	return store.SubscriptionPlan{}, sql.ErrNoRows
}

func (f *fakeStore) UpsertPlan(ctx context.Context, plan store.SubscriptionPlan) error {
	if f.upsertPlan != nil {
		return f.upsertPlan(ctx, plan)
	}
	return nil
}

func (f *fakeStore) GetUserSubscription(ctx context.Context, userID string) (*store.Subscription, error) {
	if f.getUserSubscription != nil {
		return f.getUserSubscription(ctx, userID)
	}
	return nil, nil
}

func (f *fakeStore) InsertSubscription(ctx context.Context, sub store.Subscription) error {
	if f.insertSubscription != nil {
		return f.insertSubscription(ctx, sub)
	}
	return nil
}

func (f *fakeStore) InsertNotification(ctx context.Context, n store.Notification) error {
	if f.insertNotification != nil {
		return f.insertNotification(ctx, n)
	}
	return nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, userID, status string, page, limit int) ([]store.Notification, int, error) {
	if f.listNotifications != nil {
		return f.listNotifications(ctx, userID, status, page, limit)
	}
	return nil, 0, nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, id, userID string) (bool, error) {
	if f.markNotificationRead != nil {
		return f.markNotificationRead(ctx, id, userID)
	}
	return false, nil
}

func (f *fakeStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	if f.markAllNotificationsRead != nil {
		return f.markAllNotificationsRead(ctx, userID)
	}
	return nil
}

func (f *fakeStore) DeleteNotification(ctx context.Context, id, userID string) (bool, error) {
	if f.deleteNotification != nil {
		return f.deleteNotification(ctx, id, userID)
	}
	return false, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmail != nil {
		return f.getUserByEmail(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) error {
	if f.createUser != nil {
		return f.createUser(ctx, user)
	}
	return nil
}

func (f *fakeStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	if f.updateUserVerificationToken != nil {
		return f.updateUserVerificationToken(ctx, userID, token, expiresAt)
	}
	return nil
}

func (f *fakeStore) VerifyUserEmail(ctx context.Context, token string) error {
	if f.verifyUserEmail != nil {
		return f.verifyUserEmail(ctx, token)
	}
	return nil
}

func (f *fakeStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	if f.updateUserPassword != nil {
		return f.updateUserPassword(ctx, userID, passwordHash)
	}
	return nil
}

func (f *fakeStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	if f.createPasswordReset != nil {
		return f.createPasswordReset(ctx, userID, token, expiresAt)
	}
	return nil
}

func (f *fakeStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	if f.getPasswordReset != nil {
		return f.getPasswordReset(ctx, token)
	}
	return "", sql.ErrNoRows
}

func (f *fakeStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	if f.markPasswordResetUsed != nil {
		return f.markPasswordResetUsed(ctx, token)
	}
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.ping != nil {
		return f.ping(ctx)
	}
	return nil
}

func newTestService(fake *fakeStore) *Service {
	return &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
			AppBaseURL: "http://localhost:3000",
		},
		store:    fake,
		sessions: fake,
		authpw:   authpw.NewService(fake),
		export:   export.NewService(fake),
	}
}

func ownerSession() Session {
	return Session{UserID: "usr_1", UserName: "Alex Doe", Role: "owner"}
}

func TestPublishPropertyFreeTierQuota(t *testing.T) {
	published := false
	fake := &fakeStore{
		countPublishedListings: func(ctx context.Context, userID string) (int, error) {
			return 1, nil
		},
		publishProperty: func(ctx context.Context, id, userID string, expiresAt time.Time) (bool, error) {
			published = true
			return true, nil
		},
	}
	svc := newTestService(fake)

	_, err := svc.PublishProperty(context.Background(), ownerSession(), "prop_1")

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "LISTING_QUOTA_EXCEEDED" || domainErr.Status != 409 {
		t.Errorf("got %d %s, want 409 LISTING_QUOTA_EXCEEDED", domainErr.Status, domainErr.Code)
	}
	if published {
		t.Error("listing was published despite the quota")
	}
}

func TestPublishPropertySetsPlanExpiry(t *testing.T) {
	maxListings := 5
	var gotExpiry time.Time
	var notified *store.Notification
	fake := &fakeStore{
		getUserSubscription: func(ctx context.Context, userID string) (*store.Subscription, error) {
			return &store.Subscription{
				PlanID: "plan_pro",
				Plan: &store.SubscriptionPlan{
					ID:              "plan_pro",
					MaxListings:     &maxListings,
					ListingDuration: 60,
				},
			}, nil
		},
		countPublishedListings: func(ctx context.Context, userID string) (int, error) {
			return 2, nil
		},
		publishProperty: func(ctx context.Context, id, userID string, expiresAt time.Time) (bool, error) {
			gotExpiry = expiresAt
			return true, nil
		},
		getProperty: func(ctx context.Context, id string) (store.Property, error) {
			return store.Property{ID: id, UserID: "usr_1", Title: "Loft", Status: store.StatusPublished, Visibility: store.VisibilityPublic}, nil
		},
		insertNotification: func(ctx context.Context, n store.Notification) error {
			notified = &n
			return nil
		},
	}
	svc := newTestService(fake)

	payload, err := svc.PublishProperty(context.Background(), ownerSession(), "prop_1")
	if err != nil {
		t.Fatalf("PublishProperty() error = %v", err)
	}
	if payload["status"] != store.StatusPublished {
		t.Errorf("status = %v", payload["status"])
	}

	want := time.Now().AddDate(0, 0, 60)
	if diff := gotExpiry.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("expiry = %v, want about %v", gotExpiry, want)
	}
	if notified == nil || notified.Type != "property" {
		t.Errorf("notification = %+v", notified)
	}
}

// The notifications table constrains type to a fixed set; anything else is
// rejected on insert. Every notification the service writes has to stay
// inside that set.
func TestNotificationTypesAllowedBySchema(t *testing.T) {
	allowed := map[string]bool{
		"subscription": true,
		"payment":      true,
		"property":     true,
		"system":       true,
		"message":      true,
	}

	var inserted []store.Notification
	fake := &fakeStore{
		insertNotification: func(ctx context.Context, n store.Notification) error {
			inserted = append(inserted, n)
			return nil
		},
		publishProperty: func(ctx context.Context, id, userID string, expiresAt time.Time) (bool, error) {
			return true, nil
		},
		getProperty: func(ctx context.Context, id string) (store.Property, error) {
			return store.Property{ID: id, UserID: "usr_1", Title: "Loft", Status: store.StatusPublished, Visibility: store.VisibilityPublic}, nil
		},
		getPlan: func(ctx context.Context, id string) (store.SubscriptionPlan, error) {
			return store.SubscriptionPlan{ID: id, Name: "Starter", Interval: "month"}, nil
		},
	}
	svc := newTestService(fake)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, authpw.SignUpRequest{
		Email:     "alex@rentfolio.example",
		Password:  "sup3r-secret",
		FirstName: "Alex",
		Role:      "owner",
	}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if _, err := svc.PublishProperty(ctx, ownerSession(), "prop_1"); err != nil {
		t.Fatalf("PublishProperty() error = %v", err)
	}
	if _, err := svc.Subscribe(ctx, ownerSession(), "plan_starter"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if len(inserted) != 3 {
		t.Fatalf("inserted %d notifications, want 3", len(inserted))
	}
	for _, n := range inserted {
		if !allowed[n.Type] {
			t.Errorf("notification type %q is not accepted by the notifications schema", n.Type)
		}
	}
}

func TestPublishPropertyUnlimitedPlan(t *testing.T) {
	fake := &fakeStore{
		getUserSubscription: func(ctx context.Context, userID string) (*store.Subscription, error) {
			return &store.Subscription{
				PlanID: "plan_agency",
				Plan:   &store.SubscriptionPlan{ID: "plan_agency", MaxListings: nil, ListingDuration: 90},
			}, nil
		},
		countPublishedListings: func(ctx context.Context, userID string) (int, error) {
			return 250, nil
		},
		publishProperty: func(ctx context.Context, id, userID string, expiresAt time.Time) (bool, error) {
			return true, nil
		},
		getProperty: func(ctx context.Context, id string) (store.Property, error) {
			return store.Property{ID: id, UserID: "usr_1", Status: store.StatusPublished, Visibility: store.VisibilityPublic}, nil
		},
	}
	svc := newTestService(fake)

	if _, err := svc.PublishProperty(context.Background(), ownerSession(), "prop_1"); err != nil {
		t.Fatalf("unlimited plan should never hit the quota, got %v", err)
	}
}

func TestPublishPropertyWrongOwnerIs404(t *testing.T) {
	fake := &fakeStore{
		publishProperty: func(ctx context.Context, id, userID string, expiresAt time.Time) (bool, error) {
			return false, nil
		},
	}
	svc := newTestService(fake)

	_, err := svc.PublishProperty(context.Background(), ownerSession(), "prop_other")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestFeaturePropertyFreeTierBlocked(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.FeatureProperty(context.Background(), ownerSession(), "prop_1")

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "FEATURED_QUOTA_EXCEEDED" {
		t.Errorf("code = %s", domainErr.Code)
	}
}

func TestUpdatePropertyNotOwnerIs404(t *testing.T) {
	fake := &fakeStore{
		updateProperty: func(ctx context.Context, id, userID string, update store.PropertyUpdate) (bool, error) {
			return false, nil
		},
	}
	svc := newTestService(fake)

	title := "New Title"
	_, err := svc.UpdateProperty(context.Background(), ownerSession(), "prop_1", PropertyUpdateInput{Title: &title})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestGetPropertyVisibility(t *testing.T) {
	draft := store.Property{ID: "prop_1", UserID: "usr_1", Title: "Draft Loft", Status: store.StatusDraft, Visibility: store.VisibilityPublic}
	live := store.Property{ID: "prop_2", UserID: "usr_1", Title: "Live Loft", Status: store.StatusPublished, Visibility: store.VisibilityPublic}

	fake := &fakeStore{
		getProperty: func(ctx context.Context, id string) (store.Property, error) {
			if id == "prop_1" {
				return draft, nil
			}
			return live, nil
		},
	}
	svc := newTestService(fake)
	ctx := context.Background()

	if _, err := svc.GetProperty(ctx, "prop_1", ""); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("anonymous viewer of a draft: err = %v, want sql.ErrNoRows", err)
	}
	if _, err := svc.GetProperty(ctx, "prop_1", "usr_2"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("stranger viewer of a draft: err = %v, want sql.ErrNoRows", err)
	}

	ownerView, err := svc.GetProperty(ctx, "prop_1", "usr_1")
	if err != nil {
		t.Fatalf("owner view of own draft: %v", err)
	}
	if _, ok := ownerView["contactClicks"]; !ok {
		t.Error("owner view should include private stats")
	}

	publicView, err := svc.GetProperty(ctx, "prop_2", "usr_2")
	if err != nil {
		t.Fatalf("public view of live listing: %v", err)
	}
	if _, ok := publicView["contactClicks"]; ok {
		t.Error("public view must not include private stats")
	}
}

func TestCreatePropertyValidation(t *testing.T) {
	svc := newTestService(&fakeStore{})
	ctx := context.Background()

	if _, err := svc.CreateProperty(ctx, ownerSession(), PropertyInput{Title: "  "}); err == nil {
		t.Error("blank title should be rejected")
	}
	if _, err := svc.CreateProperty(ctx, ownerSession(), PropertyInput{Title: "Loft", Visibility: "secret"}); err == nil {
		t.Error("unknown visibility should be rejected")
	}
}

func TestCreatePropertyDefaults(t *testing.T) {
	var inserted store.Property
	fake := &fakeStore{
		insertProperty: func(ctx context.Context, p store.Property) error {
			inserted = p
			return nil
		},
		getProperty: func(ctx context.Context, id string) (store.Property, error) {
			return inserted, nil
		},
	}
	svc := newTestService(fake)

	_, err := svc.CreateProperty(context.Background(), ownerSession(), PropertyInput{
		Title:    "Loft",
		Currency: "gbp",
	})
	if err != nil {
		t.Fatalf("CreateProperty() error = %v", err)
	}
	if inserted.Status != store.StatusDraft {
		t.Errorf("status = %q, want draft", inserted.Status)
	}
	if inserted.Visibility != store.VisibilityPublic {
		t.Errorf("visibility = %q, want public", inserted.Visibility)
	}
	if inserted.Currency != "GBP" {
		t.Errorf("currency = %q, want GBP", inserted.Currency)
	}
	if inserted.UserID != "usr_1" {
		t.Errorf("userId = %q", inserted.UserID)
	}
}

func TestSearchPropertiesPagination(t *testing.T) {
	fake := &fakeStore{
		searchProperties: func(ctx context.Context, filter store.PropertyFilter) ([]store.Property, int, error) {
			return []store.Property{{ID: "prop_1", Status: store.StatusPublished}}, 10, nil
		},
	}
	svc := newTestService(fake)

	payload, err := svc.SearchProperties(context.Background(), store.PropertyFilter{})
	if err != nil {
		t.Fatalf("SearchProperties() error = %v", err)
	}
	if payload["page"] != 1 || payload["limit"] != 9 {
		t.Errorf("page/limit = %v/%v, want defaults 1/9", payload["page"], payload["limit"])
	}
	if payload["totalPages"] != 2 {
		t.Errorf("totalPages = %v, want 2", payload["totalPages"])
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	revoked := ""
	saved := ""
	fake := &fakeStore{
		lookupRefreshSession: func(ctx context.Context, tokenHash string) (store.User, error) {
			return store.User{ID: "usr_1", Role: "owner"}, nil
		},
		revokeRefreshSession: func(ctx context.Context, tokenHash string) error {
			revoked = tokenHash
			return nil
		},
		saveRefreshSession: func(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
			saved = tokenHash
			return nil
		},
		getUserByID: func(ctx context.Context, id string) (store.User, error) {
			return store.User{ID: id, Email: "alex@example.com", FirstName: "Alex", LastName: "Doe", Role: "owner"}, nil
		},
	}
	svc := newTestService(fake)

	session, err := svc.Refresh(context.Background(), "rft_old_token")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if revoked != auth.HashToken("rft_old_token") {
		t.Error("old refresh token was not revoked")
	}
	if saved == "" || saved == revoked {
		t.Error("a new refresh token should have been saved")
	}
	if session.UserName != "Alex Doe" {
		t.Errorf("userName = %q", session.UserName)
	}
	if session.Token == "" || session.RefreshToken == "" {
		t.Error("session tokens missing")
	}
}

func TestSessionFromTokenRejectsRevoked(t *testing.T) {
	fake := &fakeStore{
		isAccessTokenRevoked: func(ctx context.Context, jti string) (bool, error) {
			return true, nil
		},
	}
	svc := newTestService(fake)

	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub:  "usr_1",
		Name: "Alex Doe",
		Role: "owner",
		JTI:  "jti_1",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	if _, err := svc.SessionFromToken(context.Background(), token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for revoked token, got %v", err)
	}
}

func TestSubscribeYearInterval(t *testing.T) {
	var inserted store.Subscription
	fake := &fakeStore{
		getPlan: func(ctx context.Context, id string) (store.SubscriptionPlan, error) {
			return store.SubscriptionPlan{ID: id, Name: "Agency", Interval: "year", ListingDuration: 90}, nil
		},
		insertSubscription: func(ctx context.Context, sub store.Subscription) error {
			inserted = sub
			return nil
		},
	}
	svc := newTestService(fake)

	if _, err := svc.Subscribe(context.Background(), ownerSession(), "plan_agency"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if inserted.Status != "active" {
		t.Errorf("status = %q", inserted.Status)
	}
	wantEnd := time.Now().AddDate(1, 0, 0)
	if diff := inserted.CurrentPeriodEnd.Sub(wantEnd); diff < -time.Minute || diff > time.Minute {
		t.Errorf("period end = %v, want about %v", inserted.CurrentPeriodEnd, wantEnd)
	}
}

func TestMySubscriptionFreeTier(t *testing.T) {
	svc := newTestService(&fakeStore{})

	payload, err := svc.MySubscription(context.Background(), ownerSession())
	if err != nil {
		t.Fatalf("MySubscription() error = %v", err)
	}
	usage, ok := payload["usage"].(map[string]any)
	if !ok {
		t.Fatalf("usage missing: %+v", payload)
	}
	if usage["maxListings"] != freeMaxListings {
		t.Errorf("maxListings = %v, want %d", usage["maxListings"], freeMaxListings)
	}
	if usage["maxFeaturedListings"] != freeMaxFeatured {
		t.Errorf("maxFeaturedListings = %v", usage["maxFeaturedListings"])
	}
	if payload["subscription"] != nil {
		t.Errorf("subscription = %v, want nil", payload["subscription"])
	}
}

func TestUpsertPlanValidation(t *testing.T) {
	svc := newTestService(&fakeStore{})
	ctx := context.Background()

	cases := []struct {
		name  string
		input PlanInput
	}{
		{name: "missing id", input: PlanInput{Name: "Pro", Interval: "month", ListingDuration: 30}},
		{name: "bad interval", input: PlanInput{ID: "plan_pro", Name: "Pro", Interval: "weekly", ListingDuration: 30}},
		{name: "zero duration", input: PlanInput{ID: "plan_pro", Name: "Pro", Interval: "month"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.UpsertPlan(ctx, tc.input); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestDeleteNotificationNotOwnerIs404(t *testing.T) {
	fake := &fakeStore{
		deleteNotification: func(ctx context.Context, id, userID string) (bool, error) {
			return false, nil
		},
	}
	svc := newTestService(fake)

	err := svc.DeleteNotification(context.Background(), ownerSession(), "ntf_1")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestExpireListings(t *testing.T) {
	fake := &fakeStore{
		expirePublished: func(ctx context.Context, now time.Time) (int64, error) { return 3, nil },
		expireFeatured:  func(ctx context.Context, now time.Time) (int64, error) { return 1, nil },
	}
	svc := newTestService(fake)

	expired, unfeatured, err := svc.ExpireListings(context.Background())
	if err != nil {
		t.Fatalf("ExpireListings() error = %v", err)
	}
	if expired != 3 || unfeatured != 1 {
		t.Errorf("counts = %d/%d, want 3/1", expired, unfeatured)
	}
}
