package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rentfolio/api/internal/auth"
	"rentfolio/api/internal/store"
	"rentfolio/api/internal/util"
)

func newTestServer(fake *fakeStore) *HTTPServer {
	return NewHTTPServer(newTestService(fake), "*")
}

func doRequest(t *testing.T, srv *HTTPServer, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, rec.Body.String())
	}
	return payload
}

func tokenFor(t *testing.T, userID, name, role string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub:  userID,
		Name: name,
		Role: role,
		JTI:  util.NewID("jti"),
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func userWithRole(role string) func(ctx context.Context, id string) (store.User, error) {
	return func(ctx context.Context, id string) (store.User, error) {
		return store.User{ID: id, Email: id + "@example.com", FirstName: "Alex", LastName: "Doe", Role: role}, nil
	}
}

func TestHealthEndpoint(t *testing.T) {
	rec := doRequest(t, newTestServer(&fakeStore{}), http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if payload := decodeResponse(t, rec); payload["ok"] != true {
		t.Errorf("body = %v", payload)
	}
}

func TestReadyReportsDatabaseDown(t *testing.T) {
	fake := &fakeStore{
		ping: func(ctx context.Context) error { return context.DeadlineExceeded },
	}
	rec := doRequest(t, newTestServer(fake), http.MethodGet, "/api/ready", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	payload := decodeResponse(t, rec)
	if payload["status"] != "not_ready" {
		t.Errorf("status field = %v", payload["status"])
	}
}

func TestSessionEndpointWithBadToken(t *testing.T) {
	rec := doRequest(t, newTestServer(&fakeStore{}), http.MethodGet, "/api/session", "garbage", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	payload := decodeResponse(t, rec)
	if payload["authenticated"] != false {
		t.Errorf("authenticated = %v, want false", payload["authenticated"])
	}
}

func TestSignUpReturnsDevTokenWithoutSMTP(t *testing.T) {
	fake := &fakeStore{}
	rec := doRequest(t, newTestServer(fake), http.MethodPost, "/api/auth/signup", "",
		`{"email":"alex@example.com","password":"hunter2hunter2","firstName":"Alex","role":"owner"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	if payload["userId"] == "" || payload["userId"] == nil {
		t.Error("userId missing")
	}
	token, ok := payload["devVerificationToken"].(string)
	if !ok || token == "" {
		t.Error("devVerificationToken should be present when SMTP is not configured")
	}
}

func TestSignUpDuplicateEmailConflicts(t *testing.T) {
	fake := &fakeStore{
		getUserByEmail: func(ctx context.Context, email string) (store.User, error) {
			return store.User{ID: "usr_1", Email: email}, nil
		},
	}
	rec := doRequest(t, newTestServer(fake), http.MethodPost, "/api/auth/signup", "",
		`{"email":"alex@example.com","password":"hunter2hunter2","firstName":"Alex"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if payload := decodeResponse(t, rec); payload["code"] != "EMAIL_EXISTS" {
		t.Errorf("code = %v", payload["code"])
	}
}

func TestListingSearchRejectsBadParams(t *testing.T) {
	rec := doRequest(t, newTestServer(&fakeStore{}), http.MethodGet, "/api/properties?priceMin=cheap", "", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestListingSearchParsesFilter(t *testing.T) {
	var got store.PropertyFilter
	fake := &fakeStore{
		searchProperties: func(ctx context.Context, filter store.PropertyFilter) ([]store.Property, int, error) {
			got = filter
			return nil, 0, nil
		},
	}
	path := "/api/properties?q=river&priceMin=500&priceMax=1500&bedrooms=2&city=Bristol&features=wifi,balcony&sortBy=price_asc&page=2&limit=12"
	rec := doRequest(t, newTestServer(fake), http.MethodGet, path, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if got.Query != "river" || got.City != "Bristol" || got.SortBy != "price_asc" {
		t.Errorf("text filters = %+v", got)
	}
	if got.PriceMin == nil || *got.PriceMin != 500 || got.PriceMax == nil || *got.PriceMax != 1500 {
		t.Errorf("price range = %v..%v", got.PriceMin, got.PriceMax)
	}
	if got.Bedrooms == nil || *got.Bedrooms != 2 {
		t.Errorf("bedrooms = %v", got.Bedrooms)
	}
	if len(got.Features) != 2 || got.Features[0] != "wifi" || got.Features[1] != "balcony" {
		t.Errorf("features = %v", got.Features)
	}
	if got.Page != 2 || got.Limit != 12 {
		t.Errorf("page/limit = %d/%d", got.Page, got.Limit)
	}
}

func TestCreatePropertyRequiresAuth(t *testing.T) {
	rec := doRequest(t, newTestServer(&fakeStore{}), http.MethodPost, "/api/properties", "", `{"title":"Loft"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if payload := decodeResponse(t, rec); payload["code"] != "UNAUTHORIZED" {
		t.Errorf("code = %v", payload["code"])
	}
}

func TestCreatePropertyForbiddenForTenant(t *testing.T) {
	fake := &fakeStore{getUserByID: userWithRole("tenant")}
	token := tokenFor(t, "usr_1", "Alex Doe", "tenant")

	rec := doRequest(t, newTestServer(fake), http.MethodPost, "/api/properties", token, `{"title":"Loft"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestCreatePropertyAsOwner(t *testing.T) {
	var inserted store.Property
	fake := &fakeStore{
		getUserByID: userWithRole("owner"),
		insertProperty: func(ctx context.Context, p store.Property) error {
			inserted = p
			return nil
		},
		getProperty: func(ctx context.Context, id string) (store.Property, error) {
			return inserted, nil
		},
	}
	token := tokenFor(t, "usr_1", "Alex Doe", "owner")

	rec := doRequest(t, newTestServer(fake), http.MethodPost, "/api/properties", token,
		`{"title":"Sunny Loft","city":"Bristol","price":1250,"currency":"gbp"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	if payload["title"] != "Sunny Loft" || payload["status"] != store.StatusDraft {
		t.Errorf("payload = %v", payload)
	}
}

func TestPublishQuotaOverHTTP(t *testing.T) {
	fake := &fakeStore{
		getUserByID: userWithRole("owner"),
		countPublishedListings: func(ctx context.Context, userID string) (int, error) {
			return 1, nil
		},
	}
	token := tokenFor(t, "usr_1", "Alex Doe", "owner")

	rec := doRequest(t, newTestServer(fake), http.MethodPost, "/api/properties/prop_1/publish", token, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	payload := decodeResponse(t, rec)
	if payload["code"] != "LISTING_QUOTA_EXCEEDED" {
		t.Errorf("code = %v", payload["code"])
	}
	details, ok := payload["details"].(map[string]any)
	if !ok || details["limit"] != float64(1) {
		t.Errorf("details = %v", payload["details"])
	}
}

func TestDraftListingHiddenFromPublic(t *testing.T) {
	fake := &fakeStore{
		getProperty: func(ctx context.Context, id string) (store.Property, error) {
			return store.Property{ID: id, UserID: "usr_1", Status: store.StatusDraft, Visibility: store.VisibilityPublic}, nil
		},
	}
	rec := doRequest(t, newTestServer(fake), http.MethodGet, "/api/properties/prop_1", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCounterFailuresDoNotSurface(t *testing.T) {
	fake := &fakeStore{
		incrementViews: func(ctx context.Context, id string) error {
			return errors.New("db down")
		},
		incrementClicks: func(ctx context.Context, id string) error {
			return errors.New("db down")
		},
	}
	srv := newTestServer(fake)

	for _, path := range []string{"/api/properties/prop_1/view", "/api/properties/prop_1/contact-click"} {
		rec := doRequest(t, srv, http.MethodPost, path, "", "")
		if rec.Code != http.StatusOK {
			t.Errorf("POST %s status = %d, want 200", path, rec.Code)
		}
		body := decodeResponse(t, rec)
		if body["ok"] != true {
			t.Errorf("POST %s body = %v, want ok true", path, body)
		}
	}
}

func TestBrochureForUnpublishedListingIs404(t *testing.T) {
	fake := &fakeStore{
		getProperty: func(ctx context.Context, id string) (store.Property, error) {
			return store.Property{ID: id, UserID: "usr_1", Status: store.StatusDraft, Visibility: store.VisibilityPublic}, nil
		},
	}
	rec := doRequest(t, newTestServer(fake), http.MethodGet, "/api/properties/prop_1/brochure", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAdminPlanUpsertGate(t *testing.T) {
	body := `{"id":"plan_pro","name":"Pro","price":29,"interval":"month","listingDuration":60}`

	ownerFake := &fakeStore{getUserByID: userWithRole("owner")}
	rec := doRequest(t, newTestServer(ownerFake), http.MethodPut, "/api/admin/plans", tokenFor(t, "usr_1", "Alex Doe", "owner"), body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("owner status = %d, want 403", rec.Code)
	}

	adminFake := &fakeStore{
		getUserByID: userWithRole("admin"),
		getPlan: func(ctx context.Context, id string) (store.SubscriptionPlan, error) {
			return store.SubscriptionPlan{ID: id, Name: "Pro", Interval: "month", ListingDuration: 60}, nil
		},
	}
	rec = doRequest(t, newTestServer(adminFake), http.MethodPut, "/api/admin/plans", tokenFor(t, "usr_2", "Sam Reed", "admin"), body)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestNotificationRoutes(t *testing.T) {
	fake := &fakeStore{
		getUserByID: userWithRole("tenant"),
		markNotificationRead: func(ctx context.Context, id, userID string) (bool, error) {
			return true, nil
		},
		deleteNotification: func(ctx context.Context, id, userID string) (bool, error) {
			return false, nil
		},
	}
	token := tokenFor(t, "usr_1", "Alex Doe", "tenant")
	srv := newTestServer(fake)

	rec := doRequest(t, srv, http.MethodPost, "/api/notifications/ntf_1/read", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read status = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodDelete, "/api/notifications/ntf_other", token, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete status = %d, want 404 for someone else's notification", rec.Code)
	}
}

func TestQuickSearchWithoutBackend(t *testing.T) {
	rec := doRequest(t, newTestServer(&fakeStore{}), http.MethodGet, "/api/search?q=river", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	payload := decodeResponse(t, rec)
	if payload["query"] != "river" {
		t.Errorf("query = %v", payload["query"])
	}
}

func TestRequestIDPropagation(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	newTestServer(&fakeStore{}).Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want req-123", got)
	}
}

func TestCORSHeadersPresent(t *testing.T) {
	rec := doRequest(t, newTestServer(&fakeStore{}), http.MethodOptions, "/api/properties", "", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS origin header missing")
	}
}
