package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const propertyColumns = `id, user_id, title, description, address,
	COALESCE(city, ''), COALESCE(country, ''), latitude, longitude, price,
	COALESCE(currency, 'GBP'), property_type, bedrooms, bathrooms, area_sqm,
	features, images, virtual_tour_url, COALESCE(status, 'draft'), availability_date,
	COALESCE(is_featured, FALSE), featured_until, COALESCE(ad_type, 'standard'),
	COALESCE(views_count, 0), COALESCE(contact_clicks, 0),
	COALESCE(listing_created_at, created_at), listing_expires_at,
	COALESCE(promotion_status, 'inactive'), COALESCE(visibility, 'public'),
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (Property, error) {
	var p Property
	var features, images []byte
	err := row.Scan(
		&p.ID, &p.UserID, &p.Title, &p.Description, &p.Address,
		&p.City, &p.Country, &p.Latitude, &p.Longitude, &p.Price,
		&p.Currency, &p.PropertyType, &p.Bedrooms, &p.Bathrooms, &p.AreaSqm,
		&features, &images, &p.VirtualTourURL, &p.Status, &p.AvailabilityDate,
		&p.IsFeatured, &p.FeaturedUntil, &p.AdType,
		&p.ViewsCount, &p.ContactClicks,
		&p.ListingCreatedAt, &p.ListingExpiresAt,
		&p.PromotionStatus, &p.Visibility,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Property{}, err
	}
	p.Features = decodeFeatures(features)
	p.Images = decodeImages(images)
	return p, nil
}

// decodeFeatures turns the features jsonb column into a map. Malformed or
// empty values degrade to nil rather than failing the whole row.
func decodeFeatures(raw []byte) map[string]bool {
	if len(raw) == 0 {
		return nil
	}
	var features map[string]bool
	if err := json.Unmarshal(raw, &features); err != nil {
		return nil
	}
	if len(features) == 0 {
		return nil
	}
	return features
}

// decodeImages turns the images jsonb column into a slice. Entries missing a
// url or publicId are replaced in place with the placeholder image so the
// list keeps its order and length.
func decodeImages(raw []byte) []PropertyImage {
	if len(raw) == 0 {
		return nil
	}
	var images []PropertyImage
	if err := json.Unmarshal(raw, &images); err != nil {
		return nil
	}
	for i, img := range images {
		if img.URL == "" || img.PublicID == "" {
			images[i] = PlaceholderImage
		}
	}
	return images
}

func encodeFeatures(features map[string]bool) (any, error) {
	if features == nil {
		return nil, nil
	}
	raw, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}
	return raw, nil
}

func encodeImages(images []PropertyImage) (any, error) {
	if images == nil {
		return nil, nil
	}
	raw, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("encode images: %w", err)
	}
	return raw, nil
}

// buildPropertySearch compiles a filter into a WHERE clause, bind args, and an
// ORDER BY. Search only ever sees published, public listings. Feature filters
// use jsonb containment so the count and the page agree.
func buildPropertySearch(filter PropertyFilter) (where string, args []any, orderBy string, err error) {
	clauses := []string{"status = 'published'", "visibility = 'public'"}

	next := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		placeholder := next("%" + q + "%")
		clauses = append(clauses, fmt.Sprintf(
			"(title ILIKE %s OR description ILIKE %s OR address ILIKE %s)",
			placeholder, placeholder, placeholder))
	}
	if filter.PriceMin != nil {
		clauses = append(clauses, "price >= "+next(*filter.PriceMin))
	}
	if filter.PriceMax != nil {
		clauses = append(clauses, "price <= "+next(*filter.PriceMax))
	}
	if filter.Bedrooms != nil {
		clauses = append(clauses, "bedrooms = "+next(*filter.Bedrooms))
	}
	if filter.Bathrooms != nil {
		clauses = append(clauses, "bathrooms = "+next(*filter.Bathrooms))
	}
	if propertyType := strings.TrimSpace(filter.PropertyType); propertyType != "" {
		clauses = append(clauses, "property_type = "+next(propertyType))
	}
	if city := strings.TrimSpace(filter.City); city != "" {
		clauses = append(clauses, "city ILIKE "+next("%"+city+"%"))
	}
	if filter.AreaMin != nil {
		clauses = append(clauses, "area_sqm >= "+next(*filter.AreaMin))
	}
	if filter.AreaMax != nil {
		clauses = append(clauses, "area_sqm <= "+next(*filter.AreaMax))
	}
	if len(filter.Features) > 0 {
		wanted := make(map[string]bool, len(filter.Features))
		for _, key := range filter.Features {
			key = strings.TrimSpace(key)
			if key != "" {
				wanted[key] = true
			}
		}
		if len(wanted) > 0 {
			raw, marshalErr := json.Marshal(wanted)
			if marshalErr != nil {
				return "", nil, "", fmt.Errorf("encode feature filter: %w", marshalErr)
			}
			clauses = append(clauses, "features @> "+next(string(raw))+"::jsonb")
		}
	}

	switch filter.SortBy {
	case "price_asc":
		orderBy = "price ASC NULLS LAST"
	case "price_desc":
		orderBy = "price DESC NULLS LAST"
	case "date_oldest":
		orderBy = "listing_created_at ASC"
	case "date_newest":
		orderBy = "listing_created_at DESC"
	default:
		orderBy = "is_featured DESC, listing_created_at DESC"
	}

	return strings.Join(clauses, " AND "), args, orderBy, nil
}

// SearchProperties returns one page of published public listings plus the
// total match count for the same filter.
func (s *PostgresStore) SearchProperties(ctx context.Context, filter PropertyFilter) ([]Property, int, error) {
	where, args, orderBy, err := buildPropertySearch(filter)
	if err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 9
	}
	offset := (page - 1) * limit

	var total int
	countSQL := "SELECT COUNT(*) FROM properties WHERE " + where
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count properties: %w", err)
	}

	dataSQL := fmt.Sprintf("SELECT %s FROM properties WHERE %s ORDER BY %s LIMIT %d OFFSET %d",
		propertyColumns, where, orderBy, limit, offset)
	rows, err := s.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search properties: %w", err)
	}
	defer rows.Close()

	properties := make([]Property, 0, limit)
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan property: %w", err)
		}
		properties = append(properties, p)
	}
	return properties, total, rows.Err()
}

func (s *PostgresStore) GetProperty(ctx context.Context, propertyID string) (Property, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id=$1`, propertyID)
	return scanProperty(row)
}

func (s *PostgresStore) ListUserProperties(ctx context.Context, userID string) ([]Property, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user properties: %w", err)
	}
	defer rows.Close()

	properties := make([]Property, 0)
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}

func (s *PostgresStore) InsertProperty(ctx context.Context, p Property) error {
	features, err := encodeFeatures(p.Features)
	if err != nil {
		return err
	}
	images, err := encodeImages(p.Images)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO properties (
			id, user_id, title, description, address, city, country,
			latitude, longitude, price, currency, property_type,
			bedrooms, bathrooms, area_sqm, features, images, virtual_tour_url,
			status, availability_date, is_featured, ad_type,
			listing_created_at, listing_expires_at, promotion_status, visibility
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22,
			NOW(), $23, $24, $25
		)
	`,
		p.ID, p.UserID, p.Title, p.Description, p.Address, p.City, p.Country,
		p.Latitude, p.Longitude, p.Price, p.Currency, p.PropertyType,
		p.Bedrooms, p.Bathrooms, p.AreaSqm, features, images, p.VirtualTourURL,
		p.Status, p.AvailabilityDate, p.IsFeatured, p.AdType,
		p.ListingExpiresAt, p.PromotionStatus, p.Visibility,
	)
	if err != nil {
		return fmt.Errorf("insert property: %w", err)
	}
	return nil
}

// UpdateProperty applies a partial update scoped to the owner in a single
// statement. Returns false when the row does not exist or belongs to someone
// else; callers must not distinguish the two cases.
func (s *PostgresStore) UpdateProperty(ctx context.Context, propertyID, userID string, update PropertyUpdate) (bool, error) {
	features, err := encodeFeatures(update.Features)
	if err != nil {
		return false, err
	}
	images, err := encodeImages(update.Images)
	if err != nil {
		return false, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE properties SET
			title             = COALESCE($3, title),
			description       = COALESCE($4, description),
			address           = COALESCE($5, address),
			city              = COALESCE($6, city),
			country           = COALESCE($7, country),
			latitude          = COALESCE($8, latitude),
			longitude         = COALESCE($9, longitude),
			price             = COALESCE($10, price),
			currency          = COALESCE($11, currency),
			property_type     = COALESCE($12, property_type),
			bedrooms          = COALESCE($13, bedrooms),
			bathrooms         = COALESCE($14, bathrooms),
			area_sqm          = COALESCE($15, area_sqm),
			features          = COALESCE($16, features),
			images            = COALESCE($17, images),
			virtual_tour_url  = COALESCE($18, virtual_tour_url),
			availability_date = COALESCE($19, availability_date),
			visibility        = COALESCE($20, visibility),
			updated_at        = NOW()
		WHERE id=$1 AND user_id=$2
	`,
		propertyID, userID,
		update.Title, update.Description, update.Address, update.City, update.Country,
		update.Latitude, update.Longitude, update.Price, update.Currency, update.PropertyType,
		update.Bedrooms, update.Bathrooms, update.AreaSqm, features, images,
		update.VirtualTourURL, update.AvailabilityDate, update.Visibility,
	)
	if err != nil {
		return false, fmt.Errorf("update property: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update property rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteProperty(ctx context.Context, propertyID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM properties WHERE id=$1 AND user_id=$2`, propertyID, userID)
	if err != nil {
		return false, fmt.Errorf("delete property: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete property rows: %w", err)
	}
	return affected > 0, nil
}

// PublishProperty moves a draft to published and restarts its listing clock.
func (s *PostgresStore) PublishProperty(ctx context.Context, propertyID, userID string, expiresAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE properties
		SET status='published', listing_created_at=NOW(), listing_expires_at=$3, updated_at=NOW()
		WHERE id=$1 AND user_id=$2 AND status='draft'
	`, propertyID, userID, expiresAt)
	if err != nil {
		return false, fmt.Errorf("publish property: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("publish property rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) MarkPropertyRented(ctx context.Context, propertyID, userID string) (bool, error) {
	return s.transitionProperty(ctx, propertyID, userID, "published", "rented")
}

func (s *PostgresStore) ArchiveProperty(ctx context.Context, propertyID, userID string) (bool, error) {
	return s.transitionProperty(ctx, propertyID, userID, "published", "archived")
}

func (s *PostgresStore) transitionProperty(ctx context.Context, propertyID, userID, from, to string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE properties SET status=$4, updated_at=NOW()
		WHERE id=$1 AND user_id=$2 AND status=$3
	`, propertyID, userID, from, to)
	if err != nil {
		return false, fmt.Errorf("transition property to %s: %w", to, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition property rows: %w", err)
	}
	return affected > 0, nil
}

// FeatureProperty turns on the featured overlay for a published listing.
func (s *PostgresStore) FeatureProperty(ctx context.Context, propertyID, userID string, until time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE properties
		SET is_featured=TRUE, featured_until=$3, ad_type='featured', promotion_status='active', updated_at=NOW()
		WHERE id=$1 AND user_id=$2 AND status='published'
	`, propertyID, userID, until)
	if err != nil {
		return false, fmt.Errorf("feature property: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("feature property rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) CountPublishedListings(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM properties WHERE user_id=$1 AND status='published'`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count published listings: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountFeaturedListings(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM properties WHERE user_id=$1 AND is_featured=TRUE AND status='published'`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count featured listings: %w", err)
	}
	return count, nil
}

// IncrementPropertyViews bumps the view counter in place. No read-then-write.
func (s *PostgresStore) IncrementPropertyViews(ctx context.Context, propertyID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE properties SET views_count = views_count + 1 WHERE id=$1`, propertyID)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	return nil
}

func (s *PostgresStore) IncrementContactClicks(ctx context.Context, propertyID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE properties SET contact_clicks = contact_clicks + 1 WHERE id=$1`, propertyID)
	if err != nil {
		return fmt.Errorf("increment contact clicks: %w", err)
	}
	return nil
}

// ExpirePublishedListings flips published listings past their expiry to
// expired. Idempotent; safe to run on every sweep tick.
func (s *PostgresStore) ExpirePublishedListings(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE properties SET status='expired', updated_at=NOW()
		WHERE status='published' AND listing_expires_at IS NOT NULL AND listing_expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("expire published listings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire published rows: %w", err)
	}
	return affected, nil
}

// ExpireFeaturedListings removes the featured overlay once featured_until has
// passed, independent of the listing's lifecycle state.
func (s *PostgresStore) ExpireFeaturedListings(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE properties
		SET is_featured=FALSE, featured_until=NULL, ad_type='standard', promotion_status='expired', updated_at=NOW()
		WHERE is_featured=TRUE AND featured_until IS NOT NULL AND featured_until <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("expire featured listings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire featured rows: %w", err)
	}
	return affected, nil
}

// SetPropertyImages replaces the image list for a listing, owner-scoped.
func (s *PostgresStore) SetPropertyImages(ctx context.Context, propertyID, userID string, images []PropertyImage) (bool, error) {
	if images == nil {
		images = []PropertyImage{}
	}
	raw, err := json.Marshal(images)
	if err != nil {
		return false, fmt.Errorf("encode images: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE properties SET images=$3, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
	`, propertyID, userID, raw)
	if err != nil {
		return false, fmt.Errorf("set property images: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set property images rows: %w", err)
	}
	return affected > 0, nil
}
