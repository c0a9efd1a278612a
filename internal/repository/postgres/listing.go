package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
	"github.com/GabrijelGordic/Suzeraj/pkg/database"
	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
)

const system = "postgresql"

const listingColumns = `id, title, brand, size, price::text, currency, condition, description, contact_info,
	is_sold, seller_id, seller_username, view_count, images, created_at, updated_at`

// ListingRepository implements repository.ListingRepository using PostgreSQL.
type ListingRepository struct {
	db database.DBTX
}

var _ repository.ListingRepository = (*ListingRepository)(nil)

// NewListingRepository creates a PostgreSQL-backed catalog store.
func NewListingRepository(db database.DBTX) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) Create(ctx context.Context, l *domain.Listing) (err error) {
	query := `
		INSERT INTO listings (id, title, brand, size, price, currency, condition, description, contact_info,
			is_sold, seller_id, seller_username, view_count, images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	ctx, end := database.TraceQuery(ctx, system, "CreateListing", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		l.ID,
		l.Title,
		l.Brand,
		l.Size,
		l.Price.StringFixed(domain.PriceScale),
		string(l.Currency),
		string(l.Condition),
		l.Description,
		l.ContactInfo,
		l.IsSold,
		l.SellerID,
		l.SellerUsername,
		l.ViewCount,
		images(l.Images),
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		if database.IsPgCode(err, database.CodeUniqueViolation) {
			return apperrors.InvalidInput("listing " + l.ID + " already exists")
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (r *ListingRepository) GetByID(ctx context.Context, id string) (l *domain.Listing, err error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, system, "GetListing", query)
	defer func() { end(err) }()

	l, err = scanListing(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("listing", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get listing %s: %w", id, err)
	}
	return l, nil
}

func (r *ListingRepository) GetByIDs(ctx context.Context, ids []string) (out []domain.Listing, err error) {
	if len(ids) == 0 {
		return []domain.Listing{}, nil
	}
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = ANY($1::uuid[])`

	ctx, end := database.TraceQuery(ctx, system, "GetListingsByIDs", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get listings by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*domain.Listing, len(ids))
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}
		byID[l.ID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing rows: %w", err)
	}

	out = make([]domain.Listing, 0, len(byID))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *ListingRepository) Update(ctx context.Context, l *domain.Listing) (err error) {
	query := `
		UPDATE listings
		SET title = $2, brand = $3, size = $4, price = $5, currency = $6, condition = $7,
			description = $8, contact_info = $9, is_sold = $10, images = $11, updated_at = $12
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, system, "UpdateListing", query)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, query,
		l.ID,
		l.Title,
		l.Brand,
		l.Size,
		l.Price.StringFixed(domain.PriceScale),
		string(l.Currency),
		string(l.Condition),
		l.Description,
		l.ContactInfo,
		l.IsSold,
		images(l.Images),
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("listing", l.ID)
	}
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM listings WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, system, "DeleteListing", query)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("listing", id)
	}
	return nil
}

func (r *ListingRepository) IncrementViews(ctx context.Context, id string) (err error) {
	query := `UPDATE listings SET view_count = view_count + 1 WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, system, "IncrementListingViews", query)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("listing", id)
	}
	return nil
}

// Search runs one query that returns the page and, through count(*) OVER(),
// the size of the filtered set. A page past the end yields no rows and so no
// count; a separate COUNT fills it in.
func (r *ListingRepository) Search(ctx context.Context, q repository.ListingQuery) (out []domain.Listing, total int, err error) {
	where, args := buildWhere(q.Filter)

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM listings
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		listingColumns, where, orderBy(q.Ordering), len(args)+1, len(args)+2,
	)

	ctx, end := database.TraceQuery(ctx, system, "SearchListings", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, append(args, q.Page.PageSize, q.Page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("search listings: %w", err)
	}
	defer rows.Close()

	out = []domain.Listing{}
	for rows.Next() {
		l, err := scanListing(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan listing row: %w", err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate listing rows: %w", err)
	}

	if len(out) == 0 && q.Page.Offset > 0 {
		countQuery := `SELECT count(*) FROM listings ` + where
		if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count listings: %w", err)
		}
	}

	return out, total, nil
}

// buildWhere turns a filter into a WHERE clause with positional arguments.
func buildWhere(f domain.ListingFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	add := func(format string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, strings.ReplaceAll(format, "?", fmt.Sprintf("$%d", len(args))))
	}

	if f.Search != "" {
		add(`(title ILIKE ? ESCAPE '\' OR brand ILIKE ? ESCAPE '\')`, "%"+escapeLike(f.Search)+"%")
	}
	if f.Brand != "" {
		add("brand = ?", f.Brand)
	}
	if f.Size != nil {
		add("size = ?", *f.Size)
	}
	if f.Condition != "" {
		add("condition = ?", string(f.Condition))
	}
	if f.Currency != "" {
		add("currency = ?", string(f.Currency))
	}
	if f.MinPrice != nil {
		add("price >= ?", f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		add("price <= ?", f.MaxPrice.String())
	}
	if f.SellerUsername != "" {
		add("seller_username = ?", f.SellerUsername)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func orderBy(o domain.Ordering) string {
	switch o {
	case domain.OrderOldest:
		return "created_at ASC, id ASC"
	case domain.OrderPriceAsc:
		return "price ASC, id ASC"
	case domain.OrderPriceDesc:
		return "price DESC, id ASC"
	default:
		return "created_at DESC, id ASC"
	}
}

func images(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanListing scans listingColumns, followed by any extra destinations.
func scanListing(row rowScanner, extra ...any) (*domain.Listing, error) {
	var (
		l         domain.Listing
		price     string
		currency  string
		condition string
	)
	dest := []any{
		&l.ID,
		&l.Title,
		&l.Brand,
		&l.Size,
		&price,
		&currency,
		&condition,
		&l.Description,
		&l.ContactInfo,
		&l.IsSold,
		&l.SellerID,
		&l.SellerUsername,
		&l.ViewCount,
		&l.Images,
		&l.CreatedAt,
		&l.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}
	l.Price = p
	l.Currency = domain.Currency(currency)
	l.Condition = domain.Condition(condition)
	if l.Images == nil {
		l.Images = []string{}
	}
	return &l, nil
}
