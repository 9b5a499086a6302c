package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/pkordes/splitbuy/internal/domain"
)

// GroupRepo defines the persistence operations for Groups.
// Methods return the group row only; participants are loaded separately
// through ParticipantRepo.ListByGroup.
type GroupRepo interface {
	// Create inserts a new group and returns the persisted record (with
	// DB-generated id, version, created_at, and updated_at populated).
	Create(ctx context.Context, g domain.Group) (domain.Group, error)

	// GetByID retrieves a group without locking it.
	// Returns domain.ErrGroupNotFound if no group with that ID exists.
	GetByID(ctx context.Context, id int64) (domain.Group, error)

	// GetForUpdate retrieves a group and holds a row lock on it until the
	// surrounding transaction ends. Only meaningful inside TxRunner.InTx.
	GetForUpdate(ctx context.Context, id int64) (domain.Group, error)

	// Update overwrites the mutable fields of g if the stored version still
	// equals g.Version, and returns the record with its version bumped.
	// Returns domain.ErrConflict when another writer got there first.
	Update(ctx context.Context, g domain.Group) (domain.Group, error)

	// ListByStatus returns one page of groups in the given status, newest
	// first, together with the total number of matching groups.
	ListByStatus(ctx context.Context, status domain.GroupStatus, p domain.PaginationParams) ([]domain.Group, int64, error)

	// ListByHost returns every group hosted by userID, newest first.
	ListByHost(ctx context.Context, userID int64) ([]domain.Group, error)

	// ListByParticipant returns every group in which userID holds a
	// participant record, newest first.
	ListByParticipant(ctx context.Context, userID int64) ([]domain.Group, error)
}

// pgGroupRepo is the Postgres implementation of GroupRepo.
type pgGroupRepo struct {
	db db
}

// NewGroupRepo constructs a GroupRepo backed by the provided db connection.
// In production pass *pgxpool.Pool or the pgx.Tx of a TxRunner; in tests
// pass a pgx.Tx for rollback isolation.
func NewGroupRepo(db db) GroupRepo {
	return &pgGroupRepo{db: db}
}

// groupColumns is the shared SELECT list. Money is read as text so it
// round-trips through decimal.Decimal without float conversion.
const groupColumns = `
	g.id, g.host_user_id, g.title, g.total_price::text, g.max_participants,
	g.current_participants, g.pickup_location, g.pickup_location_geo,
	g.closed_at, g.status, g.version, g.created_at, g.updated_at`

// Create inserts a new group row and returns the full persisted record.
func (r *pgGroupRepo) Create(ctx context.Context, g domain.Group) (domain.Group, error) {
	const q = `
		INSERT INTO split_groups AS g (host_user_id, title, total_price, max_participants,
		                               current_participants, pickup_location, pickup_location_geo,
		                               closed_at, status)
		VALUES (@host_user_id, @title, @total_price, @max_participants,
		        @current_participants, @pickup_location, @pickup_location_geo,
		        @closed_at, @status)
		RETURNING ` + groupColumns

	args := pgx.NamedArgs{
		"host_user_id":         g.HostUserID,
		"title":                g.Title,
		"total_price":          g.TotalPrice.String(),
		"max_participants":     g.MaxParticipants,
		"current_participants": g.CurrentParticipants,
		"pickup_location":      g.PickupLocation,
		"pickup_location_geo":  g.PickupLocationGeo,
		"closed_at":            g.ClosedAt,
		"status":               string(g.Status),
	}

	result, err := scanGroup(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Group{}, fmt.Errorf("repo.GroupRepo.Create: %w", err)
	}
	return result, nil
}

// GetByID retrieves a group by primary key.
func (r *pgGroupRepo) GetByID(ctx context.Context, id int64) (domain.Group, error) {
	const q = `SELECT ` + groupColumns + ` FROM split_groups g WHERE g.id = @id`

	result, err := scanGroup(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Group{}, fmt.Errorf("repo.GroupRepo.GetByID: %w", err)
	}
	return result, nil
}

// GetForUpdate retrieves a group by primary key with SELECT ... FOR UPDATE.
// Concurrent callers for the same id queue on the row lock until the
// holder's transaction commits or rolls back.
func (r *pgGroupRepo) GetForUpdate(ctx context.Context, id int64) (domain.Group, error) {
	const q = `SELECT ` + groupColumns + ` FROM split_groups g WHERE g.id = @id FOR UPDATE`

	result, err := scanGroup(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Group{}, fmt.Errorf("repo.GroupRepo.GetForUpdate: %w", mapPgError(err))
	}
	return result, nil
}

// Update writes g back if nobody else changed it since it was read.
func (r *pgGroupRepo) Update(ctx context.Context, g domain.Group) (domain.Group, error) {
	const q = `
		UPDATE split_groups AS g
		SET title                = @title,
		    total_price          = @total_price,
		    max_participants     = @max_participants,
		    current_participants = @current_participants,
		    pickup_location      = @pickup_location,
		    pickup_location_geo  = @pickup_location_geo,
		    closed_at            = @closed_at,
		    status               = @status,
		    version              = g.version + 1,
		    updated_at           = now()
		WHERE g.id = @id AND g.version = @version
		RETURNING ` + groupColumns

	args := pgx.NamedArgs{
		"id":                   g.ID,
		"version":              g.Version,
		"title":                g.Title,
		"total_price":          g.TotalPrice.String(),
		"max_participants":     g.MaxParticipants,
		"current_participants": g.CurrentParticipants,
		"pickup_location":      g.PickupLocation,
		"pickup_location_geo":  g.PickupLocationGeo,
		"closed_at":            g.ClosedAt,
		"status":               string(g.Status),
	}

	result, err := scanGroup(r.db.QueryRow(ctx, q, args))
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, domain.ErrGroupNotFound) {
		return domain.Group{}, fmt.Errorf("repo.GroupRepo.Update: %w", mapPgError(err))
	}

	// No row matched: either the group is gone or its version moved on.
	var exists bool
	const existsQ = `SELECT EXISTS (SELECT 1 FROM split_groups WHERE id = @id)`
	if err := r.db.QueryRow(ctx, existsQ, pgx.NamedArgs{"id": g.ID}).Scan(&exists); err != nil {
		return domain.Group{}, fmt.Errorf("repo.GroupRepo.Update: exists: %w", err)
	}
	if !exists {
		return domain.Group{}, fmt.Errorf("repo.GroupRepo.Update: %w", domain.ErrGroupNotFound)
	}
	return domain.Group{}, fmt.Errorf("repo.GroupRepo.Update: group %d version %d: %w", g.ID, g.Version, domain.ErrConflict)
}

// ListByStatus returns one page of groups in status, newest first.
func (r *pgGroupRepo) ListByStatus(ctx context.Context, status domain.GroupStatus, p domain.PaginationParams) ([]domain.Group, int64, error) {
	const countQ = `SELECT count(*) FROM split_groups WHERE status = @status`
	const q = `
		SELECT ` + groupColumns + `
		FROM split_groups g
		WHERE g.status = @status
		ORDER BY g.created_at DESC, g.id DESC
		LIMIT @limit OFFSET @offset`

	var total int64
	if err := r.db.QueryRow(ctx, countQ, pgx.NamedArgs{"status": string(status)}).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.GroupRepo.ListByStatus: count: %w", err)
	}

	p = p.Normalize()
	args := pgx.NamedArgs{"status": string(status), "limit": p.Limit, "offset": p.Offset()}
	groups, err := r.list(ctx, q, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.GroupRepo.ListByStatus: %w", err)
	}
	return groups, total, nil
}

// ListByHost returns every group hosted by userID.
func (r *pgGroupRepo) ListByHost(ctx context.Context, userID int64) ([]domain.Group, error) {
	const q = `
		SELECT ` + groupColumns + `
		FROM split_groups g
		WHERE g.host_user_id = @user_id
		ORDER BY g.created_at DESC, g.id DESC`

	groups, err := r.list(ctx, q, pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("repo.GroupRepo.ListByHost: %w", err)
	}
	return groups, nil
}

// ListByParticipant returns every group userID has a participant row in.
func (r *pgGroupRepo) ListByParticipant(ctx context.Context, userID int64) ([]domain.Group, error) {
	const q = `
		SELECT ` + groupColumns + `
		FROM split_groups g
		JOIN participants p ON p.split_group_id = g.id
		WHERE p.user_id = @user_id
		ORDER BY g.created_at DESC, g.id DESC`

	groups, err := r.list(ctx, q, pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("repo.GroupRepo.ListByParticipant: %w", err)
	}
	return groups, nil
}

func (r *pgGroupRepo) list(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Group, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []domain.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return groups, nil
}

// scanGroup maps a single database row into a domain.Group.
func scanGroup(s scanner) (domain.Group, error) {
	var (
		g        domain.Group
		price    string
		closedAt pgtype.Date
		status   string
	)

	err := s.Scan(&g.ID, &g.HostUserID, &g.Title, &price, &g.MaxParticipants,
		&g.CurrentParticipants, &g.PickupLocation, &g.PickupLocationGeo,
		&closedAt, &status, &g.Version, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Group{}, domain.ErrGroupNotFound
		}
		return domain.Group{}, err
	}

	g.TotalPrice, err = decimal.NewFromString(price)
	if err != nil {
		return domain.Group{}, fmt.Errorf("total_price %q: %w", price, err)
	}
	g.ClosedAt = closedAt.Time
	g.Status = domain.GroupStatus(status)
	return g, nil
}
