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

// ParticipantRepo defines the persistence operations for Participants.
type ParticipantRepo interface {
	// Create inserts a participant. Returns domain.ErrAlreadyJoined if the
	// user already has a record in the group and domain.ErrGroupNotFound if
	// the group does not exist.
	Create(ctx context.Context, p domain.Participant) (domain.Participant, error)

	// FindByGroupAndUser returns userID's record in groupID.
	// Returns domain.ErrParticipantNotFound when there is none.
	FindByGroupAndUser(ctx context.Context, groupID, userID int64) (domain.Participant, error)

	// Exists reports whether userID has a record in groupID.
	Exists(ctx context.Context, groupID, userID int64) (bool, error)

	// CountApproved returns the number of participants holding a seat
	// (APPROVED or PAID) in groupID.
	CountApproved(ctx context.Context, groupID int64) (int64, error)

	// ListByGroup returns every participant of groupID in join order.
	ListByGroup(ctx context.Context, groupID int64) ([]domain.Participant, error)

	// ListByUser returns every participant record of userID across groups.
	ListByUser(ctx context.Context, userID int64) ([]domain.Participant, error)

	// Update overwrites status, share and quantity of an existing participant.
	Update(ctx context.Context, p domain.Participant) (domain.Participant, error)

	// Delete removes a participant by ID.
	// Returns domain.ErrParticipantNotFound if it does not exist.
	Delete(ctx context.Context, id int64) error
}

// pgParticipantRepo is the Postgres implementation of ParticipantRepo.
type pgParticipantRepo struct {
	db db
}

// NewParticipantRepo constructs a ParticipantRepo backed by the provided db connection.
func NewParticipantRepo(db db) ParticipantRepo {
	return &pgParticipantRepo{db: db}
}

const participantColumns = `
	id, split_group_id, user_id, quantity, share_amount::text, status, joined_at, updated_at`

// Create inserts a new participant row.
func (r *pgParticipantRepo) Create(ctx context.Context, p domain.Participant) (domain.Participant, error) {
	const q = `
		INSERT INTO participants (split_group_id, user_id, quantity, share_amount, status)
		VALUES (@group_id, @user_id, @quantity, @share_amount, @status)
		RETURNING ` + participantColumns

	args := pgx.NamedArgs{
		"group_id":     p.GroupID,
		"user_id":      p.UserID,
		"quantity":     p.Quantity,
		"share_amount": shareArg(p.ShareAmount),
		"status":       string(p.Status),
	}

	result, err := scanParticipant(r.db.QueryRow(ctx, q, args))
	if err != nil {
		switch pgCode(err) {
		case codeUniqueViolation:
			err = domain.ErrAlreadyJoined
		case codeForeignKeyViolation:
			err = domain.ErrGroupNotFound
		}
		return domain.Participant{}, fmt.Errorf("repo.ParticipantRepo.Create: %w", err)
	}
	return result, nil
}

// FindByGroupAndUser looks up one membership record.
func (r *pgParticipantRepo) FindByGroupAndUser(ctx context.Context, groupID, userID int64) (domain.Participant, error) {
	const q = `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE split_group_id = @group_id AND user_id = @user_id`

	result, err := scanParticipant(r.db.QueryRow(ctx, q, pgx.NamedArgs{"group_id": groupID, "user_id": userID}))
	if err != nil {
		return domain.Participant{}, fmt.Errorf("repo.ParticipantRepo.FindByGroupAndUser: %w", err)
	}
	return result, nil
}

// Exists reports whether a membership record exists.
func (r *pgParticipantRepo) Exists(ctx context.Context, groupID, userID int64) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM participants
			WHERE split_group_id = @group_id AND user_id = @user_id
		)`

	var exists bool
	if err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"group_id": groupID, "user_id": userID}).Scan(&exists); err != nil {
		return false, fmt.Errorf("repo.ParticipantRepo.Exists: %w", err)
	}
	return exists, nil
}

// CountApproved counts the seats taken in a group.
func (r *pgParticipantRepo) CountApproved(ctx context.Context, groupID int64) (int64, error) {
	const q = `
		SELECT count(*) FROM participants
		WHERE split_group_id = @group_id AND status IN ('APPROVED', 'PAID')`

	var n int64
	if err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"group_id": groupID}).Scan(&n); err != nil {
		return 0, fmt.Errorf("repo.ParticipantRepo.CountApproved: %w", err)
	}
	return n, nil
}

// ListByGroup returns the group's participants ordered by join time.
func (r *pgParticipantRepo) ListByGroup(ctx context.Context, groupID int64) ([]domain.Participant, error) {
	const q = `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE split_group_id = @group_id
		ORDER BY joined_at, id`

	out, err := r.list(ctx, q, pgx.NamedArgs{"group_id": groupID})
	if err != nil {
		return nil, fmt.Errorf("repo.ParticipantRepo.ListByGroup: %w", err)
	}
	return out, nil
}

// ListByUser returns the user's records, newest first.
func (r *pgParticipantRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Participant, error) {
	const q = `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE user_id = @user_id
		ORDER BY joined_at DESC, id DESC`

	out, err := r.list(ctx, q, pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("repo.ParticipantRepo.ListByUser: %w", err)
	}
	return out, nil
}

// Update writes back the mutable fields of a participant.
func (r *pgParticipantRepo) Update(ctx context.Context, p domain.Participant) (domain.Participant, error) {
	const q = `
		UPDATE participants
		SET quantity     = @quantity,
		    share_amount = @share_amount,
		    status       = @status,
		    updated_at   = now()
		WHERE id = @id
		RETURNING ` + participantColumns

	args := pgx.NamedArgs{
		"id":           p.ID,
		"quantity":     p.Quantity,
		"share_amount": shareArg(p.ShareAmount),
		"status":       string(p.Status),
	}

	result, err := scanParticipant(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Participant{}, fmt.Errorf("repo.ParticipantRepo.Update: %w", err)
	}
	return result, nil
}

// Delete removes a participant by primary key.
func (r *pgParticipantRepo) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM participants WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.ParticipantRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.ParticipantRepo.Delete: %w", domain.ErrParticipantNotFound)
	}
	return nil
}

func (r *pgParticipantRepo) list(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Participant, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// shareArg renders a nullable share as text; nil becomes NULL.
func shareArg(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

// scanParticipant maps a single database row into a domain.Participant.
func scanParticipant(s scanner) (domain.Participant, error) {
	var (
		p        domain.Participant
		quantity pgtype.Int4
		share    pgtype.Text
		status   string
	)

	err := s.Scan(&p.ID, &p.GroupID, &p.UserID, &quantity, &share, &status, &p.JoinedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Participant{}, domain.ErrParticipantNotFound
		}
		return domain.Participant{}, err
	}

	if quantity.Valid {
		q := int(quantity.Int32)
		p.Quantity = &q
	}
	if share.Valid {
		d, err := decimal.NewFromString(share.String)
		if err != nil {
			return domain.Participant{}, fmt.Errorf("share_amount %q: %w", share.String, err)
		}
		p.ShareAmount = decimal.NewNullDecimal(d)
	}
	p.Status = domain.ParticipantStatus(status)
	return p, nil
}
