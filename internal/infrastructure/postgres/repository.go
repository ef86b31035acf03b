package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// -------------------------
// Lock order (same webinar_id):
//   1) webinars row (FOR UPDATE)
//   2) participations rows
// Snapshot upserts take the same row lock, so a capacity change never
// interleaves with a seat commit.
// -------------------------

func (r *Repository) GetDetails(ctx context.Context, webinarID string) (domain.WebinarDetails, error) {
	var d domain.WebinarDetails
	err := r.pool.QueryRow(ctx, `
		SELECT id, organizer_id, title, seat_capacity
		FROM webinars
		WHERE id = $1
	`, webinarID).Scan(&d.ID, &d.OrganizerID, &d.Title, &d.SeatCapacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WebinarDetails{}, domain.ErrWebinarNotFound
		}
		return domain.WebinarDetails{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT user_id
		FROM participations
		WHERE webinar_id = $1
		ORDER BY created_at ASC, user_id ASC
	`, webinarID)
	if err != nil {
		return domain.WebinarDetails{}, err
	}
	defer rows.Close()

	d.Participants = make([]domain.Participant, 0)
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.UserID); err != nil {
			return domain.WebinarDetails{}, err
		}
		d.Participants = append(d.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return domain.WebinarDetails{}, err
	}
	return d, nil
}

func (r *Repository) IsRegistered(ctx context.Context, webinarID, userID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM participations
			WHERE webinar_id = $1 AND user_id = $2
		)
	`, webinarID, userID).Scan(&ok)
	return ok, err
}

// AddParticipant commits a booking only if a seat is still free and the user
// holds none. The checks run in the same order as the booking decision, so a
// lost race surfaces as the error the pre-check would have returned.
func (r *Repository) AddParticipant(ctx context.Context, p domain.Participation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// 1) Lock webinar row FIRST
	var capacity int
	err = tx.QueryRow(ctx, `
		SELECT seat_capacity
		FROM webinars
		WHERE id = $1
		FOR UPDATE
	`, p.WebinarID).Scan(&capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrWebinarNotFound
		}
		return err
	}

	// 2) Capacity
	var taken int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM participations WHERE webinar_id = $1`, p.WebinarID).Scan(&taken); err != nil {
		return err
	}
	if taken >= capacity {
		return domain.ErrNoSeatsAvailable
	}

	// 3) Insert; the primary key rejects a second seat for the same user
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		err = tx.QueryRow(ctx, `SELECT NOW()`).Scan(&createdAt)
		if err != nil {
			return err
		}
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO participations (webinar_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (webinar_id, user_id) DO NOTHING
	`, p.WebinarID, p.UserID, createdAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyParticipating
	}

	return tx.Commit(ctx)
}

func (r *Repository) UpsertWebinar(ctx context.Context, w domain.Webinar) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.UpsertWebinarTx(ctx, tx, w); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpsertWebinarTx writes a snapshot inside the caller's transaction.
func (r *Repository) UpsertWebinarTx(ctx context.Context, tx pgx.Tx, w domain.Webinar) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO webinars (id, organizer_id, title, seat_capacity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET organizer_id  = EXCLUDED.organizer_id,
		    title         = EXCLUDED.title,
		    seat_capacity = EXCLUDED.seat_capacity,
		    updated_at    = NOW()
	`, strings.TrimSpace(w.ID), strings.TrimSpace(w.OrganizerID), w.Title, w.SeatCapacity)
	return err
}
