package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ProcessOnce runs fn in a transaction fenced by processed_messages. A
// (messageID, handlerName) pair seen before skips fn and reports false. When
// fn fails the fence row rolls back with it, so a redelivery runs fn again.
// An empty messageID runs fn unfenced.
func (r *Repository) ProcessOnce(
	ctx context.Context,
	messageID, handlerName string,
	fn func(tx pgx.Tx) error,
) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if id := strings.TrimSpace(messageID); id != "" {
		fresh, err := claimMessage(ctx, tx, id, handlerName)
		if err != nil {
			return false, fmt.Errorf("claim message %s: %w", id, err)
		}
		if !fresh {
			return false, nil
		}
	}

	if err := fn(tx); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func claimMessage(ctx context.Context, tx pgx.Tx, messageID, handlerName string) (bool, error) {
	handlerName = strings.TrimSpace(handlerName)
	if handlerName == "" {
		handlerName = "unknown"
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO processed_messages (message_id, handler_name)
		VALUES ($1, $2)
		ON CONFLICT (message_id, handler_name) DO NOTHING
	`, messageID, handlerName)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
