package postgres

import (
	"context"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/gofrs/uuid/v5"
)

// PushTokenRepo implements PushTokenRepository using PostgreSQL.
type PushTokenRepo struct{ q querier }

// NewPushTokenRepo constructs a push token repository.
func NewPushTokenRepo(db *DB) *PushTokenRepo { return &PushTokenRepo{q: db.Pool} }

// Upsert registers a device token; an existing token moves to the new owner.
func (r *PushTokenRepo) Upsert(ctx context.Context, t *model.PushToken) (uuid.UUID, error) {
	const q = `
INSERT INTO push_tokens (id, user_id, token, token_type, device_type, device_name)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (token) DO UPDATE
SET user_id=EXCLUDED.user_id,
    token_type=EXCLUDED.token_type,
    device_type=EXCLUDED.device_type,
    device_name=EXCLUDED.device_name
RETURNING id`
	var id uuid.UUID
	err := r.q.QueryRow(ctx, q, t.ID, t.UserID, t.Token, string(t.TokenType), t.DeviceType, t.DeviceName).Scan(&id)
	return id, err
}

// Delete removes one of the user's tokens.
func (r *PushTokenRepo) Delete(ctx context.Context, userID uuid.UUID, token string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM push_tokens WHERE user_id=$1 AND token=$2`, userID, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// DeleteTokens removes tokens rejected by a gateway.
func (r *PushTokenRepo) DeleteTokens(ctx context.Context, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	tag, err := r.q.Exec(ctx, `DELETE FROM push_tokens WHERE token = ANY($1::text[])`, tokens)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListForUsers returns every token owned by the users.
func (r *PushTokenRepo) ListForUsers(ctx context.Context, userIDs []uuid.UUID) ([]model.PushToken, error) {
	out := []model.PushToken{}
	if len(userIDs) == 0 {
		return out, nil
	}
	const q = `
SELECT id, user_id, token, token_type, device_type, device_name, created_at
FROM push_tokens
WHERE user_id = ANY($1::uuid[])
ORDER BY created_at ASC`
	rows, err := r.q.Query(ctx, q, uuidStrings(userIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t  model.PushToken
			tt string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &tt, &t.DeviceType, &t.DeviceName, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.TokenType = model.TokenType(tt)
		out = append(out, t)
	}
	return out, rows.Err()
}
