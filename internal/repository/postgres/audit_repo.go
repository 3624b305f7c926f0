package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/audit"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Insert(ctx context.Context, e audit.Entry) error {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	q := `
INSERT INTO audit_logs (
  actor_user_id, actor_email, actor_role, action, target_type, target_id, target_label,
  status, reason, metadata, ip, user_agent
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`
	_, err := r.pool.Exec(ctx, q,
		e.Actor.UserID, e.Actor.Email, e.Actor.Role, e.Action, e.TargetType, e.TargetID, e.TargetLabel,
		string(e.Status), e.Reason, meta, e.Actor.IP, e.Actor.UserAgent,
	)
	return err
}

func (r *AuditRepository) List(ctx context.Context, f audit.ListFilter) ([]audit.Entry, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where := strings.Builder{}
	where.WriteString(" WHERE 1=1")
	args := []any{}
	argPos := 1
	add := func(column, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		where.WriteString(" AND " + column + " = $" + strconv.Itoa(argPos))
		args = append(args, value)
		argPos++
	}
	add("action", f.Action)
	add("status", string(f.Status))
	add("actor_user_id", f.ActorUserID)
	add("target_type", f.TargetType)
	add("target_id", f.TargetID)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `
SELECT id, actor_user_id, actor_email, actor_role, action, target_type, target_id, target_label,
       status, reason, metadata, ip, user_agent, created_at
FROM audit_logs` + where.String() +
		" ORDER BY created_at DESC, id DESC LIMIT $" + strconv.Itoa(argPos) + " OFFSET $" + strconv.Itoa(argPos+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]audit.Entry, 0)
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(
			&e.ID, &e.Actor.UserID, &e.Actor.Email, &e.Actor.Role, &e.Action, &e.TargetType, &e.TargetID, &e.TargetLabel,
			&e.Status, &e.Reason, &e.Metadata, &e.Actor.IP, &e.Actor.UserAgent, &e.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
