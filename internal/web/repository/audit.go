package repository

import (
	"database/sql"
	"time"

	"github.com/foxzi/coldreach/internal/web/models"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Add adds an audit log entry
func (r *AuditRepository) Add(entry *models.AuditLogEntry) error {
	entry.CreatedAt = time.Now().UTC()
	res, err := r.db.Exec(`
		INSERT INTO audit_log (user_id, user_email, action, entity_type, entity_id, details, ip_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.UserEmail, entry.Action, entry.EntityType, entry.EntityID, entry.Details, entry.IPAddress, entry.CreatedAt,
	)
	if err != nil {
		return err
	}
	entry.ID, _ = res.LastInsertId()
	return nil
}

// List returns audit log entries, newest first
func (r *AuditRepository) List(filter models.AuditLogFilter) ([]models.AuditLogEntry, int, error) {
	where := " WHERE 1=1"
	args := []any{}

	if filter.UserID != "" {
		where += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.Action != "" {
		where += " AND action = ?"
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		where += " AND entity_type = ?"
		args = append(args, filter.EntityType)
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM audit_log"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, COALESCE(user_id, ''), COALESCE(user_email, ''), action, entity_type,
			COALESCE(entity_id, ''), COALESCE(details, ''), COALESCE(ip_address, ''), created_at
		FROM audit_log` + where + " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := []models.AuditLogEntry{}
	for rows.Next() {
		var e models.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserEmail, &e.Action, &e.EntityType, &e.EntityID, &e.Details, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// DeleteOlderThan prunes entries created before cutoff
func (r *AuditRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM audit_log WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
