package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/evo-ticket-ledger/internal/utils"
)

// Operator mirrors the 'operators' table: gate staff allowed to scan.
type Operator struct {
	ID           uint64
	Username     string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type OperatorRepo struct{ DB *sql.DB }

func NewOperatorRepo(db *sql.DB) *OperatorRepo { return &OperatorRepo{DB: db} }

func normalizeUsername(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Create inserts an operator and returns its ID. A taken username yields
// ErrConflict.
func (r *OperatorRepo) Create(ctx context.Context, username, password, role string, cost int) (uint64, error) {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO operators (username, password_hash, role) VALUES (?,?,?)",
		normalizeUsername(username), hash, role)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

const operatorColumns = "id,username,password_hash,role,is_active,created_at,updated_at"

// GetByUsername fetches an operator by normalized username.
func (r *OperatorRepo) GetByUsername(ctx context.Context, username string) (Operator, error) {
	var o Operator
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+operatorColumns+" FROM operators WHERE username=? LIMIT 1",
		normalizeUsername(username)).Scan(&o.ID, &o.Username, &o.PasswordHash, &o.Role, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// GetByID fetches an operator by id.
func (r *OperatorRepo) GetByID(ctx context.Context, id uint64) (Operator, error) {
	var o Operator
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+operatorColumns+" FROM operators WHERE id=? LIMIT 1",
		id).Scan(&o.ID, &o.Username, &o.PasswordHash, &o.Role, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// SetActive enables or disables an operator's login.
func (r *OperatorRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE operators SET is_active=? WHERE id=?", active, id)
	return err
}
