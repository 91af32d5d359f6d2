package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"user-api/internal/domain"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already in use")
	ErrEmailTaken    = errors.New("email already in use")
	ErrOTPRejected   = errors.New("verification token rejected")
)

const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

// Pool es el subconjunto de pgxpool.Pool que usan los repositorios.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (domain.User, error)
	FindByUsernameOrEmail(ctx context.Context, identifier string) (domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	SetLoggedIn(ctx context.Context, id int64, loggedIn bool) error
	MarkVerified(ctx context.Context, id int64, otp string) (domain.User, error)
	SetAvatar(ctx context.Context, id int64, avatarURL string) error
	UpdateProfile(ctx context.Context, id int64, patch domain.ProfilePatch) (domain.User, error)
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, filter domain.UserFilter) ([]domain.User, error)
	Count(ctx context.Context) (int64, error)
}

// PgUserRepository implementa UserRepository usando pgx.
type PgUserRepository struct {
	pool Pool
}

func NewPgUserRepository(pool Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, username, email, password_hash, first_name, last_name, avatar,
		verified, logged_in, verification_token, verification_token_created_at,
		created_at, updated_at`

func (r *PgUserRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
		INSERT INTO users (username, email, password_hash, first_name, last_name, avatar,
			verified, logged_in, verification_token, verification_token_created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Avatar,
		user.Verified,
		user.LoggedIn,
		user.VerificationToken,
		user.VerificationTokenCreatedAt,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return mapConstraintError(err)
	}
	return nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) FindByUsernameOrEmail(ctx context.Context, identifier string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $1 LIMIT 1`
	return scanUser(r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(identifier))))
}

func (r *PgUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, username).Scan(&exists)
	return exists, err
}

func (r *PgUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, email).Scan(&exists)
	return exists, err
}

// SetLoggedIn cambia solo la marca de sesión activa.
func (r *PgUserRepository) SetLoggedIn(ctx context.Context, id int64, loggedIn bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET logged_in = $2, updated_at = now() WHERE id = $1`,
		id, loggedIn,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkVerified consume el OTP solo si sigue pendiente y coincide; si no, devuelve ErrOTPRejected.
func (r *PgUserRepository) MarkVerified(ctx context.Context, id int64, otp string) (domain.User, error) {
	query := `
		UPDATE users SET
			verified = true,
			logged_in = true,
			verification_token = $3,
			updated_at = now()
		WHERE id = $1 AND verification_token = $2 AND verification_token <> $3
		RETURNING ` + userColumns
	user, err := scanUser(r.pool.QueryRow(ctx, query, id, otp, domain.VerificationSentinel))
	if errors.Is(err, ErrNotFound) {
		return domain.User{}, ErrOTPRejected
	}
	return user, err
}

func (r *PgUserRepository) SetAvatar(ctx context.Context, id int64, avatarURL string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET avatar = $2, updated_at = now() WHERE id = $1`,
		id, avatarURL,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile escribe solo las columnas presentes en el patch y devuelve la fila resultante.
func (r *PgUserRepository) UpdateProfile(ctx context.Context, id int64, patch domain.ProfilePatch) (domain.User, error) {
	if patch.Empty() {
		return r.GetByID(ctx, id)
	}

	args := []any{id}
	var sets []string
	set := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	set("username", patch.Username)
	set("email", patch.Email)
	set("first_name", patch.FirstName)
	set("last_name", patch.LastName)
	set("password_hash", patch.PasswordHash)
	sets = append(sets, "updated_at = now()")

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + userColumns
	user, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return domain.User{}, mapConstraintError(err)
	}
	return user, err
}

func (r *PgUserRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgUserRepository) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	var (
		conds []string
		args  []any
	)
	if filter.FirstName != "" {
		args = append(args, filter.FirstName)
		conds = append(conds, fmt.Sprintf("first_name = $%d", len(args)))
	}
	if filter.LastName != "" {
		args = append(args, filter.LastName)
		conds = append(conds, fmt.Sprintf("last_name = $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + userColumns + ` FROM users`)
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	if filter.Order == domain.SortDesc {
		sb.WriteString(" ORDER BY id DESC")
	} else {
		sb.WriteString(" ORDER BY id ASC")
	}
	if filter.PerPage > 0 {
		args = append(args, filter.PerPage)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if filter.Paginated() {
		args = append(args, filter.Offset())
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PgUserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Avatar,
		&u.Verified,
		&u.LoggedIn,
		&u.VerificationToken,
		&u.VerificationTokenCreatedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

// mapConstraintError traduce violaciones de unicidad a errores de dominio.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case usernameConstraint:
		return ErrUsernameTaken
	case emailConstraint:
		return ErrEmailTaken
	}
	return err
}
