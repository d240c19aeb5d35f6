package postgres

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/scripty-dev/starter-api/internal/domain"
	"github.com/scripty-dev/starter-api/internal/repository"
)

const (
	codeUniqueViolation  = "23505"
	codeInvalidTextValue = "22P02"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var _ repository.Store = (*Repository)(nil)

const itemColumns = `id, name, description, price, quantity, category, created_at, updated_at`

// CreateItem inserts an item; the database assigns timestamps.
func (r *Repository) CreateItem(ctx context.Context, item *domain.Item) error {
	const query = `INSERT INTO items (id, name, description, price, quantity, category, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query, item.ID, item.Name, item.Description, item.Price, item.Quantity, string(item.Category)).
		Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return translate(err, "postgres: insert item")
	}
	return nil
}

// GetItemByID fetches an item.
func (r *Repository) GetItemByID(ctx context.Context, id string) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	item, err := scanItem(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err, "postgres: get item")
	}
	return item, nil
}

// ListItems returns every item, newest first.
func (r *Repository) ListItems(ctx context.Context) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items ORDER BY created_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: list items")
	}
	defer rows.Close()

	items := make([]domain.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, errors.Wrap(err, "postgres: scan item")
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "postgres: iterate items")
	}
	return items, nil
}

// UpdateItem overwrites mutable columns and refreshes updated_at.
func (r *Repository) UpdateItem(ctx context.Context, item *domain.Item) error {
	const query = `UPDATE items
		SET name = $2, description = $3, price = $4, quantity = $5, category = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query, item.ID, item.Name, item.Description, item.Price, item.Quantity, string(item.Category)).
		Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return translate(err, "postgres: update item")
	}
	return nil
}

// DeleteItem removes an item.
func (r *Repository) DeleteItem(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return translate(err, "postgres: delete item")
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateUser inserts a user; a taken email yields repository.ErrConflict.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query, user.ID, user.Name, user.Email, user.PasswordHash).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return translate(err, "postgres: insert user")
	}
	return nil
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE email = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, translate(err, "postgres: get user by email")
	}
	return user, nil
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE id = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err, "postgres: get user")
	}
	return user, nil
}

// Ping checks pool connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases pooled connections.
func (r *Repository) Close() {
	r.pool.Close()
}

func scanItem(row pgx.Row) (*domain.Item, error) {
	var (
		item     domain.Item
		category string
	)
	if err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Price, &item.Quantity, &category, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.Category = domain.Category(category)
	return &item, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

// translate maps driver errors onto repository sentinels and wraps the rest.
func translate(err error, msg string) error {
	if stderrors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return repository.ErrConflict
		case codeInvalidTextValue:
			return repository.ErrNotFound
		}
	}
	return errors.Wrap(err, msg)
}
