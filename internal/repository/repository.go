package repository

import (
	"context"

	"github.com/scripty-dev/starter-api/internal/domain"
)

// ItemRepository persists items. Create and Update stamp timestamps on the
// passed record.
type ItemRepository interface {
	CreateItem(ctx context.Context, item *domain.Item) error
	GetItemByID(ctx context.Context, id string) (*domain.Item, error)
	ListItems(ctx context.Context) ([]domain.Item, error)
	UpdateItem(ctx context.Context, item *domain.Item) error
	DeleteItem(ctx context.Context, id string) error
}

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// Store is the full persistence surface used by the API.
type Store interface {
	ItemRepository
	UserRepository
	Ping(ctx context.Context) error
	Close()
}
