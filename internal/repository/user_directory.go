package repository

import (
	"context"

	"github.com/noah-isme/dossier-messaging-api/internal/models"
)

// UserDirectory exposes the static list of messaging participants.
type UserDirectory interface {
	List(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	ListByService(ctx context.Context, service models.Service) ([]models.User, error)
}

type userDirectory struct {
	users []models.User
	byID  map[string]int
}

// NewUserDirectory builds an immutable directory. Later duplicates of an id are ignored.
func NewUserDirectory(users []models.User) UserDirectory {
	dir := &userDirectory{
		users: make([]models.User, 0, len(users)),
		byID:  make(map[string]int, len(users)),
	}
	for _, user := range users {
		if _, exists := dir.byID[user.ID]; exists {
			continue
		}
		dir.byID[user.ID] = len(dir.users)
		dir.users = append(dir.users, user)
	}
	return dir
}

func (d *userDirectory) List(ctx context.Context) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]models.User(nil), d.users...), nil
}

func (d *userDirectory) FindByID(ctx context.Context, id string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	idx, ok := d.byID[id]
	if !ok {
		return models.User{}, ErrRecordNotFound
	}
	return d.users[idx], nil
}

func (d *userDirectory) ListByService(ctx context.Context, service models.Service) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]models.User, 0)
	for _, user := range d.users {
		if user.Service == service {
			out = append(out, user)
		}
	}
	return out, nil
}
