package service

import (
	"context"

	"github.com/annnsvm/contactsd/internal/models"
	"github.com/annnsvm/contactsd/internal/repository"
)

type contactStore interface {
	List(ctx context.Context, userID int64, skip, limit int, q string) ([]models.Contact, error)
	GetByID(ctx context.Context, id, userID int64) (*models.Contact, error)
	Create(ctx context.Context, c *models.Contact) (*models.Contact, error)
	Update(ctx context.Context, id, userID int64, upd repository.ContactUpdate) (*models.Contact, error)
	Delete(ctx context.Context, id, userID int64) (*models.Contact, error)
	UpcomingBirthdays(ctx context.Context, userID int64, days int) ([]models.Contact, error)
}

// ContactService scopes every contact operation to its owner. A user can
// never see or touch another user's contacts.
type ContactService struct {
	contacts contactStore
}

func NewContactService(contacts contactStore) *ContactService {
	return &ContactService{contacts: contacts}
}

func (s *ContactService) List(ctx context.Context, userID int64, skip, limit int, q string) ([]models.Contact, error) {
	return s.contacts.List(ctx, userID, skip, limit, q)
}

func (s *ContactService) Get(ctx context.Context, id, userID int64) (*models.Contact, error) {
	return s.contacts.GetByID(ctx, id, userID)
}

func (s *ContactService) Create(ctx context.Context, userID int64, c *models.Contact) (*models.Contact, error) {
	c.UserID = userID
	return s.contacts.Create(ctx, c)
}

func (s *ContactService) Update(ctx context.Context, id, userID int64, upd repository.ContactUpdate) (*models.Contact, error) {
	return s.contacts.Update(ctx, id, userID, upd)
}

func (s *ContactService) Delete(ctx context.Context, id, userID int64) (*models.Contact, error) {
	return s.contacts.Delete(ctx, id, userID)
}

func (s *ContactService) UpcomingBirthdays(ctx context.Context, userID int64, days int) ([]models.Contact, error) {
	return s.contacts.UpcomingBirthdays(ctx, userID, days)
}
