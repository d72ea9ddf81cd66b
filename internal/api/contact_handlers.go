package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/annnsvm/contactsd/internal/models"
	"github.com/annnsvm/contactsd/internal/repository"
)

type contactsService interface {
	List(ctx context.Context, userID int64, skip, limit int, q string) ([]models.Contact, error)
	Get(ctx context.Context, id, userID int64) (*models.Contact, error)
	Create(ctx context.Context, userID int64, c *models.Contact) (*models.Contact, error)
	Update(ctx context.Context, id, userID int64, upd repository.ContactUpdate) (*models.Contact, error)
	Delete(ctx context.Context, id, userID int64) (*models.Contact, error)
	UpcomingBirthdays(ctx context.Context, userID int64, days int) ([]models.Contact, error)
}

// birthDateLayout is the accepted wire format for birth dates.
const birthDateLayout = "2006-01-02"

type contactRequest struct {
	FirstName  string  `json:"first_name" binding:"required,max=50"`
	LastName   string  `json:"last_name" binding:"required,max=50"`
	Email      string  `json:"email" binding:"required,email"`
	Phone      string  `json:"phone" binding:"required,max=20"`
	BirthDate  *string `json:"birth_date" binding:"omitempty,datetime=2006-01-02"`
	Additional string  `json:"additional" binding:"max=255"`
}

type contactUpdateRequest struct {
	FirstName  *string `json:"first_name" binding:"omitempty,max=50"`
	LastName   *string `json:"last_name" binding:"omitempty,max=50"`
	Email      *string `json:"email" binding:"omitempty,email"`
	Phone      *string `json:"phone" binding:"omitempty,max=20"`
	BirthDate  *string `json:"birth_date" binding:"omitempty,datetime=2006-01-02"`
	Additional *string `json:"additional" binding:"omitempty,max=255"`
}

// ListContacts handles GET /api/v1/contacts?skip&limit&q.
func (h *Handler) ListContacts(c *gin.Context) {
	skip := intQuery(c, "skip", 0)
	limit := intQuery(c, "limit", 100)
	q := c.Query("q")

	contacts, err := h.contacts.List(c.Request.Context(), currentUser(c).ID, skip, limit, q)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, contacts)
}

// GetContact handles GET /api/v1/contacts/:id.
func (h *Handler) GetContact(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	contact, err := h.contacts.Get(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		contactError(c, err)
		return
	}

	c.JSON(http.StatusOK, contact)
}

// CreateContact handles POST /api/v1/contacts.
func (h *Handler) CreateContact(c *gin.Context) {
	var req contactRequest
	if !bindJSON(c, &req) {
		return
	}

	contact := &models.Contact{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		BirthDate:  parseBirthDate(req.BirthDate),
		Additional: req.Additional,
	}

	created, err := h.contacts.Create(c.Request.Context(), currentUser(c).ID, contact)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// UpdateContact handles PUT /api/v1/contacts/:id. Absent fields keep their
// current values.
func (h *Handler) UpdateContact(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	var req contactUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	upd := repository.ContactUpdate{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		Additional: req.Additional,
	}
	if req.BirthDate != nil {
		upd.BirthDate = parseBirthDate(req.BirthDate)
	}

	contact, err := h.contacts.Update(c.Request.Context(), id, currentUser(c).ID, upd)
	if err != nil {
		contactError(c, err)
		return
	}

	c.JSON(http.StatusOK, contact)
}

// DeleteContact handles DELETE /api/v1/contacts/:id.
func (h *Handler) DeleteContact(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}

	contact, err := h.contacts.Delete(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		contactError(c, err)
		return
	}

	c.JSON(http.StatusOK, contact)
}

// UpcomingBirthdays handles GET /api/v1/contacts/birthdays?days.
func (h *Handler) UpcomingBirthdays(c *gin.Context) {
	days := intQuery(c, "days", 7)
	if days < 1 {
		days = 7
	}

	contacts, err := h.contacts.UpcomingBirthdays(c.Request.Context(), currentUser(c).ID, days)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, contacts)
}

func contactID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact id"})
		return 0, false
	}
	return id, true
}

func contactError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}
	internalError(c, err)
}

func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func parseBirthDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	// Format already validated by the binding tag.
	t, err := time.Parse(birthDateLayout, *s)
	if err != nil {
		return nil
	}
	return &t
}
