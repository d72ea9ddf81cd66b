package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/annnsvm/contactsd/internal/models"
)

var contactColumns = []string{
	"id", "first_name", "last_name", "email", "phone",
	"birth_date", "additional", "created_at", "updated_at", "user_id",
}

// ContactUpdate carries a partial update; nil fields are left untouched.
type ContactUpdate struct {
	FirstName  *string
	LastName   *string
	Email      *string
	Phone      *string
	BirthDate  *time.Time
	Additional *string
}

// SetMap renders the non-nil fields as an update set map. Empty when no field
// is set.
func (u ContactUpdate) SetMap() map[string]any {
	set := map[string]any{}
	if u.FirstName != nil {
		set["first_name"] = *u.FirstName
	}
	if u.LastName != nil {
		set["last_name"] = *u.LastName
	}
	if u.Email != nil {
		set["email"] = *u.Email
	}
	if u.Phone != nil {
		set["phone"] = *u.Phone
	}
	if u.BirthDate != nil {
		set["birth_date"] = *u.BirthDate
	}
	if u.Additional != nil {
		set["additional"] = *u.Additional
	}
	return set
}

// ContactRepository persists address-book entries. Every operation is scoped
// to the owning user.
type ContactRepository struct {
	db DB
}

// NewContactRepository binds the repository to a database executor.
func NewContactRepository(db DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// List returns the user's contacts with pagination and an optional search
// query matching first name, last name (case-insensitive), or phone.
func (r *ContactRepository) List(ctx context.Context, userID int64, skip, limit int, q string) ([]models.Contact, error) {
	builder := psql.Select(contactColumns...).
		From("contacts").
		Where(squirrel.Eq{"user_id": userID})

	if q != "" {
		builder = builder.Where(searchCondition(q))
	}

	builder = builder.OrderBy("id").
		Offset(uint64(skip)).
		Limit(uint64(limit))

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list contacts: %w", err)
	}

	return r.queryContacts(ctx, sql, args)
}

// GetByID fetches one contact owned by the user, or ErrNotFound.
func (r *ContactRepository) GetByID(ctx context.Context, id, userID int64) (*models.Contact, error) {
	sql, args, err := psql.Select(contactColumns...).
		From("contacts").
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select contact: %w", err)
	}

	contact, scanErr := scanContact(r.db.QueryRow(ctx, sql, args...))
	if scanErr != nil {
		return nil, mapNoRows(scanErr)
	}
	return contact, nil
}

// Create inserts a contact for its UserID owner and returns the stored row.
func (r *ContactRepository) Create(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	sql, args, err := psql.Insert("contacts").
		Columns("first_name", "last_name", "email", "phone", "birth_date", "additional", "user_id").
		Values(c.FirstName, c.LastName, c.Email, c.Phone, c.BirthDate, c.Additional, c.UserID).
		Suffix("RETURNING " + joinColumns(contactColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building insert contact: %w", err)
	}

	return scanContact(r.db.QueryRow(ctx, sql, args...))
}

// Update applies a partial update to a contact owned by the user and returns
// the updated row. A no-op update returns the current row unchanged.
func (r *ContactRepository) Update(ctx context.Context, id, userID int64, upd ContactUpdate) (*models.Contact, error) {
	set := upd.SetMap()
	if len(set) == 0 {
		return r.GetByID(ctx, id, userID)
	}
	set["updated_at"] = squirrel.Expr("now()")

	sql, args, err := psql.Update("contacts").
		SetMap(set).
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		Suffix("RETURNING " + joinColumns(contactColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building update contact: %w", err)
	}

	contact, scanErr := scanContact(r.db.QueryRow(ctx, sql, args...))
	if scanErr != nil {
		return nil, mapNoRows(scanErr)
	}
	return contact, nil
}

// Delete removes a contact owned by the user and returns the deleted row.
func (r *ContactRepository) Delete(ctx context.Context, id, userID int64) (*models.Contact, error) {
	sql, args, err := psql.Delete("contacts").
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		Suffix("RETURNING " + joinColumns(contactColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building delete contact: %w", err)
	}

	contact, scanErr := scanContact(r.db.QueryRow(ctx, sql, args...))
	if scanErr != nil {
		return nil, mapNoRows(scanErr)
	}
	return contact, nil
}

// UpcomingBirthdays returns the user's contacts whose birthday falls within
// the next days days, by calendar month/day so the birth year is ignored.
func (r *ContactRepository) UpcomingBirthdays(ctx context.Context, userID int64, days int) ([]models.Contact, error) {
	sql, args, err := psql.Select(contactColumns...).
		From("contacts").
		Where(squirrel.Eq{"user_id": userID}).
		Where(birthdayCondition(time.Now(), days)).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building birthday query: %w", err)
	}

	return r.queryContacts(ctx, sql, args)
}

// searchCondition matches q against lower(first_name), lower(last_name), or
// phone, with substring semantics.
func searchCondition(q string) squirrel.Sqlizer {
	pattern := "%" + strings.ToLower(q) + "%"
	return squirrel.Or{
		squirrel.Expr("lower(first_name) LIKE ?", pattern),
		squirrel.Expr("lower(last_name) LIKE ?", pattern),
		squirrel.Expr("phone LIKE ?", pattern),
	}
}

// birthdayCondition selects birth dates in the [now, now+days] window by
// month and day. When the window crosses a month boundary the first branch
// runs to the end of the start month (day <= 31) and a second branch covers
// the head of the next month.
func birthdayCondition(now time.Time, days int) squirrel.Sqlizer {
	end := now.AddDate(0, 0, days)
	sameMonth := now.Month() == end.Month()

	firstUpper := end.Day()
	if !sameMonth {
		firstUpper = 31
	}

	first := squirrel.And{
		squirrel.Expr("EXTRACT(MONTH FROM birth_date) = ?", int(now.Month())),
		squirrel.Expr("EXTRACT(DAY FROM birth_date) >= ?", now.Day()),
		squirrel.Expr("EXTRACT(DAY FROM birth_date) <= ?", firstUpper),
	}
	if sameMonth {
		return first
	}

	second := squirrel.And{
		squirrel.Expr("EXTRACT(MONTH FROM birth_date) = ?", int(end.Month())),
		squirrel.Expr("EXTRACT(DAY FROM birth_date) <= ?", end.Day()),
	}
	return squirrel.Or{first, second}
}

func (r *ContactRepository) queryContacts(ctx context.Context, sql string, args []any) ([]models.Contact, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		c, scanErr := scanContactRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

func scanContact(row pgx.Row) (*models.Contact, error) {
	return scanContactRow(row)
}

func scanContactRow(row pgx.Row) (*models.Contact, error) {
	var c models.Contact
	err := row.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
		&c.BirthDate, &c.Additional, &c.CreatedAt, &c.UpdatedAt, &c.UserID,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
