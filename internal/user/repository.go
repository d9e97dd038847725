// Package user manages customer accounts, their profiles, and the
// registration form rules.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loja/storefront/internal/db"
)

// User represents a storefront account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	PasswordHash string    `json:"-"`
	IsStaff      bool      `json:"isStaff"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile holds the shipping and billing details of a user.
type Profile struct {
	UserID     string    `json:"-"`
	Age        int       `json:"age"`
	BirthDate  time.Time `json:"birthDate"`
	CPF        string    `json:"cpf"`
	Address    string    `json:"address"`
	Number     string    `json:"number"`
	Complement string    `json:"complement"`
	District   string    `json:"district"`
	ZipCode    string    `json:"zipCode"`
	City       string    `json:"city"`
	State      string    `json:"state"`
}

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("user not found")

// ErrAlreadyExists is returned when a username or email is already registered.
var ErrAlreadyExists = errors.New("user already exists")

const userColumns = `id, username, email, first_name, last_name, password_hash, is_staff, created_at, updated_at`

// Repository handles all user database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts the user and its profile in one transaction.
func (r *Repository) Create(ctx context.Context, u *User, p *Profile) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	err = tx.QueryRow(ctx,
		`INSERT INTO users (username, email, first_name, last_name, password_hash, is_staff)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash, u.IsStaff,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}

	p.UserID = u.ID
	if err := upsertProfile(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update overwrites the user's account fields and profile in one transaction.
func (r *Repository) Update(ctx context.Context, u *User, p *Profile) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	err = tx.QueryRow(ctx,
		`UPDATE users
		 SET username = $2, email = $3, first_name = $4, last_name = $5, password_hash = $6, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash,
	).Scan(&u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("update user: %w", err)
	}

	p.UserID = u.ID
	if err := upsertProfile(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByID fetches a user by their UUID.
func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByUsername fetches a user by username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// GetByEmail fetches a user by email, ignoring case.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *Repository) getOne(ctx context.Context, query, arg string) (*User, error) {
	u := &User{}
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.IsStaff,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetProfile fetches the profile of a user.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	p := &Profile{UserID: userID}
	err := r.db.QueryRow(ctx,
		`SELECT age, birth_date, cpf, address, number, complement, district, zip_code, city, state
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.Age, &p.BirthDate, &p.CPF, &p.Address, &p.Number, &p.Complement,
		&p.District, &p.ZipCode, &p.City, &p.State)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func upsertProfile(ctx context.Context, tx pgx.Tx, p *Profile) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO profiles (user_id, age, birth_date, cpf, address, number, complement, district, zip_code, city, state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (user_id) DO UPDATE
		 SET age = EXCLUDED.age, birth_date = EXCLUDED.birth_date, cpf = EXCLUDED.cpf,
		     address = EXCLUDED.address, number = EXCLUDED.number, complement = EXCLUDED.complement,
		     district = EXCLUDED.district, zip_code = EXCLUDED.zip_code, city = EXCLUDED.city,
		     state = EXCLUDED.state`,
		p.UserID, p.Age, p.BirthDate, p.CPF, p.Address, p.Number, p.Complement,
		p.District, p.ZipCode, p.City, p.State,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
