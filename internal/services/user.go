package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/fitchat/internal/models"
)

const (
	searchMinQueryLen = 2
	searchMaxResults  = 20
)

// UserDirectory is the read-only view of accounts the chat services need.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Search(ctx context.Context, requesterID uuid.UUID, query string) ([]models.UserSearchResult, error)
}

type UserService struct {
	db DBConn
}

func NewUserService(db DBConn) *UserService {
	return &UserService{db: db}
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx,
		`SELECT id, email, display_name, searchable, created_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Email, &user.DisplayName, &user.Searchable, &user.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}

	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrUserNotFound
	}

	user := &models.User{}
	err := s.db.QueryRow(ctx,
		`SELECT id, email, display_name, searchable, created_at
		 FROM users WHERE LOWER(email) = LOWER($1)`,
		email,
	).Scan(&user.ID, &user.Email, &user.DisplayName, &user.Searchable, &user.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}

	return user, nil
}

// Search matches searchable users by display name prefix or exact email.
// Queries shorter than two characters return nothing.
func (s *UserService) Search(ctx context.Context, requesterID uuid.UUID, query string) ([]models.UserSearchResult, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < searchMinQueryLen {
		return []models.UserSearchResult{}, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, display_name, email
		 FROM users
		 WHERE id <> $1
		   AND searchable = true
		   AND (display_name ILIKE $2 || '%' OR LOWER(email) = LOWER($3))
		 ORDER BY display_name
		 LIMIT $4`,
		requesterID, escapeLike(query), query, searchMaxResults,
	)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	defer rows.Close()

	results := []models.UserSearchResult{}
	for rows.Next() {
		var r models.UserSearchResult
		if err := rows.Scan(&r.ID, &r.DisplayName, &r.Email); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return results, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func searchResult(u *models.User) *models.UserSearchResult {
	if u == nil {
		return nil
	}
	return &models.UserSearchResult{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email}
}
