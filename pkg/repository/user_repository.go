package repository

import (
	"database/sql"
	"time"

	"tms/pkg/errs"
	"tms/pkg/models"

	"github.com/lib/pq"
)

type UserRepository interface {
	CreateUser(name, email, hashedPw, role string) (models.User, error)
	GetUserByEmail(email string) (models.User, string, error)
	GetUserByID(id int) (models.User, error)
	GetUsersByIDs(ids []int) (map[int]models.User, error)
	ListUsers() ([]models.User, error)

	CreateSession(userID int, refreshToken, userAgent, ip string, expiresAt time.Time) error
	GetSessionByToken(token string) (models.Session, models.User, error)
	UpdateSession(id int, refreshToken string, expiresAt time.Time) error
	DeleteSessionByID(id int) error
	DeleteSessionByToken(token string) error
	DeleteAllSessionsByUserID(userID int) error
	DeleteExpiredSessions() error
	GetActiveSessionsByUserID(userID int) ([]models.Session, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) CreateUser(name, email, hashedPw, role string) (models.User, error) {
	var u models.User
	err := r.db.QueryRow(`
		INSERT INTO users (name, email, password, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, uuid, name, email, role, created_at
	`, name, email, hashedPw, role).Scan(&u.ID, &u.UUID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	return u, err
}

func (r *userRepository) GetUserByEmail(email string) (models.User, string, error) {
	var u models.User
	var pw string
	err := r.db.QueryRow(`
		SELECT id, uuid, name, email, password, role, created_at
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.UUID, &u.Name, &u.Email, &pw, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, "", errs.NotFound("user not found")
	}
	return u, pw, err
}

func (r *userRepository) GetUserByID(id int) (models.User, error) {
	var u models.User
	err := r.db.QueryRow(`
		SELECT id, uuid, name, email, role, created_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.UUID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, errs.NotFound("user not found")
	}
	return u, err
}

func (r *userRepository) GetUsersByIDs(ids []int) (map[int]models.User, error) {
	users := make(map[int]models.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	rows, err := r.db.Query(`
		SELECT id, uuid, name, email, role, created_at
		FROM users WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.UUID, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		users[u.ID] = u
	}
	return users, rows.Err()
}

func (r *userRepository) ListUsers() ([]models.User, error) {
	rows, err := r.db.Query(`
		SELECT id, uuid, name, email, role, created_at
		FROM users ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.UUID, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *userRepository) CreateSession(userID int, refreshToken, userAgent, ip string, expiresAt time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO sessions (user_id, refresh_token, user_agent, ip, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, refreshToken, userAgent, ip, expiresAt)
	return err
}

func (r *userRepository) GetSessionByToken(token string) (models.Session, models.User, error) {
	var s models.Session
	var u models.User
	err := r.db.QueryRow(`
		SELECT s.id, s.user_id, s.user_agent, s.ip, s.expires_at, s.created_at,
		       u.id, u.uuid, u.name, u.email, u.role, u.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.refresh_token = $1
	`, token).Scan(
		&s.ID, &s.UserID, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt,
		&u.ID, &u.UUID, &u.Name, &u.Email, &u.Role, &u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return s, u, errs.NotFound("session not found")
	}
	return s, u, err
}

func (r *userRepository) UpdateSession(id int, refreshToken string, expiresAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE sessions SET refresh_token = $1, expires_at = $2 WHERE id = $3
	`, refreshToken, expiresAt, id)
	return err
}

func (r *userRepository) DeleteSessionByID(id int) error {
	_, err := r.db.Exec(`DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *userRepository) DeleteSessionByToken(token string) error {
	_, err := r.db.Exec(`DELETE FROM sessions WHERE refresh_token = $1`, token)
	return err
}

func (r *userRepository) DeleteAllSessionsByUserID(userID int) error {
	_, err := r.db.Exec(`DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (r *userRepository) DeleteExpiredSessions() error {
	_, err := r.db.Exec(`DELETE FROM sessions WHERE expires_at < NOW()`)
	return err
}

func (r *userRepository) GetActiveSessionsByUserID(userID int) ([]models.Session, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, user_agent, ip, expires_at, created_at
		FROM sessions
		WHERE user_id = $1 AND expires_at > NOW()
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []models.Session{}
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
