package repository

import (
	"database/sql"
	"fmt"
	"time"

	"kwadrop/db"
	"kwadrop/model"
)

// UserRepository defines the interface for user data operations. Lookups
// return (nil, nil) when no row matches; callers decide what absence means.
type UserRepository interface {
	CreateUser(user *model.User) (int64, error)
	GetUserByID(id int64) (*model.User, error)
	GetUserBySessionID(sessionID string) (*model.User, error)
	UpdateUserName(id int64, name string) error
	UpdateUserAvatar(id int64, avatar string) error
	DeleteUser(id int64) error
	ListAvatars() ([]string, error)
}

// mysqlUserRepository implements UserRepository for MySQL.
type mysqlUserRepository struct {
	DB *sql.DB
}

// NewMySQLUserRepository creates a new instance of mysqlUserRepository.
func NewMySQLUserRepository() UserRepository {
	return &mysqlUserRepository{DB: db.DB}
}

const userColumns = `id, name, avatar, session_id, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	user := &model.User{}
	var avatar sql.NullString
	err := row.Scan(&user.ID, &user.Name, &avatar, &user.SessionID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.Avatar = avatar.String
	return user, nil
}

// CreateUser adds a new user to the database.
func (r *mysqlUserRepository) CreateUser(user *model.User) (int64, error) {
	query := `INSERT INTO users (name, avatar, session_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement for CreateUser: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	var avatar interface{}
	if user.Avatar != "" {
		avatar = user.Avatar
	}
	res, err := stmt.Exec(user.Name, avatar, user.SessionID, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateUser: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for CreateUser: %w", err)
	}
	return id, nil
}

// GetUserByID retrieves a user by its ID.
func (r *mysqlUserRepository) GetUserByID(id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := scanUser(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to scan user by ID %d: %w", id, err)
	}
	return user, nil
}

// GetUserBySessionID retrieves the user bound to a session.
func (r *mysqlUserRepository) GetUserBySessionID(sessionID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE session_id = ?`
	user, err := scanUser(r.DB.QueryRow(query, sessionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to scan user by session: %w", err)
	}
	return user, nil
}

// UpdateUserName changes a user's display name.
func (r *mysqlUserRepository) UpdateUserName(id int64, name string) error {
	query := `UPDATE users SET name = ?, updated_at = ? WHERE id = ?`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for UpdateUserName: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(name, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to execute UpdateUserName for user ID %d: %w", id, err)
	}
	return nil
}

// UpdateUserAvatar sets or clears a user's avatar object name.
func (r *mysqlUserRepository) UpdateUserAvatar(id int64, avatar string) error {
	query := `UPDATE users SET avatar = ?, updated_at = ? WHERE id = ?`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for UpdateUserAvatar: %w", err)
	}
	defer stmt.Close()

	var value interface{}
	if avatar != "" {
		value = avatar
	}
	_, err = stmt.Exec(value, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to execute UpdateUserAvatar for user ID %d: %w", id, err)
	}
	return nil
}

// DeleteUser removes a user.
func (r *mysqlUserRepository) DeleteUser(id int64) error {
	query := `DELETE FROM users WHERE id = ?`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for DeleteUser: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(id)
	if err != nil {
		return fmt.Errorf("failed to execute DeleteUser for user ID %d: %w", id, err)
	}
	return nil
}

// ListAvatars returns every avatar object name currently referenced by a user.
func (r *mysqlUserRepository) ListAvatars() ([]string, error) {
	query := `SELECT avatar FROM users WHERE avatar IS NOT NULL AND avatar != ''`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query avatars: %w", err)
	}
	defer rows.Close()

	avatars := make([]string, 0)
	for rows.Next() {
		var avatar string
		if err := rows.Scan(&avatar); err != nil {
			return nil, fmt.Errorf("failed to scan avatar in ListAvatars: %w", err)
		}
		avatars = append(avatars, avatar)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListAvatars: %w", err)
	}
	return avatars, nil
}
