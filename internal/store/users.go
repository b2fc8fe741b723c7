package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/treasurehunt/backend/internal/apperr"
	"github.com/treasurehunt/backend/internal/models"
)

const userColumns = `id, name, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user      models.User
		createdAt int64
	)
	if err := row.Scan(&user.ID, &user.Name, &createdAt); err != nil {
		return nil, err
	}
	user.CreatedAt = fromMillis(createdAt)
	return &user, nil
}

func (q *Queries) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(q.queryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user %s not found", id)
	}
	return user, internal(err, "get user")
}

// LockUser reads a user and holds its row until the transaction ends.
func (q *Queries) LockUser(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(q.queryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1`+q.dialect.lockClause(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user %s not found", id)
	}
	return user, internal(err, "lock user")
}

func (q *Queries) InsertUser(ctx context.Context, user *models.User) error {
	_, err := q.exec(ctx, `
		INSERT INTO users (id, name, created_at)
		VALUES ($1, $2, $3)`,
		user.ID, user.Name, toMillis(user.CreatedAt))
	if isUniqueViolation(err) {
		return apperr.Conflict("user %s already exists", user.ID)
	}
	return internal(err, "insert user")
}

func (q *Queries) UpdateUserName(ctx context.Context, id, name string) error {
	result, err := q.exec(ctx, `UPDATE users SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return internal(err, "rename user")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return internal(err, "rename user")
	}
	if n == 0 {
		return apperr.NotFound("user %s not found", id)
	}
	return nil
}

// DeleteUser removes the user. Accounts go with it through the foreign key
// cascade; transactions are left untouched.
func (q *Queries) DeleteUser(ctx context.Context, id string) error {
	result, err := q.exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return internal(err, "delete user")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return internal(err, "delete user")
	}
	if n == 0 {
		return apperr.NotFound("user %s not found", id)
	}
	return nil
}

// SearchUsers matches term case-insensitively against id and name. An empty
// term matches every user.
func (q *Queries) SearchUsers(ctx context.Context, term string) ([]models.User, error) {
	rows, err := q.query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(id) LIKE $1 ESCAPE '\' OR LOWER(name) LIKE $1 ESCAPE '\'
		ORDER BY name, id`, containsPattern(term))
	if err != nil {
		return nil, internal(err, "search users")
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, internal(err, "scan user")
		}
		users = append(users, *user)
	}
	return users, internal(rows.Err(), "search users")
}
