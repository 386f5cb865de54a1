package database

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/flowkit/errors"
)

// IsBusyError reports SQLite lock contention that may clear on retry.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, p := range []string{"database is locked", "database table is locked", "sqlite_busy"} {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// IsNotFoundError checks for a GORM record-not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// FromDatabase converts a database error to an AppError for resource.
func FromDatabase(err error, resource, id string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(resource, id)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Conflict(fmt.Sprintf("A %s with these details already exists.", resource)).WithCause(err)
	}
	if IsBusyError(err) {
		return apperrors.New(apperrors.ErrCodeDatabaseError, "Database is busy. Please try again.", http.StatusServiceUnavailable).
			WithCause(err)
	}
	return apperrors.DatabaseError(err)
}
