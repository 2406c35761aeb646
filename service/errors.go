package service

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrValidation marks a request rejected before any state was written.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a lookup miss for a session, chunk, or artifact.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an attempt to create something that already exists
	// where the system enforces at-most-one.
	ErrConflict = errors.New("conflict")
)

func asNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Join(ErrNotFound, err)
	}
	return err
}
