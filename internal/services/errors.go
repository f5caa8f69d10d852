package services

import (
	"errors"

	"collab-service/internal/apperr"
	"collab-service/internal/repositories"
)

// repoError maps repository sentinels onto apperr kinds. Anything
// unrecognised is a transport failure described by op.
func repoError(err error, op string) error {
	switch {
	case errors.Is(err, repositories.ErrUserNotFound):
		return apperr.NotFound("user not found")
	case errors.Is(err, repositories.ErrMessageNotFound):
		return apperr.NotFound("message not found")
	case errors.Is(err, repositories.ErrGroupNotFound):
		return apperr.NotFound("group not found")
	case errors.Is(err, repositories.ErrMessageDeleted):
		return apperr.Validation("cannot edit a deleted message")
	default:
		return apperr.Transport(op, err)
	}
}
