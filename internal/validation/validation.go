package validation

import (
	"fmt"

	"github.com/google/uuid"

	apperrors "github.com/ndewijer/portfolio-dashboard/internal/errors"
)

// ValidateUUID checks if a string is a valid UUID
func ValidateUUID(id string) error {
	if id == "" {
		return apperrors.ErrEmptyID
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidUUID, id)
	}
	return nil
}
