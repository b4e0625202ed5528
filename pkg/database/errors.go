package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally restricted to a constraint whose name contains name.
func IsUniqueViolation(err error, name string) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok || pqErr.Code != "23505" {
		return false
	}
	if name == "" {
		return true
	}
	return strings.Contains(pqErr.Constraint, name)
}

// IsSerializationFailure reports whether err is a transient transaction
// conflict (serialization failure or deadlock) that can be retried.
func IsSerializationFailure(err error) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return false
	}
	// 40001 serialization_failure, 40P01 deadlock_detected
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.Validation(map[string]string{
			"quantity": "stock quantity cannot go negative",
		})

	case strings.Contains(constraint, "kind_valid"):
		return errors.Validation(map[string]string{
			"kind": "must be one of: import, export, transfer",
		})

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: pending, approved, rejected, completed",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "stock_notes") && strings.Contains(constraint, "code"):
		return "a stock note with this code already exists"
	case strings.Contains(constraint, "requests") && strings.Contains(constraint, "code"):
		return "a replenishment request with this code already exists"
	case strings.Contains(constraint, "warehouse_batches"):
		return "a batch with this lot and expiry already exists in this warehouse"
	case strings.Contains(constraint, "products") && strings.Contains(constraint, "code"):
		return "a product with this code already exists"
	default:
		return "a record with these values already exists"
	}
}
