package criteria

import (
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-criteria/core/schema"
)

var (
	// ErrNoAcceptedFields matches a *NoAcceptedFieldsError.
	ErrNoAcceptedFields = errors.New("no accepted search fields")
	// ErrInvalidSortDirection matches an *InvalidSortDirectionError.
	ErrInvalidSortDirection = errors.New("invalid sort direction")
)

// NoAcceptedFieldsError reports a searchFields override naming no field the
// repository declares searchable.
type NoAcceptedFieldsError struct {
	Fields []string
}

func (e *NoAcceptedFieldsError) Error() string {
	return fmt.Sprintf("fields not accepted for search: %s", strings.Join(e.Fields, ","))
}

func (e *NoAcceptedFieldsError) Is(target error) bool {
	return target == ErrNoAcceptedFields
}

// InvalidSortDirectionError reports a sortedBy entry other than asc or desc.
type InvalidSortDirectionError struct {
	Column    string
	Direction string
}

func (e *InvalidSortDirectionError) Error() string {
	return fmt.Sprintf("invalid sort direction %q for %s: expected asc or desc", e.Direction, e.Column)
}

func (e *InvalidSortDirectionError) Is(target error) bool {
	return target == ErrInvalidSortDirection
}

// IsInvalidCriteria reports whether err was caused by the request
// parameters rather than by the system. A with or withCount naming a
// relation the model does not declare counts as invalid criteria.
func IsInvalidCriteria(err error) bool {
	return errors.Is(err, ErrNoAcceptedFields) ||
		errors.Is(err, ErrInvalidSortDirection) ||
		errors.Is(err, schema.ErrUnknownRelation)
}
