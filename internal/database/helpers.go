package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonesrussell/curator/internal/domain"
)

// buildUpdateQuery builds a dynamic UPDATE query with the given fields.
// Returns the query string and args slice, or error if no fields to update.
// The id argument is matched against idColumn, which also receives updated_at.
func buildUpdateQuery(table, idColumn string, id any, updates map[string]any, returningFields string) (string, []any, error) {
	if len(updates) == 0 {
		return "", nil, domain.ErrNoFieldsToUpdate
	}

	updateFields := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+2)
	argPos := 1

	for field, value := range updates {
		updateFields = append(updateFields, fmt.Sprintf("%s = $%d", field, argPos))
		args = append(args, value)
		argPos++
	}

	updateFields = append(updateFields, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now())
	argPos++

	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE %s
		SET %s
		WHERE %s = $%d
		RETURNING %s
	`, table, strings.Join(updateFields, ", "), idColumn, argPos, returningFields)

	return query, args, nil
}
