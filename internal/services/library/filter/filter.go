// Package filter parses AIP-160 filter expressions for resource listings.
package filter

import (
	"fmt"

	"go.einride.tech/aip/filtering"

	"github.com/studycommons/studycommons/internal/platform/filtersql"
)

// SQLCondition is a translated WHERE clause fragment.
type SQLCondition = filtersql.Condition

// ResourceDeclarations returns the field declarations for resource filtering.
func ResourceDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("subject", filtering.TypeString),
		filtering.DeclareIdent("level", filtering.TypeString),
		filtering.DeclareIdent("status", filtering.TypeString),
		filtering.DeclareIdent("owner_user_id", filtering.TypeString),
		filtering.DeclareIdent("score", filtering.TypeInt),
		filtering.DeclareIdent("created_at", filtering.TypeTimestamp),
	)
}

// columnMapping maps filter field names to resource table columns.
var columnMapping = map[string]string{
	"subject":       "subject",
	"level":         "level",
	"status":        "status",
	"owner_user_id": "owner_user_id",
	"score":         "score",
	"created_at":    "created_at",
}

// ParseResourceFilter parses an AIP-160 filter expression and returns a SQL
// condition. Returns an empty condition for an empty filter string.
func ParseResourceFilter(filterStr string) (SQLCondition, error) {
	decls, err := ResourceDeclarations()
	if err != nil {
		return SQLCondition{}, fmt.Errorf("create declarations: %w", err)
	}
	return filtersql.Parse(filterStr, decls, columnMapping)
}
