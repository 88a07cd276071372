// Package filter parses AIP-160 filter expressions for proposal listings.
package filter

import (
	"fmt"

	"go.einride.tech/aip/filtering"

	"github.com/studycommons/studycommons/internal/platform/filtersql"
)

// SQLCondition is a translated WHERE clause fragment.
type SQLCondition = filtersql.Condition

// ProposalDeclarations returns the field declarations for proposal filtering.
func ProposalDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("status", filtering.TypeString),
		filtering.DeclareIdent("outcome", filtering.TypeString),
		filtering.DeclareIdent("author_user_id", filtering.TypeString),
		filtering.DeclareIdent("created_at", filtering.TypeTimestamp),
	)
}

// columnMapping maps filter field names to proposal table columns.
var columnMapping = map[string]string{
	"status":         "status",
	"outcome":        "outcome",
	"author_user_id": "author_user_id",
	"created_at":     "created_at",
}

// ParseProposalFilter parses an AIP-160 filter expression and returns a SQL
// condition. Returns an empty condition for an empty filter string.
func ParseProposalFilter(filterStr string) (SQLCondition, error) {
	decls, err := ProposalDeclarations()
	if err != nil {
		return SQLCondition{}, fmt.Errorf("create declarations: %w", err)
	}
	return filtersql.Parse(filterStr, decls, columnMapping)
}
