// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Account errors
	CodeAccountEmptyDisplayName Code = "ACCOUNT_EMPTY_DISPLAY_NAME"
	CodeAccountSuspended        Code = "ACCOUNT_SUSPENDED"
	CodeUsernameInvalid         Code = "USERNAME_INVALID"
	CodeUsernameTaken           Code = "USERNAME_TAKEN"
	CodeSessionExpired          Code = "SESSION_EXPIRED"
	CodeTokenInvalid            Code = "TOKEN_INVALID"

	// Resource errors
	CodeResourceEmptyURL      Code = "RESOURCE_EMPTY_URL"
	CodeResourceInvalidURL    Code = "RESOURCE_INVALID_URL"
	CodeResourceEmptyTitle    Code = "RESOURCE_EMPTY_TITLE"
	CodeResourceRemoved       Code = "RESOURCE_REMOVED"
	CodeResourceNotOwner      Code = "RESOURCE_NOT_OWNER"
	CodeResourceInvalidLevel  Code = "RESOURCE_INVALID_LEVEL"
	CodeResourceInvalidStatus Code = "RESOURCE_INVALID_STATUS"

	// Vote errors
	CodeVoteInvalidValue Code = "VOTE_INVALID_VALUE"
	CodeVoteOwnResource  Code = "VOTE_OWN_RESOURCE"

	// Listing errors
	CodeListInvalidFilter  Code = "LIST_INVALID_FILTER"
	CodeListInvalidOrderBy Code = "LIST_INVALID_ORDER_BY"

	// Credits errors
	CodeCreditsUnknownReason Code = "CREDITS_UNKNOWN_REASON"

	// Governance errors
	CodeProposalEmptyTitle       Code = "PROPOSAL_EMPTY_TITLE"
	CodeProposalInvalidStatus    Code = "PROPOSAL_INVALID_STATUS_TRANSITION"
	CodeProposalInvalidWindow    Code = "PROPOSAL_INVALID_WINDOW"
	CodeProposalVotingClosed     Code = "PROPOSAL_VOTING_CLOSED"
	CodeProposalVotingNotOpen    Code = "PROPOSAL_VOTING_NOT_OPEN"
	CodeBallotInvalidChoice      Code = "BALLOT_INVALID_CHOICE"
	CodeBallotInsufficientCredit Code = "BALLOT_INSUFFICIENT_CREDIT"

	// Authorization errors
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
)

// HTTPStatus maps an error code to an HTTP response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound, CodeResourceRemoved:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeUsernameTaken:
		return http.StatusConflict
	case CodeUnauthenticated, CodeSessionExpired, CodeTokenInvalid:
		return http.StatusUnauthorized
	case CodePermissionDenied, CodeResourceNotOwner, CodeAccountSuspended,
		CodeVoteOwnResource, CodeBallotInsufficientCredit:
		return http.StatusForbidden
	case CodeUnknown, CodeCreditsUnknownReason:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// LocalizationKey returns the message catalog key for this code.
func (c Code) LocalizationKey() string {
	return "errors." + string(c)
}
