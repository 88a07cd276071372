// Package httpapi centralizes JSON request decoding, response encoding, and
// localized error rendering for the HTTP API surface.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	platformi18n "github.com/studycommons/studycommons/internal/platform/i18n"
	_ "github.com/studycommons/studycommons/internal/platform/i18n/catalog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// LangParam is the query parameter used to select a language.
	LangParam = "lang"
	// LangCookieName stores the user's language preference.
	LangCookieName = "sc_lang"
	// maxBodyBytes caps JSON request bodies.
	maxBodyBytes = 1 << 20
)

// ErrorBody is the JSON error envelope returned by every API failure.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine code and the localized user message.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// ResolveTag determines the best language tag for the request.
func ResolveTag(r *http.Request) language.Tag {
	if r == nil {
		return platformi18n.DefaultTag()
	}
	if langValue := strings.TrimSpace(r.URL.Query().Get(LangParam)); langValue != "" {
		if tag, ok := platformi18n.ParseTag(langValue); ok {
			return tag
		}
	}
	if cookie, err := r.Cookie(LangCookieName); err == nil {
		if tag, ok := platformi18n.ParseTag(cookie.Value); ok {
			return tag
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil {
			return platformi18n.MatchTags(tags)
		}
	}
	return platformi18n.DefaultTag()
}

// Decode reads a JSON request body into target.
func Decode(r *http.Request, target any) error {
	if r == nil || r.Body == nil {
		return fmt.Errorf("request body is required")
	}
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	if w == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as a localized JSON error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	if w == nil {
		return
	}
	statusCode := apperrors.HTTPStatus(err)
	detail := ErrorDetail{
		Code:    string(apperrors.CodeOf(err)),
		Message: PublicMessage(r, err),
	}
	if domainErr, ok := apperrors.AsError(err); ok && len(domainErr.Metadata) > 0 {
		detail.Meta = domainErr.Metadata
	}
	WriteJSON(w, statusCode, ErrorBody{Error: detail})
}

// WriteBadRequest renders a generic invalid-argument failure for malformed input.
func WriteBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteJSON(w, http.StatusBadRequest, ErrorBody{Error: ErrorDetail{
		Code:    string(apperrors.CodeUnknown),
		Message: message,
	}})
}

// PublicMessage resolves a user-safe localized error message.
func PublicMessage(r *http.Request, err error) string {
	if err == nil {
		return ""
	}
	printer := message.NewPrinter(ResolveTag(r))
	code := apperrors.CodeOf(err)
	key := code.LocalizationKey()
	if localized := strings.TrimSpace(printer.Sprintf(key)); localized != "" && localized != key {
		return localized
	}
	statusCode := apperrors.HTTPStatus(err)
	if text := strings.TrimSpace(http.StatusText(statusCode)); text != "" {
		return text
	}
	return http.StatusText(http.StatusInternalServerError)
}

// IsDomainError reports whether err carries a domain code.
func IsDomainError(err error) bool {
	var domainErr *apperrors.Error
	return errors.As(err, &domainErr)
}
