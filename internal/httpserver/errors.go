package httpserver

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"securechat/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrNotGroupMember, http.StatusForbidden, "not_group_member"},
	{domain.ErrParticipantNotFound, http.StatusNotFound, "participant_not_found"},
	{domain.ErrTargetNotFound, http.StatusNotFound, "target_not_found"},
	{domain.ErrEdgeNotFound, http.StatusNotFound, "edge_not_found"},
	{domain.ErrGroupNotFound, http.StatusNotFound, "group_not_found"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrDuplicateIdentity, http.StatusConflict, "duplicate_identity"},
	{domain.ErrDuplicateEdge, http.StatusConflict, "duplicate_edge"},
	{domain.ErrDuplicateName, http.StatusConflict, "duplicate_name"},
}

// writeError maps domain errors to a stable status and code. Anything else
// is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			writeJSON(w, e.status, errorBody{Error: err.Error(), Code: e.code})
			return
		}
	}
	zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error", Code: "internal"})
}
