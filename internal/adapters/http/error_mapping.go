package httpadapter

import (
	"net/http"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

// statusByKind is checked in order; the first kind found in the chain wins.
var statusByKind = []struct {
	kind   error
	status int
}{
	{domain.ErrInvalidInput, http.StatusBadRequest},
	{domain.ErrParse, http.StatusUnprocessableEntity},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrTemporary, http.StatusServiceUnavailable},
}

func mapErrorToHTTPStatus(err error) int {
	for _, m := range statusByKind {
		if domain.IsKind(err, m.kind) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}
