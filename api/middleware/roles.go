package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// RequireUserType lets through only callers whose account type is one of
// allowed. It must run after Auth.
func RequireUserType(logg *logger.Logger, allowed ...enums.UserType) func(http.Handler) http.Handler {
	names := make([]string, len(allowed))
	for i, t := range allowed {
		names[i] = t.String()
	}
	denied := "only " + strings.Join(names, " or ") + " accounts may use this endpoint"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(names, UserTypeFromContext(r.Context())) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, denied))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
