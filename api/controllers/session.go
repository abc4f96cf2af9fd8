package controllers

import (
	"net/http"

	"github.com/wiedu/wiedu-backend/api/middleware"
	"github.com/wiedu/wiedu-backend/api/responses"
	"github.com/wiedu/wiedu-backend/pkg/auth/session"
	pkgerrors "github.com/wiedu/wiedu-backend/pkg/errors"
	"github.com/wiedu/wiedu-backend/pkg/logger"
)

// SessionRevoke signs the caller out by denylisting the bearer token until it
// would have expired anyway.
func SessionRevoke(revoker session.AccessSessionRevoker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accessID, expiresAt, ok := middleware.AccessTokenFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
			return
		}

		if err := revoker.Revoke(r.Context(), accessID, expiresAt); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session"))
			return
		}

		logg.Info(r.Context(), "session revoked")
		responses.WriteNoContent(w)
	}
}
