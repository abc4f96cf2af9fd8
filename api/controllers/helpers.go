package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/wiedu/wiedu-backend/api/middleware"
	"github.com/wiedu/wiedu-backend/api/validators"
)

func actorID(r *http.Request) (uuid.UUID, error) {
	return validators.ParseUserID(middleware.UserIDFromContext(r.Context()))
}
