package controllers

import (
	"net/http"

	"github.com/wiedu/wiedu-backend/api/responses"
	"github.com/wiedu/wiedu-backend/api/validators"
	"github.com/wiedu/wiedu-backend/internal/lifecycle"
	"github.com/wiedu/wiedu-backend/internal/memberships"
	"github.com/wiedu/wiedu-backend/pkg/logger"
)

// StudyMembers returns the active roster, leader first.
func StudyMembers(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studyID, err := validators.ParseUUIDParam(r, "studyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		members, err := svc.ListMembers(r.Context(), studyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"items": members})
	}
}

func StudyMembershipCheck(svc memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		studyID, err := validators.ParseUUIDParam(r, "studyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		check, err := svc.CheckMembership(r.Context(), studyID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, check)
	}
}

func StudyWithdraw(coord lifecycle.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		studyID, err := validators.ParseUUIDParam(r, "studyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		change, err := coord.WithdrawSelf(r.Context(), studyID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, change)
	}
}

// StudyKick removes another member on the leader's behalf.
func StudyKick(coord lifecycle.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leaderID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		studyID, err := validators.ParseUUIDParam(r, "studyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		targetID, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		change, err := coord.Kick(r.Context(), studyID, leaderID, targetID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, change)
	}
}

// StudyPromote hands leadership to another active member.
func StudyPromote(coord lifecycle.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leaderID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		studyID, err := validators.ParseUUIDParam(r, "studyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		newLeaderID, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delegation, err := coord.Delegate(r.Context(), studyID, leaderID, newLeaderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, delegation)
	}
}
