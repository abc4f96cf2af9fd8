package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wiedu/wiedu-backend/api/responses"
	"github.com/wiedu/wiedu-backend/api/validators"
	"github.com/wiedu/wiedu-backend/internal/studies"
	"github.com/wiedu/wiedu-backend/pkg/enums"
	pkgerrors "github.com/wiedu/wiedu-backend/pkg/errors"
	"github.com/wiedu/wiedu-backend/pkg/logger"
)

const maxKeywordLen = 100

type createStudyRequest struct {
	Title            string           `json:"title" validate:"required"`
	Description      string           `json:"description"`
	Category         string           `json:"category" validate:"required"`
	CoverImageURL    *string          `json:"cover_image_url" validate:"omitempty,url,max=2048"`
	MaxMembers       int              `json:"max_members" validate:"required"`
	ParticipationFee *decimal.Decimal `json:"participation_fee"`
	Deposit          *decimal.Decimal `json:"deposit"`
	StartDate        *time.Time       `json:"start_date"`
	EndDate          *time.Time       `json:"end_date"`
}

func (p createStudyRequest) toInput() studies.CreateStudyInput {
	return studies.CreateStudyInput{
		Title:            validators.SanitizeString(p.Title),
		Description:      validators.SanitizeRichText(p.Description),
		Category:         validators.SanitizeString(p.Category),
		CoverImageURL:    p.CoverImageURL,
		MaxMembers:       p.MaxMembers,
		ParticipationFee: p.ParticipationFee,
		Deposit:          p.Deposit,
		StartDate:        p.StartDate,
		EndDate:          p.EndDate,
	}
}

type updateStudyRequest struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	Category      *string `json:"category"`
	CoverImageURL *string `json:"cover_image_url" validate:"omitempty,url,max=2048"`
}

func (p updateStudyRequest) toInput() studies.UpdateStudyInput {
	input := studies.UpdateStudyInput{
		Title:         validators.SanitizeOptional(p.Title),
		Category:      validators.SanitizeOptional(p.Category),
		CoverImageURL: p.CoverImageURL,
	}
	if p.Description != nil {
		desc := validators.SanitizeRichText(*p.Description)
		input.Description = &desc
	}
	return input
}

// StudyCreate opens a new study led by the caller.
func StudyCreate(svc studies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createStudyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		study, err := svc.Create(r.Context(), userID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, study)
	}
}

// StudyList returns a cursor page of studies matching the query filters.
func StudyList(svc studies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseStudyFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func parseStudyFilter(r *http.Request) (studies.ListFilter, error) {
	var filter studies.ListFilter

	if raw, err := validators.ParseQueryString(r, "status", 32); err != nil {
		return filter, err
	} else if raw != nil {
		status, err := enums.ParseStudyStatus(*raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"})
		}
		filter.Status = &status
	}

	category, err := validators.ParseQueryString(r, "category", 50)
	if err != nil {
		return filter, err
	}
	if category != nil {
		filter.Category = *category
	}

	keyword, err := validators.ParseQueryString(r, "q", maxKeywordLen)
	if err != nil {
		return filter, err
	}
	if keyword != nil {
		filter.Keyword = *keyword
	}

	recruiting, err := validators.ParseQueryBool(r, "recruiting")
	if err != nil {
		return filter, err
	}
	filter.RecruitingOnly = recruiting != nil && *recruiting
	return filter, nil
}

// StudyListMine lists the studies the caller actively belongs to.
func StudyListMine(svc studies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListMine(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

func StudyGet(svc studies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studyID, err := validators.ParseUUIDParam(r, "studyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		study, err := svc.Get(r.Context(), studyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, study)
	}
}

// StudyUpdate applies a leader's partial edit.
func StudyUpdate(svc studies.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload updateStudyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		study, err := svc.Update(r.Context(), studyID, userID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, study)
	}
}

func StudyClose(svc studies.Service, logg *logger.Logger) http.HandlerFunc {
	return studyTransition(logg, func(ctx context.Context, studyID, actorID uuid.UUID) (*studies.StudyDTO, error) {
		return svc.Close(ctx, studyID, actorID)
	})
}

func StudyComplete(svc studies.Service, logg *logger.Logger) http.HandlerFunc {
	return studyTransition(logg, func(ctx context.Context, studyID, actorID uuid.UUID) (*studies.StudyDTO, error) {
		return svc.Complete(ctx, studyID, actorID)
	})
}

type transitionFunc func(ctx context.Context, studyID, actorID uuid.UUID) (*studies.StudyDTO, error)

func studyTransition(logg *logger.Logger, transition transitionFunc) http.HandlerFunc {
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

		study, err := transition(r.Context(), studyID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, study)
	}
}
