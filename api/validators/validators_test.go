package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/wiedu/wiedu-backend/pkg/errors"
)

type sampleBody struct {
	Title      string `json:"title" validate:"required,max=10"`
	MaxMembers int    `json:"max_members" validate:"gte=2,lte=100"`
}

func TestDecodeJSONBodyValidationDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"","max_members":1}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", pkgerrors.As(err).Details())
	}
	if details["title"] != "is required" {
		t.Fatalf("unexpected title detail %q", details["title"])
	}
	if !strings.Contains(details["max_members"], "greater than or equal to 2") {
		t.Fatalf("unexpected max_members detail %q", details["max_members"])
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"go","max_members":4,"leader_id":"x"}`))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyRequiresBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	var body sampleBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeOptionalJSONBodyAcceptsEmpty(t *testing.T) {
	type reason struct {
		Reason *string `json:"reason" validate:"omitempty,max=500"`
	}
	for _, raw := range []string{"", "{}"} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		var body reason
		if err := DecodeOptionalJSONBody(req, &body); err != nil {
			t.Fatalf("body %q: unexpected error %v", raw, err)
		}
		if body.Reason != nil {
			t.Fatalf("body %q: expected nil reason", raw)
		}
	}
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5&cursor=abc&recruiting=true&q=%20go%20", nil)

	params, err := ParsePagination(req)
	if err != nil {
		t.Fatalf("parse pagination: %v", err)
	}
	if params.Limit != 5 || params.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", params)
	}

	recruiting, err := ParseQueryBool(req, "recruiting")
	if err != nil || recruiting == nil || !*recruiting {
		t.Fatalf("expected recruiting=true, got %v %v", recruiting, err)
	}

	q, err := ParseQueryString(req, "q", 100)
	if err != nil || q == nil || *q != "go" {
		t.Fatalf("expected trimmed q, got %v %v", q, err)
	}

	bad := httptest.NewRequest(http.MethodGet, "/?limit=1000&recruiting=maybe", nil)
	if _, err := ParsePagination(bad); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected out of range limit to fail, got %v", err)
	}
	if _, err := ParseQueryBool(bad, "recruiting"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected bad bool to fail, got %v", err)
	}
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("studyId", id.String())
	rctx.URLParams.Add("requestId", "not-a-uuid")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	got, err := ParseUUIDParam(req, "studyId")
	if err != nil || got != id {
		t.Fatalf("expected %s got %s (%v)", id, got, err)
	}
	if _, err := ParseUUIDParam(req, "requestId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := ParseUserID(""); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestSanitizePolicies(t *testing.T) {
	if got := SanitizeString("  <b>Go</b> study <script>alert(1)</script> "); got != "Go study" {
		t.Fatalf("strict policy: got %q", got)
	}
	if got := SanitizeRichText(`<p>Weekly <em>Go</em></p><script>alert(1)</script>`); got != "<p>Weekly <em>Go</em></p>" {
		t.Fatalf("ugc policy: got %q", got)
	}
	if SanitizeOptional(nil) != nil {
		t.Fatal("expected nil passthrough")
	}
}
