package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"bountyline/internal/domain"
	"bountyline/internal/engine"
	"bountyline/internal/engine/identity"
	"bountyline/internal/ledger"
	"bountyline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_state"`
	Message string         `json:"message" example:"issue 3 is completed"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Bountyline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Bountyline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerIdentities(group, cfg.Engine)
	registerIssues(group, cfg.Engine)
	registerIssueActions(group, cfg.Engine)
	registerCustody(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerMe(group)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine sentinels to the wire envelope.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, identity.ErrNotVerified):
		return newAPIError(http.StatusForbidden, "not_verified", err.Error(), nil)
	case errors.Is(err, identity.ErrAlreadyRegistered):
		return newAPIError(http.StatusConflict, "already_registered", err.Error(), nil)
	case errors.Is(err, identity.ErrTokenInUse):
		return newAPIError(http.StatusConflict, "token_in_use", err.Error(), nil)
	case errors.Is(err, engine.ErrUnauthorized):
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, engine.ErrAlreadyAssigned):
		return newAPIError(http.StatusConflict, "already_assigned", err.Error(), nil)
	case errors.Is(err, engine.ErrAlreadyAttempted):
		return newAPIError(http.StatusConflict, "already_attempted", err.Error(), nil)
	case errors.Is(err, engine.ErrDeadlineNotReached):
		return newAPIError(http.StatusConflict, "deadline_not_reached", err.Error(), nil)
	case errors.Is(err, engine.ErrInvalidState):
		return newAPIError(http.StatusConflict, "invalid_state", err.Error(), nil)
	case errors.Is(err, engine.ErrInvalidAmount), errors.Is(err, ledger.ErrInsufficientPayment), errors.Is(err, ledger.ErrZeroAmount):
		return newAPIError(http.StatusUnprocessableEntity, "invalid_amount", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "invalid_amount"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Bountyline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerIdentities(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-identity",
		Method:        http.MethodPost,
		Path:          "/identities",
		Summary:       "Register caller with a uniqueness token",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body RegisterIdentityRequest `json:"body"`
	}) (*struct {
		Body VerificationResponse `json:"body"`
	}, error) {
		account, authErr := accountFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if strings.TrimSpace(input.Body.Token) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "token is required", nil)
		}
		if err := e.RegisterIdentity(ctx, account, input.Body.Token); err != nil {
			return nil, handleError(err)
		}
		v, err := e.Identity.Get(ctx, account)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VerificationResponse `json:"body"`
		}{Body: VerificationResponse{Account: v.Account, Verified: true, CreatedAt: v.CreatedAt}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-identity",
		Method:      http.MethodGet,
		Path:        "/identities/{account}",
		Summary:     "Verification status for an account",
	}, func(ctx context.Context, input *struct {
		Account string `path:"account"`
	}) (*struct {
		Body VerificationResponse `json:"body"`
	}, error) {
		ok, err := e.Identity.IsVerified(ctx, input.Account)
		if err != nil {
			return nil, handleError(err)
		}
		resp := VerificationResponse{Account: input.Account, Verified: ok}
		if ok {
			if v, err := e.Identity.Get(ctx, input.Account); err == nil {
				resp.CreatedAt = v.CreatedAt
			}
		}
		return &struct {
			Body VerificationResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerIssues(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-issue",
		Method:        http.MethodPost,
		Path:          "/issues",
		Summary:       "Escrow a new issue bounty",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateIssueRequest `json:"body"`
	}) (*struct {
		Body IssueResponse `json:"body"`
	}, error) {
		account, authErr := accountFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if strings.TrimSpace(input.Body.Reference) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "reference is required", nil)
		}
		difficulty, err := domain.ParseDifficulty(input.Body.Difficulty)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		issue, err := e.CreateIssue(ctx, engine.CreateIssueOptions{
			Creator:          account,
			Reference:        input.Body.Reference,
			Difficulty:       difficulty,
			Payment:          input.Body.Payment,
			MinCompletionPct: input.Body.MinCompletionPct,
			EasyDays:         input.Body.EasyDays,
			MediumDays:       input.Body.MediumDays,
			HardDays:         input.Body.HardDays,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IssueResponse `json:"body"`
		}{Body: issueResponse(issue)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-issues",
		Method:      http.MethodGet,
		Path:        "/issues",
		Summary:     "List issues",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Creator   string `query:"creator"`
		Assignee  string `query:"assignee"`
		Open      string `query:"open" enum:",true,false"`
		Completed string `query:"completed" enum:",true,false"`
		Limit     int    `query:"limit" default:"50"`
	}) (*struct {
		Body []IssueResponse `json:"body"`
	}, error) {
		filters := repo.IssueFilters{
			Creator:    input.Creator,
			AssignedTo: input.Assignee,
			Limit:      normalizeLimit(input.Limit),
		}
		if input.Open != "" {
			v := input.Open == "true"
			filters.Open = &v
		}
		if input.Completed != "" {
			v := input.Completed == "true"
			filters.Completed = &v
		}
		items, err := e.Repo.ListIssues(ctx, filters)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []IssueResponse `json:"body"`
		}{Body: mapIssues(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-issue",
		Method:      http.MethodGet,
		Path:        "/issues/{id}",
		Summary:     "Get issue",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body IssueResponse `json:"body"`
	}, error) {
		issue, err := e.Repo.GetIssue(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IssueResponse `json:"body"`
		}{Body: issueResponse(issue)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-issue-contributors",
		Method:      http.MethodGet,
		Path:        "/issues/{id}/contributors",
		Summary:     "Assignment history for an issue",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body []ContributorResponse `json:"body"`
	}, error) {
		if _, err := e.Repo.GetIssue(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListContributors(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]ContributorResponse, 0, len(items))
		for _, c := range items {
			res = append(res, contributorResponse(c))
		}
		return &struct {
			Body []ContributorResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-issue-journal",
		Method:      http.MethodGet,
		Path:        "/issues/{id}/journal",
		Summary:     "Value movements for an issue",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body []TransferResponse `json:"body"`
	}, error) {
		if _, err := e.Repo.GetIssue(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Ledger.IssueJournal(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]TransferResponse, 0, len(items))
		for _, t := range items {
			res = append(res, transferResponse(t))
		}
		return &struct {
			Body []TransferResponse `json:"body"`
		}{Body: res}, nil
	})
}

// issueAction registers a POST /issues/{id}/<name> endpoint whose handler
// mutates the issue on behalf of the authenticated account.
func issueAction[B any](api huma.API, opID, name, summary string, errs []int,
	act func(ctx context.Context, id int64, account string, body B) (domain.Issue, error)) {
	huma.Register(api, huma.Operation{
		OperationID: opID,
		Method:      http.MethodPost,
		Path:        "/issues/{id}/" + name,
		Summary:     summary,
		Errors:      errs,
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body B     `json:"body"`
	}) (*struct {
		Body IssueResponse `json:"body"`
	}, error) {
		account, authErr := accountFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		issue, err := act(ctx, input.ID, account, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IssueResponse `json:"body"`
		}{Body: issueResponse(issue)}, nil
	})
}

func registerIssueActions(api huma.API, e engine.Engine) {
	conflictErrs := []int{
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusConflict,
		http.StatusUnprocessableEntity,
	}
	issueAction(api, "take-issue", "take", "Take an open issue against a stake", conflictErrs,
		func(ctx context.Context, id int64, account string, body TakeIssueRequest) (domain.Issue, error) {
			return e.TakeIssue(ctx, id, account, body.Stake)
		})
	issueAction(api, "submit-claim", "claim", "Claim a completion percentage", conflictErrs,
		func(ctx context.Context, id int64, account string, body ClaimRequest) (domain.Issue, error) {
			return e.SubmitPercentageClaim(ctx, id, account, body.Percentage)
		})
	issueAction(api, "respond-claim", "respond", "Accept or reject the pending claim", conflictErrs,
		func(ctx context.Context, id int64, account string, body RespondRequest) (domain.Issue, error) {
			return e.RespondToClaim(ctx, id, account, body.Accept)
		})
	issueAction(api, "complete-issue", "complete", "Complete the issue and pay the contributor", conflictErrs,
		func(ctx context.Context, id int64, account string, _ struct{}) (domain.Issue, error) {
			return e.CompleteIssue(ctx, id, account)
		})
	issueAction(api, "expire-issue", "expire", "Reclaim an expired assignment", conflictErrs,
		func(ctx context.Context, id int64, account string, _ struct{}) (domain.Issue, error) {
			return e.ClaimExpiredIssue(ctx, id, account)
		})
	issueAction(api, "topup-issue", "topup", "Increase the bounty", conflictErrs,
		func(ctx context.Context, id int64, account string, body TopUpRequest) (domain.Issue, error) {
			return e.IncreaseBounty(ctx, id, account, body.Amount)
		})
	issueAction(api, "extend-deadline", "extend", "Extend the assignment deadline", conflictErrs,
		func(ctx context.Context, id int64, account string, body ExtendDeadlineRequest) (domain.Issue, error) {
			return e.IncreaseDeadline(ctx, id, account, body.Days)
		})
	issueAction(api, "raise-difficulty", "difficulty", "Raise the difficulty", conflictErrs,
		func(ctx context.Context, id int64, account string, body RaiseDifficultyRequest) (domain.Issue, error) {
			d, err := domain.ParseDifficulty(body.Difficulty)
			if err != nil {
				return domain.Issue{}, fmt.Errorf("%s: %w", err, engine.ErrInvalidAmount)
			}
			return e.IncreaseDifficulty(ctx, id, account, d)
		})
	issueAction(api, "grade-issue", "grade", "Record an oracle confidence score", conflictErrs,
		func(ctx context.Context, id int64, account string, body GradeRequest) (domain.Issue, error) {
			return e.GradeByAI(ctx, id, account, body.Score)
		})
}

func registerCustody(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-custody",
		Method:      http.MethodGet,
		Path:        "/custody",
		Summary:     "Total value currently held in escrow",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body CustodyResponse `json:"body"`
	}, error) {
		total, err := e.Ledger.TotalCustody(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CustodyResponse `json:"body"`
		}{Body: CustodyResponse{Total: total}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type    string `query:"type"`
		IssueID int64  `query:"issue_id"`
		Limit   int    `query:"limit" default:"50"`
		Cursor  string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		if input.Cursor != "" {
			cursorID, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			items, err := e.Repo.EventsAfter(ctx, limit+1, cursorID, input.IssueID, input.Type)
			if err != nil {
				return nil, handleError(err)
			}
			resp := paginatedEvents{Items: []EventResponse{}}
			if len(items) > limit {
				resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
				items = items[:limit]
			}
			for _, evt := range items {
				resp.Items = append(resp.Items, eventResponse(evt))
			}
			return &struct {
				Body paginatedEvents `json:"body"`
			}{Body: resp}, nil
		}
		items, err := e.Repo.LatestEvents(ctx, limit, input.IssueID, input.Type)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		p, ok := principalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{Account: p.Account, Source: p.Source}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if !authCfg.AllowDevLogin {
			return nil, newAPIError(http.StatusNotFound, "not_found", "dev login disabled", nil)
		}
		account := strings.TrimSpace(input.Body.Account)
		if account == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "account is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, account)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func signDevToken(secret, account string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   account,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(12 * time.Hour)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}
