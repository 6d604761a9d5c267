package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"novadream/internal/directive"
	"novadream/internal/engine"
	"novadream/internal/reconcile"
	"novadream/internal/repo"
	"novadream/internal/roadmap"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"mission not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Nova Dream API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
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
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Nova Dream API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerChat(group, cfg.Engine)
	registerDirectives(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerMissions(group, cfg.Engine)
	registerRoadmap(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerSummary(group, cfg.Engine)
	registerTransactions(group, cfg.Engine)
	registerNotes(group, cfg.Engine)
	registerDocuments(group, cfg.Engine)
	registerBlobDownload(router, basePath, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func bodyBytes(ctx context.Context) []byte {
	b, _ := ctx.Value(bodyBytesKey{}).([]byte)
	return b
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

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, directive.ErrUnauthenticated):
		return newAPIError(http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	case errors.Is(err, directive.ErrAlreadyRunning):
		return newAPIError(http.StatusConflict, "action_running", err.Error(), nil)
	case errors.Is(err, directive.ErrAlreadyDone):
		return newAPIError(http.StatusConflict, "action_done", err.Error(), nil)
	case errors.Is(err, directive.ErrDismissed):
		return newAPIError(http.StatusConflict, "action_dismissed", err.Error(), nil)
	case errors.Is(err, directive.ErrUnimplementedAction):
		return newAPIError(http.StatusNotImplemented, "not_implemented", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "transition"):
		return newAPIError(http.StatusUnprocessableEntity, "invalid_transition", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
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
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Nova Dream API Docs</title>
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

func registerChat(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "chat",
		Method:        http.MethodPost,
		Path:          "/chat",
		Summary:       "Send a chat message",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body ChatRequest `json:"body"`
	}) (*struct {
		Body ChatResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Message == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "message is required", nil)
		}
		res, err := e.Chat(ctx, ownerID, input.Body.Message)
		if err != nil {
			if strings.Contains(err.Error(), "assistant:") {
				return nil, newAPIError(http.StatusBadGateway, "assistant_unavailable", err.Error(), nil)
			}
			return nil, handleError(err)
		}
		return &struct {
			Body ChatResponse `json:"body"`
		}{Body: ChatResponse{
			UserMessage:      chatMessageResponse(res.UserMessage),
			AssistantMessage: chatMessageResponse(res.AssistantMessage),
			DisplayText:      res.DisplayText,
			Cards:            mapCards(res.Cards),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "chat-history",
		Method:      http.MethodGet,
		Path:        "/chat/history",
		Summary:     "List recent chat messages",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body []ChatMessageResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		msgs, err := e.Repo.ListChatMessages(ctx, ownerID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]ChatMessageResponse, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, chatMessageResponse(m))
		}
		return &struct {
			Body []ChatMessageResponse `json:"body"`
		}{Body: out}, nil
	})
}

func registerDirectives(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "confirm-directive",
		Method:      http.MethodPost,
		Path:        "/directives/confirm",
		Summary:     "Confirm and execute an action card",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusNotImplemented,
		},
	}, func(ctx context.Context, input *struct {
		Body DirectiveRefRequest `json:"body"`
	}) (*struct {
		Body ActionCardResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.MessageID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "message_id is required", nil)
		}
		ref := directive.Ref{MessageID: input.Body.MessageID, Index: input.Body.Index}
		if err := e.ConfirmDirective(ctx, ownerID, ref); err != nil {
			return nil, handleError(err)
		}
		card, err := cardAt(ctx, e, ownerID, ref)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActionCardResponse `json:"body"`
		}{Body: card}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dismiss-directive",
		Method:      http.MethodPost,
		Path:        "/directives/dismiss",
		Summary:     "Dismiss a pending action card",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body DirectiveRefRequest `json:"body"`
	}) (*struct {
		Body ActionCardResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ref := directive.Ref{MessageID: input.Body.MessageID, Index: input.Body.Index}
		if err := e.DismissDirective(ctx, ownerID, ref); err != nil {
			return nil, handleError(err)
		}
		card, err := cardAt(ctx, e, ownerID, ref)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActionCardResponse `json:"body"`
		}{Body: card}, nil
	})
}

// cardAt re-renders the referenced card with its current state.
func cardAt(ctx context.Context, e engine.Engine, ownerID string, ref directive.Ref) (ActionCardResponse, error) {
	msg, err := e.Repo.GetChatMessage(ctx, ownerID, ref.MessageID)
	if err != nil {
		return ActionCardResponse{}, err
	}
	cards := directive.BuildCards(e.Executor, msg.ID, msg.Content)
	if ref.Index < 0 || ref.Index >= len(cards) {
		return ActionCardResponse{}, fmt.Errorf("message %s has no directive at index %d", ref.MessageID, ref.Index)
	}
	return cardResponse(cards[ref.Index]), nil
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			OwnerID:     ownerID,
			Title:       input.Body.Title,
			Segment:     input.Body.Segment,
			Description: input.Body.Description,
			Deadline:    input.Body.Deadline,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProjectResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListProjects(ctx, ownerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProjectResponse `json:"body"`
		}{Body: mapProjects(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.Repo.GetProject(ctx, ownerID, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update project",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      struct {
			Status      string  `json:"status,omitempty" enum:"planned,active,completed"`
			Progress    *int    `json:"progress,omitempty" minimum:"0" maximum:"100"`
			Description *string `json:"description,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := e.Repo.UpdateProject(ctx, ownerID, input.ProjectID, input.Body.Status, input.Body.Progress, input.Body.Description); err != nil {
			return nil, handleError(err)
		}
		p, err := e.Repo.GetProject(ctx, ownerID, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}",
		Summary:     "Delete project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct{}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Repo.DeleteProject(ctx, ownerID, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerMissions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-mission",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/missions",
		Summary:       "Create mission",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      CreateMissionRequest `json:"body"`
	}) (*struct {
		Body MissionResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.CreateMission(ctx, engine.MissionCreateOptions{
			OwnerID:           ownerID,
			ProjectID:         input.ProjectID,
			Title:             input.Body.Title,
			Description:       input.Body.Description,
			Deadline:          input.Body.Deadline,
			EstimatedDuration: input.Body.EstimatedDuration,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MissionResponse `json:"body"`
		}{Body: missionResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-missions",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/missions",
		Summary:     "List missions in roadmap order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []MissionResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := e.Repo.GetProject(ctx, ownerID, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListMissions(ctx, ownerID, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []MissionResponse `json:"body"`
		}{Body: mapMissions(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-mission",
		Method:      http.MethodPatch,
		Path:        "/missions/{mission_id}",
		Summary:     "Update mission",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		MissionID string               `path:"mission_id"`
		Body      UpdateMissionRequest `json:"body"`
	}) (*struct {
		Body MissionResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		m, err := e.UpdateMission(ctx, engine.MissionUpdateOptions{
			OwnerID:     ownerID,
			ID:          input.MissionID,
			Status:      input.Body.Status,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Deadline:    input.Body.Deadline,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MissionResponse `json:"body"`
		}{Body: missionResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-mission",
		Method:      http.MethodDelete,
		Path:        "/missions/{mission_id}",
		Summary:     "Delete mission",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MissionID string `path:"mission_id"`
	}) (*struct{}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Repo.DeleteMission(ctx, ownerID, input.MissionID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "swap-mission-order",
		Method:      http.MethodPost,
		Path:        "/missions/{mission_id}/swap",
		Summary:     "Swap roadmap position with another mission",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MissionID string `path:"mission_id"`
		Body      struct {
			OtherID string `json:"other_id"`
		} `json:"body"`
	}) (*struct{}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.OtherID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "other_id is required", nil)
		}
		if err := e.Repo.SwapMissionOrder(ctx, ownerID, input.MissionID, input.Body.OtherID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

// roadmapProposals turns a preview/apply request body into proposals. Free
// text and an explicit mission list can be combined; text is parsed first.
func roadmapProposals(req RoadmapPreviewRequest) []reconcile.Proposed {
	var proposals []reconcile.Proposed
	if req.Text != "" {
		proposals = append(proposals, roadmap.Parse(req.Text)...)
	}
	for _, m := range req.Missions {
		proposals = append(proposals, reconcile.Proposed{
			Title:             m.Title,
			Description:       m.Description,
			EstimatedDuration: m.EstimatedDuration,
		})
	}
	return proposals
}

func registerRoadmap(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "roadmap-preview",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/roadmap/preview",
		Summary:     "Preview roadmap import without writing",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string                `path:"project_id"`
		Body      RoadmapPreviewRequest `json:"body"`
	}) (*struct {
		Body RoadmapPreviewResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		proposals := roadmapProposals(input.Body)
		if len(proposals) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "missions or text required", nil)
		}
		diffs, summary, err := e.RoadmapPreview(ctx, ownerID, input.ProjectID, proposals)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RoadmapPreviewResponse `json:"body"`
		}{Body: RoadmapPreviewResponse{
			Diffs:     mapDiffs(diffs),
			Create:    summary.Create,
			Update:    summary.Update,
			Identical: summary.Identical,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "roadmap-apply",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/roadmap/apply",
		Summary:     "Apply roadmap import",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string                `path:"project_id"`
		Body      RoadmapPreviewRequest `json:"body"`
	}) (*struct {
		Body RoadmapApplyResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		proposals := roadmapProposals(input.Body)
		if len(proposals) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "missions or text required", nil)
		}
		diffs, _, err := e.RoadmapPreview(ctx, ownerID, input.ProjectID, proposals)
		if err != nil {
			return nil, handleError(err)
		}
		res, err := e.RoadmapApply(ctx, ownerID, input.ProjectID, diffs)
		if err != nil {
			// Partial failures still report what committed.
			return nil, newAPIError(http.StatusConflict, "apply_incomplete", err.Error(), map[string]any{
				"created": res.Result.Created,
				"updated": res.Result.Updated,
			})
		}
		return &struct {
			Body RoadmapApplyResponse `json:"body"`
		}{Body: RoadmapApplyResponse{
			Created:       res.Result.Created,
			Updated:       res.Result.Updated,
			Report:        res.Report,
			ReportPath:    res.ReportPath,
			ReportWarning: res.ReportWarning,
		}}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			OwnerID:     ownerID,
			ProjectID:   input.Body.ProjectID,
			MissionID:   input.Body.MissionID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Priority:    input.Body.Priority,
			DueDate:     input.Body.DueDate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"project_id"`
		MissionID string `query:"mission_id"`
		Status    string `query:"status" enum:"todo,doing,done,"`
		Priority  string `query:"priority" enum:"low,medium,high,"`
		Limit     int    `query:"limit" default:"100" minimum:"1" maximum:"1000"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
			OwnerID:   ownerID,
			ProjectID: input.ProjectID,
			MissionID: input.MissionID,
			Status:    input.Status,
			Priority:  input.Priority,
			Limit:     input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Update task",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{
			OwnerID:     ownerID,
			ID:          input.TaskID,
			Status:      input.Body.Status,
			Priority:    input.Body.Priority,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			DueDate:     input.Body.DueDate,
			TimeSpent:   input.Body.TimeSpent,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct{}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Repo.DeleteTask(ctx, ownerID, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerSummary(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "status-summary",
		Method:      http.MethodGet,
		Path:        "/summary",
		Summary:     "Task and mission counts by status",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"project_id"`
	}) (*struct {
		Body StatusSummaryResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.StatusSummary(ctx, ownerID, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StatusSummaryResponse `json:"body"`
		}{Body: StatusSummaryResponse{Tasks: s.Tasks, Missions: s.Missions}}, nil
	})
}

func registerTransactions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-transaction",
		Method:        http.MethodPost,
		Path:          "/transactions",
		Summary:       "Record an income or expense",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateTransactionRequest `json:"body"`
	}) (*struct {
		Body TransactionResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTransaction(ctx, engine.TransactionCreateOptions{
			OwnerID:     ownerID,
			Type:        input.Body.Type,
			Amount:      input.Body.Amount,
			Segment:     input.Body.Segment,
			Description: input.Body.Description,
			Date:        input.Body.Date,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TransactionResponse `json:"body"`
		}{Body: transactionResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-transactions",
		Method:      http.MethodGet,
		Path:        "/transactions",
		Summary:     "List transactions",
	}, func(ctx context.Context, input *struct {
		Type    string `query:"type" enum:"income,expense,"`
		Segment string `query:"segment"`
		Limit   int    `query:"limit" default:"100" minimum:"1" maximum:"1000"`
	}) (*struct {
		Body []TransactionResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListTransactions(ctx, repo.TransactionFilters{
			OwnerID: ownerID,
			Type:    input.Type,
			Segment: input.Segment,
			Limit:   input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TransactionResponse `json:"body"`
		}{Body: mapTransactions(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-transaction",
		Method:      http.MethodGet,
		Path:        "/transactions/{transaction_id}",
		Summary:     "Get transaction",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TransactionID string `path:"transaction_id"`
	}) (*struct {
		Body TransactionResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tr, err := e.Repo.GetTransaction(ctx, ownerID, input.TransactionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TransactionResponse `json:"body"`
		}{Body: transactionResponse(tr)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "finance-summary",
		Method:      http.MethodGet,
		Path:        "/transactions/summary",
		Summary:     "Income and expense totals",
	}, func(ctx context.Context, input *struct {
		Segment string `query:"segment"`
	}) (*struct {
		Body map[string]float64 `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		income, err := e.Repo.SumTransactions(ctx, ownerID, "income", input.Segment)
		if err != nil {
			return nil, handleError(err)
		}
		expenses, err := e.Repo.SumTransactions(ctx, ownerID, "expense", input.Segment)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]float64 `json:"body"`
		}{Body: map[string]float64{
			"income":   income,
			"expenses": expenses,
			"net":      income - expenses,
		}}, nil
	})
}

func registerNotes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-note",
		Method:        http.MethodPost,
		Path:          "/notes",
		Summary:       "Create note",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateNoteRequest `json:"body"`
	}) (*struct {
		Body NoteResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.CreateNote(ctx, ownerID, input.Body.Title, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NoteResponse `json:"body"`
		}{Body: noteResponse(n)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-notes",
		Method:      http.MethodGet,
		Path:        "/notes",
		Summary:     "List notes",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []NoteResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListNotes(ctx, ownerID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]NoteResponse, 0, len(items))
		for _, n := range items {
			out = append(out, noteResponse(n))
		}
		return &struct {
			Body []NoteResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-note",
		Method:      http.MethodGet,
		Path:        "/notes/{note_id}",
		Summary:     "Get note",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		NoteID string `path:"note_id"`
	}) (*struct {
		Body NoteResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.Repo.GetNote(ctx, ownerID, input.NoteID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NoteResponse `json:"body"`
		}{Body: noteResponse(n)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-note",
		Method:      http.MethodDelete,
		Path:        "/notes/{note_id}",
		Summary:     "Delete note",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		NoteID string `path:"note_id"`
	}) (*struct{}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Repo.DeleteNote(ctx, ownerID, input.NoteID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerDocuments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "upload-document",
		Method:        http.MethodPost,
		Path:          "/documents",
		Summary:       "Upload a document",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Name     string `json:"name"`
			MimeType string `json:"mime_type,omitempty"`
			Content  []byte `json:"content"`
		} `json:"body"`
	}) (*struct {
		Body DocumentResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.UploadDocument(ctx, ownerID, input.Body.Name, input.Body.MimeType, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocumentResponse `json:"body"`
		}{Body: documentResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-documents",
		Method:      http.MethodGet,
		Path:        "/documents",
		Summary:     "List documents",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []DocumentResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListDocuments(ctx, ownerID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]DocumentResponse, 0, len(items))
		for _, d := range items {
			out = append(out, documentResponse(d))
		}
		return &struct {
			Body []DocumentResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "document-url",
		Method:      http.MethodGet,
		Path:        "/documents/{document_id}/url",
		Summary:     "Create a signed download URL",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DocumentID string `path:"document_id"`
		TTLSeconds int    `query:"ttl" default:"900" minimum:"1" maximum:"86400"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.Repo.GetDocument(ctx, ownerID, input.DocumentID)
		if err != nil {
			return nil, handleError(err)
		}
		if e.Blobs == nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", "blob store not configured", nil)
		}
		url, err := e.Blobs.CreateSignedURL(d.Path, time.Duration(input.TTLSeconds)*time.Second)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"url": url}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-document",
		Method:      http.MethodDelete,
		Path:        "/documents/{document_id}",
		Summary:     "Delete document",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DocumentID string `path:"document_id"`
	}) (*struct{}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteDocument(ctx, ownerID, input.DocumentID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

// registerBlobDownload serves signed blob URLs outside huma; the token in the
// query string is the whole authorization.
func registerBlobDownload(r chi.Router, basePath string, e engine.Engine) {
	downloadPath := path.Join(basePath, "blobs/download")
	r.Get(downloadPath, func(w http.ResponseWriter, req *http.Request) {
		if e.Blobs == nil {
			respondStatusError(w, newAPIError(http.StatusInternalServerError, "internal_error", "blob store not configured", nil))
			return
		}
		token := req.URL.Query().Get("token")
		key, err := e.Blobs.VerifySignedToken(token)
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_token", "invalid or expired token", nil))
			return
		}
		data, err := e.Blobs.Get(key)
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusNotFound, "not_found", "blob not found", nil))
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(data)
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Latest activity log entries",
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.LatestEvents(ctx, input.Limit, ownerID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Create API key",
		Description:   "The plain key is returned once and never stored.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		plain, key, err := e.CreateAPIKey(ctx, ownerID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: APIKeyResponse{ID: key.ID, Name: key.Name, Key: plain, CreatedAt: key.CreatedAt}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List API keys",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListAPIKeys(ctx, ownerID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]APIKeyResponse, 0, len(items))
		for _, k := range items {
			out = append(out, APIKeyResponse{ID: k.ID, Name: k.Name, CreatedAt: k.CreatedAt})
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-api-key",
		Method:      http.MethodDelete,
		Path:        "/apikeys/{key_id}",
		Summary:     "Delete API key",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		KeyID string `path:"key_id"`
	}) (*struct{}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Repo.DeleteAPIKey(ctx, ownerID, input.KeyID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
