package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"Bazaar/internal/api/config"
	"Bazaar/internal/api/dto"
	"Bazaar/internal/api/handler"
	"Bazaar/internal/model"
	"Bazaar/internal/pkg/moderation"
	"Bazaar/internal/pkg/security"
	"Bazaar/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPostService struct {
	service.PostService
	createErr error
	created   *dto.CreatePostDTO
	owner     uint64
}

func (s *stubPostService) CreatePost(_ context.Context, userID uint64, req *dto.CreatePostDTO) (*dto.CreatePostResultDTO, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = req
	return &dto.CreatePostResultDTO{PostID: "p1", Status: string(model.PostStatusProcessing)}, nil
}

func (s *stubPostService) GetModerationStatus(_ context.Context, userID uint64, postID string) (*dto.ModerationStatusDTO, error) {
	if userID != s.owner {
		return nil, service.ForbiddenError
	}
	return &dto.ModerationStatusDTO{PostID: postID, Status: string(model.PostStatusProcessing)}, nil
}

func (s *stubPostService) GetPost(_ context.Context, viewerID uint64, postID string) (*dto.PostDTO, error) {
	if viewerID != s.owner {
		return nil, service.ErrPostNotFound
	}
	return &dto.PostDTO{ID: postID, Status: string(model.PostStatusProcessing)}, nil
}

type result struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T, posts service.PostService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	security.Setup(config.JWTConfig{Secret: "route-test", Issuer: "Bazaar", Expiration: 1})

	reg, err := moderation.NewRuleRegistry(moderation.DefaultRuleSpec())
	require.NoError(t, err)
	return SetupRouter(&HandlersGroup{
		PostHandler: handler.NewPostHandler(posts),
		RuleHandler: handler.NewRuleHandler(service.NewRuleService(reg, nil)),
	}, config.LogConfig{})
}

func do(t *testing.T, r *gin.Engine, method, path string, body any, userID uint64, roles ...string) (*httptest.ResponseRecorder, result) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token, err := security.GenerateToken(userID, roles)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var res result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return w, res
}

func TestCreatePostAccepted(t *testing.T) {
	posts := &stubPostService{}
	r := newTestRouter(t, posts)

	w, res := do(t, r, http.MethodPost, "/api/posts", map[string]any{
		"category":    "SELL",
		"title":       "",
		"description": "Warm light desk lamp",
		"price":       15,
		"item":        "lamp",
	}, 7, security.RoleUser)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 202, res.Code)
	assert.Contains(t, string(res.Data), `"post_id":"p1"`)
	require.NotNil(t, posts.created)
	assert.Equal(t, "", *posts.created.Title)
}

func TestCreatePostValidation(t *testing.T) {
	r := newTestRouter(t, &stubPostService{})

	_, res := do(t, r, http.MethodPost, "/api/posts", map[string]any{"category": "SELL"}, 0)
	assert.Equal(t, 401, res.Code)

	// title 缺失与空字符串不同
	_, res = do(t, r, http.MethodPost, "/api/posts", map[string]any{
		"category":    "SELL",
		"description": "lamp",
	}, 7)
	assert.Equal(t, 400, res.Code)

	_, res = do(t, r, http.MethodPost, "/api/posts", map[string]any{
		"category":    "EVENT",
		"title":       "x",
		"description": "lamp",
	}, 7)
	assert.Equal(t, 400, res.Code)
}

func TestCreatePostGateRejected(t *testing.T) {
	r := newTestRouter(t, &stubPostService{createErr: &service.GateRejection{
		Summary: moderation.TextSummary{Flagged: true, Confidence: 0.9, Issues: []string{"Potentially discriminatory language"}},
	}})

	w, res := do(t, r, http.MethodPost, "/api/posts", map[string]any{
		"category":    "ROOMMATE",
		"title":       "Room",
		"description": "males only",
	}, 7)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.BadRequest, res.Code)
	assert.Contains(t, string(res.Data), `"confidence":0.9`)
	assert.Contains(t, string(res.Data), "Potentially discriminatory language")
}

func TestCreatePostQueueBusy(t *testing.T) {
	r := newTestRouter(t, &stubPostService{createErr: service.ErrModerationBusy})

	_, res := do(t, r, http.MethodPost, "/api/posts", map[string]any{
		"category":    "SELL",
		"title":       "Lamp",
		"description": "lamp",
	}, 7)
	assert.Equal(t, service.ServiceUnavailable, res.Code)
}

func TestModerationStatusOwnerOnly(t *testing.T) {
	r := newTestRouter(t, &stubPostService{owner: 7})

	_, res := do(t, r, http.MethodGet, "/api/posts/p1/moderation-status", nil, 7)
	assert.Equal(t, 200, res.Code)
	assert.Contains(t, string(res.Data), `"status":"PROCESSING"`)

	_, res = do(t, r, http.MethodGet, "/api/posts/p1/moderation-status", nil, 8)
	assert.Equal(t, 403, res.Code)
}

func TestGetPostOptionalAuth(t *testing.T) {
	r := newTestRouter(t, &stubPostService{owner: 7})

	_, res := do(t, r, http.MethodGet, "/api/posts/p1", nil, 7)
	assert.Equal(t, 200, res.Code)

	_, res = do(t, r, http.MethodGet, "/api/posts/p1", nil, 0)
	assert.Equal(t, 404, res.Code)
}

func TestRuleAdminRequiresRole(t *testing.T) {
	r := newTestRouter(t, &stubPostService{})
	body := map[string]any{"group": "spam", "phrase": "crypto giveaway"}

	_, res := do(t, r, http.MethodPost, "/api/moderation/rules/keywords", body, 7, security.RoleUser)
	assert.Equal(t, 403, res.Code)

	_, res = do(t, r, http.MethodPost, "/api/moderation/rules/keywords", body, 1, security.RoleModerator)
	assert.Equal(t, 200, res.Code)
	assert.Contains(t, string(res.Data), `"version":2`)

	_, res = do(t, r, http.MethodPost, "/api/moderation/rules/keywords", map[string]any{"group": "nope", "phrase": "x"}, 1, security.RoleAdmin)
	assert.Equal(t, 400, res.Code)

	_, res = do(t, r, http.MethodPut, "/api/moderation/rules/thresholds", map[string]any{"flag_confidence": 0.9}, 1, security.RoleAdmin)
	assert.Equal(t, 200, res.Code)
	assert.Contains(t, string(res.Data), `"version":3`)
}

func TestRuleAdminRemoveDefaultKeyword(t *testing.T) {
	r := newTestRouter(t, &stubPostService{})

	_, res := do(t, r, http.MethodDelete, "/api/moderation/rules/keywords", map[string]any{"group": "suspicious", "phrase": "weed"}, 1, security.RoleAdmin)
	assert.Equal(t, 200, res.Code)
	assert.Contains(t, string(res.Data), `"version":2`)

	_, res = do(t, r, http.MethodDelete, "/api/moderation/rules/keywords", map[string]any{"group": "suspicious", "phrase": "weed"}, 1, security.RoleAdmin)
	assert.Equal(t, 404, res.Code)
}
