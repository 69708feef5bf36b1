package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"agentauth.org/internal/activity"
	"agentauth.org/internal/agent"
	"agentauth.org/internal/auth"
	"agentauth.org/internal/persona"
	"agentauth.org/internal/store/memory"
	"agentauth.org/internal/stream"
	"agentauth.org/internal/webhook"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	st := memory.New()
	authSvc, err := auth.NewService(st, bytes.Repeat([]byte("k"), 32))
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}

	api := New(ReadyProbe{}, "test", Deps{
		Agents:   agent.NewRegistry(st),
		Auth:     authSvc,
		Personas: persona.NewManager(st),
		Webhooks: webhook.NewService(st),
		Activity: activity.NewLog(st),
		Stream:   stream.New(),
	})
	api.rateBurst = 1000
	api.ratePerSec = 1000

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := httptest.NewServer(api.Handler(ctx))
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) put(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPut, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

type registeredAgent struct {
	id     string
	apiKey string
}

func (c *apiClient) register(name string, perms []string) registeredAgent {
	c.t.Helper()
	resp := c.post("/v1/agents", map[string]any{
		"name":        name,
		"owner_email": name + "@example.com",
		"permissions": perms,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register status: %d", resp.StatusCode)
	}
	payload := decode[map[string]any](c.t, resp)
	ag := payload["agent"].(map[string]any)
	return registeredAgent{
		id:     ag["agent_id"].(string),
		apiKey: payload["api_key"].(string),
	}
}

func (c *apiClient) verify(ra registeredAgent) tokenPairResponse {
	c.t.Helper()
	resp := c.post("/v1/auth/verify", map[string]any{
		"agent_id": ra.id,
		"api_key":  ra.apiKey,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("verify status: %d", resp.StatusCode)
	}
	return decode[tokenPairResponse](c.t, resp)
}

func bearerHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestRegisterVerifyAndFetchSelf(t *testing.T) {
	api := newTestAPI(t)

	ra := api.register("support-bot", []string{"zendesk:tickets:read", "slack:messages:write"})
	if !strings.HasPrefix(ra.apiKey, "ak_") {
		t.Fatalf("unexpected api key format: %q", ra.apiKey)
	}
	if !strings.HasPrefix(ra.id, "agt_") {
		t.Fatalf("unexpected agent id format: %q", ra.id)
	}

	pair := api.verify(ra)
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens issued")
	}
	if pair.AgentID != ra.id {
		t.Fatalf("token pair for wrong agent: %s", pair.AgentID)
	}

	resp := api.get("/v1/agents/"+ra.id, nil, bearerHeaders(pair.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get self status: %d", resp.StatusCode)
	}
	ag := decode[map[string]any](t, resp)
	if ag["agent_id"] != ra.id {
		t.Fatalf("unexpected agent: %v", ag["agent_id"])
	}
	if _, leaked := ag["secret_hash"]; leaked {
		t.Fatal("secret hash must not appear in responses")
	}
}

func TestHeaderPairAuthentication(t *testing.T) {
	api := newTestAPI(t)
	ra := api.register("header-bot", []string{"github:repos:read"})

	headers := map[string]string{
		"X-Agent-Id": ra.id,
		"X-Api-Key":  ra.apiKey,
	}
	resp := api.get("/v1/agents/"+ra.id, nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected header pair accepted, got %d", resp.StatusCode)
	}

	// Wrong key in the pair must not be treated as absent credentials.
	headers["X-Api-Key"] = "ak_wrong"
	resp = api.get("/v1/agents/"+ra.id, nil, headers)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad key, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["error"] != "authentication failed" {
		t.Fatalf("expected uniform failure message, got %v", body["error"])
	}
}

func TestMissingCredentialsRejected(t *testing.T) {
	api := newTestAPI(t)
	ra := api.register("lonely-bot", []string{"github:repos:read"})

	resp := api.get("/v1/agents/"+ra.id, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestForeignAgentForbidden(t *testing.T) {
	api := newTestAPI(t)
	raA := api.register("bot-a", []string{"github:repos:read"})
	raB := api.register("bot-b", []string{"github:repos:read"})
	pairA := api.verify(raA)

	resp := api.get("/v1/agents/"+raB.id, nil, bearerHeaders(pairA.AccessToken))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestAdminWildcardGrantsControlPlane(t *testing.T) {
	api := newTestAPI(t)
	admin := api.register("admin", []string{"agentauth:*:*"})
	target := api.register("target", []string{"github:repos:read"})
	pair := api.verify(admin)

	resp := api.get("/v1/agents", nil, bearerHeaders(pair.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status: %d", resp.StatusCode)
	}
	listing := decode[map[string]any](t, resp)
	if listing["total"].(float64) != 2 {
		t.Fatalf("expected 2 agents, got %v", listing["total"])
	}

	resp = api.put("/v1/agents/"+target.id+"/tier", map[string]any{"tier": "pro"}, bearerHeaders(pair.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tier update status: %d", resp.StatusCode)
	}
	updated := decode[map[string]any](t, resp)
	if updated["tier"] != "pro" {
		t.Fatalf("tier not updated: %v", updated["tier"])
	}

	resp = api.post("/v1/agents/"+target.id+"/revoke", nil, bearerHeaders(pair.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revoke status: %d", resp.StatusCode)
	}

	// Revoked agent can no longer trade its key for tokens.
	resp = api.post("/v1/auth/verify", map[string]any{
		"agent_id": target.id,
		"api_key":  target.apiKey,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected revoked agent rejected, got %d", resp.StatusCode)
	}
}

func TestRefreshFlow(t *testing.T) {
	api := newTestAPI(t)
	ra := api.register("refresh-bot", []string{"stripe:payments:read"})
	pair := api.verify(ra)

	// A refresh token must not work as an access credential.
	resp := api.get("/v1/agents/"+ra.id, nil, bearerHeaders(pair.RefreshToken))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected refresh token rejected on data plane, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/auth/refresh", map[string]any{"refresh_token": pair.RefreshToken}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status: %d", resp.StatusCode)
	}
	next := decode[tokenPairResponse](t, resp)
	if next.AccessToken == "" || next.RefreshToken == "" {
		t.Fatal("expected fresh pair")
	}

	resp = api.get("/v1/agents/"+ra.id, nil, bearerHeaders(next.AccessToken))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("new access token not accepted: %d", resp.StatusCode)
	}
}

func TestKeyRotationInvalidatesOldKey(t *testing.T) {
	api := newTestAPI(t)
	ra := api.register("rotating-bot", []string{"github:repos:read"})
	pair := api.verify(ra)

	resp := api.post("/v1/agents/"+ra.id+"/key", nil, bearerHeaders(pair.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotate status: %d", resp.StatusCode)
	}
	rotated := decode[map[string]any](t, resp)
	newKey := rotated["api_key"].(string)
	if newKey == ra.apiKey {
		t.Fatal("rotation returned the same key")
	}

	resp = api.post("/v1/auth/verify", map[string]any{
		"agent_id": ra.id,
		"api_key":  ra.apiKey,
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old key still accepted: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/auth/verify", map[string]any{
		"agent_id": ra.id,
		"api_key":  newKey,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("new key rejected: %d", resp.StatusCode)
	}
}

func TestActivityRecordsVerifications(t *testing.T) {
	api := newTestAPI(t)
	ra := api.register("active-bot", []string{"github:repos:read"})
	pair := api.verify(ra)

	// One failed attempt with the wrong key.
	resp := api.post("/v1/auth/verify", map[string]any{
		"agent_id": ra.id,
		"api_key":  "ak_bogus",
	}, nil)
	resp.Body.Close()

	resp = api.get("/v1/agents/"+ra.id+"/activity", nil, bearerHeaders(pair.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activity status: %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	items := payload["items"].([]any)
	if len(items) < 2 {
		t.Fatalf("expected at least 2 entries, got %d", len(items))
	}
	// Newest first: the failure follows the successful verify.
	first := items[0].(map[string]any)
	if first["status"] != "failure" {
		t.Fatalf("expected newest entry to be the failure, got %v", first["status"])
	}
}

func TestPermissionsCatalogIsPublic(t *testing.T) {
	api := newTestAPI(t)
	resp := api.get("/v1/permissions", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("catalog status: %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	services := payload["services"].(map[string]any)
	if _, ok := services["github"]; !ok {
		t.Fatal("expected github service in catalog")
	}
}

func TestRegisterRejectsMalformedPermission(t *testing.T) {
	api := newTestAPI(t)
	resp := api.post("/v1/agents", map[string]any{
		"name":        "bad-bot",
		"owner_email": "bad@example.com",
		"permissions": []string{"github:repos"},
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := api.get(path, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status: %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}
