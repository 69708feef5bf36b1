package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                     "/",
		"/metrics":                             "/metrics",
		"/v1/agents/agt_abc":                   "/v1/agents/:id",
		"/v1/agents/agt_abc/persona":           "/v1/agents/:id/persona",
		"/v1/agents/agt_abc/persona/history":   "/v1/agents/:id/persona/history",
		"/v1/agents/agt_abc/persona/verify":    "/v1/agents/:id/persona/verify",
		"/v1/agents/agt_abc/activity":          "/v1/agents/:id/activity",
		"/v1/webhooks/wh_123":                  "/v1/webhooks/:id",
		"/v1/auth/verify":                      "/v1/auth/verify",
		"/v1/permissions":                      "/v1/permissions",
		"/v1/agents/agt_abc/activity?limit=10": "/v1/agents/:id/activity",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
