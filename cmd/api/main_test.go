package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Raguls333/noolix-sub001/config"
	"github.com/Raguls333/noolix-sub001/plan"
)

func memoryConfig() config.Config {
	return config.Config{
		Store:             config.StoreMemory,
		PublicBaseURL:     "https://noolix.test/public",
		JWTSecret:         "test-secret-with-enough-length-123",
		ApprovalLinkTTL:   time.Hour,
		AcceptanceLinkTTL: time.Hour,
		PlanCacheTTL:      time.Minute,
		HTTPAddr:          "127.0.0.1:0",
		ShutdownTimeout:   time.Second,
	}
}

func TestNewAppMemoryBootstrap(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, memoryConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	p, token, err := a.bootstrap(ctx, "Acme", plan.PlanPro, "founder@acme.test", "correct-horse-battery", "Fran Founder")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if p.OrgID == "" || p.UserID == "" {
		t.Fatalf("expected ids, got %+v", p)
	}

	verified, err := a.auth.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if verified != p {
		t.Fatalf("expected principal %+v, got %+v", p, verified)
	}

	got, err := a.plans.PlanFor(ctx, p.OrgID)
	if err != nil {
		t.Fatalf("plan for: %v", err)
	}
	if got != plan.PlanPro {
		t.Fatalf("expected PRO, got %s", got)
	}

	srv := httptest.NewServer(a.handler().Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/commitments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list commitments: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 listing commitments, got %d", resp.StatusCode)
	}
}

func TestNewAppRejectsBadRedisURL(t *testing.T) {
	cfg := memoryConfig()
	cfg.RedisURL = "not-a-redis-url"
	if _, err := newApp(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for malformed REDIS_URL")
	}
}

func TestBootstrapRejectsUnknownPlan(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, memoryConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	if _, _, err := a.bootstrap(ctx, "Acme", plan.Plan("GOLD"), "a@acme.test", "correct-horse-battery", "A"); err == nil {
		t.Fatal("expected error for unknown plan")
	}
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"serve"},
		{"migrate"},
		{"migrate", "status"},
		{"bootstrap"},
		{"plan", "get"},
		{"plan", "set"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil {
			t.Fatalf("find %v: %v", path, err)
		}
		if cmd.Name() != path[len(path)-1] {
			t.Fatalf("expected %q, got %q", path[len(path)-1], cmd.Name())
		}
	}
	if root.PersistentFlags().Lookup("env-file") == nil {
		t.Fatal("expected persistent --env-file flag")
	}
}

func TestPostgresCommandsRefuseMemoryStore(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("JWT_SECRET", "test-secret-with-enough-length-123")
	t.Setenv("LOG_LEVEL", "error")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--env-file", t.TempDir() + "/missing.env", "plan", "get", "org-1"})

	err := root.Execute()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "requires STORE=postgres") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, memoryConfig(), zap.NewNop(), http.NotFoundHandler())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}
