package ctxutil

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestTraceID(t *testing.T) {
	ctx := context.Background()
	if GetTraceID(ctx) != "" {
		t.Error("expected empty trace id on fresh context")
	}

	ctx = SetTraceID(ctx, "trace-1")
	if got := GetTraceID(ctx); got != "trace-1" {
		t.Errorf("expected trace-1, got %q", got)
	}
}

func TestEnsureTraceID(t *testing.T) {
	ctx, traceID := EnsureTraceID(context.Background())
	if traceID == "" {
		t.Fatal("expected generated trace id")
	}
	// An existing trace id is preserved.
	ctx2, again := EnsureTraceID(ctx)
	if again != traceID {
		t.Errorf("expected %q, got %q", traceID, again)
	}
	if ctx2 != ctx {
		t.Error("expected unchanged context when trace id exists")
	}
}

func TestGinContextRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	ctx := WithGinContext(context.Background(), c)
	got, ok := GetGinContext(ctx)
	if !ok || got != c {
		t.Error("expected embedded gin context")
	}

	// Values set through the wrapper are visible in both contexts.
	ctx = SetValue(ctx, "key", "value")
	if val := GetValue(ctx, "key"); val != "value" {
		t.Errorf("expected value, got %v", val)
	}
	if val, exists := c.Get("key"); !exists || val != "value" {
		t.Errorf("expected value in gin context, got %v", val)
	}
}
