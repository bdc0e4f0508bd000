package grpchelpers

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/tap"
)

func TestLoggingInterceptorPassesThrough(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/ygrid.Agent/OpenJob"}
	resp, err := LoggingInterceptor(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return req.(string) + "!", nil
	})
	if err != nil || resp != "req!" {
		t.Fatalf("Unexpected result %v %v", resp, err)
	}
}

func TestTapLimiter(t *testing.T) {
	tl := NewTap(1, 1)
	info := &tap.Info{FullMethodName: "/ygrid.Agent/OpenJob"}
	if _, err := tl.Handler(context.Background(), info); err != nil {
		t.Fatalf("First request should be allowed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tl.Handler(ctx, info); err == nil {
		t.Fatalf("Expected the second request to be dropped once its context is done")
	}
	if opts := RateLimit(0, 0); opts != nil {
		t.Fatalf("Expected no options for an unlimited server")
	}
}
