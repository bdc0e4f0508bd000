// Package grpchelpers builds gRPC servers the way every ygrid service wants
// them: reflection on, requests logged, and optionally rate limited.
package grpchelpers

import (
	"context"

	"github.com/luci/go-render/render"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/tap"
)

// NewServer returns a new grpc server just like grpc.NewServer(), but
// which automatically implements the grpc server reflection protocol
// and logs every unary request.
// See https://github.com/grpc/grpc/blob/master/doc/server-reflection.md
func NewServer(opt ...grpc.ServerOption) *grpc.Server {
	opt = append(opt, grpc.ChainUnaryInterceptor(LoggingInterceptor))
	s := grpc.NewServer(opt...)
	reflection.Register(s)
	return s
}

// LoggingInterceptor logs each request at debug level and each failure at info.
func LoggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	log.WithFields(log.Fields{"method": info.FullMethod}).Debugf("Request %s", render.Render(req))
	resp, err := handler(ctx, req)
	if err != nil {
		log.WithFields(log.Fields{"method": info.FullMethod, "error": err}).Info("Request failed")
	}
	return resp, err
}

// Encapsulates a rate-per-second limiter that will check all incoming requests (per-connection goroutine)
// Handle func Fulfills grpc/tap.ServerInHandle
type TapLimiter struct {
	limiter *rate.Limiter
}

// Create a new TapLimiter with specified rate and burst allowance
func NewTap(maxRequests float64, maxBurst int) *TapLimiter {
	return &TapLimiter{
		limiter: rate.NewLimiter(rate.Limit(maxRequests), maxBurst),
	}
}

// Wait until the Limiter allows the request or the Context expires.
// Client sees non-nil err as an RPC error with code=Unavailable.
func (t *TapLimiter) Handler(ctx context.Context, info *tap.Info) (context.Context, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		log.Warnf("Tap limiter dropped connection due to rate limit: %s. Incoming request: %s", err, info.FullMethodName)
		return nil, status.Error(codes.ResourceExhausted, "Resource exhausted due to rate limit")
	}
	return ctx, nil
}

// RateLimit is a ServerOption limiting requests per second. 0 means unlimited.
func RateLimit(perSec float64, burst int) []grpc.ServerOption {
	if perSec <= 0 || burst <= 0 {
		return nil
	}
	log.Infof("Creating Limiter with rate/burst: %v/%d", perSec, burst)
	return []grpc.ServerOption{grpc.InTapHandle(NewTap(perSec, burst).Handler)}
}
