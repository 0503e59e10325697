// Package server 组装 gRPC 服务端：拦截器、服务注册和健康检查。
package server

import (
	"context"
	"runtime/debug"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var log = logging.Logger("dagvault/server")

// =============================================================================
// 1. Logging Interceptor (结构化日志)
// =============================================================================

// UnaryLoggingInterceptor 负责拦截普通请求
func UnaryLoggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	logRPC("unary", info.FullMethod, time.Since(start), err)
	return resp, err
}

// StreamLoggingInterceptor 负责拦截流式请求 (PinLs / Upload / Cat)
func StreamLoggingInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	logRPC("stream", info.FullMethod, time.Since(start), err)
	return err
}

// logRPC 按状态码选择日志级别：OK 为 info，服务端错误为 error，其余为 warn
func logRPC(kind, method string, duration time.Duration, err error) {
	code := status.Code(err)
	fields := []any{"kind", kind, "method", method, "code", code.String(), "dur", duration}

	switch code {
	case codes.OK:
		log.Infow("rpc", fields...)
	case codes.Internal, codes.Unknown, codes.DataLoss:
		log.Errorw("rpc", append(fields, "err", err.Error())...)
	default:
		log.Warnw("rpc", append(fields, "err", err.Error())...)
	}
}

// =============================================================================
// 2. Recovery Interceptor
// =============================================================================

// UnaryRecoveryInterceptor 捕获 Panic
func UnaryRecoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverFromPanic(info.FullMethod, r)
		}
	}()
	return handler(ctx, req)
}

// StreamRecoveryInterceptor 捕获 Panic
func StreamRecoveryInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverFromPanic(info.FullMethod, r)
		}
	}()
	return handler(srv, ss)
}

func recoverFromPanic(method string, p any) error {
	log.Errorw("panic recovered", "method", method, "panic", p, "stack", string(debug.Stack()))
	return status.Errorf(codes.Internal, "internal server error: panic recovered")
}
