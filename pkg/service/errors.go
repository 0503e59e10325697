package service

import (
	"context"
	"errors"

	"dagvault/pkg/errs"
	"dagvault/pkg/refs"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus 把核心层的错误分类映射为 gRPC 状态码
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codes.Internal
	switch {
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, errs.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, errs.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, refs.ErrStaleRoot):
		code = codes.Aborted
	case errors.Is(err, errs.ErrConflict):
		code = codes.FailedPrecondition
	case errors.Is(err, errs.ErrStore):
		code = codes.Unavailable
	}
	return status.Error(code, err.Error())
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
