package commands

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
)

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// resolveArg 接受 CID 或 /ipfs/<cid>/a/b 形式的路径
func resolveArg(ctx context.Context, arg string) (cid.Cid, error) {
	return DV.Resolver.Resolve(ctx, arg)
}
