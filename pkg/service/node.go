package service

import (
	"context"
	"fmt"

	dvrpc "dagvault/pkg/api/dvrpc/v1"
	"dagvault/pkg/app"
	"dagvault/pkg/core"
	"dagvault/pkg/dirs"
	"dagvault/pkg/errs"
	"dagvault/pkg/pin"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"google.golang.org/grpc"
)

var log = logging.Logger("dagvault/service")

// NodeService 暴露 pin 管理和目录编辑
type NodeService struct {
	dvrpc.UnimplementedNodeServiceServer
	app *app.App
}

func NewNodeService(application *app.App) *NodeService {
	return &NodeService{app: application}
}

func toStrings(ids []cid.Cid) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func decodeCid(field, s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, toStatus(fmt.Errorf("%w: invalid %s %q: %v", errs.ErrValidation, field, s, err))
	}
	return id, nil
}

// PinAdd 处理 pin 请求
func (s *NodeService) PinAdd(ctx context.Context, req *dvrpc.PinAddRequest) (*dvrpc.PinAddResponse, error) {
	ids, err := s.app.Pins.Add(ctx, req.Paths, pin.Recursive(req.Recursive))
	if err != nil {
		return nil, toStatus(err)
	}
	log.Infow("pinned", "count", len(ids), "recursive", req.Recursive)
	return &dvrpc.PinAddResponse{Cids: toStrings(ids)}, nil
}

// PinRm 处理取消 pin 请求
func (s *NodeService) PinRm(ctx context.Context, req *dvrpc.PinRmRequest) (*dvrpc.PinRmResponse, error) {
	ids, err := s.app.Pins.Rm(ctx, req.Paths, pin.Recursive(req.Recursive))
	if err != nil {
		return nil, toStatus(err)
	}
	return &dvrpc.PinRmResponse{Cids: toStrings(ids)}, nil
}

// PinLs 逐条流式返回 pin
// 按路径查询时，单个路径的失败作为一帧返回，不中断整个流
func (s *NodeService) PinLs(req *dvrpc.PinLsRequest, stream grpc.ServerStreamingServer[dvrpc.PinLsResponse]) error {
	ctx := stream.Context()

	opts := []pin.Option{pin.Paths(req.Paths...)}
	if req.Type != "" {
		opts = append(opts, pin.Type(req.Type))
	}
	seq, err := s.app.Pins.Ls(ctx, opts...)
	if err != nil {
		return toStatus(err)
	}

	for p, err := range seq {
		resp := &dvrpc.PinLsResponse{}
		switch {
		case err != nil && (len(req.Paths) == 0 || isContextErr(err)):
			return toStatus(err)
		case err != nil:
			resp.Error = err.Error()
		default:
			resp.Cid, resp.Type, resp.Path = p.Cid.String(), p.Type(), p.Path
		}
		if err := stream.Send(resp); err != nil {
			return err
		}
	}
	return nil
}

// PinVerify 检查所有递归 pin 的图是否完整
func (s *NodeService) PinVerify(ctx context.Context, _ *dvrpc.PinVerifyRequest) (*dvrpc.PinVerifyResponse, error) {
	bad, err := s.app.Pins.Verify(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	_, recursive := s.app.Pins.Counts()
	resp := &dvrpc.PinVerifyResponse{Recursive: recursive}
	for _, b := range bad {
		resp.Bad = append(resp.Bad, dvrpc.BadPin{Cid: b.Cid.String(), Error: b.Err.Error()})
	}
	return resp, nil
}

// dirOptions 以服务端配置为基础，覆盖请求中设置了的字段
func (s *NodeService) dirOptions(o *dvrpc.DirOptions) (dirs.Options, error) {
	opts := s.app.DirOptions
	if o == nil {
		return opts, nil
	}
	if o.ShardSplitThreshold != 0 {
		opts.ShardSplitThreshold = o.ShardSplitThreshold
	}
	if o.Fanout != 0 {
		opts.Fanout = o.Fanout
	}
	if o.CidVersion != nil {
		opts.CidVersion = *o.CidVersion
	}
	if o.HashAlg != "" {
		opts.HashAlg = o.HashAlg
	}
	if o.Codec != "" {
		codec, err := core.CodecByName(o.Codec)
		if err != nil {
			return dirs.Options{}, err
		}
		opts.Codec = codec
	}
	opts.Flush = !o.DryRun
	return opts, opts.Validate()
}

// AddLink 在任意目录节点上添加链接，返回新目录的 CID
func (s *NodeService) AddLink(ctx context.Context, req *dvrpc.AddLinkRequest) (*dvrpc.AddLinkResponse, error) {
	parent, err := decodeCid("parent", req.Parent)
	if err != nil {
		return nil, err
	}
	target, err := decodeCid("target", req.Target)
	if err != nil {
		return nil, err
	}
	opts, err := s.dirOptions(req.Options)
	if err != nil {
		return nil, toStatus(err)
	}

	unlock, err := s.app.GCLock.RLock(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	defer unlock()

	id, err := s.app.Editor.AddLink(ctx, parent, req.Name, req.Size, target, opts)
	if err != nil {
		return nil, toStatus(err)
	}
	return &dvrpc.AddLinkResponse{Cid: id.String()}, nil
}

// FilesLink 把已有对象挂到可变文件系统的目录下
func (s *NodeService) FilesLink(ctx context.Context, req *dvrpc.FilesLinkRequest) (*dvrpc.FilesLinkResponse, error) {
	target, err := decodeCid("target", req.Target)
	if err != nil {
		return nil, err
	}

	unlock, err := s.app.GCLock.RLock(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	defer unlock()

	size, err := s.app.Editor.CumulativeSize(ctx, target)
	if err != nil {
		return nil, toStatus(err)
	}
	root, err := s.app.Files.Link(ctx, req.Dir, req.Name, target, size)
	if err != nil {
		return nil, toStatus(err)
	}
	return &dvrpc.FilesLinkResponse{Root: root.String()}, nil
}

// FilesStat 返回可变文件系统中路径的信息
func (s *NodeService) FilesStat(ctx context.Context, req *dvrpc.FilesStatRequest) (*dvrpc.FilesStatResponse, error) {
	st, err := s.app.Files.Stat(ctx, req.Path)
	if err != nil {
		return nil, toStatus(err)
	}
	return &dvrpc.FilesStatResponse{
		Cid:            st.Cid.String(),
		Type:           st.Type,
		Size:           st.Size,
		CumulativeSize: st.CumulativeSize,
		Blocks:         st.Blocks,
	}, nil
}
