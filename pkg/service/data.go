package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"regexp"

	dvrpc "dagvault/pkg/api/dvrpc/v1"
	"dagvault/pkg/app"
	"dagvault/pkg/pin"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var sha256Pattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

type DataService struct {
	dvrpc.UnimplementedDataServiceServer
	app *app.App
}

func NewDataService(application *app.App) *DataService {
	return &DataService{
		app: application,
	}
}

// =============================================================================
// 0. Pre-check (秒传)
// =============================================================================

// CheckFile 实现了“双阶段上传”的第一阶段
// 客户端提供文件的 sha256 和大小，服务端检查是否已有对应的 file 节点
func (s *DataService) CheckFile(ctx context.Context, req *dvrpc.CheckFileRequest) (*dvrpc.CheckFileResponse, error) {
	// 1. 参数校验
	if !sha256Pattern.MatchString(req.Sha256) {
		return nil, status.Error(codes.InvalidArgument, "invalid sha256 format")
	}
	if s.app.Repository == nil {
		return &dvrpc.CheckFileResponse{Exists: false}, nil
	}

	// 2. 查询元数据索引
	idx, err := s.app.Repository.GetFileIndex(ctx, req.Sha256)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to query file index: %v", err)
	}
	if idx == nil {
		return &dvrpc.CheckFileResponse{Exists: false}, nil
	}

	// 3. 大小不一致说明索引脏了，强制客户端重传
	if idx.SizeBytes != req.Size {
		log.Warnw("file index size mismatch", "sha256", req.Sha256, "indexed", idx.SizeBytes, "claimed", req.Size)
		return &dvrpc.CheckFileResponse{Exists: false}, nil
	}

	// 4. 索引存在但节点可能已被删除
	root, err := cid.Decode(idx.RootCid)
	if err != nil {
		return &dvrpc.CheckFileResponse{Exists: false}, nil
	}
	exists, err := s.app.Store.Has(ctx, root)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "storage check failed: %v", err)
	}
	if !exists {
		log.Warnw("dangling file index", "sha256", req.Sha256, "cid", root)
		return &dvrpc.CheckFileResponse{Exists: false}, nil
	}

	log.Infow("instant upload", "sha256", req.Sha256[:8], "cid", root)
	return &dvrpc.CheckFileResponse{Exists: true, Cid: root.String()}, nil
}

// =============================================================================
// 1. Upload (Client-Side Streaming)
// =============================================================================

// Upload 接收客户端的流式上传
// 协议约定：第一帧必须是 Meta (含 sha256)，后续帧是 ChunkData
func (s *DataService) Upload(stream grpc.ClientStreamingServer[dvrpc.UploadRequest, dvrpc.UploadResponse]) error {
	ctx := stream.Context()

	// --- Step 1: 握手 ---
	firstReq, err := stream.Recv()
	if err == io.EOF {
		return status.Error(codes.InvalidArgument, "empty stream: expected metadata frame")
	}
	if err != nil {
		return status.Errorf(codes.Internal, "failed to receive metadata: %v", err)
	}
	meta := firstReq.Meta
	if meta == nil {
		return status.Error(codes.InvalidArgument, "protocol violation: first frame must be FileMeta")
	}
	if !sha256Pattern.MatchString(meta.Sha256) {
		return status.Errorf(codes.InvalidArgument, "invalid sha256 in metadata: %s", meta.Sha256)
	}
	log.Infow("receiving upload", "path", meta.Path, "sha256", meta.Sha256[:8])

	// --- Step 2: 导入期间持有 GC 共享锁 ---
	unlock, err := s.app.GCLock.RLock(ctx)
	if err != nil {
		return toStatus(err)
	}
	defer unlock()

	// 读流的同时计算整文件 sha256
	hasher := sha256.New()
	tee := io.TeeReader(NewGrpcStreamReader(stream), hasher)
	res, err := s.app.Ingester.IngestFile(ctx, tee)
	if err != nil {
		if st, ok := status.FromError(err); ok {
			return st.Err()
		}
		if isContextErr(err) {
			return toStatus(err)
		}
		return status.Errorf(codes.Internal, "ingestion failed: %v", err)
	}

	// --- Step 3: 完整性校验 ---
	actual := hex.EncodeToString(hasher.Sum(nil))
	if actual != meta.Sha256 {
		log.Errorw("integrity check failed", "claimed", meta.Sha256, "actual", actual)
		return status.Error(codes.DataLoss, "integrity check failed: data corruption detected")
	}

	// --- Step 4: 建立索引，失败不影响上传结果 ---
	if s.app.Repository != nil {
		if err := s.app.Repository.SaveFileIndex(ctx, actual, res.Cid.String(), int64(res.Size)); err != nil {
			log.Warnw("failed to save file index", "error", err)
		}
	}

	// --- Step 5: 可选 pin ---
	if meta.Pin {
		if _, err := s.app.Pins.Add(ctx, []string{res.Cid.String()}, pin.Recursive(true), pin.LockHeld()); err != nil {
			return toStatus(err)
		}
	}

	return stream.SendAndClose(&dvrpc.UploadResponse{
		Cid:    res.Cid.String(),
		Size:   res.Size,
		Chunks: res.Chunks,
	})
}

// =============================================================================
// 2. Cat (Server-Side Streaming)
// =============================================================================

// Cat 按路径读取文件内容
func (s *DataService) Cat(req *dvrpc.CatRequest, stream grpc.ServerStreamingServer[dvrpc.CatResponse]) error {
	ctx := stream.Context()

	id, err := s.app.Resolver.Resolve(ctx, req.Path)
	if err != nil {
		return toStatus(err)
	}
	if err := s.app.Exporter.Cat(ctx, id, NewGrpcStreamWriter(stream)); err != nil {
		return toStatus(err)
	}
	return nil
}
