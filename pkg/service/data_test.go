package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	dvrpc "dagvault/pkg/api/dvrpc/v1"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func uploadFrames(path, hash string, pin bool, chunks ...[]byte) []*dvrpc.UploadRequest {
	reqs := []*dvrpc.UploadRequest{{Meta: &dvrpc.FileMeta{Path: path, Sha256: hash, Pin: pin}}}
	for _, c := range chunks {
		reqs = append(reqs, &dvrpc.UploadRequest{ChunkData: c})
	}
	return reqs
}

func TestDataService_Upload_HappyPath(t *testing.T) {
	a := setupTestApp(t)
	svc := NewDataService(a)
	ctx := context.Background()

	// 1. 数据分成多帧发送
	data := []byte("hello grpc world")
	hash := sha256Hex(data)
	stream := &MockUploadStream{Requests: uploadFrames("test.txt", hash, true, data[:5], nil, data[5:])}

	// 2. 执行上传
	require.NoError(t, svc.Upload(stream))

	// 3. 验证响应
	require.NotNil(t, stream.Response)
	assert.EqualValues(t, len(data), stream.Response.Size)
	id, err := cid.Decode(stream.Response.Cid)
	require.NoError(t, err)

	// 4. 验证数据落地和 pin
	exists, err := a.Store.Has(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists, "file node should be in store")
	_, pinned, err := a.Pins.IsPinned(ctx, id)
	require.NoError(t, err)
	assert.True(t, pinned)

	// 5. 索引已建立
	idx, err := a.Repository.GetFileIndex(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, idx, "index should be created after successful upload")
	assert.Equal(t, stream.Response.Cid, idx.RootCid)
}

func TestDataService_Upload_ProtocolViolation(t *testing.T) {
	svc := NewDataService(setupTestApp(t))

	// 第一帧不是 Meta
	stream := &MockUploadStream{Requests: []*dvrpc.UploadRequest{{ChunkData: []byte("bad")}}}
	err := svc.Upload(stream)
	assert.Equal(t, codes.InvalidArgument, status.Code(err), "should reject data as first frame")

	// 空流
	err = svc.Upload(&MockUploadStream{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	// 非法哈希
	stream = &MockUploadStream{Requests: uploadFrames("a", "not-a-hash", false, []byte("x"))}
	err = svc.Upload(stream)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestDataService_Upload_IntegrityFail(t *testing.T) {
	a := setupTestApp(t)
	svc := NewDataService(a)
	ctx := context.Background()

	fakeHash := "000000000000000000000000000000000000000000000000000000000000dead"
	stream := &MockUploadStream{Requests: uploadFrames("test.txt", fakeHash, true, []byte("hello corrupted world"))}

	err := svc.Upload(stream)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.DataLoss, st.Code())
	assert.Contains(t, st.Message(), "integrity check failed")

	// 没有索引，也没有 pin
	idx, err := a.Repository.GetFileIndex(ctx, fakeHash)
	require.NoError(t, err)
	assert.Nil(t, idx, "index should not be created for corrupted upload")
	direct, recursive := a.Pins.Counts()
	assert.Zero(t, direct+recursive)
}

func TestDataService_CheckFile(t *testing.T) {
	a := setupTestApp(t)
	svc := NewDataService(a)
	ctx := context.Background()

	data := []byte("instant upload candidate")
	hash := sha256Hex(data)

	// 1. 上传前不存在
	resp, err := svc.CheckFile(ctx, &dvrpc.CheckFileRequest{Sha256: hash, Size: int64(len(data))})
	require.NoError(t, err)
	assert.False(t, resp.Exists)

	// 2. 上传后命中
	stream := &MockUploadStream{Requests: uploadFrames("f", hash, false, data)}
	require.NoError(t, svc.Upload(stream))
	resp, err = svc.CheckFile(ctx, &dvrpc.CheckFileRequest{Sha256: hash, Size: int64(len(data))})
	require.NoError(t, err)
	assert.True(t, resp.Exists)
	assert.Equal(t, stream.Response.Cid, resp.Cid)

	// 3. 大小不一致时强制重传
	resp, err = svc.CheckFile(ctx, &dvrpc.CheckFileRequest{Sha256: hash, Size: 1})
	require.NoError(t, err)
	assert.False(t, resp.Exists)

	// 4. 块丢失时强制重传
	id, err := cid.Decode(stream.Response.Cid)
	require.NoError(t, err)
	require.NoError(t, a.Store.Delete(ctx, id))
	resp, err = svc.CheckFile(ctx, &dvrpc.CheckFileRequest{Sha256: hash, Size: int64(len(data))})
	require.NoError(t, err)
	assert.False(t, resp.Exists)

	// 5. 非法参数
	_, err = svc.CheckFile(ctx, &dvrpc.CheckFileRequest{Sha256: "xyz"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestDataService_Cat(t *testing.T) {
	a := setupTestApp(t)
	svc := NewDataService(a)

	data := bytes.Repeat([]byte("dagvault "), 1000)
	up := &MockUploadStream{Requests: uploadFrames("f", sha256Hex(data), false, data)}
	require.NoError(t, svc.Upload(up))

	stream := &MockCatStream{}
	require.NoError(t, svc.Cat(&dvrpc.CatRequest{Path: "/ipfs/" + up.Response.Cid}, stream))

	var received bytes.Buffer
	for _, resp := range stream.Responses {
		received.Write(resp.ChunkData)
	}
	assert.Equal(t, data, received.Bytes())
}

func TestDataService_Cat_Errors(t *testing.T) {
	svc := NewDataService(setupTestApp(t))

	err := svc.Cat(&dvrpc.CatRequest{Path: "not-a-cid"}, &MockCatStream{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	missing := "bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy"
	err = svc.Cat(&dvrpc.CatRequest{Path: missing}, &MockCatStream{})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

type errStream struct{ frames []*dvrpc.UploadRequest }

func (s *errStream) Recv() (*dvrpc.UploadRequest, error) {
	if len(s.frames) == 0 {
		return nil, errors.New("connection reset")
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func TestGrpcStreamReader(t *testing.T) {
	t.Run("ReassemblesFrames", func(t *testing.T) {
		stream := &MockUploadStream{Requests: []*dvrpc.UploadRequest{
			{ChunkData: []byte("ab")}, {}, {ChunkData: []byte("cde")},
		}}
		data, err := io.ReadAll(NewGrpcStreamReader(stream))
		require.NoError(t, err)
		assert.Equal(t, "abcde", string(data))
	})

	t.Run("StickyError", func(t *testing.T) {
		r := NewGrpcStreamReader(&errStream{frames: []*dvrpc.UploadRequest{{ChunkData: []byte("x")}}})
		_, err := io.ReadAll(r)
		assert.ErrorContains(t, err, "connection reset")
		_, err = r.Read(make([]byte, 1))
		assert.ErrorContains(t, err, "connection reset")
	})

	t.Run("MetaMidStream", func(t *testing.T) {
		r := NewGrpcStreamReader(&errStream{frames: []*dvrpc.UploadRequest{{Meta: &dvrpc.FileMeta{}}}})
		_, err := io.ReadAll(r)
		assert.ErrorContains(t, err, "protocol violation")
	})
}
