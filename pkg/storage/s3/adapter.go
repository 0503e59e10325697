package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"dagvault/pkg/core"
	"dagvault/pkg/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("dagvault/storage/s3")

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	client *s3.Client
	bucket string
}

// Config 用于初始化 Adapter
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

// NewAdapter 初始化 S3 客户端
func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	// 1. 加载基础配置 (仅包含 Region 和 Credentials)
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	// 2. 创建 S3 客户端时，注入特定于 S3 的配置
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// MinIO 必须强制使用 Path Style: http://host:9000/bucket/key
		o.UsePathStyle = true
	})

	// 3. 自动创建 Bucket
	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &cfg.Bucket})
	if err != nil {
		_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &cfg.Bucket})
		if err != nil {
			log.Warnw("failed to ensure bucket exists", "bucket", cfg.Bucket, "error", err)
		}
	}

	return &Adapter{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// transformKey 将 CID 转换为 S3 Key
// Logic: multihash hex "1220...abcd" -> "blocks/bc/1220...abcd"
func (s *Adapter) transformKey(id cid.Cid) string {
	key := storage.Key(id)
	return "blocks/" + key[len(key)-3:len(key)-1] + "/" + key
}

// Put 上传块
func (s *Adapter) Put(ctx context.Context, blk core.Block) error {
	// 1. 幂等性检查 (去重)
	// 对于 S3，Head 请求比 Put 请求便宜且快
	exists, err := s.Has(ctx, blk.Cid())
	if err != nil {
		return fmt.Errorf("s3 put existence check failed: %w", err)
	}
	if exists {
		return nil
	}

	// 2. 执行上传
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.transformKey(blk.Cid())),
		Body:        bytes.NewReader(blk.RawData()),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("s3 put failed: %w", err)
	}
	return nil
}

// Get 下载块
func (s *Adapter) Get(ctx context.Context, id cid.Cid) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.transformKey(id)),
	})
	if err != nil {
		// 将 AWS 的 NoSuchKey 错误映射为我们自己的 ErrNotFound
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get failed: %w", err)
	}
	return resp.Body, nil
}

// Has 检查块是否存在
func (s *Adapter) Has(ctx context.Context, id cid.Cid) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.transformKey(id)),
	})
	if err == nil {
		return true, nil
	}

	var notFound *s3types.NotFound
	var noKey *s3types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noKey) {
		return false, nil
	}
	// 兼容性：某些 S3 实现可能返回 generic 404 error string
	if strings.Contains(err.Error(), "404") {
		return false, nil
	}
	return false, err
}

// Delete 删除块，S3 对不存在的 Key 也返回成功
func (s *Adapter) Delete(ctx context.Context, id cid.Cid) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.transformKey(id)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}
