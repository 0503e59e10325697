package dvrpc

// -----------------------------------------------------------------------------
// NodeService
// -----------------------------------------------------------------------------

type PinAddRequest struct {
	Paths     []string `cbor:"paths"`
	Recursive bool     `cbor:"recursive"`
}

type PinAddResponse struct {
	Cids []string `cbor:"cids"`
}

type PinRmRequest struct {
	Paths     []string `cbor:"paths"`
	Recursive bool     `cbor:"recursive"`
}

type PinRmResponse struct {
	Cids []string `cbor:"cids"`
}

// PinLsRequest Paths 为空时列出全部 pin
type PinLsRequest struct {
	Paths []string `cbor:"paths,omitempty"`
	Type  string   `cbor:"type,omitempty"`
}

// PinLsResponse 每条结果一帧；Error 非空表示该路径查询失败
type PinLsResponse struct {
	Cid   string `cbor:"cid,omitempty"`
	Type  string `cbor:"type,omitempty"`
	Path  string `cbor:"path,omitempty"`
	Error string `cbor:"error,omitempty"`
}

type PinVerifyRequest struct{}

type BadPin struct {
	Cid   string `cbor:"cid"`
	Error string `cbor:"error"`
}

type PinVerifyResponse struct {
	Recursive int      `cbor:"recursive"`
	Bad       []BadPin `cbor:"bad,omitempty"`
}

// DirOptions 零值字段使用服务端配置
// CidVersion 用指针区分 "未设置" 和显式的 v0
type DirOptions struct {
	ShardSplitThreshold int     `cbor:"shard_split_threshold,omitempty"`
	Fanout              int     `cbor:"fanout,omitempty"`
	CidVersion          *uint64 `cbor:"cid_version,omitempty"`
	HashAlg             string  `cbor:"hash_alg,omitempty"`
	Codec               string  `cbor:"codec,omitempty"`
	// DryRun 只计算新的 CID，不写入节点
	DryRun bool `cbor:"dry_run,omitempty"`
}

type AddLinkRequest struct {
	Parent  string      `cbor:"parent"`
	Name    string      `cbor:"name"`
	Target  string      `cbor:"target"`
	Size    int64       `cbor:"size"`
	Options *DirOptions `cbor:"options,omitempty"`
}

type AddLinkResponse struct {
	Cid string `cbor:"cid"`
}

type FilesLinkRequest struct {
	Dir    string `cbor:"dir"`
	Name   string `cbor:"name"`
	Target string `cbor:"target"`
}

type FilesLinkResponse struct {
	Root string `cbor:"root"`
}

type FilesStatRequest struct {
	Path string `cbor:"path"`
}

type FilesStatResponse struct {
	Cid            string `cbor:"cid"`
	Type           string `cbor:"type"`
	Size           uint64 `cbor:"size"`
	CumulativeSize uint64 `cbor:"cumulative_size"`
	Blocks         int    `cbor:"blocks"`
}

// -----------------------------------------------------------------------------
// DataService
// -----------------------------------------------------------------------------

type CheckFileRequest struct {
	Sha256 string `cbor:"sha256"`
	Size   int64  `cbor:"size"`
}

type CheckFileResponse struct {
	Exists bool   `cbor:"exists"`
	Cid    string `cbor:"cid,omitempty"`
}

type FileMeta struct {
	Path   string `cbor:"path"`
	Sha256 string `cbor:"sha256"`
	Pin    bool   `cbor:"pin,omitempty"`
}

// UploadRequest 第一帧只带 Meta，后续帧只带 ChunkData
type UploadRequest struct {
	Meta      *FileMeta `cbor:"meta,omitempty"`
	ChunkData []byte    `cbor:"chunk,omitempty"`
}

type UploadResponse struct {
	Cid    string `cbor:"cid"`
	Size   uint64 `cbor:"size"`
	Chunks int    `cbor:"chunks"`
}

type CatRequest struct {
	Path string `cbor:"path"`
}

type CatResponse struct {
	ChunkData []byte `cbor:"chunk"`
}
