package core

import (
	"fmt"

	"dagvault/pkg/errs"
)

// EmptyDirectory 返回一个没有任何链接的扁平目录
func EmptyDirectory() *Node {
	fs := UnixFS{Type: TDirectory}
	return NewNode(fs.Marshal(), nil)
}

// DirectoryKind 判断节点是扁平目录还是分片目录
// 非目录节点返回 ErrValidation
func DirectoryKind(n *Node) (DataType, *UnixFS, error) {
	fs, err := UnixFSOf(n)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	switch fs.Type {
	case TDirectory, THAMTShard:
		return fs.Type, fs, nil
	default:
		return 0, nil, fmt.Errorf("%w: node is a %s, not a directory", errs.ErrValidation, fs.Type)
	}
}
