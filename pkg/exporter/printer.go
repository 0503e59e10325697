package exporter

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"text/tabwriter"

	"dagvault/pkg/core"
	"dagvault/pkg/hamt"

	"github.com/dustin/go-humanize"
	"github.com/ipfs/go-cid"
)

// PrintNode 按类型打印节点的结构 (dv object)
func (e *Exporter) PrintNode(ctx context.Context, id cid.Cid, w io.Writer) error {
	n, err := e.dag.Get(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "CID:     %s\n", id)
	fmt.Fprintf(w, "Codec:   %s\n", core.CodecName(id.Prefix().Codec))

	if id.Prefix().Codec == core.CodecRaw {
		fmt.Fprintf(w, "Type:    raw block\n")
		fmt.Fprintf(w, "Size:    %s\n", humanize.IBytes(uint64(len(n.Data()))))
		return nil
	}

	fs, err := core.UnixFSOf(n)
	if err != nil {
		// 不是 UnixFS，只列出链接
		fmt.Fprintf(w, "Type:    dag node\n")
		fmt.Fprintf(w, "Data:    %s\n", humanize.IBytes(uint64(len(n.Data()))))
		return printLinks(w, n.Links())
	}

	fmt.Fprintf(w, "Type:    %s\n", fs.Type)
	switch fs.Type {
	case core.TFile:
		fmt.Fprintf(w, "Size:    %s\n", humanize.IBytes(fs.FileSize))
		fmt.Fprintf(w, "Chunks:  %d\n", n.NumLinks())
		return nil
	case core.TRaw:
		fmt.Fprintf(w, "Size:    %s\n", humanize.IBytes(uint64(len(fs.Data))))
		return nil
	case core.THAMTShard:
		b, err := hamt.Rehydrate(n, 0, 0)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Fanout:  %d\n", fs.Fanout)
		fmt.Fprintf(w, "Bitmap:  %s\n", hex.EncodeToString(b.BitField()))
		return printLinks(w, n.Links())
	case core.TDirectory:
		return printLinks(w, n.Links())
	default:
		return nil
	}
}

func printLinks(w io.Writer, links []core.Link) error {
	fmt.Fprintf(w, "Links:   %d\n\n", len(links))
	if len(links) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "NAME\tCID\tSIZE\n")
	for _, l := range links {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Name, l.Cid, humanize.IBytes(l.Size))
	}
	return tw.Flush()
}

// PrintListing 以表格打印目录条目 (dv ls)
func PrintListing(w io.Writer, links []core.Link) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	for _, l := range links {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Cid, fmtSize(l.Size), l.Name)
	}
	return tw.Flush()
}

func fmtSize(s uint64) string {
	if s == 0 {
		return "-"
	}
	return humanize.IBytes(s)
}
