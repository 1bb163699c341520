package render

import (
	"fmt"
	"io"

	"github.com/taoyao-code/esctl/internal/protocol/escmd"
	"github.com/taoyao-code/esctl/internal/protocol/esframe"
)

// Entry 单个扫描条目的展示形式（HTTP/JSON 与通知转发共用）
type Entry struct {
	Kind       string `json:"kind"`
	Offset     int    `json:"offset"`
	Hex        string `json:"hex"`
	Payload    string `json:"payload,omitempty"`
	OK         *bool  `json:"ok,omitempty"`
	Annotation string `json:"annotation,omitempty"`
}

// Summary 一次回复/捕获的展示形式
type Summary struct {
	Bytes   int     `json:"bytes"`
	Raw     string  `json:"raw"`
	Frames  int     `json:"frames"`
	Bad     int     `json:"bad"`
	Stray   int     `json:"stray"`
	Entries []Entry `json:"entries"`
}

// Entries 把扫描结果转换为展示条目
func Entries(res esframe.ScanResult, ann escmd.Annotator) []Entry {
	if ann == nil {
		ann = escmd.NopAnnotator
	}
	out := make([]Entry, 0, len(res))
	for _, it := range res {
		e := Entry{Kind: it.Kind.String(), Offset: it.Offset, Hex: escmd.Hex(it.Bytes)}
		if it.Kind == esframe.KindFrame {
			ok := it.OK()
			e.OK = &ok
			e.Payload = escmd.Hex(it.Frame.Payload)
			if s, hit := ann.Annotate(it.Frame.Payload); hit {
				e.Annotation = s
			}
		}
		out = append(out, e)
	}
	return out
}

// Summarize 扫描原始字节并生成摘要
func Summarize(raw []byte, ann escmd.Annotator) Summary {
	res := esframe.Scan(raw)
	ok, bad, stray := res.Counts()
	return Summary{
		Bytes:   len(raw),
		Raw:     escmd.Hex(raw),
		Frames:  ok + bad,
		Bad:     bad,
		Stray:   stray,
		Entries: Entries(res, ann),
	}
}

func okTag(ok bool) string {
	if ok {
		return "OK"
	}
	return "BAD"
}

// Text 按行输出原始字节与逐条扫描结果
func Text(w io.Writer, raw []byte, ann escmd.Annotator) error {
	if len(raw) == 0 {
		_, err := fmt.Fprintln(w, "Reply: <no data>")
		return err
	}
	if _, err := fmt.Fprintf(w, "Raw (%d): %s\n", len(raw), escmd.Hex(raw)); err != nil {
		return err
	}
	idx := 0
	for _, e := range Entries(esframe.Scan(raw), ann) {
		var err error
		switch {
		case e.Kind == esframe.KindRaw.String():
			_, err = fmt.Fprintf(w, "  Byte: %s\n", e.Hex)
		case e.Annotation != "":
			_, err = fmt.Fprintf(w, "  Frame[%d]: %s  (%s) | %s\n", idx, e.Hex, okTag(*e.OK), e.Annotation)
			idx++
		default:
			_, err = fmt.Fprintf(w, "  Frame[%d]: %s  (%s) | payload %s\n", idx, e.Hex, okTag(*e.OK), e.Payload)
			idx++
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Sent 命令发送行
func Sent(w io.Writer, frame, payload []byte) error {
	_, err := fmt.Fprintf(w, "Send:   %s  (payload %s)\n", escmd.Hex(frame), escmd.Hex(payload))
	return err
}
