package esframe

// Kind 扫描条目类型
type Kind uint8

const (
	KindRaw Kind = iota
	KindFrame
)

func (k Kind) String() string {
	switch k {
	case KindFrame:
		return "frame"
	case KindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Item 扫描结果中的一个条目：一帧（OK/BAD）或一个游离字节
type Item struct {
	Kind   Kind
	Offset int    // 条目首字节在源缓冲区中的偏移
	Bytes  []byte // 帧：整帧字节；游离字节：长度为 1
	Frame  Frame  // 仅 KindFrame 有效
}

// OK 帧校验结果；游离字节恒为 false
func (it Item) OK() bool {
	return it.Kind == KindFrame && it.Frame.OK()
}

// Raw 游离字节的值
func (it Item) Raw() byte {
	if len(it.Bytes) == 0 {
		return 0
	}
	return it.Bytes[0]
}

// ScanResult 按源偏移排序的条目序列，不重排、不去重
type ScanResult []Item

// Frames 仅返回帧条目
func (r ScanResult) Frames() []Item {
	out := make([]Item, 0, len(r))
	for _, it := range r {
		if it.Kind == KindFrame {
			out = append(out, it)
		}
	}
	return out
}

// Counts 统计 OK 帧、BAD 帧与游离字节数
func (r ScanResult) Counts() (ok, bad, raw int) {
	for _, it := range r {
		switch {
		case it.Kind == KindRaw:
			raw++
		case it.OK():
			ok++
		default:
			bad++
		}
	}
	return ok, bad, raw
}

// Scan 单遍扫描任意字节缓冲区，切出帧与游离字节
//
// 游标处为 STX 且声明长度放得下校验字节时，整段作为一帧消费，
// 无论校验 OK 还是 BAD 都不在帧内逐字节重同步；否则该字节作为游离字节输出，游标前进 1。
// payload 中出现的 0x02 与帧起始无法区分，这是协议本身的歧义，这里不做任何转义假设。
func Scan(buf []byte) ScanResult {
	if len(buf) == 0 {
		return ScanResult{}
	}
	res := make(ScanResult, 0, 4)
	for i := 0; i < len(buf); {
		if buf[i] == StartByte {
			if end, ok := frameEnd(buf, i); ok {
				raw := buf[i : end+1]
				res = append(res, Item{
					Kind:   KindFrame,
					Offset: i,
					Bytes:  raw,
					Frame: Frame{
						Length:   raw[1],
						Payload:  raw[headerLen : len(raw)-1],
						Checksum: raw[len(raw)-1],
					},
				})
				i = end + 1
				continue
			}
		}
		res = append(res, Item{Kind: KindRaw, Offset: i, Bytes: buf[i : i+1]})
		i++
	}
	return res
}
