package escmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// 命令载荷（不含 STX/len/sum，组帧见 esframe.Encode）
const (
	CatControl byte = 0xA0
	CatQuery   byte = 0xA1
	// CatStatus 设备主动上报的状态通知
	CatStatus byte = 0xA8

	FnInput      byte = 0x42
	FnVolumeUp   byte = 0x55
	FnVolumeDown byte = 0x56
	FnPower      byte = 0x60

	StatusNotify byte = 0x82
)

var ErrBadHex = errors.New("invalid hex payload")

// Power 开/关机：A0 60 00 01|00
func Power(on bool) []byte {
	v := byte(0x00)
	if on {
		v = 0x01
	}
	return []byte{CatControl, FnPower, 0x00, v}
}

// Volume 音量步进：A0 55 00 / A0 56 00
func Volume(up bool) []byte {
	fn := FnVolumeDown
	if up {
		fn = FnVolumeUp
	}
	return []byte{CatControl, fn, 0x00}
}

// Input 切换输入源：A0 42 00 <code>
func Input(code byte) []byte {
	return []byte{CatControl, FnInput, 0x00, code}
}

// QueryPower 查询电源状态；多数机型忽略，状态改由 A8 82 通知上报
func QueryPower() []byte {
	return []byte{CatQuery, 0x00}
}

// ParseHex 解析十六进制载荷
// 支持 "A0 42 00 21"、"A0,42"、"A0:42"、"A0-42" 以及连续写法 "A0420021"
func ParseHex(s string) ([]byte, error) {
	norm := strings.NewReplacer(",", " ", ":", " ", "-", " ").Replace(s)
	parts := strings.Fields(norm)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrBadHex)
	}
	if len(parts) == 1 && len(parts[0]) > 2 {
		return parseRun(parts[0])
	}
	out := make([]byte, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(p), "0x"), 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadHex, p)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

func parseRun(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %q", ErrBadHex, s)
	}
	out := make([]byte, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		v, err := strconv.ParseUint(s[i:i+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadHex, s[i:i+2])
		}
		out = append(out, byte(v))
	}
	return out, nil
}

// Hex 以 "AA BB CC" 形式输出
func Hex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i, x := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", x)
	}
	return sb.String()
}
