package esframe

import (
	"errors"
	"fmt"
)

// 帧布局：STX(0x02) | len[1] | payload[len] | sum[1]
// sum = (-(len + Σpayload)) mod 256，无转义、无结束符
const (
	StartByte byte = 0x02
	// WakeByte 唤醒/保活字节，不属于帧协议，不参与校验
	WakeByte byte = 0xFE

	MaxPayloadLen = 0xFF
	// MinFrameLen 空载荷帧：STX + len + sum
	MinFrameLen = 3
	headerLen   = 2
)

var (
	ErrInvalidPayloadSize = errors.New("payload exceeds 255 bytes")
	ErrShortFrame         = errors.New("short frame")
	ErrBadStart           = errors.New("bad start byte")
	ErrLengthOverrun      = errors.New("declared length overruns buffer")
)

// Frame 一帧解码结果
type Frame struct {
	Length   uint8
	Payload  []byte
	Checksum uint8
}

// OK 校验和是否与 Length/Payload 重新计算的值一致
func (f Frame) OK() bool {
	return Checksum(f.Length, f.Payload) == f.Checksum
}

// Bytes 按线格式重新组帧（保留原始 Checksum，BAD 帧也原样还原）
func (f Frame) Bytes() []byte {
	out := make([]byte, 0, headerLen+len(f.Payload)+1)
	out = append(out, StartByte, f.Length)
	out = append(out, f.Payload...)
	return append(out, f.Checksum)
}

// Checksum 计算校验字节
// 全程 uint8 运算，溢出自动截断，不能放到有符号或更宽的类型里算
func Checksum(length uint8, payload []byte) uint8 {
	sum := length
	for _, b := range payload {
		sum += b
	}
	return -sum
}

// Encode 组帧
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPayloadSize, len(payload))
	}
	ln := uint8(len(payload))
	out := make([]byte, 0, headerLen+len(payload)+1)
	out = append(out, StartByte, ln)
	out = append(out, payload...)
	return append(out, Checksum(ln, payload)), nil
}

// MustEncode 用于编译期已知的命令常量，超长视为编程错误
func MustEncode(payload []byte) []byte {
	b, err := Encode(payload)
	if err != nil {
		panic(err)
	}
	return b
}

// frameEnd 返回校验字节下标；声明长度放不下时 ok=false
func frameEnd(b []byte, start int) (end int, ok bool) {
	if start+1 >= len(b) {
		return 0, false
	}
	end = start + headerLen + int(b[start+1])
	return end, end < len(b)
}

// Validate 纯谓词：结构完整且校验正确才返回 true
// 3 字节的空载荷帧（02 00 00）合法，不要求至少 4 字节，与 Encode 对空载荷的输出一致
func Validate(frame []byte) bool {
	f, err := Decode(frame)
	return err == nil && f.OK()
}

// Decode 解析一段以 STX 开头的字节
// 只报告结构错误；校验失败不是错误，由 Frame.OK 反映
func Decode(frame []byte) (Frame, error) {
	if len(frame) < MinFrameLen {
		return Frame{}, ErrShortFrame
	}
	if frame[0] != StartByte {
		return Frame{}, ErrBadStart
	}
	end, ok := frameEnd(frame, 0)
	if !ok {
		return Frame{}, ErrLengthOverrun
	}
	return Frame{
		Length:   frame[1],
		Payload:  frame[headerLen:end],
		Checksum: frame[end],
	}, nil
}
