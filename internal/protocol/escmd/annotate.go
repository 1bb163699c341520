package escmd

import "fmt"

// Annotator 载荷注解钩子：识别机型相关的状态字段，返回可读描述
// 只做展示增强，不影响帧解析结果
type Annotator interface {
	Annotate(payload []byte) (string, bool)
}

// AnnotatorFunc 函数适配器
type AnnotatorFunc func(payload []byte) (string, bool)

func (f AnnotatorFunc) Annotate(payload []byte) (string, bool) { return f(payload) }

// NopAnnotator 不识别任何载荷
var NopAnnotator Annotator = AnnotatorFunc(func([]byte) (string, bool) { return "", false })

// StatusAnnotator 识别 A8 82 状态通知，字段含义随机型而变，这里只列出原始字段与末字节标志
type StatusAnnotator struct{}

func (StatusAnnotator) Annotate(payload []byte) (string, bool) {
	if len(payload) < 2 || payload[0] != CatStatus || payload[1] != StatusNotify {
		return "", false
	}
	fields := payload[2:]
	s := "A8 82 status fields: " + Hex(fields)
	if len(fields) > 0 {
		s += fmt.Sprintf(" flags=0x%02X", fields[len(fields)-1])
	}
	return s, true
}

// Chain 依次尝试，返回第一个命中的注解
func Chain(as ...Annotator) Annotator {
	return AnnotatorFunc(func(payload []byte) (string, bool) {
		for _, a := range as {
			if a == nil {
				continue
			}
			if s, ok := a.Annotate(payload); ok {
				return s, true
			}
		}
		return "", false
	})
}
