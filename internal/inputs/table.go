package inputs

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/taoyao-code/esctl/internal/protocol/escmd"
)

var ErrUnknownInput = errors.New("unknown input")

// Table 输入源名称 -> 码值 映射；构造后只读，可在多个 goroutine 间共享
type Table struct {
	codes map[string]byte
	names []string
}

// defaultCodes 源选择码（RTI 驱动 "Source Selections" 表）
var defaultCodes = map[string]byte{
	"tuner": 0x00, "phono": 0x01, "cd": 0x02, "dat": 0x03, "md": 0x04,
	"tape1": 0x05, "tape2": 0x06, "digital1": 0x07, "digital2": 0x08, "digital3": 0x09,
	"aux1": 0x0A, "aux2": 0x0B, "md_wm": 0x0C, "md2": 0x0D, "ms": 0x0E, "source": 0x0F,
	"video1": 0x10, "video2": 0x11, "video3": 0x12, "video4": 0x13, "video5": 0x14,
	"ld": 0x15, "sat_tv": 0x16, "dbs": 0x17, "vcd": 0x18, "dvd": 0x19, "tv": 0x1A,
	"bd": 0x1B, "game": 0x1C, "multi_in": 0x20,
	"hdmi1": 0x21, "hdmi2": 0x22, "hdmi3": 0x23, "hdmi4": 0x24, "hdmi5": 0x25, "hdmi6": 0x26,
	"xm_radio": 0x2A, "dm_port1": 0x2B, "dm_port2": 0x2C, "sirius": 0x2D,
	"fm": 0x2E, "am": 0x2F,
	"server": 0x30, "rhapsody": 0x31, "shoutcast": 0x32, "bluetooth": 0x33, "usb": 0x34,
	"airplay": 0x35, "music_media": 0x36, "video_media": 0x37, "photo_media": 0x38,
	"internet_contents": 0x39, "internet_music": 0x3A, "internet_video": 0x3B, "internet_photo": 0x3C,
	"network": 0x3D, "sen": 0x3E, "stb": 0x3F,
}

var defaultTable = sync.OnceValue(func() *Table { return NewTable(defaultCodes) })

// Default 内置映射表（进程内只构造一次）
func Default() *Table { return defaultTable() }

// NewTable 复制传入映射构造只读表，名称统一小写
func NewTable(codes map[string]byte) *Table {
	t := &Table{codes: make(map[string]byte, len(codes))}
	for k, v := range codes {
		t.codes[normalize(k)] = v
	}
	t.names = make([]string, 0, len(t.codes))
	for k := range t.codes {
		t.names = append(t.names, k)
	}
	sort.Strings(t.names)
	return t
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Resolve 按名称查码值
func (t *Table) Resolve(name string) (byte, error) {
	if v, ok := t.codes[normalize(name)]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownInput, name)
}

// ResolveCode 解析十六进制码值，如 "21" 或 "0x21"；不要求码值在表内
func (t *Table) ResolveCode(hexCode string) (byte, error) {
	s := strings.TrimPrefix(normalize(hexCode), "0x")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: code %q", ErrUnknownInput, hexCode)
	}
	return byte(v), nil
}

// Lookup 先按名称，再按十六进制码值
func (t *Table) Lookup(nameOrCode string) (byte, error) {
	if v, err := t.Resolve(nameOrCode); err == nil {
		return v, nil
	}
	return t.ResolveCode(nameOrCode)
}

// Has 名称是否在表内
func (t *Table) Has(name string) bool {
	_, ok := t.codes[normalize(name)]
	return ok
}

// Names 已排序的名称列表（返回副本）
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Len 表项数
func (t *Table) Len() int { return len(t.codes) }

// Name 反查名称；同码多名时取字典序最小者
func (t *Table) Name(code byte) (string, bool) {
	for _, n := range t.names {
		if t.codes[n] == code {
			return n, true
		}
	}
	return "", false
}

// Annotator 识别切换输入源的载荷（A0 42 00 <code>），部分机型会回显该帧
func (t *Table) Annotator() escmd.Annotator {
	return escmd.AnnotatorFunc(func(payload []byte) (string, bool) {
		if len(payload) != 4 || payload[0] != escmd.CatControl || payload[1] != escmd.FnInput {
			return "", false
		}
		code := payload[3]
		name, ok := t.Name(code)
		if !ok {
			return fmt.Sprintf("input select: 0x%02X", code), true
		}
		return fmt.Sprintf("input select: %s (0x%02X)", name, code), true
	})
}

// overrideFile YAML 覆盖文件格式
//
//	inputs:
//	  hdmi1: 0x21
//	  media_box: 0x3F
type overrideFile struct {
	Inputs map[string]int `yaml:"inputs"`
}

// LoadFile 以 base 为底合并 YAML 覆盖文件，返回新表；base 不变
func LoadFile(base *Table, path string) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input map: %w", err)
	}
	var f overrideFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("unmarshal input map: %w", err)
	}
	merged := make(map[string]byte, base.Len()+len(f.Inputs))
	for k, v := range base.codes {
		merged[k] = v
	}
	for k, v := range f.Inputs {
		if v < 0 || v > 0xFF {
			return nil, fmt.Errorf("input %q: code %d out of range", k, v)
		}
		merged[k] = byte(v)
	}
	return NewTable(merged), nil
}
