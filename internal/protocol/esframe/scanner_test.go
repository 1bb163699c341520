package esframe

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shape 把扫描结果压成可比较的摘要
type shape struct {
	Kind   Kind
	Offset int
	Len    int
	OK     bool
}

func shapes(r ScanResult) []shape {
	out := make([]shape, 0, len(r))
	for _, it := range r {
		out = append(out, shape{Kind: it.Kind, Offset: it.Offset, Len: len(it.Bytes), OK: it.OK()})
	}
	return out
}

func TestScan_Empty(t *testing.T) {
	assert.Empty(t, Scan(nil))
	assert.Empty(t, Scan([]byte{}))
}

func TestScan_PureNoise(t *testing.T) {
	buf := []byte{0xFE, 0xFE, 0x11, 0x00, 0xA8}
	res := Scan(buf)
	require.Len(t, res, len(buf))
	for i, it := range res {
		assert.Equal(t, KindRaw, it.Kind)
		assert.Equal(t, i, it.Offset)
		assert.Equal(t, buf[i], it.Raw())
		assert.False(t, it.OK())
	}
}

func TestScan_CorruptedChecksumIsOneBadFrame(t *testing.T) {
	raw := MustEncode([]byte{0xA0, 0x42, 0x00, 0x21})
	raw[len(raw)-1] ^= 0xFF

	res := Scan(raw)
	require.Len(t, res, 1)
	assert.Equal(t, KindFrame, res[0].Kind)
	assert.False(t, res[0].OK())
	assert.Equal(t, raw, res[0].Bytes)
}

func TestScan_TruncatedFrameYieldsRawBytes(t *testing.T) {
	buf := []byte{0x02, 0x03, 0xA0, 0x55, 0x00}
	res := Scan(buf)
	require.Len(t, res, 5)
	for i, it := range res {
		assert.Equal(t, KindRaw, it.Kind, "item %d", i)
		assert.Equal(t, buf[i], it.Raw())
	}
}

func TestScan_MixedStream(t *testing.T) {
	power := MustEncode([]byte{0xA0, 0x60, 0x00, 0x01})
	status := MustEncode([]byte{0xA8, 0x82, 0x00, 0x21, 0x10})
	bad := []byte{0x02, 0x02, 0xA1, 0x00, 0x00}

	var buf []byte
	buf = append(buf, 0xFE)
	buf = append(buf, power...)
	buf = append(buf, 0xFE, 0xFE)
	buf = append(buf, status...)
	buf = append(buf, bad...)
	buf = append(buf, 0x02) // 末尾孤立 STX

	want := []shape{
		{KindRaw, 0, 1, false},
		{KindFrame, 1, len(power), true},
		{KindRaw, 8, 1, false},
		{KindRaw, 9, 1, false},
		{KindFrame, 10, len(status), true},
		{KindFrame, 18, len(bad), false},
		{KindRaw, 23, 1, false},
	}
	if diff := cmp.Diff(want, shapes(Scan(buf))); diff != "" {
		t.Fatalf("scan mismatch (-want +got):\n%s", diff)
	}

	ok, badN, rawN := Scan(buf).Counts()
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, badN)
	assert.Equal(t, 4, rawN)
}

func TestScan_ResyncAfterOverrunningLength(t *testing.T) {
	// 0x02 声明的长度超出剩余字节，逐字节输出后仍能识别后续正常帧
	good := MustEncode([]byte{0xA1, 0x00})
	buf := append([]byte{0x02, 0x40}, good...)

	res := Scan(buf)
	want := []shape{
		{KindRaw, 0, 1, false},
		{KindRaw, 1, 1, false},
		{KindFrame, 2, len(good), true},
	}
	if diff := cmp.Diff(want, shapes(res)); diff != "" {
		t.Fatalf("scan mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []byte{0xA1, 0x00}, res[2].Frame.Payload)
}

func TestScan_EmbeddedStartByteAmbiguity(t *testing.T) {
	// payload 内的 0x02 不会被当作新帧：整帧先被消费
	raw := MustEncode([]byte{0x02, 0x00, 0xFE})
	res := Scan(raw)
	require.Len(t, res, 1)
	assert.True(t, res[0].OK())
}

func TestScan_Deterministic(t *testing.T) {
	buf := append(MustEncode([]byte{0xA0, 0x55, 0x00}), 0x00, 0x02, 0x01)
	assert.Equal(t, shapes(Scan(buf)), shapes(Scan(buf)))
	assert.Len(t, Scan(buf).Frames(), 1)
}
