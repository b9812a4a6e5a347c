package gsusb

import (
	"encoding/binary"
	"go/build/constraint"
	"go/parser"
	"go/token"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notnil/thermnode/canbus"
)

// candleLight (STM32F072) limits.
var candleBTConst = btConst{
	FclkCAN:  48000000,
	Tseg1Min: 1,
	Tseg1Max: 16,
	Tseg2Min: 1,
	Tseg2Max: 8,
	SJWMax:   4,
	BRPMin:   1,
	BRPMax:   1024,
	BRPInc:   1,
}

func TestTiming(t *testing.T) {
	cases := []struct {
		bitrate uint32
		want    bitTiming
	}{
		{500000, bitTiming{PropSeg: 1, PhaseSeg1: 12, PhaseSeg2: 2, SJW: 1, BRP: 6}},
		{250000, bitTiming{PropSeg: 1, PhaseSeg1: 12, PhaseSeg2: 2, SJW: 1, BRP: 12}},
		{1000000, bitTiming{PropSeg: 1, PhaseSeg1: 12, PhaseSeg2: 2, SJW: 1, BRP: 3}},
	}
	for _, tc := range cases {
		got, err := timing(candleBTConst, tc.bitrate)
		require.NoError(t, err, tc.bitrate)
		assert.Equal(t, tc.want, got, tc.bitrate)
		tq := 1 + got.PropSeg + got.PhaseSeg1 + got.PhaseSeg2
		assert.Equal(t, tc.bitrate, candleBTConst.FclkCAN/(got.BRP*tq))
	}
}

func TestTiming_Impossible(t *testing.T) {
	_, err := timing(candleBTConst, 0)
	assert.Error(t, err)
	_, err = timing(candleBTConst, 333333)
	assert.Error(t, err)
}

func TestParseBTConst(t *testing.T) {
	b := make([]byte, 40)
	binary.LittleEndian.PutUint32(b[4:], 48000000)
	binary.LittleEndian.PutUint32(b[32:], 1024)
	c, err := parseBTConst(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(48000000), c.FclkCAN)
	assert.Equal(t, uint32(1024), c.BRPMax)

	_, err = parseBTConst(b[:39])
	assert.Error(t, err)
}

func TestFrame_RoundTrip(t *testing.T) {
	in := canbus.MustFrame(0x1839F380, []byte{0x00, 0xD8, 0x78, 0x21, 0x01, 0x01, 0x00, 0xD4})
	b, err := encodeFrame(echoRX, 1, in)
	require.NoError(t, err)
	require.Len(t, b, frameSize)
	// can_id carries CAN_EFF_FLAG.
	assert.NotZero(t, b[7]&0x80, "% X", b[4:8])
	assert.Equal(t, uint8(1), b[9])

	echo, out, err := decodeFrame(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(echoRX), echo)
	assert.Equal(t, in, out)

	_, _, err = decodeFrame(b[:10])
	assert.Error(t, err)
}

func TestFrame_Standard(t *testing.T) {
	in := canbus.Frame{ID: 0x123, Len: 2, Data: [8]byte{0xAA, 0xBB}}
	b, err := encodeFrame(3, 0, in)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x123), binary.LittleEndian.Uint32(b[4:8]))
	_, out, err := decodeFrame(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeFrame_Invalid(t *testing.T) {
	_, err := encodeFrame(0, 0, canbus.Frame{ID: 0x800, Len: 1})
	assert.ErrorIs(t, err, canbus.ErrInvalidID)
}

// gousb needs cgo and libusb; only cgo builds may import it.
func TestGousbRequiresCgo(t *testing.T) {
	entries, err := os.ReadDir(".")
	require.NoError(t, err)
	fset := token.NewFileSet()
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".go") {
			continue
		}
		f, err := parser.ParseFile(fset, name, nil, parser.ImportsOnly|parser.ParseComments)
		require.NoError(t, err)
		usesGousb := false
		for _, imp := range f.Imports {
			if imp.Path.Value == `"github.com/google/gousb"` {
				usesGousb = true
			}
		}
		if !usesGousb {
			continue
		}
		var expr constraint.Expr
		for _, c := range f.Comments {
			for _, line := range c.List {
				if constraint.IsGoBuild(line.Text) {
					expr, err = constraint.Parse(line.Text)
					require.NoError(t, err)
				}
			}
		}
		require.NotNil(t, expr, "%s imports gousb without a build constraint", name)
		assert.False(t, expr.Eval(func(tag string) bool { return tag != "cgo" }), "%s builds without cgo", name)
	}
}
