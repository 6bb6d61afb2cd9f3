package alsa

import (
	"encoding/binary"
	"math"
	"strconv"
	"testing"

	yalsa "github.com/yobert/alsa"
)

var powerOfTwoTests = []struct {
	in, out int
}{
	{36, 32},
	{47, 32},
	{3, 4},
	{46, 32},
	{7, 8},
	{2, 2},
	{757, 512},
	{2464, 2048},
	{18980, 16384},
	{70000, 65536},
	{8192, 8192},
	{2048, 2048},
	{65536, 65536},
	{-2048, 1},
	{-127, 1},
	{-1, 1},
	{0, 1},
	{1, 2},
}

func TestNearestPowerOfTwo(t *testing.T) {
	for _, tt := range powerOfTwoTests {
		t.Run(strconv.Itoa(tt.in), func(t *testing.T) {
			if got := nearestPowerOfTwo(tt.in); got != tt.out {
				t.Errorf("nearestPowerOfTwo(%d) = %d, want %d", tt.in, got, tt.out)
			}
		})
	}
}

func TestDecodeFramesS16LE(t *testing.T) {
	data := make([]byte, 8) // 4 samples, 2 channels -> 2 frames.
	binary.LittleEndian.PutUint16(data[0:], uint16(int16(16384)))  // 0.5
	binary.LittleEndian.PutUint16(data[2:], uint16(int16(-16384))) // -0.5
	binary.LittleEndian.PutUint16(data[4:], uint16(int16(32767)))
	binary.LittleEndian.PutUint16(data[6:], uint16(int16(-32768)))

	buf := yalsa.Buffer{Format: yalsa.S16_LE, Data: data}
	samples, numFrames := decodeFrames(buf, 2)

	if numFrames != 2 {
		t.Fatalf("numFrames = %d, want 2", numFrames)
	}
	want := []float64{0.5, -0.5, 32767.0 / 32768.0, -1.0}
	for i, w := range want {
		if math.Abs(samples[i]-w) > 1e-9 {
			t.Errorf("samples[%d] = %v, want %v", i, samples[i], w)
		}
	}
}

func TestDecodeFramesS32LE(t *testing.T) {
	data := make([]byte, 8) // 2 samples, 1 channel -> 2 frames.
	binary.LittleEndian.PutUint32(data[0:], uint32(int32(1073741824)))  // 0.5
	binary.LittleEndian.PutUint32(data[4:], uint32(int32(-1073741824))) // -0.5

	buf := yalsa.Buffer{Format: yalsa.S32_LE, Data: data}
	samples, numFrames := decodeFrames(buf, 1)

	if numFrames != 2 {
		t.Fatalf("numFrames = %d, want 2", numFrames)
	}
	want := []float64{0.5, -0.5}
	for i, w := range want {
		if math.Abs(samples[i]-w) > 1e-9 {
			t.Errorf("samples[%d] = %v, want %v", i, samples[i], w)
		}
	}
}
