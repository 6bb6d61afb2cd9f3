/*
NAME
  decode.go

DESCRIPTION
  decode.go converts a raw ALSA capture buffer (signed 16- or 32-bit
  little-endian PCM, as negotiated by Input.open) into interleaved
  float64 samples in [-1, 1], the representation the rest of the mixer
  works in.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package alsa

import (
	"encoding/binary"

	yalsa "github.com/yobert/alsa"
)

// decodeFrames converts buf's raw bytes to interleaved float64 samples,
// returning the samples and the number of frames decoded.
func decodeFrames(buf yalsa.Buffer, numChannels int) ([]float64, int) {
	switch buf.Format {
	case yalsa.S32_LE:
		n := len(buf.Data) / 4
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			v := int32(binary.LittleEndian.Uint32(buf.Data[i*4:]))
			out[i] = float64(v) / 2147483648.0
		}
		return out, n / numChannels
	default: // S16_LE.
		n := len(buf.Data) / 2
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(buf.Data[i*2:]))
			out[i] = float64(v) / 32768.0
		}
		return out, n / numChannels
	}
}
