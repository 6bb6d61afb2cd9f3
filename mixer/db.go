/*
NAME
  db.go

DESCRIPTION
  db.go provides the dB/linear amplitude conversions used throughout the
  mixer, matching original_source/db.h.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package mixer implements the audio mixer: per-bus DSP, the master bus
// and the ALSA/capture-card device table it draws from.
package mixer

import "math"

func fromDB(db float64) float64   { return math.Pow(10, db/20.0) }
func toDB(linear float64) float64 { return 20.0 * math.Log10(linear) }

func fromDB32(db float32) float32   { return float32(fromDB(float64(db))) }
func toDB32(linear float32) float32 { return float32(toDB(float64(linear))) }
