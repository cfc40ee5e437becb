/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package wmb holds the watermark type and the binary record published per key in the hold bucket.
package wmb

import (
	"bytes"
	"encoding/binary"
	"time"
)

// WMB is the value of a key in the hold bucket.
type WMB struct {
	// Seq increases with every publish made for the key, a reader keeps the record with the highest Seq.
	Seq int64
	// Hold is the watermark hold of the key in epoch milliseconds.
	Hold int64
}

// NewWMB returns the record for the given hold.
func NewWMB(seq int64, hold time.Time) WMB {
	return WMB{Seq: seq, Hold: hold.UnixMilli()}
}

// HoldTime returns the hold as a time.
func (w WMB) HoldTime() time.Time {
	return time.UnixMilli(w.Hold).UTC()
}

// EncodeToBytes encodes a WMB object into byte array.
func (w WMB) EncodeToBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	err := binary.Write(buf, binary.LittleEndian, w)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeToWMB decodes the given byte array into a WMB object.
func DecodeToWMB(b []byte) (WMB, error) {
	var v WMB
	buf := bytes.NewReader(b)
	err := binary.Read(buf, binary.LittleEndian, &v)
	if err != nil {
		return WMB{}, err
	}
	return v, nil
}
