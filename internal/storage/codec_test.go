/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"mockupstudio/internal/domain"
)

func TestEncodeStampsVersionAndTimestamp(t *testing.T) {
	b, err := EncodeCanvasData(sampleData())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var head struct {
		Version   int    `json:"version"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		t.Fatal(err)
	}
	if head.Version != domain.FormatVersion || head.Timestamp == "" {
		t.Fatalf("version/timestamp not stamped: %s", b)
	}
	if err := ValidateCanvasData(b); err != nil {
		t.Fatalf("encoded payload fails its own schema: %v", err)
	}
}

func TestValidateCanvasDataRejects(t *testing.T) {
	cases := map[string]string{
		"zero width":    `{"canvas":{"width":0,"height":10},"elements":[],"version":1}`,
		"no version":    `{"canvas":{"width":10,"height":10},"elements":[]}`,
		"bad type":      `{"canvas":{"width":10,"height":10},"version":1,"elements":[{"id":"a","type":"video","x":0,"y":0,"width":1,"height":1,"zIndex":0,"data":{}}]}`,
		"opacity":       `{"canvas":{"width":10,"height":10},"version":1,"elements":[{"id":"a","type":"text","x":0,"y":0,"width":1,"height":1,"zIndex":0,"opacity":2,"data":{}}]}`,
		"missing data":  `{"canvas":{"width":10,"height":10},"version":1,"elements":[{"id":"a","type":"text","x":0,"y":0,"width":1,"height":1,"zIndex":0}]}`,
		"not json":      `{"canvas":`,
		"negative size": `{"canvas":{"width":10,"height":10},"version":1,"elements":[{"id":"a","type":"shape","x":0,"y":0,"width":-1,"height":1,"zIndex":0,"data":{}}]}`,
	}
	for name, in := range cases {
		if err := ValidateCanvasData([]byte(in)); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", name, err)
		}
	}
}

func TestDecodeAcceptsNullElements(t *testing.T) {
	d, err := DecodeCanvasData([]byte(`{"canvas":{"width":390,"height":844},"elements":null,"version":1}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.Canvas.Width != 390 || len(d.Elements) != 0 {
		t.Fatalf("decoded %+v", d)
	}
}

func TestDecodeRejectsNewerVersion(t *testing.T) {
	_, err := DecodeCanvasData([]byte(`{"canvas":{"width":10,"height":10},"elements":[],"version":99}`))
	if !errors.Is(err, domain.ErrValidation) || !strings.Contains(err.Error(), "newer") {
		t.Fatalf("err = %v", err)
	}
}
