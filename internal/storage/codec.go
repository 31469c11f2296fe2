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
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"mockupstudio/internal/domain"
)

//go:embed schema/canvas_data.schema.json
var canvasDataSchema []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(canvasDataSchema))
	})
	return schema, schemaErr
}

// ValidateCanvasData checks a serialized payload against the canvas_data
// schema. Violations are reported as domain.ErrValidation.
func ValidateCanvasData(b []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile canvas_data schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return domain.Validationf("canvas_data is not valid JSON: %v", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return domain.Validationf("canvas_data: %s", strings.Join(msgs, "; "))
}

// EncodeCanvasData serializes a payload, stamping the format version and a
// timestamp when they are missing.
func EncodeCanvasData(d domain.CanvasData) ([]byte, error) {
	if d.Version == 0 {
		d.Version = domain.FormatVersion
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now().UTC()
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, domain.Validationf("encode canvas_data: %v", err)
	}
	return b, nil
}

// DecodeCanvasData validates and parses a serialized payload.
func DecodeCanvasData(b []byte) (domain.CanvasData, error) {
	var d domain.CanvasData
	if err := ValidateCanvasData(b); err != nil {
		return d, err
	}
	if err := json.Unmarshal(b, &d); err != nil {
		return d, domain.Validationf("decode canvas_data: %v", err)
	}
	if d.Version > domain.FormatVersion {
		return d, domain.Validationf("canvas_data version %d is newer than supported %d", d.Version, domain.FormatVersion)
	}
	return d, nil
}

// record is the storage form of a design shared by the backends that keep
// whole documents (memory, S3).
type record struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	PreviewURL  string          `json:"preview_url,omitempty"`
	IsPublic    bool            `json:"is_public"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CanvasData  json.RawMessage `json:"canvas_data"`
}

func toRecord(d *domain.Design) (record, error) {
	blob, err := EncodeCanvasData(d.CanvasData)
	if err != nil {
		return record{}, err
	}
	return record{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		Title:       d.Title,
		Description: d.Description,
		PreviewURL:  d.PreviewURL,
		IsPublic:    d.IsPublic,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		CanvasData:  blob,
	}, nil
}

func (r record) design() (*domain.Design, error) {
	data, err := DecodeCanvasData(r.CanvasData)
	if err != nil {
		return nil, fmt.Errorf("design %s: %w", r.ID, err)
	}
	return &domain.Design{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Title:       r.Title,
		Description: r.Description,
		CanvasData:  data,
		PreviewURL:  r.PreviewURL,
		IsPublic:    r.IsPublic,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

func (r record) summary() Summary {
	return Summary{ID: r.ID, Title: r.Title, PreviewURL: r.PreviewURL, IsPublic: r.IsPublic, UpdatedAt: r.UpdatedAt}
}
