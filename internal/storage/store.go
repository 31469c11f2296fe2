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
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"mockupstudio/internal/domain"
)

// DesignStore is a persistence backend for designs. Every call is scoped to
// an owner; a design of another owner is reported as domain.ErrNotFound.
type DesignStore interface {
	// Create stores d, assigning ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, d *domain.Design) error
	// Update replaces the stored design with the same ID and owner,
	// keeping CreatedAt and refreshing UpdatedAt.
	Update(ctx context.Context, d *domain.Design) error
	Get(ctx context.Context, ownerID, id string) (*domain.Design, error)
	Delete(ctx context.Context, ownerID, id string) error
	// List returns the owner's designs, most recently updated first.
	List(ctx context.Context, ownerID string) ([]Summary, error)
	Count(ctx context.Context, ownerID string) (int, error)
	Close() error
}

// Summary is the list view of a design.
type Summary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	PreviewURL string    `json:"preview_url,omitempty"`
	IsPublic   bool      `json:"is_public"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RevisionStore is implemented by backends that keep payload history.
type RevisionStore interface {
	Revisions(ctx context.Context, ownerID, id string, limit int) ([]Revision, error)
	// PruneRevisions keeps the newest keep revisions of every design and
	// returns how many were deleted.
	PruneRevisions(ctx context.Context, keep int) (int64, error)
}

// Revision is one stored payload of a design.
type Revision struct {
	ID         int64             `json:"id"`
	CanvasData domain.CanvasData `json:"canvas_data"`
	CreatedAt  time.Time         `json:"created_at"`
}

func newDesignID() string { return ulid.Make().String() }

func notFound(id string) error { return domain.NotFoundf("design %s", id) }
