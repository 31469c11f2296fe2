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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"mockupstudio/internal/domain"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps one JSON object per design at <prefix>/<owner>/<id>.json.
type S3Store struct {
	client S3API
	bucket string
	prefix string
	log    *slog.Logger
	now    func() time.Time
}

// OpenS3 builds a store from the default AWS configuration chain.
func OpenS3(ctx context.Context, bucket, prefix string, l *slog.Logger) (*S3Store, error) {
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3Store(s3.NewFromConfig(cfg), bucket, prefix, l), nil
}

func NewS3Store(client S3API, bucket, prefix string, l *slog.Logger) *S3Store {
	if l == nil {
		l = slog.Default()
	}
	if prefix == "" {
		prefix = "designs"
	}
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), log: l, now: time.Now}
}

// key rejects ids and owners that would escape their prefix.
func (s *S3Store) key(ownerID, id string) (string, error) {
	for _, part := range []string{ownerID, id} {
		if part == "" || part == "." || part == ".." || path.Base(part) != part {
			return "", domain.Validationf("invalid object name %q", part)
		}
	}
	return path.Join(s.prefix, ownerID, id+".json"), nil
}

func (s *S3Store) put(ctx context.Context, r record) error {
	key, err := s.key(r.OwnerID, r.ID)
	if err != nil {
		return err
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal design: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) get(ctx context.Context, ownerID, id string) (record, error) {
	key, err := s.key(ownerID, id)
	if err != nil {
		return record{}, err
	}
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return record{}, notFound(id)
		}
		return record{}, fmt.Errorf("get %s: %w", key, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return record{}, fmt.Errorf("read %s: %w", key, err)
	}
	var r record
	if err := json.Unmarshal(body, &r); err != nil {
		return record{}, domain.Validationf("design %s: %v", id, err)
	}
	return r, nil
}

func (s *S3Store) Create(ctx context.Context, d *domain.Design) error {
	now := s.now().UTC()
	c := *d
	c.ID = newDesignID()
	c.CreatedAt, c.UpdatedAt = now, now
	r, err := toRecord(&c)
	if err != nil {
		return err
	}
	if err := s.put(ctx, r); err != nil {
		return err
	}
	*d = c
	return nil
}

func (s *S3Store) Update(ctx context.Context, d *domain.Design) error {
	cur, err := s.get(ctx, d.OwnerID, d.ID)
	if err != nil {
		return err
	}
	c := *d
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = s.now().UTC()
	r, err := toRecord(&c)
	if err != nil {
		return err
	}
	if err := s.put(ctx, r); err != nil {
		return err
	}
	*d = c
	return nil
}

func (s *S3Store) Get(ctx context.Context, ownerID, id string) (*domain.Design, error) {
	r, err := s.get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return r.design()
}

func (s *S3Store) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.get(ctx, ownerID, id); err != nil {
		return err
	}
	key, _ := s.key(ownerID, id)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// keys lists the object keys under the owner's prefix, following pagination.
func (s *S3Store) keys(ctx context.Context, ownerID string) ([]string, error) {
	if ownerID == "" || path.Base(ownerID) != ownerID {
		return nil, domain.Validationf("invalid owner %q", ownerID)
	}
	prefix := path.Join(s.prefix, ownerID) + "/"
	var out []string
	var token *string
	for {
		resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range resp.Contents {
			if k := aws.ToString(obj.Key); strings.HasSuffix(k, ".json") {
				out = append(out, k)
			}
		}
		if !aws.ToBool(resp.IsTruncated) || resp.NextContinuationToken == nil {
			return out, nil
		}
		token = resp.NextContinuationToken
	}
}

func (s *S3Store) List(ctx context.Context, ownerID string) ([]Summary, error) {
	keys, err := s.keys(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(keys))
	for _, k := range keys {
		id := strings.TrimSuffix(path.Base(k), ".json")
		r, err := s.get(ctx, ownerID, id)
		if err != nil {
			s.log.Warn("skipping unreadable design", slog.String("key", k), slog.Any("err", err))
			continue
		}
		out = append(out, r.summary())
	}
	sortSummaries(out)
	return out, nil
}

func (s *S3Store) Count(ctx context.Context, ownerID string) (int, error) {
	keys, err := s.keys(ctx, ownerID)
	return len(keys), err
}

func (s *S3Store) Close() error { return nil }
