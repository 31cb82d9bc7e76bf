// Copyright 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vector

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeConfig configures a managed-cloud Pinecone provider.
type PineconeConfig struct {
	APIKey    string
	Host      string
	IndexName string
}

type PineconeProvider struct {
	client    *pinecone.Client
	indexName string
}

func NewPineconeProvider(cfg PineconeConfig) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vector: pinecone api key is required")
	}
	params := pinecone.NewClientParams{ApiKey: cfg.APIKey}
	if cfg.Host != "" {
		params.Host = cfg.Host
	}
	client, err := pinecone.NewClient(params)
	if err != nil {
		return nil, fmt.Errorf("vector: create pinecone client: %w", err)
	}
	indexName := cfg.IndexName
	if indexName == "" {
		indexName = "scaffold-index"
	}
	return &PineconeProvider{client: client, indexName: indexName}, nil
}

func (p *PineconeProvider) Name() string { return "pinecone" }

func (p *PineconeProvider) indexFor(collection string) string {
	if collection == "" {
		return p.indexName
	}
	return collection
}

func (p *PineconeProvider) connect(ctx context.Context, collection string) (*pinecone.IndexConnection, error) {
	index, err := p.client.DescribeIndex(ctx, p.indexFor(collection))
	if err != nil {
		return nil, fmt.Errorf("vector: describe index: %w", err)
	}
	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: index.Host})
	if err != nil {
		return nil, fmt.Errorf("vector: connect to index: %w", err)
	}
	return conn, nil
}

func (p *PineconeProvider) Upsert(ctx context.Context, collection, id string, vec []float32, metadata map[string]any) error {
	conn, err := p.connect(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	var meta *pinecone.Metadata
	if len(metadata) > 0 {
		generic := make(map[string]interface{}, len(metadata))
		for k, v := range metadata {
			generic[k] = v
		}
		meta, err = structpb.NewStruct(generic)
		if err != nil {
			return fmt.Errorf("vector: convert metadata: %w", err)
		}
	}
	_, err = conn.UpsertVectors(ctx, []*pinecone.Vector{{Id: id, Values: vec, Metadata: meta}})
	if err != nil {
		return fmt.Errorf("vector: upsert vector: %w", err)
	}
	return nil
}

func (p *PineconeProvider) Search(ctx context.Context, collection string, vec []float32, topK int) ([]Result, error) {
	return p.SearchWithFilter(ctx, collection, vec, topK, nil)
}

func (p *PineconeProvider) SearchWithFilter(ctx context.Context, collection string, vec []float32, topK int, filter map[string]any) ([]Result, error) {
	conn, err := p.connect(ctx, collection)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var metaFilter *pinecone.MetadataFilter
	if len(filter) > 0 {
		generic := make(map[string]interface{}, len(filter))
		for k, v := range filter {
			generic[k] = v
		}
		metaFilter, err = structpb.NewStruct(generic)
		if err != nil {
			return nil, fmt.Errorf("vector: convert filter: %w", err)
		}
	}
	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vec,
		TopK:            uint32(topK),
		MetadataFilter:  metaFilter,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vector: query: %w", err)
	}
	return convertPineconeResults(resp.Matches), nil
}

func (p *PineconeProvider) Delete(ctx context.Context, collection, id string) error {
	conn, err := p.connect(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.DeleteVectorsById(ctx, []string{id}); err != nil {
		return fmt.Errorf("vector: delete vector: %w", err)
	}
	return nil
}

func (p *PineconeProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	conn, err := p.connect(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()
	generic := make(map[string]interface{}, len(filter))
	for k, v := range filter {
		generic[k] = v
	}
	metaFilter, err := structpb.NewStruct(generic)
	if err != nil {
		return fmt.Errorf("vector: convert filter: %w", err)
	}
	if err := conn.DeleteVectorsByFilter(ctx, metaFilter); err != nil {
		return fmt.Errorf("vector: delete by filter: %w", err)
	}
	return nil
}

// CreateCollection only confirms the index already exists: Pinecone
// indexes are provisioned out of band, via console or API.
func (p *PineconeProvider) CreateCollection(ctx context.Context, collection string, dimension int) error {
	name := p.indexFor(collection)
	indexes, err := p.client.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("vector: list indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx.Name == name {
			return nil
		}
	}
	return fmt.Errorf("vector: pinecone index %q does not exist, provision it out of band", name)
}

func (p *PineconeProvider) DeleteCollection(ctx context.Context, collection string) error {
	return fmt.Errorf("vector: pinecone index deletion must be done out of band for %q", p.indexFor(collection))
}

func (p *PineconeProvider) Close() error { return nil }

func convertPineconeResults(matches []*pinecone.ScoredVector) []Result {
	out := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m.Vector == nil {
			continue
		}
		meta := map[string]any{}
		if m.Vector.Metadata != nil {
			for k, v := range m.Vector.Metadata.AsMap() {
				meta[k] = v
			}
		}
		out = append(out, Result{ID: m.Vector.Id, Score: float64(m.Score), Metadata: meta})
	}
	return out
}
