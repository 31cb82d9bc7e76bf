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

import "fmt"

// BackendType selects which Provider implementation to construct.
type BackendType string

const (
	BackendChromem  BackendType = "chromem"
	BackendQdrant   BackendType = "qdrant"
	BackendPinecone BackendType = "pinecone"
)

// Config is the union configuration consumed by New. Only the field
// matching Type needs to be populated.
type Config struct {
	Type     BackendType     `koanf:"type"`
	Chromem  *ChromemConfig  `koanf:"chromem"`
	Qdrant   *QdrantConfig   `koanf:"qdrant"`
	Pinecone *PineconeConfig `koanf:"pinecone"`
}

// SetDefaults fills in the zero-config default: embedded chromem storage.
func (c *Config) SetDefaults() {
	if c.Type == "" {
		c.Type = BackendChromem
	}
	if c.Type == BackendChromem && c.Chromem == nil {
		c.Chromem = &ChromemConfig{}
	}
}

// New constructs the Provider named by cfg.Type.
func New(cfg Config) (Provider, error) {
	cfg.SetDefaults()
	switch cfg.Type {
	case BackendChromem:
		return NewChromemProvider(*cfg.Chromem)
	case BackendQdrant:
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("vector: qdrant configuration is required")
		}
		return NewQdrantProvider(*cfg.Qdrant)
	case BackendPinecone:
		if cfg.Pinecone == nil {
			return nil, fmt.Errorf("vector: pinecone configuration is required")
		}
		return NewPineconeProvider(*cfg.Pinecone)
	default:
		return nil, fmt.Errorf("vector: unknown backend type %q", cfg.Type)
	}
}
