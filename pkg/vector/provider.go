// SPDX-License-Identifier: AGPL-3.0
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package vector abstracts the vector storage backend that the memory
// fragment store searches against.
package vector

import "context"

// Result is one nearest-neighbour hit.
type Result struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Provider is the backend-independent vector store contract. Memory
// fragments are stored through it; the ontology store does not use it.
type Provider interface {
	Upsert(ctx context.Context, collection, id string, vec []float32, metadata map[string]any) error
	Search(ctx context.Context, collection string, vec []float32, topK int) ([]Result, error)
	SearchWithFilter(ctx context.Context, collection string, vec []float32, topK int, filter map[string]any) ([]Result, error)
	Delete(ctx context.Context, collection, id string) error
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error
	CreateCollection(ctx context.Context, collection string, dimension int) error
	DeleteCollection(ctx context.Context, collection string) error
	Name() string
	Close() error
}
