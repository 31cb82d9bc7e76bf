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

package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/cogscaffold/core/pkg/textutil"
)

// LocalEmbedder produces a deterministic, dependency-free embedding from
// token hashes. It never reaches a network service, which makes it the
// right default for tests and for deployments that run entirely offline.
// It is not semantically meaningful the way a trained model's output is:
// similarity scores from it only ever see use as a feature-complete stand-in.
type LocalEmbedder struct {
	dim int
}

func NewLocalEmbedder(dim int) *LocalEmbedder {
	if dim <= 0 {
		dim = 64
	}
	return &LocalEmbedder{dim: dim}
}

func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	for _, tok := range textutil.Tokenize(text) {
		sum := sha256.Sum256([]byte(tok))
		for i := 0; i+4 <= len(sum) && i/4 < e.dim; i += 4 {
			bits := binary.BigEndian.Uint32(sum[i : i+4])
			vec[i/4] += float32(bits%1000) / 1000.0
		}
	}
	return normalize(vec), nil
}

func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *LocalEmbedder) Dimension() int { return e.dim }
func (e *LocalEmbedder) Model() string  { return "local-hash" }
func (e *LocalEmbedder) Close() error   { return nil }

func normalize(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return vec
	}
	norm := float32(1.0 / math.Sqrt(sumSq))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v * norm
	}
	return out
}
