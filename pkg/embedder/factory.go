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

import "fmt"

// Backend selects which Embedder implementation New constructs.
type Backend string

const (
	BackendLocal  Backend = "local"
	BackendOllama Backend = "ollama"
)

// Config is the union configuration consumed by New.
type Config struct {
	Backend        Backend
	LocalDimension int
	Ollama         *OllamaConfig
}

// New constructs the Embedder named by cfg.Backend, defaulting to the
// dependency-free local hash embedder so the core runs without a daemon
// present.
func New(cfg Config) (Embedder, error) {
	switch cfg.Backend {
	case "", BackendLocal:
		dim := cfg.LocalDimension
		if dim == 0 {
			dim = 64
		}
		return NewLocalEmbedder(dim), nil
	case BackendOllama:
		if cfg.Ollama == nil {
			return nil, fmt.Errorf("embedder: ollama backend selected but no ollama config supplied")
		}
		return NewOllamaEmbedder(*cfg.Ollama), nil
	default:
		return nil, fmt.Errorf("embedder: unknown backend %q", cfg.Backend)
	}
}
