package memory

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultHashDims is the vector size of the local hashing embedder.
const DefaultHashDims = 256

// HashEmbedder is an offline embedder based on feature hashing of word
// unigrams and bigrams. It needs no network access and is deterministic, which
// makes it the default when no embedding model is configured.
type HashEmbedder struct {
	Dims int
}

// NewHashEmbedder returns a HashEmbedder with dims dimensions.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDims
	}
	return &HashEmbedder{Dims: dims}
}

// Dimensions returns the vector size Embed produces.
func (e *HashEmbedder) Dimensions() int {
	if e.Dims <= 0 {
		return DefaultHashDims
	}
	return e.Dims
}

// Embed returns an L2-normalized vector for text.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, ErrEmptyContent
	}
	dims := e.Dimensions()

	vec := make([]float64, dims)
	add := func(feature string, weight float64) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(feature))
		sum := h.Sum64()
		idx := int(sum % uint64(dims))
		// top bit selects the sign
		if sum>>63 == 1 {
			weight = -weight
		}
		vec[idx] += weight
	}
	for i, tok := range tokens {
		add(tok, 1)
		if i > 0 {
			add(tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, dims)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
	dims   int
}

// NewOpenAIEmbedder wraps client for model. dims > 0 requests a reduced
// dimension from models that support it; 0 leaves the parameter out.
func NewOpenAIEmbedder(client openai.Client, model string, dims int) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, model: model, dims: dims}
}

// NewOpenAIEmbeddingClient builds the client used for embeddings only. An
// empty baseURL or apiKey falls back to the openai-go defaults
// (OPENAI_BASE_URL, OPENAI_API_KEY).
func NewOpenAIEmbeddingClient(baseURL, apiKey string, opts ...option.RequestOption) openai.Client {
	var all []option.RequestOption
	if baseURL != "" {
		all = append(all, option.WithBaseURL(baseURL))
	}
	if apiKey != "" {
		all = append(all, option.WithAPIKey(apiKey))
	}
	return openai.NewClient(append(all, opts...)...)
}

// Dimensions returns the requested vector size, or 0 when the model default
// is used.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}

// Embed returns the embedding for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyContent
	}
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	}
	if e.dims > 0 {
		params.Dimensions = openai.Int(int64(e.dims))
	}
	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("empty embedding in response")
	}
	raw := resp.Data[0].Embedding
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out, nil
}
