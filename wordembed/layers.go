package wordembed

import "github.com/pkg/errors"

// LayerPool selects how per-layer hidden states of an encoder are combined
// into a single vector per subword token, before word aggregation. Which
// policy works best is task-dependent; concatenating the last four layers is
// the common default for feature extraction.
type LayerPool int

const (
	// PoolConcatLast4 concatenates the last four layers (output dim = 4*D).
	PoolConcatLast4 LayerPool = iota
	// PoolSumLast4 sums the last four layers element-wise.
	PoolSumLast4
	// PoolSumAll sums all layers element-wise.
	PoolSumAll
	// PoolSecondToLast takes the second-to-last layer unchanged.
	PoolSecondToLast
)

// String returns the name of the pooling policy.
func (p LayerPool) String() string {
	switch p {
	case PoolConcatLast4:
		return "concat-last-4"
	case PoolSumLast4:
		return "sum-last-4"
	case PoolSumAll:
		return "sum-all"
	case PoolSecondToLast:
		return "second-to-last"
	default:
		return "invalid"
	}
}

// ErrUnsupportedPool indicates an unrecognized layer pooling policy.
var ErrUnsupportedPool = errors.New("unsupported layer pooling policy")

// PoolLayers combines per-layer hidden states into one vector per token.
// hidden is indexed [layer][token][dim]: every layer must have the same
// number of tokens and every token vector the same dimensionality.
func PoolLayers(hidden [][][]float32, pool LayerPool) ([][]float32, error) {
	switch pool {
	case PoolConcatLast4, PoolSumLast4, PoolSumAll, PoolSecondToLast:
	default:
		return nil, errors.Wrapf(ErrUnsupportedPool, "pooling policy %d", int(pool))
	}
	if len(hidden) == 0 {
		return nil, errors.Errorf("no hidden layers")
	}
	numTokens := len(hidden[0])
	dim := -1
	for l, layer := range hidden {
		if len(layer) != numTokens {
			return nil, errors.Errorf("layer %d has %d tokens, want %d", l, len(layer), numTokens)
		}
		for tok, v := range layer {
			if dim < 0 {
				dim = len(v)
			} else if len(v) != dim {
				return nil, errors.Errorf("layer %d token %d has dimension %d, want %d", l, tok, len(v), dim)
			}
		}
	}

	switch pool {
	case PoolSecondToLast:
		if len(hidden) < 2 {
			return nil, errors.Errorf("second-to-last pooling needs at least 2 layers, got %d", len(hidden))
		}
		return copyLayer(hidden[len(hidden)-2]), nil

	case PoolSumAll:
		return sumLayers(hidden, numTokens, dim), nil

	case PoolSumLast4:
		if len(hidden) < 4 {
			return nil, errors.Errorf("sum-last-4 pooling needs at least 4 layers, got %d", len(hidden))
		}
		return sumLayers(hidden[len(hidden)-4:], numTokens, dim), nil

	default: // PoolConcatLast4
		if len(hidden) < 4 {
			return nil, errors.Errorf("concat-last-4 pooling needs at least 4 layers, got %d", len(hidden))
		}
		last4 := hidden[len(hidden)-4:]
		out := make([][]float32, numTokens)
		for tok := range out {
			v := make([]float32, 0, 4*dim)
			for _, layer := range last4 {
				v = append(v, layer[tok]...)
			}
			out[tok] = v
		}
		return out, nil
	}
}

func copyLayer(layer [][]float32) [][]float32 {
	out := make([][]float32, len(layer))
	for tok, v := range layer {
		out[tok] = append([]float32(nil), v...)
	}
	return out
}

func sumLayers(layers [][][]float32, numTokens, dim int) [][]float32 {
	out := make([][]float32, numTokens)
	for tok := range out {
		v := make([]float32, dim)
		for _, layer := range layers {
			for d, x := range layer[tok] {
				v[d] += x
			}
		}
		out[tok] = v
	}
	return out
}
