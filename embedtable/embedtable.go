// Package embedtable loads a static word-embedding matrix from a local
// safetensors file and serves per-token vector lookups.
//
// It is a stand-in for a live encoder: notebooks that only need
// non-contextual vectors can point it at e.g. the
// "embeddings.word_embeddings.weight" tensor of a BERT checkpoint and feed
// the looked-up rows straight into wordembed.Aggregate.
package embedtable

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// tensorMetadata is the per-tensor entry of a safetensors JSON header.
type tensorMetadata struct {
	Dtype       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end) byte offsets in the data section
}

// maxHeaderSize bounds the JSON header to catch corrupt files early.
const maxHeaderSize = 100 * 1024 * 1024

// Table is an in-memory embedding matrix of rows x dim float32 values.
type Table struct {
	rows, dim int
	data      []float32 // flattened row-major matrix
}

// Open loads the named 2-D float32 tensor from a safetensors file.
//
// Safetensors format:
//
//	[8 bytes: header size as little-endian u64]
//	[header_size bytes: JSON header]
//	[remaining bytes: tensor data]
func Open(path, tensorName string) (*Table, error) {
	meta, dataOffset, err := parseHeader(path, tensorName)
	if err != nil {
		return nil, err
	}
	if meta.Dtype != "F32" {
		return nil, errors.Errorf("tensor %s has dtype %s, only F32 embedding tables are supported", tensorName, meta.Dtype)
	}
	if len(meta.Shape) != 2 {
		return nil, errors.Errorf("tensor %s has shape %v, want a 2-D embedding matrix", tensorName, meta.Shape)
	}
	rows, dim := meta.Shape[0], meta.Shape[1]

	numBytes := meta.DataOffsets[1] - meta.DataOffsets[0]
	if numBytes != int64(rows)*int64(dim)*4 {
		return nil, errors.Errorf("tensor %s has %d bytes of data for shape %v", tensorName, numBytes, meta.Shape)
	}

	reader, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to mmap %q", path)
	}
	defer reader.Close()

	raw := make([]byte, numBytes)
	if _, err := reader.ReadAt(raw, dataOffset+meta.DataOffsets[0]); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "failed to read tensor %s from %q", tensorName, path)
	}

	data := make([]float32, rows*dim)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
	}
	return &Table{rows: rows, dim: dim, data: data}, nil
}

// parseHeader reads the safetensors JSON header and returns the metadata of
// tensorName plus the byte offset of the data section.
func parseHeader(path, tensorName string) (*tensorMetadata, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "failed to open %q", path)
	}
	defer f.Close()

	var headerSize uint64
	if err := binary.Read(f, binary.LittleEndian, &headerSize); err != nil {
		return nil, 0, errors.Wrap(err, "failed to read header size")
	}
	if headerSize > maxHeaderSize {
		return nil, 0, errors.Errorf("header size too large: %d bytes", headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(f, headerBytes); err != nil {
		return nil, 0, errors.Wrap(err, "failed to read header JSON")
	}

	var rawHeader map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &rawHeader); err != nil {
		return nil, 0, errors.Wrap(err, "failed to parse header JSON")
	}

	value, ok := rawHeader[tensorName]
	if !ok {
		return nil, 0, errors.Errorf("tensor %s not found in %q", tensorName, path)
	}
	var meta tensorMetadata
	if err := json.Unmarshal(value, &meta); err != nil {
		return nil, 0, errors.Wrapf(err, "failed to parse tensor metadata for %s", tensorName)
	}
	return &meta, int64(8 + headerSize), nil
}

// Rows returns the number of rows (vocabulary size) of the table.
func (t *Table) Rows() int { return t.rows }

// Dim returns the dimensionality of the embedding vectors.
func (t *Table) Dim() int { return t.dim }

// Row returns a copy of the embedding vector of token id.
func (t *Table) Row(id int) ([]float32, error) {
	if id < 0 || id >= t.rows {
		return nil, errors.Errorf("token id %d out of range [0, %d)", id, t.rows)
	}
	row := make([]float32, t.dim)
	copy(row, t.data[id*t.dim:(id+1)*t.dim])
	return row, nil
}

// Lookup returns the embedding vectors of ids, index-aligned with the input.
func (t *Table) Lookup(ids []int) ([][]float32, error) {
	out := make([][]float32, len(ids))
	for i, id := range ids {
		row, err := t.Row(id)
		if err != nil {
			return nil, err
		}
		out[i] = row
	}
	return out, nil
}

// Tensor returns the whole table as a GoMLX tensor of shape [rows, dim].
func (t *Table) Tensor() *tensors.Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return tensors.FromFlatDataAndDimensions(data, t.rows, t.dim)
}
