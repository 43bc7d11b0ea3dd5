package octree

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Orrigine/OverScoped/geometry"
)

// Dump is a self-contained copy of a snapshot for external viewers. It is a
// debug format and is not read back by the builder.
type Dump struct {
	Bounds     geometry.AABB `json:"bounds" msgpack:"bounds"`
	MaxDepth   uint8         `json:"max_depth" msgpack:"max_depth"`
	Generation uint64        `json:"generation" msgpack:"generation"`
	Nodes      []DumpNode    `json:"nodes" msgpack:"nodes"`
}

// DumpNode is one node of a Dump. Links hold indices into Dump.Nodes.
type DumpNode struct {
	Address Address `json:"address" msgpack:"address"`
	State   uint8   `json:"state" msgpack:"state"`
	Leaf    bool    `json:"leaf" msgpack:"leaf"`
	Links   []int32 `json:"links,omitempty" msgpack:"links,omitempty"`
}

// Dump copies the snapshot into a Dump.
func (t *Octree) Dump() Dump {
	d := Dump{
		Bounds:     t.volume.Bounds,
		MaxDepth:   t.volume.MaxDepth,
		Generation: t.generation,
		Nodes:      make([]DumpNode, len(t.nodes)),
	}
	for i := range t.nodes {
		n := &t.nodes[i]
		d.Nodes[i] = DumpNode{
			Address: n.Address,
			State:   uint8(n.State),
			Leaf:    n.IsLeaf(),
			Links:   t.adjacency[i],
		}
	}
	return d
}

// EncodeDump writes the snapshot to w as msgpack.
func (t *Octree) EncodeDump(w io.Writer) error {
	if err := msgpack.NewEncoder(w).Encode(t.Dump()); err != nil {
		return errors.Wrap(err, "encode octree dump")
	}
	return nil
}

// DecodeDump reads a Dump written by EncodeDump.
func DecodeDump(r io.Reader) (Dump, error) {
	var d Dump
	if err := msgpack.NewDecoder(r).Decode(&d); err != nil {
		return Dump{}, errors.Wrap(err, "decode octree dump")
	}
	return d, nil
}

// Save writes the dump to filename, gzip compressed when compress is set.
func (t *Octree) Save(filename string, compress bool) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "create dump file")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "close dump file")
		}
	}()

	if !compress {
		return t.EncodeDump(f)
	}
	zw := gzip.NewWriter(f)
	if err := t.EncodeDump(zw); err != nil {
		return err
	}
	return errors.Wrap(zw.Close(), "compress dump")
}

// LoadDump reads a file written by Save, compressed or not.
func LoadDump(filename string) (Dump, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Dump{}, errors.Wrap(err, "open dump file")
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return Dump{}, errors.Wrap(err, "decompress dump")
		}
		defer zr.Close()
		r = zr
	}
	return DecodeDump(r)
}
