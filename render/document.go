package render

import (
	"encoding/json"

	"github.com/BaSui01/dumpflow/internal/pool"
)

// ChildrenKey is the document slot holding nested child documents.
const ChildrenKey = "__children"

// Document 一个树节点扁平化后的有序文档
//
// Keys keep insertion order so the indexed JSON matches column order. The
// children slot is always present and always first.
type Document struct {
	keys     []string
	values   map[string]any
	children []*Document
}

// NewDocument returns a document holding only an empty children slot.
func NewDocument() *Document {
	return &Document{
		keys:     []string{ChildrenKey},
		values:   make(map[string]any),
		children: []*Document{},
	}
}

// Set stores a column value, keeping the first insertion position.
func (d *Document) Set(key string, value any) {
	if key == ChildrenKey {
		return
	}
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get returns a column value.
func (d *Document) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Keys returns the keys in insertion order, ChildrenKey first.
func (d *Document) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Children returns the nested documents in insertion order.
func (d *Document) Children() []*Document { return d.children }

// AppendChild nests child under d.
func (d *Document) AppendChild(child *Document) {
	d.children = append(d.children, child)
}

// Count returns the number of documents rooted at d, including d.
func (d *Document) Count() int {
	n := 1
	for _, c := range d.children {
		n += c.Count()
	}
	return n
}

// MarshalJSON encodes the document with keys in insertion order.
func (d *Document) MarshalJSON() ([]byte, error) {
	buf := pool.ByteBufferPool.Get()
	defer pool.ByteBufferPool.Put(buf)

	buf.WriteByte('{')
	for i, key := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')

		var v []byte
		if key == ChildrenKey {
			v, err = json.Marshal(d.children)
		} else {
			v, err = json.Marshal(d.values[key])
		}
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Map converts the document to plain maps and slices.
func (d *Document) Map() map[string]any {
	out := make(map[string]any, len(d.values)+1)
	for k, v := range d.values {
		out[k] = v
	}
	children := make([]any, len(d.children))
	for i, c := range d.children {
		children[i] = c.Map()
	}
	out[ChildrenKey] = children
	return out
}
