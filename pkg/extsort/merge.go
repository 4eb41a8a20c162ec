package extsort

import (
	"bufio"
	"container/heap"
	stderrors "errors"
	"io"
	"os"

	"github.com/ajitpratap0/wealthpack/pkg/compression"
	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/models"
)

// Iterator yields sorted records. Next returns io.EOF once exhausted.
type Iterator interface {
	Next() (*models.Record, error)
	Close() error
}

// cursorSource is one sorted input of the merge.
type cursorSource interface {
	next() (*models.Record, error)
	close() error
}

type sliceIterator struct {
	entries []entry
	pos     int
}

func (it *sliceIterator) Next() (*models.Record, error) { return it.next() }
func (it *sliceIterator) Close() error                  { return it.close() }

func (it *sliceIterator) next() (*models.Record, error) {
	if it.pos >= len(it.entries) {
		return nil, io.EOF
	}
	rec := it.entries[it.pos].rec
	it.entries[it.pos] = entry{}
	it.pos++
	return rec, nil
}

func (it *sliceIterator) close() error {
	it.entries = nil
	return nil
}

type runReader struct {
	f   *os.File
	rc  io.ReadCloser
	dec frameDecoder
}

func openRun(path string, codec compression.Algorithm) (*runReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, spillErr(err, "open spill run")
	}
	rc, err := compression.NewReader(bufio.NewReaderSize(f, 256<<10), codec)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &runReader{f: f, rc: rc, dec: newFrameDecoder(rc)}, nil
}

func (r *runReader) next() (*models.Record, error) {
	rec, err := r.dec.decode()
	switch {
	case err == nil:
		return rec, nil
	case stderrors.Is(err, io.EOF):
		return nil, io.EOF
	}
	return nil, errors.Wrap(err, errors.ErrorTypeInternal, "read spill run").WithDetail("run", r.f.Name())
}

func (r *runReader) close() error {
	_ = r.rc.Close()
	return r.f.Close()
}

type cursor struct {
	head entry
	src  cursorSource
}

type cursorHeap []*cursor

func (h cursorHeap) Len() int           { return len(h) }
func (h cursorHeap) Less(i, j int) bool { return Compare(h[i].head.key, h[j].head.key) < 0 }
func (h cursorHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)        { *h = append(*h, x.(*cursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	old[len(old)-1] = nil
	*h = old[:len(old)-1]
	return c
}

// merger is a k-way merge over sorted sources. Every source is internally
// ordered by the same total order, so the merge output is too.
type merger struct {
	roles   roles
	h       cursorHeap
	sources []cursorSource
}

func newMerger(r roles, sources []cursorSource) (*merger, error) {
	m := &merger{roles: r, sources: sources}
	for _, src := range sources {
		if err := m.advance(&cursor{src: src}); err != nil {
			_ = m.Close()
			return nil, err
		}
	}
	heap.Init(&m.h)
	return m, nil
}

// advance loads the next record of c and pushes it back, or drops c when
// its source is exhausted.
func (m *merger) advance(c *cursor) error {
	rec, err := c.src.next()
	if stderrors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	c.head = entry{key: m.roles.key(rec), rec: rec}
	m.h = append(m.h, c)
	return nil
}

func (m *merger) Next() (*models.Record, error) {
	if m.h.Len() == 0 {
		return nil, io.EOF
	}
	c := m.h[0]
	rec := c.head.rec
	next, err := c.src.next()
	switch {
	case stderrors.Is(err, io.EOF):
		heap.Pop(&m.h)
	case err != nil:
		return nil, err
	default:
		c.head = entry{key: m.roles.key(next), rec: next}
		heap.Fix(&m.h, 0)
	}
	return rec, nil
}

func (m *merger) Close() error {
	var first error
	for _, src := range m.sources {
		if err := src.close(); err != nil && first == nil {
			first = err
		}
	}
	m.h, m.sources = nil, nil
	return first
}
