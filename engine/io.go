package engine

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/annex/distance"
	"github.com/hupe1980/annex/internal/quantization"
	"github.com/hupe1980/annex/internal/transform"
)

// Node tags of the serialized format.
const (
	tagIDMap        = "IxMp"
	tagFlatL2       = "IxF2"
	tagFlatIP       = "IxFI"
	tagHNSW         = "IHNf"
	tagIVFFlat      = "IwFl"
	tagIVFPQ        = "IwPQ"
	tagPQ           = "IxPQ"
	tagSQ           = "IxSQ"
	tagPreTransform = "IxPT"
)

// readChunk bounds allocations while reading length-prefixed slices, so a
// corrupted length fails with EOF instead of allocating it up front.
const readChunk = 1 << 16

// WriteIndex serializes idx and everything it wraps to w.
func WriteIndex(w io.Writer, idx Index) error {
	bw := bufio.NewWriter(w)
	ew := &encoder{w: bw}
	ew.index(idx)
	if ew.err != nil {
		return ew.err
	}
	return bw.Flush()
}

// ReadIndex deserializes an index tree written by WriteIndex.
func ReadIndex(r io.Reader) (Index, error) {
	dr := &decoder{r: bufio.NewReader(r)}
	idx := dr.index()
	if dr.err != nil {
		if errors.Is(dr.err, ErrInvalidFormat) {
			return nil, dr.err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, dr.err)
	}
	return idx, nil
}

type encoder struct {
	w   io.Writer
	err error
	buf [8]byte
}

func (e *encoder) write(p []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(p)
}

func (e *encoder) tag(t string) { e.write([]byte(t)) }

func (e *encoder) u8(v uint8) {
	e.buf[0] = v
	e.write(e.buf[:1])
}

func (e *encoder) bool(v bool) {
	if v {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

func (e *encoder) i32(v int) {
	binary.LittleEndian.PutUint32(e.buf[:4], uint32(int32(v)))
	e.write(e.buf[:4])
}

func (e *encoder) i64(v int64) {
	binary.LittleEndian.PutUint64(e.buf[:8], uint64(v))
	e.write(e.buf[:8])
}

func (e *encoder) f32s(v []float32) {
	e.i64(int64(len(v)))
	for _, f := range v {
		binary.LittleEndian.PutUint32(e.buf[:4], math.Float32bits(f))
		e.write(e.buf[:4])
	}
}

func (e *encoder) i64s(v []int64) {
	e.i64(int64(len(v)))
	for _, x := range v {
		e.i64(x)
	}
}

func (e *encoder) i32s(v []int32) {
	e.i32(len(v))
	for _, x := range v {
		e.i32(int(x))
	}
}

func (e *encoder) bytes(v []byte) {
	e.i64(int64(len(v)))
	e.write(v)
}

func (e *encoder) pq(pq *quantization.ProductQuantizer) {
	e.i32(pq.NumSubvectors())
	e.i32(pq.NBits())
	e.bool(pq.IsTrained())
	e.f32s(pq.Centroids())
}

func (e *encoder) index(idx Index) {
	switch v := idx.(type) {
	case *IDMap:
		e.tag(tagIDMap)
		e.index(v.inner)
		e.i64s(v.ids)
	case *Flat:
		if v.metric == distance.MetricInnerProduct {
			e.tag(tagFlatIP)
		} else {
			e.tag(tagFlatL2)
		}
		e.i32(v.d)
		e.f32s(v.vectors)
	case *HNSW:
		e.tag(tagHNSW)
		e.i32(v.storage.d)
		e.i32(int(v.storage.metric))
		e.i32(v.m)
		e.i32(v.efConstruction)
		e.i32(v.efSearch)
		e.i32(int(v.entryPoint))
		e.i32(v.maxLevel)
		e.f32s(v.storage.vectors)
		for node, level := range v.levels {
			e.i32(level)
			for l := 0; l <= level; l++ {
				e.i32s(v.links[node][l])
			}
		}
	case *IVFFlat:
		e.tag(tagIVFFlat)
		e.ivfCore(&v.ivfCore)
		for list := 0; list < v.nlist; list++ {
			e.i64s(v.listIDs[list])
			e.f32s(v.lists[list])
		}
	case *IVFPQ:
		e.tag(tagIVFPQ)
		e.ivfCore(&v.ivfCore)
		e.pq(v.pq)
		for list := 0; list < v.nlist; list++ {
			e.i64s(v.listIDs[list])
			e.bytes(v.codes[list])
		}
	case *PQ:
		e.tag(tagPQ)
		e.i32(v.d)
		e.i32(int(v.metric))
		e.pq(v.pq)
		e.bytes(v.codes)
	case *SQ:
		e.tag(tagSQ)
		e.i32(v.d)
		e.i32(int(v.metric))
		e.bool(v.sq.IsTrained())
		e.f32s(v.sq.Mins())
		e.f32s(v.sq.Maxs())
		e.bytes(v.codes)
	case *PreTransform:
		e.tag(tagPreTransform)
		e.i32(v.pca.DIn())
		e.i32(v.pca.DOut())
		e.bool(v.pca.IsTrained())
		e.f32s(v.pca.Mean())
		e.f32s(v.pca.Projection())
		e.index(v.inner)
	default:
		if e.err == nil {
			e.err = fmt.Errorf("%w: cannot serialize %T", ErrInvalidArgument, idx)
		}
	}
}

func (e *encoder) ivfCore(c *ivfCore) {
	e.i32(c.d)
	e.i32(int(c.metric))
	e.i32(c.nlist)
	e.i32(c.nprobe)
	e.f32s(c.centroids)
}

type decoder struct {
	r     io.Reader
	err   error
	buf   [8]byte
	depth int // nesting of the node being decoded; the root is 1
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: "+format, append([]any{ErrInvalidFormat}, args...)...)
	}
}

func (d *decoder) read(n int) []byte {
	if d.err != nil {
		return d.buf[:n]
	}
	if _, err := io.ReadFull(d.r, d.buf[:n]); err != nil {
		d.err = err
	}
	return d.buf[:n]
}

func (d *decoder) tag() string { return string(d.read(4)) }

func (d *decoder) u8() uint8 { return d.read(1)[0] }

func (d *decoder) bool() bool { return d.u8() != 0 }

func (d *decoder) i32() int {
	return int(int32(binary.LittleEndian.Uint32(d.read(4))))
}

func (d *decoder) i64() int64 {
	return int64(binary.LittleEndian.Uint64(d.read(8)))
}

func (d *decoder) count() int {
	n := d.i64()
	if d.err == nil && (n < 0 || n > math.MaxInt32*8) {
		d.fail("invalid length %d", n)
	}
	if d.err != nil {
		return 0
	}
	return int(n)
}

func (d *decoder) f32s() []float32 {
	n := d.count()
	out := make([]float32, 0, min(n, readChunk))
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(d.read(4))))
	}
	return out
}

func (d *decoder) i64s() []int64 {
	n := d.count()
	out := make([]int64, 0, min(n, readChunk))
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, d.i64())
	}
	return out
}

func (d *decoder) i32s() []int32 {
	n := d.i32()
	if d.err == nil && n < 0 {
		d.fail("invalid length %d", n)
	}
	if d.err != nil {
		return nil
	}
	out := make([]int32, 0, min(n, readChunk))
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, int32(d.i32()))
	}
	return out
}

func (d *decoder) bytes() []byte {
	n := d.count()
	var out []byte
	for d.err == nil && len(out) < n {
		chunk := make([]byte, min(n-len(out), readChunk))
		if _, err := io.ReadFull(d.r, chunk); err != nil {
			d.err = err
			break
		}
		out = append(out, chunk...)
	}
	return out
}

func (d *decoder) metric() distance.Metric {
	m := distance.Metric(d.i32())
	if d.err == nil && !m.Valid() {
		d.fail("unknown metric %d", int(m))
	}
	return m
}

func (d *decoder) pq(dim int) *quantization.ProductQuantizer {
	m := d.i32()
	nbits := d.i32()
	trained := d.bool()
	centroids := d.f32s()
	if d.err != nil {
		return nil
	}

	pq, err := quantization.NewProductQuantizer(dim, m, nbits)
	if err != nil {
		d.fail("%v", err)
		return nil
	}
	if trained {
		if err := pq.SetCentroids(centroids); err != nil {
			d.fail("%v", err)
			return nil
		}
	}
	return pq
}

func (d *decoder) index() Index {
	d.depth++
	defer func() { d.depth-- }()

	t := d.tag()
	if d.err != nil {
		return nil
	}

	switch t {
	case tagIDMap:
		// Inner nodes report row positions, which only the root id map translates.
		if d.depth > 1 {
			d.fail("id map nested at depth %d", d.depth)
			return nil
		}
		inner := d.index()
		ids := d.i64s()
		if d.err != nil {
			return nil
		}
		m := NewIDMap(inner)
		if err := m.restore(ids); err != nil {
			d.err = err
			return nil
		}
		return m
	case tagFlatL2, tagFlatIP:
		metric := distance.MetricL2
		if t == tagFlatIP {
			metric = distance.MetricInnerProduct
		}
		return d.flat(metric)
	case tagHNSW:
		return d.hnsw()
	case tagIVFFlat:
		return d.ivfFlat()
	case tagIVFPQ:
		return d.ivfPQ()
	case tagPQ:
		return d.pqIndex()
	case tagSQ:
		return d.sqIndex()
	case tagPreTransform:
		return d.preTransform()
	default:
		d.fail("unknown node tag %q", t)
		return nil
	}
}

func (d *decoder) flat(metric distance.Metric) *Flat {
	dim := d.i32()
	vectors := d.f32s()
	if d.err != nil {
		return nil
	}
	f, err := NewFlat(dim, metric)
	if err != nil {
		d.fail("%v", err)
		return nil
	}
	if len(vectors)%dim != 0 {
		d.fail("flat storage of %d floats is not a multiple of %d", len(vectors), dim)
		return nil
	}
	f.vectors = vectors
	return f
}

func (d *decoder) hnsw() *HNSW {
	dim := d.i32()
	metric := d.metric()
	m := d.i32()
	efC := d.i32()
	efS := d.i32()
	entry := d.i32()
	maxLevel := d.i32()
	vectors := d.f32s()
	if d.err != nil {
		return nil
	}

	h, err := NewHNSW(dim, m, metric)
	if err != nil {
		d.fail("%v", err)
		return nil
	}
	if len(vectors)%dim != 0 {
		d.fail("HNSW storage of %d floats is not a multiple of %d", len(vectors), dim)
		return nil
	}
	if efC <= 0 || efS <= 0 {
		d.fail("invalid HNSW candidate list sizes %d/%d", efC, efS)
		return nil
	}
	h.storage.vectors = vectors
	h.efConstruction = efC
	h.efSearch = efS
	h.entryPoint = int32(entry)
	h.maxLevel = maxLevel

	ntotal := len(vectors) / dim
	h.levels = make([]int, 0, min(ntotal, readChunk))
	h.links = make([][][]int32, 0, min(ntotal, readChunk))
	for node := 0; node < ntotal && d.err == nil; node++ {
		level := d.i32()
		if d.err == nil && (level < 0 || level > maxLevel) {
			d.fail("node %d has level %d above max level %d", node, level, maxLevel)
			return nil
		}
		links := make([][]int32, level+1)
		for l := 0; l <= level; l++ {
			links[l] = d.i32s()
			for _, nb := range links[l] {
				if d.err == nil && (nb < 0 || int(nb) >= ntotal) {
					d.fail("node %d links to missing node %d", node, nb)
				}
			}
		}
		h.levels = append(h.levels, level)
		h.links = append(h.links, links)
	}
	if d.err != nil {
		return nil
	}
	if (ntotal == 0 && entry != -1) || (ntotal > 0 && (entry < 0 || entry >= ntotal || h.levels[entry] != maxLevel)) {
		d.fail("invalid entry point %d", entry)
		return nil
	}
	for node, links := range h.links {
		for l, nbs := range links {
			for _, nb := range nbs {
				if h.levels[nb] < l {
					d.fail("node %d links to node %d on level %d above its top level", node, nb, l)
					return nil
				}
			}
		}
	}

	// Continue level sampling where a fresh build would be.
	for i := 0; i < ntotal; i++ {
		h.rng.Float64()
	}

	return h
}

func (d *decoder) ivfCore() (ivfCore, bool) {
	dim := d.i32()
	metric := d.metric()
	nlist := d.i32()
	nprobe := d.i32()
	centroids := d.f32s()
	if d.err != nil {
		return ivfCore{}, false
	}

	c, err := newIVFCore(dim, nlist, metric)
	if err != nil {
		d.fail("%v", err)
		return ivfCore{}, false
	}
	if len(centroids) != 0 && len(centroids) != nlist*dim {
		d.fail("IVF has %d centroid values, want %d", len(centroids), nlist*dim)
		return ivfCore{}, false
	}
	if nprobe > 0 {
		c.nprobe = min(nprobe, nlist)
	}
	c.centroids = centroids
	if len(centroids) == 0 {
		c.centroids = nil
	}
	return c, true
}

// checkRows verifies that the lists hold every row position exactly once.
func (d *decoder) checkRows(c *ivfCore) {
	if d.err != nil {
		return
	}
	seen := make([]bool, c.ntotal)
	for list, ids := range c.listIDs {
		for _, id := range ids {
			if id < 0 || id >= c.ntotal || seen[id] {
				d.fail("list %d holds invalid row %d", list, id)
				return
			}
			seen[id] = true
		}
	}
}

func (d *decoder) listIDs(c *ivfCore, list int) []int64 {
	ids := d.i64s()
	for _, id := range ids {
		if d.err == nil && id < 0 {
			d.fail("list %d holds negative row %d", list, id)
		}
	}
	c.listIDs[list] = ids
	c.ntotal += int64(len(ids))
	return ids
}

func (d *decoder) ivfFlat() *IVFFlat {
	core, ok := d.ivfCore()
	if !ok {
		return nil
	}
	score, _ := distance.Provider(core.metric)
	f := &IVFFlat{ivfCore: core, score: score, lists: make([][]float32, core.nlist)}

	for list := 0; list < f.nlist && d.err == nil; list++ {
		ids := d.listIDs(&f.ivfCore, list)
		vecs := d.f32s()
		if d.err == nil && len(vecs) != len(ids)*f.d {
			d.fail("list %d has %d floats for %d rows", list, len(vecs), len(ids))
		}
		f.lists[list] = vecs
	}
	d.checkRows(&f.ivfCore)
	if d.err != nil {
		return nil
	}
	return f
}

func (d *decoder) ivfPQ() *IVFPQ {
	core, ok := d.ivfCore()
	if !ok {
		return nil
	}
	pq := d.pq(core.d)
	if d.err != nil {
		return nil
	}
	f := &IVFPQ{ivfCore: core, pq: pq, codes: make([][]byte, core.nlist)}

	cs := pq.CodeSize()
	for list := 0; list < f.nlist && d.err == nil; list++ {
		ids := d.listIDs(&f.ivfCore, list)
		codes := d.bytes()
		if d.err == nil && len(codes) != len(ids)*cs {
			d.fail("list %d has %d code bytes for %d rows", list, len(codes), len(ids))
		}
		f.codes[list] = codes
	}
	d.checkRows(&f.ivfCore)
	if d.err != nil {
		return nil
	}
	return f
}

func (d *decoder) pqIndex() *PQ {
	dim := d.i32()
	metric := d.metric()
	if d.err != nil {
		return nil
	}
	if dim <= 0 {
		d.fail("invalid dimension %d", dim)
		return nil
	}
	pq := d.pq(dim)
	codes := d.bytes()
	if d.err != nil {
		return nil
	}
	if len(codes)%pq.CodeSize() != 0 {
		d.fail("PQ has %d code bytes, not a multiple of %d", len(codes), pq.CodeSize())
		return nil
	}
	return &PQ{d: dim, metric: metric, pq: pq, codes: codes}
}

func (d *decoder) sqIndex() *SQ {
	dim := d.i32()
	metric := d.metric()
	trained := d.bool()
	mins := d.f32s()
	maxs := d.f32s()
	codes := d.bytes()
	if d.err != nil {
		return nil
	}

	s, err := NewSQ(dim, metric)
	if err != nil {
		d.fail("%v", err)
		return nil
	}
	if trained {
		if err := s.sq.SetBounds(mins, maxs); err != nil {
			d.fail("%v", err)
			return nil
		}
	}
	if len(codes)%dim != 0 {
		d.fail("SQ has %d code bytes, not a multiple of %d", len(codes), dim)
		return nil
	}
	s.codes = codes
	return s
}

func (d *decoder) preTransform() *PreTransform {
	dIn := d.i32()
	dOut := d.i32()
	trained := d.bool()
	mean := d.f32s()
	proj := d.f32s()
	if d.err != nil {
		return nil
	}

	pca, err := transform.NewPCA(dIn, dOut)
	if err != nil {
		d.fail("%v", err)
		return nil
	}
	if trained {
		if err := pca.SetState(mean, proj); err != nil {
			d.fail("%v", err)
			return nil
		}
	}

	inner := d.index()
	if d.err != nil {
		return nil
	}
	if inner.Dimension() != dOut {
		d.fail("pre-transform outputs %d dimensions but inner index expects %d", dOut, inner.Dimension())
		return nil
	}
	return &PreTransform{pca: pca, inner: inner}
}
