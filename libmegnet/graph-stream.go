package libmegnet

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emirpasic/gods/trees/redblacktree"
)

// StructStream is a pipeline of Structures. Each stage consumes its receiver
// and returns the downstream stream.
type StructStream struct {
	Outlet chan *Structure
}

func NewStructStream() *StructStream {
	stream := &StructStream{
		Outlet: make(chan *Structure),
	}
	return stream
}

// StreamStructures emits the given structures and closes.
func StreamStructures(sts ...*Structure) *StructStream {
	next := NewStructStream()

	go func() {
		for _, st := range sts {
			next.Outlet <- st
		}
		next.Close()
	}()

	return next
}

// StreamExprs parses each structure expression and emits the results.
// A parse failure stops the stream early.
func StreamExprs(exprs ...string) (*StructStream, error) {
	sts := make([]*Structure, 0, len(exprs))
	for _, expr := range exprs {
		st, err := ParseStructure(expr)
		if err != nil {
			return nil, err
		}
		sts = append(sts, st)
	}
	return StreamStructures(sts...), nil
}

func (stream *StructStream) Close() {
	if stream.Outlet != nil {
		close(stream.Outlet)
	}
}

func (stream *StructStream) PushStruct(st *Structure) {
	stream.Outlet <- st
}

func (stream *StructStream) PullStruct() *Structure {
	st := <-stream.Outlet
	return st
}

// PullAll drains the stream and returns how many structures passed through.
func (stream *StructStream) PullAll() int {
	count := int(0)
	for range stream.Outlet {
		count++
	}
	return count
}

// Collect drains the stream into a slice.
func (stream *StructStream) Collect() []*Structure {
	var sts []*Structure
	for st := range stream.Outlet {
		sts = append(sts, st)
	}
	return sts
}

type PrintOpts struct {
	Label    string
	NoCoords bool
}

// Print writes one CSV line per structure and passes each through.
func (stream *StructStream) Print(out io.WriteCloser, opts PrintOpts) *StructStream {
	next := &StructStream{
		Outlet: make(chan *Structure, 1),
	}

	go func() {
		buf := strings.Builder{}
		buf.Grow(256)

		count := 0
		for st := range stream.Outlet {
			if len(opts.Label) > 0 {
				buf.WriteString(opts.Label)
			}
			buf.WriteByte(',')

			count++
			fmt.Fprintf(&buf, "%06d,%s,%d", count, st.Formula(), st.NumAtoms())
			if !opts.NoCoords {
				for ai := range st.Z {
					p := st.Coords[ai]
					fmt.Fprintf(&buf, ",%s %g %g %g", ElementSymbols[st.Z[ai]], p[0], p[1], p[2])
				}
			}
			buf.WriteByte('\n')
			out.Write([]byte(buf.String()))
			buf.Reset()
			next.Outlet <- st
		}
		out.Close()
		next.Close()
	}()

	return next
}

// DropDupes forwards only the first structure for each canonical encoding.
// Two structures whose species and quantized coordinates match are dupes.
func (stream *StructStream) DropDupes() *StructStream {
	next := &StructStream{
		Outlet: make(chan *Structure, 1),
	}

	go func() {
		seen := redblacktree.Tree{
			Comparator: func(A, B interface{}) int {
				return bytes.Compare(A.([]byte), B.([]byte))
			},
		}

		for st := range stream.Outlet {
			key := st.AppendEncodingTo(nil)
			if _, found := seen.Get(key); found {
				continue
			}
			seen.Put(key, nil)
			next.Outlet <- st
		}
		next.Close()
	}()

	return next
}

// PredictWith runs each structure through the model and writes one CSV line
// per prediction: label, formula, then the predicted values. Structures pass
// through so stages can be chained after. A failed prediction writes the
// error text in place of the values. Models loaded from a store reuse and
// refresh that store's prediction cache.
func (stream *StructStream) PredictWith(m *Model, out io.WriteCloser) *StructStream {
	next := &StructStream{
		Outlet: make(chan *Structure, 1),
	}

	go func() {
		buf := strings.Builder{}
		buf.Grow(256)

		for st := range stream.Outlet {
			fmt.Fprintf(&buf, "%s,%s", st.Label, st.Formula())

			pred, err := m.PredictOne(st)
			if err != nil {
				fmt.Fprintf(&buf, ",!%v", err)
			} else {
				for _, v := range pred {
					fmt.Fprintf(&buf, ",%g", v)
				}
			}
			buf.WriteByte('\n')
			out.Write([]byte(buf.String()))
			buf.Reset()
			next.Outlet <- st
		}
		out.Close()
		next.Close()
	}()

	return next
}
