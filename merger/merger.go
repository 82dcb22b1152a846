// Package merger fans multiple per-file Processors into a single,
// globally timestamp-ordered stream.
package merger

import (
	"container/heap"
	"io"
	"sync"
	"time"

	"github.com/jtmoon79/s4/logreader"
)

// Task describes one input file to merge.
type Task struct {
	FT            logreader.FileType
	BlockSz       uint32
	After, Before *time.Time
	DefaultOffset *time.Location
	NoCache       bool // disables the block and sysline LRUs for this file
}

// Merge runs one Processor per task concurrently and streams every
// recognized sysline to w in combined chronological order, ties broken
// by ascending task index (i.e. input order). prefix, when non-nil, is
// called once per sysline to produce bytes written immediately before
// the sysline's own bytes (used for --prepend-filename/--prepend-utc).
// Merge blocks until every task has finished, then returns one Summary
// per task, in task order.
func Merge(tasks []Task, w io.Writer, prefix func(s *logreader.Sysline, taskIdx int) []byte) []logreader.Summary {
	n := len(tasks)
	chans := make([]chan *logreader.Sysline, n)
	summaries := make([]logreader.Summary, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i, task := range tasks {
		ch := make(chan *logreader.Sysline, 64)
		chans[i] = ch
		go func(i int, task Task) {
			defer wg.Done()
			defer close(ch)
			p := logreader.NewProcessor(task.FT, task.BlockSz, task.After, task.Before, task.DefaultOffset)
			if task.NoCache {
				p.SetCachesEnabled(false)
			}
			summaries[i] = p.Run(func(s *logreader.Sysline) { ch <- s })
		}(i, task)
	}

	h := &syslineHeap{}
	heap.Init(h)
	for i := range chans {
		if s, ok := <-chans[i]; ok {
			heap.Push(h, &heapItem{taskIdx: i, s: s})
		}
	}

	var lastWritten *logreader.Sysline
	for h.Len() > 0 {
		item := heap.Pop(h).(*heapItem)
		if prefix != nil {
			w.Write(prefix(item.s, item.taskIdx))
		}
		w.Write(item.s.Bytes())
		lastWritten = item.s
		if s, ok := <-chans[item.taskIdx]; ok {
			heap.Push(h, &heapItem{taskIdx: item.taskIdx, s: s})
		}
	}

	// The last record across every file may not itself end in a newline
	// (e.g. the source file's final line was never terminated); restore
	// one so output always ends on a line boundary.
	if lastWritten != nil && lastWritten.IsSyslineLast() {
		w.Write([]byte{'\n'})
	}

	wg.Wait()
	return summaries
}

type heapItem struct {
	taskIdx int
	s       *logreader.Sysline
}

// syslineHeap orders heapItems by DateTime ascending, ties broken by
// ascending taskIdx so merge order matches input order for simultaneous
// timestamps.
type syslineHeap []*heapItem

func (h syslineHeap) Len() int { return len(h) }

func (h syslineHeap) Less(i, j int) bool {
	if h[i].s.DateTime.Equal(h[j].s.DateTime) {
		return h[i].taskIdx < h[j].taskIdx
	}
	return h[i].s.DateTime.Before(h[j].s.DateTime)
}

func (h syslineHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *syslineHeap) Push(x any) {
	*h = append(*h, x.(*heapItem))
}

func (h *syslineHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
