package num

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Device describes where array operations are executed. Only the CPU is supported:
// Workers sets how many goroutines the kernels fan out over.
type Device struct {
	Name    string
	Workers int
}

// NewDevice parses a device identifier of the form "cpu" or "cpu:<workers>".
// An empty id selects the CPU with one worker per available core.
func NewDevice(id string) (Device, error) {
	id = strings.TrimSpace(strings.ToLower(id))
	dev := Device{Name: "cpu", Workers: runtime.GOMAXPROCS(0)}
	if id == "" || id == "cpu" {
		return dev, nil
	}
	name, workers, ok := strings.Cut(id, ":")
	if !ok || name != "cpu" {
		return dev, errors.Errorf("device %q not supported: expecting cpu or cpu:<workers>", id)
	}
	n, err := strconv.Atoi(workers)
	if err != nil || n < 1 {
		return dev, errors.Errorf("device %q: invalid worker count", id)
	}
	dev.Workers = n
	return dev, nil
}

// CPU returns a device with the given number of workers.
func CPU(workers int) Device {
	if workers < 1 {
		workers = 1
	}
	return Device{Name: "cpu", Workers: workers}
}

func (d Device) String() string {
	return fmt.Sprintf("%s:%d", d.Name, d.workers())
}

func (d Device) workers() int {
	if d.Workers < 1 {
		return 1
	}
	return d.Workers
}

// Parallel calls fn(worker, i) for i in [0, n). Items are dealt to workers round robin
// so a given worker always sees the same items for a fixed worker count, which keeps
// per-worker reductions deterministic.
func (d Device) Parallel(n int, fn func(worker, i int)) {
	workers := min(d.workers(), n)
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(0, i)
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < n; i += workers {
				fn(w, i)
			}
			return nil
		})
	}
	g.Wait()
}

// Scratch holds one reusable buffer per worker. Reserve must be called before the
// buffers are handed out inside Parallel.
type Scratch [][]float32

// Reserve makes room for the device's workers.
func (s *Scratch) Reserve(d Device) {
	for len(*s) < d.workers() {
		*s = append(*s, nil)
	}
}

// Get returns the buffer for worker w with size elements.
func (s *Scratch) Get(w, size int) []float32 {
	if cap((*s)[w]) < size {
		(*s)[w] = make([]float32, size)
	}
	return (*s)[w][:size]
}
