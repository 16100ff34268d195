// CLAUDE:SUMMARY In-process counter registry exposed in Prometheus text format via client_model families and expfmt.
// Package metrics keeps the covgate counters and serves them in the
// Prometheus text exposition format.
//
// Usage:
//
//	reg := metrics.New()
//	checks := reg.Counter("covgate_checks_total", "Coverage checks by outcome.", "outcome")
//	checks.Inc("accepted")
//	r.Handle("/metrics", reg.Handler())
package metrics

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// Registry holds named counter vectors.
type Registry struct {
	mu       sync.Mutex
	counters map[string]*CounterVec
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{counters: make(map[string]*CounterVec)}
}

// CounterVec is a monotonically increasing counter partitioned by one label.
type CounterVec struct {
	name  string
	help  string
	label string

	mu     sync.Mutex
	values map[string]float64
}

// Counter returns the counter vector registered under name, creating it on
// first use. Registering the same name with a different label panics.
func (r *Registry) Counter(name, help, label string) *CounterVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		if c.label != label {
			panic(fmt.Sprintf("metrics: %s registered with label %q, not %q", name, c.label, label))
		}
		return c
	}
	c := &CounterVec{name: name, help: help, label: label, values: make(map[string]float64)}
	r.counters[name] = c
	return c
}

// Inc adds one to the counter for labelValue.
func (c *CounterVec) Inc(labelValue string) { c.Add(labelValue, 1) }

// Add adds delta to the counter for labelValue. Negative deltas are ignored.
func (c *CounterVec) Add(labelValue string, delta float64) {
	if delta < 0 {
		return
	}
	c.mu.Lock()
	c.values[labelValue] += delta
	c.mu.Unlock()
}

// Value returns the current count for labelValue.
func (c *CounterVec) Value(labelValue string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[labelValue]
}

func (c *CounterVec) family() *dto.MetricFamily {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mf := &dto.MetricFamily{
		Name: proto.String(c.name),
		Help: proto.String(c.help),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, k := range keys {
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label: []*dto.LabelPair{{
				Name:  proto.String(c.label),
				Value: proto.String(k),
			}},
			Counter: &dto.Counter{Value: proto.Float64(c.values[k])},
		})
	}
	return mf
}

// Gather snapshots every family with at least one sample, sorted by name.
func (r *Registry) Gather() []*dto.MetricFamily {
	r.mu.Lock()
	names := make([]string, 0, len(r.counters))
	for n := range r.counters {
		names = append(names, n)
	}
	r.mu.Unlock()
	sort.Strings(names)

	var out []*dto.MetricFamily
	for _, n := range names {
		r.mu.Lock()
		c := r.counters[n]
		r.mu.Unlock()
		if mf := c.family(); len(mf.Metric) > 0 {
			out = append(out, mf)
		}
	}
	return out
}

// WriteText encodes every family in the Prometheus text format.
func (r *Registry) WriteText(w io.Writer) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range r.Gather() {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Handler serves the registry at a scrape endpoint.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var buf bytes.Buffer
		if err := r.WriteText(&buf); err != nil {
			slog.Error("metrics: write", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		w.Write(buf.Bytes())
	})
}
