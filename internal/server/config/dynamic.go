package config

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
)

// field describes one runtime-visible configuration parameter.
type field struct {
	name    string
	mutable bool
	get     func(*ServerConfig) string
	set     func(*ServerConfig, string) error
}

// Dynamic holds the live configuration snapshot behind an atomic pointer;
// readers are lock-free, writers publish a fresh copy. Change callbacks
// run on the writer's goroutine after the new snapshot is visible.
type Dynamic struct {
	cur    atomic.Pointer[ServerConfig]
	fields []field

	mu        sync.Mutex // serializes writers
	callbacks map[string][]func(value string)
}

// NewDynamic wraps an initial configuration.
func NewDynamic(initial *ServerConfig) *Dynamic {
	if initial == nil {
		initial = Default()
	}
	d := &Dynamic{
		callbacks: make(map[string][]func(string)),
		fields: []field{
			{
				name: "host",
				get:  func(c *ServerConfig) string { return c.Host },
			},
			{
				name: "port",
				get:  func(c *ServerConfig) string { return strconv.Itoa(c.Port) },
			},
			{
				name: "data_path",
				get:  func(c *ServerConfig) string { return c.DataPath },
			},
			{
				name:    "save",
				mutable: true,
				get:     func(c *ServerConfig) string { return c.Save },
				set:     func(c *ServerConfig, v string) error { c.Save = v; return nil },
			},
			{
				name:    "appendonly",
				mutable: true,
				get:     func(c *ServerConfig) string { return c.AppendOnly },
				set: func(c *ServerConfig, v string) error {
					if v != "yes" && v != "no" {
						return fmt.Errorf("argument must be 'yes' or 'no'")
					}
					c.AppendOnly = v
					return nil
				},
			},
			{
				name:    "log_level",
				mutable: true,
				get:     func(c *ServerConfig) string { return c.LogLevel },
				set: func(c *ServerConfig, v string) error {
					switch v {
					case "debug", "info", "warn", "error":
						c.LogLevel = v
						return nil
					}
					return fmt.Errorf("invalid log level '%s'", v)
				},
			},
			{
				name: "worker_threads",
				get:  func(c *ServerConfig) string { return strconv.Itoa(c.Workers()) },
			},
		},
	}
	d.cur.Store(initial.clone())
	return d
}

// Snapshot returns the current configuration. The returned value is
// immutable and may be retained.
func (d *Dynamic) Snapshot() *ServerConfig {
	return d.cur.Load()
}

// OnChange registers a callback invoked after the named field changes.
func (d *Dynamic) OnChange(name string, fn func(value string)) error {
	if d.lookup(name) == nil {
		return fmt.Errorf("Field '%s' not found", name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks[name] = append(d.callbacks[name], fn)
	return nil
}

// GetField returns the value of one field.
func (d *Dynamic) GetField(name string) (string, error) {
	f := d.lookup(name)
	if f == nil {
		return "", fmt.Errorf("Field '%s' not found", name)
	}
	return f.get(d.Snapshot()), nil
}

// SetField parses value into the named field and publishes a new
// snapshot. Immutable fields and parse failures are rejected.
func (d *Dynamic) SetField(name, value string) error {
	f := d.lookup(name)
	if f == nil {
		return fmt.Errorf("Field '%s' not found", name)
	}
	if !f.mutable {
		return fmt.Errorf("Field '%s' is immutable", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.cur.Load().clone()
	if err := f.set(next, value); err != nil {
		return err
	}
	d.cur.Store(next)

	for _, fn := range d.callbacks[name] {
		fn(value)
	}
	return nil
}

// ListFields returns every field name, sorted.
func (d *Dynamic) ListFields() []string {
	out := make([]string, 0, len(d.fields))
	for _, f := range d.fields {
		out = append(out, f.name)
	}
	sort.Strings(out)
	return out
}

// MatchFields returns the sorted field names matching a glob pattern
// (`*`, `prefix*`, `*suffix`, `*mid*`).
func (d *Dynamic) MatchFields(pattern string) []string {
	var out []string
	for _, f := range d.fields {
		if MatchGlob(pattern, f.name) {
			out = append(out, f.name)
		}
	}
	sort.Strings(out)
	return out
}

func (d *Dynamic) lookup(name string) *field {
	for i := range d.fields {
		if d.fields[i].name == name {
			return &d.fields[i]
		}
	}
	return nil
}
