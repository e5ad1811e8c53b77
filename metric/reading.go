/*
 * Copyright 2026 The bmcsense Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package metric

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Group is an insertion-ordered mapping of vendor-native sensor label to
// Metric. Labels are unique within a group; setting an existing label
// replaces its metric but keeps its original position, the same ordering
// contract the raw Redfish documents follow.
type Group struct {
	order   []string
	metrics map[string]Metric
}

// NewGroup returns an empty group.
func NewGroup() *Group {
	return &Group{metrics: make(map[string]Metric)}
}

// Set inserts or replaces the metric stored under label.
func (g *Group) Set(label string, m Metric) {
	if _, ok := g.metrics[label]; !ok {
		g.order = append(g.order, label)
	}
	g.metrics[label] = m
}

// Get returns the metric stored under label.
func (g *Group) Get(label string) (Metric, bool) {
	m, ok := g.metrics[label]
	return m, ok
}

// Labels returns the sensor labels in insertion order.
func (g *Group) Labels() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Len returns the number of sensors in the group.
func (g *Group) Len() int { return len(g.order) }

// Equal reports whether both groups hold the same labels in the same order
// with equal metrics.
func (g *Group) Equal(o *Group) bool {
	if g.Len() != o.Len() {
		return false
	}
	for i, label := range g.order {
		if o.order[i] != label {
			return false
		}
		if g.metrics[label] != o.metrics[label] {
			return false
		}
	}
	return true
}

// Reading is the normalized aggregation output: an insertion-ordered mapping
// of category display string to Group. Outer ordering follows the order
// categories are first encountered while scanning the raw document.
type Reading struct {
	order  []string
	groups map[string]*Group
}

// NewReading returns a reading pre-seeded with empty groups for the given
// contexts, in argument order.
func NewReading(contexts ...PhysicalContext) *Reading {
	r := &Reading{groups: make(map[string]*Group)}
	for _, c := range contexts {
		r.Group(c)
	}
	return r
}

// Group returns the group for the given context, creating and appending an
// empty one when the context has not been seen before.
func (r *Reading) Group(c PhysicalContext) *Group {
	key := c.String()
	if g, ok := r.groups[key]; ok {
		return g
	}
	g := NewGroup()
	r.order = append(r.order, key)
	r.groups[key] = g
	return g
}

// Lookup returns the group for the given context without creating one.
func (r *Reading) Lookup(c PhysicalContext) (*Group, bool) {
	g, ok := r.groups[c.String()]
	return g, ok
}

// Contexts returns the category display strings in insertion order.
func (r *Reading) Contexts() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of categories in the reading.
func (r *Reading) Len() int { return len(r.order) }

// Equal reports whether both readings hold the same categories in the same
// order with equal groups.
func (r *Reading) Equal(o *Reading) bool {
	if r.Len() != o.Len() {
		return false
	}
	for i, key := range r.order {
		if o.order[i] != key {
			return false
		}
		if !r.groups[key].Equal(o.groups[key]) {
			return false
		}
	}
	return true
}

// Merge appends every category of o into r, group by group. Shared
// categories are merged label-wise with o winning on conflicts.
func (r *Reading) Merge(o *Reading) {
	for _, key := range o.order {
		src := o.groups[key]
		dst, ok := r.groups[key]
		if !ok {
			dst = NewGroup()
			r.order = append(r.order, key)
			r.groups[key] = dst
		}
		for _, label := range src.order {
			dst.Set(label, src.metrics[label])
		}
	}
}

// Each visits every metric in category, then label, insertion order.
func (r *Reading) Each(fn func(category, label string, m Metric)) {
	for _, key := range r.order {
		g := r.groups[key]
		for _, label := range g.order {
			fn(key, label, g.metrics[label])
		}
	}
}

func (r *Reading) String() string {
	var b strings.Builder
	for _, key := range r.order {
		g := r.groups[key]
		for _, label := range g.order {
			fmt.Fprintf(&b, "%s/%s: %s\n", key, label, g.metrics[label])
		}
	}
	return b.String()
}

// MarshalYAML renders the reading as a mapping node so category and sensor
// ordering survives serialization.
func (r *Reading) MarshalYAML() (interface{}, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range r.order {
		g := r.groups[key]
		inner := &yaml.Node{Kind: yaml.MappingNode}
		for _, label := range g.order {
			var val yaml.Node
			if err := val.Encode(g.metrics[label]); err != nil {
				return nil, err
			}
			inner.Content = append(inner.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: label}, &val)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key}, inner)
	}
	return root, nil
}

// MarshalJSON writes the categories and sensors in insertion order.
func (r *Reading) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		g := r.groups[key]
		buf.WriteByte('{')
		for j, label := range g.order {
			if j > 0 {
				buf.WriteByte(',')
			}
			l, err := json.Marshal(label)
			if err != nil {
				return nil, err
			}
			m, err := json.Marshal(g.metrics[label])
			if err != nil {
				return nil, err
			}
			buf.Write(l)
			buf.WriteByte(':')
			buf.Write(m)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
