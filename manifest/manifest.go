// Package manifest declares work units in YAML so that a schedule can be
// inspected or exercised without writing Go code for every unit.
//
//	units:
//	  - kind: physics
//	    reads: [Velocity]
//	    writes: [Transform]
//	    cost: 2ms
//	  - kind: render
//	    reads: [Transform, Sprite]
//	    after: [animation]
package manifest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	sched "github.com/seoyhaein/sched-go"
	"gopkg.in/yaml.v3"
)

// Document is the top-level manifest.
type Document struct {
	Units []Declaration `yaml:"units"`
}

// Declaration describes one unit: its kind, its declared access and the
// simulated work the stub unit performs on every tick.
type Declaration struct {
	Kind      string        `yaml:"kind"`
	Reads     []string      `yaml:"reads,omitempty"`
	Writes    []string      `yaml:"writes,omitempty"`
	Before    []string      `yaml:"before,omitempty"`
	After     []string      `yaml:"after,omitempty"`
	Alongside []string      `yaml:"alongside,omitempty"`
	Cost      time.Duration `yaml:"cost,omitempty"`
	FailEvery uint64        `yaml:"fail_every,omitempty"`
}

// Access converts the declaration into the scheduler's access contract.
func (d Declaration) Access() sched.Access {
	return sched.Access{
		Reads:     toTags(d.Reads),
		Writes:    toTags(d.Writes),
		Before:    toKinds(d.Before),
		After:     toKinds(d.After),
		Alongside: toKinds(d.Alongside),
	}
}

func toTags(in []string) []sched.Tag {
	out := make([]sched.Tag, len(in))
	for i, s := range in {
		out[i] = sched.Tag(s)
	}
	return out
}

func toKinds(in []string) []sched.Kind {
	out := make([]sched.Kind, len(in))
	for i, s := range in {
		out[i] = sched.Kind(s)
	}
	return out
}

// Normalized trims every name and validates the document: kinds must be
// present and unique, names must not be blank and costs must not be negative.
func (d Document) Normalized() (Document, error) {
	if len(d.Units) == 0 {
		return Document{}, fmt.Errorf("manifest: no units declared")
	}

	seen := make(map[string]int, len(d.Units))
	out := Document{Units: make([]Declaration, len(d.Units))}
	for i, decl := range d.Units {
		decl.Kind = strings.TrimSpace(decl.Kind)
		if decl.Kind == "" {
			return Document{}, fmt.Errorf("manifest: unit %d: kind is required", i)
		}
		if prev, dup := seen[decl.Kind]; dup {
			return Document{}, fmt.Errorf("manifest: unit %d: kind %q already declared by unit %d", i, decl.Kind, prev)
		}
		seen[decl.Kind] = i

		if decl.Cost < 0 {
			return Document{}, fmt.Errorf("manifest: unit %q: cost must not be negative", decl.Kind)
		}

		var err error
		for _, list := range []*[]string{&decl.Reads, &decl.Writes, &decl.Before, &decl.After, &decl.Alongside} {
			if *list, err = trimAll(*list); err != nil {
				return Document{}, fmt.Errorf("manifest: unit %q: %w", decl.Kind, err)
			}
		}
		out.Units[i] = decl
	}
	return out, nil
}

func trimAll(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("blank name at position %d", i)
		}
		out[i] = s
	}
	return out, nil
}

// ParseManifestYAML decodes and validates a manifest from YAML bytes.
func ParseManifestYAML(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, fmt.Errorf("manifest: payload is empty")
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("manifest: decode: %w", err)
	}
	return doc.Normalized()
}

// LoadManifestReader reads a manifest from r.
func LoadManifestReader(r io.Reader) (Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("manifest: read: %w", err)
	}
	return ParseManifestYAML(content)
}

// LoadManifestFile loads a manifest from path.
func LoadManifestFile(path string) (Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	doc, parseErr := ParseManifestYAML(content)
	if parseErr != nil {
		return Document{}, fmt.Errorf("manifest: %s: %w", path, parseErr)
	}
	return doc, nil
}

// Marshal encodes the document back to YAML.
func (d Document) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("manifest: encode: %w", err)
	}
	return out, nil
}
