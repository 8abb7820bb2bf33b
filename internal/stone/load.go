package stone

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Load reads and parses a STONE YAML file. Only .yaml/.yml files are
// accepted.
func Load(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return nil, &ConfigError{
			Code:    ErrCodeUnsupportedFormat,
			Message: fmt.Sprintf("only STONE YAML files (.yaml/.yml) are supported, got %q", filepath.Ext(path)),
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Code: ErrCodeParse, Message: fmt.Sprintf("reading %s", path), Err: err}
	}
	return Parse(data)
}

// Parse decodes, schema-validates, and normalizes a STONE YAML document.
func Parse(data []byte) (*Config, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Code: ErrCodeParse, Message: "decoding YAML", Err: err}
	}
	if doc == nil {
		doc = map[string]any{}
	}

	normalizeDoc(doc)

	if err := validateSchema(doc); err != nil {
		return nil, err
	}

	cfg, err := fromDoc(doc)
	if err != nil {
		return nil, err
	}
	coerceUnits(cfg)
	if err := checkReferences(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalizeDoc rewrites STONE type-keyed node and connection entries into
// the internal {id, type, properties} form, in place.
func normalizeDoc(doc map[string]any) {
	normalizeEntryList(doc, "nodes", map[string]bool{
		"id": true, "type": true, "properties": true, "group": true, "metadata": true,
	})
	normalizeEntryList(doc, "connections", map[string]bool{
		"id": true, "type": true, "properties": true, "source": true, "target": true,
		"mechanism_switch": true, "metadata": true,
	})
}

func normalizeEntryList(doc map[string]any, key string, standard map[string]bool) {
	list, ok := doc[key].([]any)
	if !ok {
		return
	}
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if _, hasType := entry["type"]; hasType {
			continue
		}
		for k, v := range entry {
			if standard[k] {
				continue
			}
			// First non-standard key is the component type; its value
			// becomes the properties block.
			entry["type"] = k
			if props, ok := v.(map[string]any); ok {
				entry["properties"] = props
			} else {
				entry["properties"] = map[string]any{}
			}
			delete(entry, k)
			break
		}
	}
}

// fromDoc converts a schema-valid raw document into a Config. Identifiers
// are NFC-normalized so configs written with different Unicode compositions
// of the same id still refer to the same node.
func fromDoc(doc map[string]any) (*Config, error) {
	cfg := &Config{
		Mechanisms: map[string]MechanismSpec{},
		Groups:     map[string]Group{},
	}

	if md, ok := doc["metadata"].(map[string]any); ok {
		cfg.Metadata = md
	}
	if sim, ok := doc["simulation"].(map[string]any); ok {
		cfg.Simulation = sim
	}
	if phases, ok := doc["phases"].(map[string]any); ok {
		if gas, ok := phases["gas"].(map[string]any); ok {
			if m, ok := gas["mechanism"].(string); ok {
				cfg.Phases.Gas.Mechanism = canonical(m)
			}
		}
	}

	if mechs, ok := doc["mechanisms"].(map[string]any); ok {
		for name, raw := range mechs {
			spec := MechanismSpec{}
			if m, ok := raw.(map[string]any); ok {
				for _, sp := range asList(m["species"]) {
					if s, ok := sp.(string); ok {
						spec.Species = append(spec.Species, s)
					}
				}
			}
			cfg.Mechanisms[canonical(name)] = spec
		}
	}

	if groups, ok := doc["groups"].(map[string]any); ok {
		for gid, raw := range groups {
			g := Group{Solve: "advance_to_steady_state", AdvanceTime: 1.0}
			if m, ok := raw.(map[string]any); ok {
				if v, ok := m["mechanism"].(string); ok {
					g.Mechanism = canonical(v)
				}
				if v, ok := m["solve"].(string); ok && v != "" {
					g.Solve = v
				}
				if v, ok := FloatProperty(m, "advance_time"); ok {
					g.AdvanceTime = v
				}
			}
			cfg.Groups[canonical(gid)] = g
		}
	}

	for _, item := range asList(doc["nodes"]) {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		node := Node{
			ID:         canonical(str(entry["id"])),
			Type:       str(entry["type"]),
			Properties: asMap(entry["properties"]),
			Metadata:   asMapOrNil(entry["metadata"]),
		}
		// Group reference is accepted at the node top level or inside
		// properties; top level wins.
		if g, ok := entry["group"].(string); ok && g != "" {
			node.Group = canonical(g)
		} else if g, ok := StringProperty(node.Properties, "group"); ok && g != "" {
			node.Group = canonical(g)
		}
		cfg.Nodes = append(cfg.Nodes, node)
	}

	for _, item := range asList(doc["connections"]) {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		conn := Connection{
			ID:         canonical(str(entry["id"])),
			Type:       str(entry["type"]),
			Source:     canonical(str(entry["source"])),
			Target:     canonical(str(entry["target"])),
			Properties: asMap(entry["properties"]),
			Metadata:   asMapOrNil(entry["metadata"]),
		}
		if ms, ok := entry["mechanism_switch"].(map[string]any); ok {
			tol := DefaultSwitchTolerances
			if v, ok := FloatProperty(ms, "htol"); ok {
				tol.HTol = v
			}
			if v, ok := FloatProperty(ms, "xtol"); ok {
				tol.XTol = v
			}
			conn.MechanismSwitch = &tol
		}
		cfg.Connections = append(cfg.Connections, conn)
	}

	return cfg, nil
}

// checkReferences enforces id uniqueness and endpoint integrity.
func checkReferences(cfg *Config) error {
	nodeIDs := make(map[string]bool, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		if nodeIDs[n.ID] {
			return &ConfigError{Code: ErrCodeDuplicateID, Message: fmt.Sprintf("duplicate node id %q", n.ID)}
		}
		nodeIDs[n.ID] = true
	}
	connIDs := make(map[string]bool, len(cfg.Connections))
	for _, c := range cfg.Connections {
		if connIDs[c.ID] {
			return &ConfigError{Code: ErrCodeDuplicateID, Message: fmt.Sprintf("duplicate connection id %q", c.ID)}
		}
		connIDs[c.ID] = true
		if !nodeIDs[c.Source] {
			return &ConfigError{
				Code:    ErrCodeDanglingReference,
				Message: fmt.Sprintf("connection %q source %q does not reference an existing node", c.ID, c.Source),
			}
		}
		if !nodeIDs[c.Target] {
			return &ConfigError{
				Code:    ErrCodeDanglingReference,
				Message: fmt.Sprintf("connection %q target %q does not reference an existing node", c.ID, c.Target),
			}
		}
	}
	return nil
}

func canonical(s string) string { return norm.NFC.String(s) }

func str(v any) string {
	s, _ := v.(string)
	return s
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asMapOrNil(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
