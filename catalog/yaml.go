package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type yamlDocument struct {
	Roles []RoleDefinition `yaml:"roles"`
}

// LoadYAML builds a catalog from a YAML document of the form
//
//	roles:
//	  - role_type: owner
//	    level: 0
//	    grants_all: true
//	  - role_type: member
//	    level: 1
//	    parent: owner
//	    permissions: [doc:read]
func LoadYAML(r io.Reader) (*Catalog, error) {
	var doc yamlDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	return New(doc.Roles)
}

// LoadFile is LoadYAML over the named file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadYAML(f)
}

// MarshalYAML renders the catalog's built-in definitions in the LoadYAML format.
func (c *Catalog) MarshalYAML() (any, error) {
	doc := yamlDocument{}
	for _, d := range c.Definitions() {
		if !d.IsCustom {
			doc.Roles = append(doc.Roles, d)
		}
	}
	return doc, nil
}
