package access

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// File is the on-disk form of the group table, optionally with accounts to seed.
//
//	groups:
//	  Editors:
//	    book: [view, create, edit]
//	accounts:
//	  - username: alice
//	    password: secret-password
//	    groups: [Editors]
type File struct {
	Groups   map[string]map[string][]string `yaml:"groups"`
	Accounts []SeedAccount                  `yaml:"accounts"`
}

// SeedAccount is an account created by the setup-groups command.
type SeedAccount struct {
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Groups   []string `yaml:"groups"`
}

// LoadFile reads and parses a groups file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}

// Policy converts the file's group table into a Policy.
func (f *File) Policy() (*Policy, error) {
	if len(f.Groups) == 0 {
		return nil, fmt.Errorf("groups file defines no groups")
	}
	names := make([]string, 0, len(f.Groups))
	for name := range f.Groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var grants []Grant
	for _, name := range names {
		for res, caps := range f.Groups[name] {
			r, err := ParseResource(res)
			if err != nil {
				return nil, fmt.Errorf("group %s: %w", name, err)
			}
			g := Grant{Group: name, Resource: r}
			for _, s := range caps {
				c, err := ParseCapability(s)
				if err != nil {
					return nil, fmt.Errorf("group %s: %w", name, err)
				}
				g.Capabilities = append(g.Capabilities, c)
			}
			grants = append(grants, g)
		}
	}
	return NewPolicy(grants)
}

// LoadPolicy returns the policy from path, or DefaultPolicy when path is empty.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return f.Policy()
}
