// Package teams maps franchise short codes to the spellings a franchise has used
// across seasons in the delivery dataset.
package teams

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultAliases is the built-in franchise table. Spellings are listed oldest first.
var DefaultAliases = map[string][]string{
	"CSK":  {"Chennai Super Kings"},
	"MI":   {"Mumbai Indians"},
	"RCB":  {"Royal Challengers Bangalore", "Royal Challengers Bengaluru"},
	"KKR":  {"Kolkata Knight Riders"},
	"DC":   {"Delhi Daredevils", "Delhi Capitals"},
	"PBKS": {"Kings XI Punjab", "Punjab Kings"},
	"KXIP": {"Kings XI Punjab", "Punjab Kings"},
	"RR":   {"Rajasthan Royals"},
	"SRH":  {"Sunrisers Hyderabad"},
	"DCG":  {"Deccan Chargers"},
	"GT":   {"Gujarat Titans"},
	"LSG":  {"Lucknow Super Giants"},
	"GL":   {"Gujarat Lions"},
	"RPS":  {"Rising Pune Supergiants", "Rising Pune Supergiant"},
	"PWI":  {"Pune Warriors"},
	"KTK":  {"Kochi Tuskers Kerala"},
}

// Directory is an immutable alias table. It is safe for concurrent use.
type Directory struct {
	aliases map[string][]string
}

// NewDirectory builds a directory from DefaultAliases with overrides applied on top.
// An override replaces the built-in spellings for its code.
func NewDirectory(overrides map[string][]string) (*Directory, error) {
	merged := make(map[string][]string, len(DefaultAliases)+len(overrides))
	for code, names := range DefaultAliases {
		merged[code] = names
	}
	for code, names := range overrides {
		merged[strings.ToUpper(strings.TrimSpace(code))] = names
	}
	return New(merged)
}

// New builds a directory from aliases alone, without the built-in table.
func New(aliases map[string][]string) (*Directory, error) {
	table := make(map[string][]string, len(aliases))
	for code, names := range aliases {
		key := strings.ToUpper(strings.TrimSpace(code))
		if key == "" {
			return nil, fmt.Errorf("alias code must not be empty")
		}
		spellings := dedupe(names)
		if len(spellings) == 0 {
			return nil, fmt.Errorf("alias %s has no spellings", key)
		}
		table[key] = spellings
	}

	return &Directory{aliases: table}, nil
}

// LoadAliasFile reads a YAML mapping of code to spellings and builds a directory.
// An empty path yields the built-in table.
func LoadAliasFile(path string) (*Directory, error) {
	if path == "" {
		return NewDirectory(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file: %w", err)
	}

	var overrides map[string][]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse alias file: %w", err)
	}

	return NewDirectory(overrides)
}

// Expand returns the dataset spellings an identifier may appear under.
//
// The identifier is trimmed and upper-cased for the code lookup. On a miss the
// trimmed identifier is returned with its original casing, because dataset names
// are stored in natural case: codes match case-insensitively, literal names only
// match their exact spelling.
func (d *Directory) Expand(identifier string) []string {
	trimmed := strings.TrimSpace(identifier)
	if names, ok := d.aliases[strings.ToUpper(trimmed)]; ok {
		return append([]string(nil), names...)
	}
	return []string{trimmed}
}

// Codes returns the known codes in sorted order.
func (d *Directory) Codes() []string {
	codes := make([]string, 0, len(d.aliases))
	for code := range d.aliases {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Aliases returns a copy of the table.
func (d *Directory) Aliases() map[string][]string {
	out := make(map[string][]string, len(d.aliases))
	for code, names := range d.aliases {
		out[code] = append([]string(nil), names...)
	}
	return out
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
