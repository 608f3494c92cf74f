// Package catalog holds the schema catalog: the static, versioned description of
// every relation and column the scouting engine may query. It is the sole source
// of identifiers for planned SQL and the verifier for proposed SQL.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vlrscout/scout-engine/pkg/apperrors"
	"github.com/vlrscout/scout-engine/pkg/models"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Value is a declared value of a categorical column.
type Value struct {
	Value    any      `yaml:"value" json:"value"`
	Label    string   `yaml:"label,omitempty" json:"label,omitempty"`
	Synonyms []string `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
}

// Display is the text used for the value in prose.
func (v Value) Display() string {
	if v.Label != "" {
		return v.Label
	}
	return fmt.Sprint(v.Value)
}

// Phrases are the question phrases that select this value.
func (v Value) Phrases() []string {
	phrases := make([]string, 0, len(v.Synonyms)+1)
	if s, ok := v.Value.(string); ok {
		phrases = append(phrases, s)
	}
	return append(phrases, v.Synonyms...)
}

// Column describes one column of a relation.
type Column struct {
	Name         string              `yaml:"name"`
	SemanticType models.SemanticType `yaml:"semantic_type"`
	Nullable     bool                `yaml:"nullable"`
	Description  string              `yaml:"description"`
	Label        string              `yaml:"label"`
	Concepts     []string            `yaml:"concepts"`
	FilterPhrase string              `yaml:"filter_phrase"`
	Values       []Value             `yaml:"values"`
}

// DisplayLabel is the prose label, falling back to the column name.
func (c *Column) DisplayLabel() string {
	if c.Label != "" {
		return c.Label
	}
	return strings.ReplaceAll(c.Name, "_", " ")
}

// ValueFor returns the declared value equal to v.
func (c *Column) ValueFor(v any) (Value, bool) {
	for _, val := range c.Values {
		if val.Value == v {
			return val, true
		}
	}
	return Value{}, false
}

// Ratio is a derived overall metric: SUM(numerator) / SUM(denominator).
type Ratio struct {
	Numerator   string `yaml:"numerator"`
	Denominator string `yaml:"denominator"`
	Alias       string `yaml:"alias"`
	Label       string `yaml:"label"`
	Percent     bool   `yaml:"percent"`
}

// Relation describes a view or table in the analytics database.
type Relation struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	RowNoun        string   `yaml:"row_noun"`
	TeamColumns    []string `yaml:"team_columns"`
	RecencyColumn  string   `yaml:"recency_column"`
	SortColumn     string   `yaml:"sort_column"`
	Topics         []string `yaml:"topics"`
	DefaultColumns []string `yaml:"default_columns"`
	Ratio          *Ratio   `yaml:"ratio"`
	Suggestions    []string `yaml:"suggestions"`
	Columns        []Column `yaml:"columns"`

	columnIndex map[string]int
}

// Column looks up a column by name.
func (r *Relation) Column(name string) (*Column, bool) {
	idx, ok := r.columnIndex[name]
	if !ok {
		return nil, false
	}
	return &r.Columns[idx], true
}

// ColumnNames returns the column names in catalog order.
func (r *Relation) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// IsTeamColumn reports whether name holds a team name.
func (r *Relation) IsTeamColumn(name string) bool {
	for _, tc := range r.TeamColumns {
		if tc == name {
			return true
		}
	}
	return false
}

type document struct {
	Version   string      `yaml:"version"`
	Relations []*Relation `yaml:"relations"`
}

// Catalog is the loaded, validated schema catalog. It is immutable after Load.
type Catalog struct {
	version   string
	relations []*Relation
	byName    map[string]*Relation
}

// LoadDefault loads the catalog compiled into the binary.
func LoadDefault() (*Catalog, error) {
	return Load(defaultCatalog)
}

// LoadFile loads a catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Load(data)
}

// Load parses and validates a catalog document.
func Load(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCatalogInvalid, err)
	}

	c := &Catalog{
		version:   doc.Version,
		relations: doc.Relations,
		byName:    make(map[string]*Relation, len(doc.Relations)),
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCatalogInvalid, err)
	}
	return c, nil
}

func (c *Catalog) validate() error {
	if c.version == "" {
		return fmt.Errorf("missing version")
	}
	if len(c.relations) == 0 {
		return fmt.Errorf("no relations declared")
	}

	for _, rel := range c.relations {
		if rel == nil || !identifierPattern.MatchString(rel.Name) {
			return fmt.Errorf("invalid relation name")
		}
		if _, dup := c.byName[rel.Name]; dup {
			return fmt.Errorf("duplicate relation %q", rel.Name)
		}
		c.byName[rel.Name] = rel

		if len(rel.Columns) == 0 {
			return fmt.Errorf("relation %q has no columns", rel.Name)
		}
		rel.columnIndex = make(map[string]int, len(rel.Columns))
		for i, col := range rel.Columns {
			if !identifierPattern.MatchString(col.Name) {
				return fmt.Errorf("relation %q: invalid column name %q", rel.Name, col.Name)
			}
			if _, dup := rel.columnIndex[col.Name]; dup {
				return fmt.Errorf("relation %q: duplicate column %q", rel.Name, col.Name)
			}
			if !col.SemanticType.Valid() {
				return fmt.Errorf("relation %q column %q: unknown semantic type %q", rel.Name, col.Name, col.SemanticType)
			}
			if len(col.Values) > 0 && col.SemanticType != models.SemanticCategorical {
				return fmt.Errorf("relation %q column %q: values declared on a non-categorical column", rel.Name, col.Name)
			}
			rel.columnIndex[col.Name] = i
		}

		if len(rel.TeamColumns) == 0 || len(rel.TeamColumns) > 2 {
			return fmt.Errorf("relation %q: expected one or two team columns", rel.Name)
		}
		refs := append([]string{}, rel.TeamColumns...)
		refs = append(refs, rel.DefaultColumns...)
		if rel.RecencyColumn != "" {
			refs = append(refs, rel.RecencyColumn)
		}
		if rel.SortColumn != "" {
			refs = append(refs, rel.SortColumn)
		}
		if rel.Ratio != nil {
			if !identifierPattern.MatchString(rel.Ratio.Alias) {
				return fmt.Errorf("relation %q: invalid ratio alias %q", rel.Name, rel.Ratio.Alias)
			}
			refs = append(refs, rel.Ratio.Numerator, rel.Ratio.Denominator)
		}
		for _, ref := range refs {
			if _, ok := rel.columnIndex[ref]; !ok {
				return fmt.Errorf("relation %q references unknown column %q", rel.Name, ref)
			}
		}
		if len(rel.DefaultColumns) == 0 {
			return fmt.Errorf("relation %q: no default columns", rel.Name)
		}
	}
	return nil
}

// Version is the catalog document version.
func (c *Catalog) Version() string {
	return c.version
}

// Relations returns the relations in catalog order.
func (c *Catalog) Relations() []*Relation {
	return c.relations
}

// Relation looks up a relation by name.
func (c *Catalog) Relation(name string) (*Relation, bool) {
	rel, ok := c.byName[name]
	return rel, ok
}

// Resolve returns the entries of a relation, or apperrors.ErrNotFound.
func (c *Catalog) Resolve(relation string) ([]models.SchemaCatalogEntry, error) {
	rel, ok := c.byName[relation]
	if !ok {
		return nil, fmt.Errorf("relation %q: %w", relation, apperrors.ErrNotFound)
	}

	entries := make([]models.SchemaCatalogEntry, len(rel.Columns))
	for i, col := range rel.Columns {
		entries[i] = models.SchemaCatalogEntry{
			Relation:     rel.Name,
			Column:       col.Name,
			SemanticType: col.SemanticType,
			Nullable:     col.Nullable,
			Description:  col.Description,
		}
	}
	return entries, nil
}
