package catalog

import "fmt"

// Description is the public view of the catalog used for prompt grounding,
// the catalog endpoint and the MCP describe tool.
type Description struct {
	Version   string                `json:"version"`
	Relations []RelationDescription `json:"relations"`
}

type RelationDescription struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	TeamColumns []string            `json:"team_columns"`
	Columns     []ColumnDescription `json:"columns"`
}

type ColumnDescription struct {
	Name         string   `json:"name"`
	SemanticType string   `json:"semantic_type"`
	Nullable     bool     `json:"nullable"`
	Description  string   `json:"description"`
	Values       []string `json:"values,omitempty"`
}

// Describe returns the full catalog.
func (c *Catalog) Describe() Description {
	desc := Description{
		Version:   c.version,
		Relations: make([]RelationDescription, 0, len(c.relations)),
	}
	for _, rel := range c.relations {
		rd := RelationDescription{
			Name:        rel.Name,
			Description: rel.Description,
			TeamColumns: append([]string(nil), rel.TeamColumns...),
			Columns:     make([]ColumnDescription, 0, len(rel.Columns)),
		}
		for _, col := range rel.Columns {
			cd := ColumnDescription{
				Name:         col.Name,
				SemanticType: string(col.SemanticType),
				Nullable:     col.Nullable,
				Description:  col.Description,
			}
			for _, v := range col.Values {
				cd.Values = append(cd.Values, fmt.Sprint(v.Value))
			}
			rd.Columns = append(rd.Columns, cd)
		}
		desc.Relations = append(desc.Relations, rd)
	}
	return desc
}

// Relation returns the description of one relation.
func (d Description) Relation(name string) (RelationDescription, bool) {
	for _, rd := range d.Relations {
		if rd.Name == name {
			return rd, true
		}
	}
	return RelationDescription{}, false
}
