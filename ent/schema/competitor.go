package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// Competitor is one tracked company.
type Competitor struct {
	ent.Schema
}

func (Competitor) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "competitors"}}
}

func (Competitor) Mixin() []ent.Mixin {
	return []ent.Mixin{IDMixin{}, CreatedMixin{}}
}

func (Competitor) Fields() []ent.Field {
	return []ent.Field{
		field.String("name").
			NotEmpty().
			Unique().
			Comment("Sync key from the competitors file"),
		field.String("base_url"),
	}
}

func (Competitor) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("assets", Asset.Type),
	}
}
