package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// Alert records one delivery of a change. Rows of one digest share a
// batch id.
type Alert struct {
	ent.Schema
}

func (Alert) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "alerts"}}
}

func (Alert) Mixin() []ent.Mixin {
	return []ent.Mixin{IDMixin{}}
}

func (Alert) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("change_id").
			Immutable(),
		field.Enum("priority").
			Values("high", "medium", "low").
			Immutable(),
		field.Enum("delivery_type").
			Values("immediate", "daily_digest", "weekly_summary").
			Immutable(),
		field.String("batch_id").
			NotEmpty().
			Immutable(),
		field.Int64("sent_at").
			Immutable(),
	}
}

func (Alert) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("change", Change.Type).
			Ref("alerts").
			Field("change_id").
			Unique().
			Required().
			Immutable(),
	}
}
