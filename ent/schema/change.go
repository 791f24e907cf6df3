package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Change is a detected difference between two snapshots of an asset.
// At most one change exists per after-snapshot.
type Change struct {
	ent.Schema
}

func (Change) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "changes"}}
}

func (Change) Mixin() []ent.Mixin {
	return []ent.Mixin{IDMixin{}}
}

func (Change) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("asset_id").
			Immutable(),
		field.Int64("snapshot_before_id").
			Immutable(),
		field.Int64("snapshot_after_id").
			Unique().
			Immutable(),
		field.String("category"),
		field.Enum("priority").
			Values("high", "medium", "low").
			Optional().
			Nillable().
			Comment("Unset until classified"),
		field.String("summary").
			Default(""),
		field.String("rationale").
			Default(""),
		field.Float("confidence").
			Default(0).
			Min(0).
			Max(1),
		field.Text("before_excerpt").
			Default(""),
		field.Text("after_excerpt").
			Default(""),
		field.Text("diff_metadata").
			Optional().
			Nillable().
			Comment("Tagged structured diff as JSON"),
		field.Float("change_percentage").
			Default(0),
		field.String("suppressed_reason").
			Optional().
			Nillable(),
		field.Int64("detected_at").
			Immutable(),
		field.Bool("sent").
			Default(false),
		field.Int64("sent_at").
			Optional().
			Nillable(),
	}
}

func (Change) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("asset", Asset.Type).
			Ref("changes").
			Field("asset_id").
			Unique().
			Required().
			Immutable(),
		edge.To("alerts", Alert.Type),
	}
}

func (Change) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("priority", "sent", "detected_at"),
	}
}
