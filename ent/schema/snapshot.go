package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Snapshot is one immutable capture of an asset.
type Snapshot struct {
	ent.Schema
}

func (Snapshot) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "snapshots"}}
}

func (Snapshot) Mixin() []ent.Mixin {
	return []ent.Mixin{IDMixin{}}
}

func (Snapshot) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("asset_id").
			Immutable(),
		field.String("content_hash").
			NotEmpty().
			Immutable().
			Comment("SHA-256 of the raw HTML"),
		field.Text("text").
			Optional().
			Nillable().
			Immutable(),
		field.Text("html").
			Optional().
			Nillable().
			Immutable(),
		field.Text("structured").
			Optional().
			Nillable().
			Immutable().
			Comment("Extracted bag as JSON"),
		field.Int("status_code").
			Default(0).
			Immutable(),
		field.Int64("captured_at").
			Immutable().
			Comment("Unix milliseconds, UTC"),
	}
}

func (Snapshot) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("asset", Asset.Type).
			Ref("snapshots").
			Field("asset_id").
			Unique().
			Required().
			Immutable(),
	}
}

func (Snapshot) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("asset_id", "captured_at"),
	}
}
