package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Asset is one monitored page of a competitor.
type Asset struct {
	ent.Schema
}

func (Asset) Annotations() []schema.Annotation {
	return []schema.Annotation{entsql.Annotation{Table: "assets"}}
}

func (Asset) Mixin() []ent.Mixin {
	return []ent.Mixin{IDMixin{}, CreatedMixin{}}
}

func (Asset) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("competitor_id"),
		field.Enum("asset_type").
			Values("pricing", "features", "changelog", "sitemap", "blog", "compliance", "social", "news"),
		field.String("url").
			NotEmpty(),
		field.String("crawl_frequency").
			Default("daily"),
		field.Enum("priority_threshold").
			Values("high", "medium", "low").
			Optional().
			Nillable().
			Comment("Changes below this tier are suppressed; unset routes every tier"),
		field.Bool("active").
			Default(true).
			Comment("Cleared when the asset leaves the competitors file"),
	}
}

func (Asset) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("competitor", Competitor.Type).
			Ref("assets").
			Field("competitor_id").
			Unique().
			Required(),
		edge.To("snapshots", Snapshot.Type),
		edge.To("changes", Change.Type),
	}
}

func (Asset) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("competitor_id", "url").Unique(),
	}
}
