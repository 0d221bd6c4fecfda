package nestling

import (
	"github.com/google/uuid"

	"github.com/hanpama/nestling/model"
)

// Test fixtures: a small blog schema with a one-to-many pair, a
// self-referential relation and a non-public schema table.

var authorTable = &model.Table{
	Schema: "public",
	Name:   "authors",
	PK:     model.Key{Column: "uuid", Type: "uuid!"},
	Caps:   model.Capabilities{Identity: true, Audit: true},
	Fields: []model.Field{
		{Name: "uuid", Kind: model.Scalar},
		{Name: "name", Kind: model.Scalar},
		{Name: "age", Kind: model.Scalar},
		{Name: "articles", Kind: model.RelationList, Ref: "articles"},
	},
}

var articleTable = &model.Table{
	Schema: "public",
	Name:   "articles",
	PK:     model.Key{Column: "uuid", Type: "uuid!"},
	Caps:   model.Capabilities{Identity: true},
	Fields: []model.Field{
		{Name: "uuid", Kind: model.Scalar},
		{Name: "title", Kind: model.Scalar},
		{Name: "rating", Kind: model.Scalar},
		{Name: "author", Kind: model.Relation, Ref: "authors"},
		{Name: "reviewer", Kind: model.Relation, Ref: "authors"},
	},
}

var auditEntryTable = &model.Table{
	Schema: "logs",
	Name:   "entries",
	PK:     model.Key{Column: "uuid", Type: "uuid!"},
	Caps:   model.Capabilities{Identity: true},
	Fields: []model.Field{
		{Name: "uuid", Kind: model.Scalar},
		{Name: "action", Kind: model.Scalar},
	},
}

func init() {
	reg := model.NewRegistry()
	reg.Register(authorTable)
	reg.Register(articleTable)
	reg.Register(auditEntryTable)
	if err := reg.Bind(); err != nil {
		panic(err)
	}
}

type Author struct {
	UUID     *uuid.UUID `json:"uuid,omitempty"`
	Name     *string    `json:"name,omitempty"`
	Age      *int       `json:"age,omitempty"`
	Articles []Article  `json:"articles,omitempty"`
}

func (Author) ModelTable() *model.Table { return authorTable }

func (a Author) ModelValues() map[string]any {
	values := map[string]any{}
	if a.UUID != nil {
		values["uuid"] = a.UUID.String()
	}
	if a.Name != nil {
		values["name"] = *a.Name
	}
	if a.Age != nil {
		values["age"] = *a.Age
	}
	if a.Articles != nil {
		subs := make([]model.Model, len(a.Articles))
		for i, art := range a.Articles {
			subs[i] = art
		}
		values["articles"] = subs
	}
	return values
}

type Article struct {
	UUID   *uuid.UUID `json:"uuid,omitempty"`
	Title  *string    `json:"title,omitempty"`
	Rating *int       `json:"rating,omitempty"`
	Author *Author    `json:"author,omitempty"`
}

func (Article) ModelTable() *model.Table { return articleTable }

func (a Article) ModelValues() map[string]any {
	values := map[string]any{}
	if a.UUID != nil {
		values["uuid"] = a.UUID.String()
	}
	if a.Title != nil {
		values["title"] = *a.Title
	}
	if a.Rating != nil {
		values["rating"] = *a.Rating
	}
	if a.Author != nil {
		values["author"] = model.Model(*a.Author)
	}
	return values
}

type AuditEntry struct {
	UUID   *uuid.UUID `json:"uuid,omitempty"`
	Action *string    `json:"action,omitempty"`
}

func (AuditEntry) ModelTable() *model.Table { return auditEntryTable }

func (e AuditEntry) ModelValues() map[string]any {
	values := map[string]any{}
	if e.UUID != nil {
		values["uuid"] = e.UUID.String()
	}
	if e.Action != nil {
		values["action"] = *e.Action
	}
	return values
}

func ptr[T any](v T) *T { return &v }
