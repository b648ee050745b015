package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

func Excluded(column string) any {
	return sqlbuilder.Raw(fmt.Sprintf("EXCLUDED.%s", column))
}

func Now() any {
	return sqlbuilder.Raw("NOW()")
}

type InsertBuilder struct {
	*sqlbuilder.InsertBuilder
}

func NewInsertBuilder() *InsertBuilder {
	return &InsertBuilder{
		sqlbuilder.PostgreSQL.NewInsertBuilder(),
	}
}

// OnConflict appends an upsert clause. Assignments are added to the returned builder.
func (b *InsertBuilder) OnConflict(columns ...string) *UpdateBuilder {
	ub := NewUpdateBuilder()
	b.SQL(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE %s", strings.Join(columns, ", "), b.Var(ub)))

	return ub
}

func (b *InsertBuilder) OnConflictDoNothing() *InsertBuilder {
	b.SQL("ON CONFLICT DO NOTHING")
	return b
}

func (b *InsertBuilder) InsertInto(table string) *InsertBuilder {
	return &InsertBuilder{b.InsertBuilder.InsertInto(table)}
}

func (b *InsertBuilder) Cols(col ...string) *InsertBuilder {
	return &InsertBuilder{b.InsertBuilder.Cols(col...)}
}

func (b *InsertBuilder) Values(value ...any) *InsertBuilder {
	return &InsertBuilder{b.InsertBuilder.Values(value...)}
}

func (b *InsertBuilder) Returning(col ...string) *InsertBuilder {
	return &InsertBuilder{b.InsertBuilder.Returning(col...)}
}

// NewBatchInsert builds a single multi-row INSERT.
func NewBatchInsert(table string, cols []string, rows [][]any) *InsertBuilder {
	ib := NewInsertBuilder()
	ib.InsertInto(table).Cols(cols...)
	for _, row := range rows {
		ib.Values(row...)
	}
	return ib
}

type UpdateBuilder struct {
	*sqlbuilder.UpdateBuilder
}

func NewUpdateBuilder() *UpdateBuilder {
	return &UpdateBuilder{sqlbuilder.PostgreSQL.NewUpdateBuilder()}
}

type DeleteBuilder struct {
	*sqlbuilder.DeleteBuilder
}

func NewDeleteBuilder() *DeleteBuilder {
	return &DeleteBuilder{sqlbuilder.PostgreSQL.NewDeleteBuilder()}
}

type SelectBuilder struct {
	*sqlbuilder.SelectBuilder
}

func NewSelectBuilder() *SelectBuilder {
	return &SelectBuilder{sqlbuilder.PostgreSQL.NewSelectBuilder()}
}

type Struct struct {
	*sqlbuilder.Struct
}

func (s *Struct) SelectFrom(table string) *SelectBuilder {
	return &SelectBuilder{s.Struct.SelectFrom(table)}
}

func (s *Struct) InsertInto(table string, v ...any) *InsertBuilder {
	return &InsertBuilder{s.Struct.InsertInto(table, v...)}
}

func (s *Struct) Update(table string, v any) *UpdateBuilder {
	return &UpdateBuilder{s.Struct.Update(table, v)}
}

func (s *Struct) DeleteFrom(table string) *DeleteBuilder {
	return &DeleteBuilder{s.Struct.DeleteFrom(table)}
}

func NewStruct(v any) *Struct {
	builder := sqlbuilder.NewStruct(v).For(sqlbuilder.PostgreSQL)
	return &Struct{builder}
}

// WithoutTag leaves fields tagged with any of tags out of the built statements.
func (s *Struct) WithoutTag(tags ...string) *Struct {
	return &Struct{s.Struct.WithoutTag(tags...)}
}
