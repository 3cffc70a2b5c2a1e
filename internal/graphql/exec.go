// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package graphql

import (
	"context"
	_ "embed"
	"encoding/json"
	"strings"

	gqlruntime "github.com/99designs/gqlgen/graphql"
	"github.com/iancoleman/strcase"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"

	"github.com/aniwatch/aniwatch/internal/apperror"
)

//go:embed schema.graphql
var schemaSDL string

// LoadSchema parses and validates the embedded SDL once at boot.
func LoadSchema() (*ast.Schema, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSDL})
	if err != nil {
		return nil, apperror.Wrap(apperror.Config, "graphql: load schema", err)
	}
	return schema, nil
}

// Executor validates incoming operations against the schema and walks
// their selection sets, dispatching each top-level field to the resolver.
type Executor struct {
	schema   *ast.Schema
	resolver *Resolver
}

func NewExecutor(schema *ast.Schema, resolver *Resolver) *Executor {
	return &Executor{schema: schema, resolver: resolver}
}

// Execute runs one operation, producing the standard response envelope
// (gqlgen's runtime Response). Field failures are collected as GraphQL
// errors; execution continues with the remaining top-level fields.
func (e *Executor) Execute(ctx context.Context, query, operationName string, variables map[string]any) *gqlruntime.Response {
	doc, parseErrs := gqlparser.LoadQuery(e.schema, query)
	if len(parseErrs) > 0 {
		return &gqlruntime.Response{Errors: parseErrs}
	}

	op := doc.Operations.ForName(operationName)
	if op == nil {
		return &gqlruntime.Response{Errors: gqlerror.List{gqlerror.Errorf("operation %q not found", operationName)}}
	}
	if op.Operation == ast.Subscription {
		return &gqlruntime.Response{Errors: gqlerror.List{gqlerror.Errorf("subscriptions are not supported")}}
	}

	vars, err := validator.VariableValues(e.schema, op, variables)
	if err != nil {
		return &gqlruntime.Response{Errors: gqlerror.List{gqlerror.WrapIfUnwrapped(err)}}
	}

	res := &gqlruntime.Response{}
	data := map[string]any{}
	for _, field := range flattenSelections(op.SelectionSet) {
		value, ferr := e.resolveField(ctx, op.Operation, field, vars)
		if ferr != nil {
			res.Errors = append(res.Errors, fieldError(field, ferr))
			data[field.Alias] = nil
			continue
		}
		data[field.Alias] = project(value, field)
	}

	raw, merr := json.Marshal(data)
	if merr != nil {
		res.Errors = append(res.Errors, gqlerror.Errorf("serialize response: %s", merr))
		return res
	}
	res.Data = raw
	return res
}

func (e *Executor) resolveField(ctx context.Context, opType ast.Operation, field *ast.Field, vars map[string]any) (any, error) {
	args := field.ArgumentMap(vars)

	if field.Name == "__typename" {
		if opType == ast.Mutation {
			return "Mutation", nil
		}
		return "Query", nil
	}

	if opType == ast.Query {
		if field.Name == "me" {
			return e.resolver.me(ctx)
		}
		if entity, ok := queryFields[field.Name]; ok {
			return e.resolver.list(ctx, entities[entity], args)
		}
		return nil, apperror.New(apperror.UserInput, "unknown query field "+field.Name)
	}

	def, verb, err := mutationTarget(field.Name)
	if err != nil {
		return nil, err
	}
	switch verb {
	case "Create":
		data, _ := args["data"].(map[string]any)
		return e.resolver.create(ctx, def, data)
	case "CreateBatch":
		items, _ := args["data"].([]any)
		batch := make([]map[string]any, 0, len(items))
		for _, it := range items {
			m, _ := it.(map[string]any)
			batch = append(batch, m)
		}
		return e.resolver.createBatch(ctx, def, batch)
	case "Update":
		data, _ := args["data"].(map[string]any)
		return e.resolver.update(ctx, def, data, args["where"])
	case "Delete":
		return e.resolver.delete(ctx, def, args["where"])
	}
	return nil, apperror.New(apperror.UserInput, "unknown mutation "+field.Name)
}

// mutationTarget splits a mutation field name like subscriptionCreateBatch
// into its entity descriptor and verb.
func mutationTarget(name string) (entityDef, string, error) {
	for _, verb := range []string{"CreateBatch", "Create", "Update", "Delete"} {
		prefix, ok := strings.CutSuffix(name, verb)
		if !ok {
			continue
		}
		if def, ok := entities[prefix]; ok {
			return def, verb, nil
		}
	}
	return entityDef{}, "", apperror.New(apperror.UserInput, "unknown mutation "+name)
}

// flattenSelections resolves fragment spreads and inline fragments into a
// flat field list. Fragment definitions have been bound by validation.
func flattenSelections(set ast.SelectionSet) []*ast.Field {
	var out []*ast.Field
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			out = append(out, s)
		case *ast.FragmentSpread:
			if s.Definition != nil {
				out = append(out, flattenSelections(s.Definition.SelectionSet)...)
			}
		case *ast.InlineFragment:
			out = append(out, flattenSelections(s.SelectionSet)...)
		}
	}
	return out
}

// project trims a resolved value down to the requested selection set.
func project(value any, field *ast.Field) any {
	if len(field.SelectionSet) == 0 {
		return value
	}
	switch v := value.(type) {
	case []map[string]any:
		out := make([]any, len(v))
		for i, row := range v {
			out[i] = projectMap(row, field)
		}
		return out
	case map[string]any:
		return projectMap(v, field)
	default:
		return value
	}
}

func projectMap(row map[string]any, field *ast.Field) map[string]any {
	out := map[string]any{}
	for _, sub := range flattenSelections(field.SelectionSet) {
		if sub.Name == "__typename" {
			out[sub.Alias] = typeNameOf(field)
			continue
		}
		out[sub.Alias] = row[sub.Name]
	}
	return out
}

// typeNameOf renders the GraphQL object type name of a field's result,
// e.g. subscriptions -> Subscription.
func typeNameOf(field *ast.Field) string {
	if field.Definition != nil && field.Definition.Type != nil {
		return field.Definition.Type.Name()
	}
	return strcase.ToCamel(field.Name)
}

// fieldError converts a resolver error into a GraphQL error object. AuthZ
// failures surface as a generic forbidden tagged auth; internals are never
// leaked past this point.
func fieldError(field *ast.Field, err error) *gqlerror.Error {
	kind := apperror.KindOf(err)
	code := "internal"
	message := err.Error()

	switch kind {
	case apperror.AuthZ:
		code = "auth"
		message = "forbidden"
	case apperror.UserInput:
		code = "user_input"
	case apperror.DBNotFound:
		code = "not_found"
	case apperror.DBConstraint:
		code = "db_constraint"
	}

	return &gqlerror.Error{
		Message: message,
		Path:    ast.Path{ast.PathName(field.Alias)},
		Extensions: map[string]any{
			"code": code,
		},
	}
}
