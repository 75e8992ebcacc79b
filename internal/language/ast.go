package language

import "github.com/vektah/gqlparser/v2/ast"

type (
	QueryDocument       = ast.QueryDocument
	SchemaDocument      = ast.SchemaDocument
	OperationDefinition = ast.OperationDefinition
	OperationList       = ast.OperationList
	VariableDefinitions = ast.VariableDefinitionList
	SelectionSet        = ast.SelectionSet
	Field               = ast.Field
	ArgumentList        = ast.ArgumentList
	Value               = ast.Value
	FieldList           = ast.FieldList
	Type                = ast.Type
	Definition          = ast.Definition
	Position            = ast.Position
)

type DefinitionKind = ast.DefinitionKind

type Operation = ast.Operation

const (
	Query Operation = ast.Query

	Object    DefinitionKind = ast.Object
	Interface DefinitionKind = ast.Interface
	Scalar    DefinitionKind = ast.Scalar
	Enum      DefinitionKind = ast.Enum

	Variable = ast.Variable
)

// NamedType returns the type reference `name`, non-null when nonNull is set.
func NamedType(name string, nonNull bool) *Type {
	t := ast.NamedType(name, nil)
	t.NonNull = nonNull
	return t
}
