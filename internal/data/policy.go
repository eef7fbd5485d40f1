package data

import "fmt"

// DeleteAction is what happens to child rows when their parent is deleted.
type DeleteAction string

const (
	Cascade  DeleteAction = "CASCADE"
	Restrict DeleteAction = "RESTRICT"
)

// ForeignKey is one parent/child relationship and the action taken on the
// child when the parent row goes away.
type ForeignKey struct {
	Table    string
	Column   string
	Parent   string
	OnDelete DeleteAction
}

// Policies is the referential-integrity policy of the schema. The DDL in
// migrations.go and the in-memory store both read it, so the two backends
// delete the same rows.
var Policies = []ForeignKey{
	{Table: "members", Column: "user_id", Parent: "users", OnDelete: Cascade},
	{Table: "tokens", Column: "user_id", Parent: "users", OnDelete: Cascade},
	{Table: "transactions", Column: "book_id", Parent: "books", OnDelete: Cascade},
	{Table: "transactions", Column: "member_id", Parent: "members", OnDelete: Cascade},
}

// Policy returns the relationship declared for table.column. It panics on
// an undeclared pair since that can only be a schema typo.
func Policy(table, column string) ForeignKey {
	for _, fk := range Policies {
		if fk.Table == table && fk.Column == column {
			return fk
		}
	}
	panic(fmt.Sprintf("data: no referential policy for %s.%s", table, column))
}

// References renders the column constraint, e.g.
// "REFERENCES books(id) ON DELETE CASCADE".
func (fk ForeignKey) References() string {
	return fmt.Sprintf("REFERENCES %s(id) ON DELETE %s", fk.Parent, fk.OnDelete)
}
