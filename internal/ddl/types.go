package ddl

// Logical column kinds. Each Dialect maps them to a concrete SQL type.
const (
	KindID   = "id"   // auto-increment surrogate key, rendered with its PRIMARY KEY clause
	KindInt  = "int"  // 64-bit integer
	KindText = "text" // unbounded text (JSON documents, field lists)
	KindTime = "time" // ISO-8601 timestamp stored as text
)

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - Kind: one of the Kind* constants
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of a composite/explicit primary key
//     (KindID columns carry their own key clause and should leave this false)
type ColumnDef struct {
	Name       string
	Kind       string
	Nullable   bool
	PrimaryKey bool
}

// IndexDef is a secondary, non-unique index.
type IndexDef struct {
	Name    string
	Columns []string
}

// TableDef holds a table name and an ordered list of columns plus any
// secondary indexes.
type TableDef struct {
	Name    string
	Columns []ColumnDef
	Indexes []IndexDef
}
