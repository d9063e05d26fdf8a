package ddl

// Table names of the persistent store.
const (
	TableRecords       = "records"
	TableSchemaHistory = "schema_history"
	TableSchemaChanges = "schema_changes"
)

// StoreTables returns the three tables every backend creates:
//
//   - records: one row per ingested record; data is the JSON payload,
//     quality_issues a JSON array or NULL.
//   - schema_history: one row per committed schema version (1, 2, ...).
//   - schema_changes: one row per commit that changed the field set.
func StoreTables() []TableDef {
	return []TableDef{
		{
			Name: TableRecords,
			Columns: []ColumnDef{
				{Name: "id", Kind: KindID},
				{Name: "data", Kind: KindText},
				{Name: "schema_version", Kind: KindInt},
				{Name: "ingested_at", Kind: KindTime},
				{Name: "quality_issues", Kind: KindText, Nullable: true},
			},
			Indexes: []IndexDef{{Name: "idx_records_schema", Columns: []string{"schema_version"}}},
		},
		{
			Name: TableSchemaHistory,
			Columns: []ColumnDef{
				{Name: "version", Kind: KindInt, PrimaryKey: true},
				{Name: "schema", Kind: KindText},
				{Name: "created_at", Kind: KindTime},
			},
		},
		{
			Name: TableSchemaChanges,
			Columns: []ColumnDef{
				{Name: "id", Kind: KindID},
				{Name: "old_version", Kind: KindInt},
				{Name: "new_version", Kind: KindInt},
				{Name: "added_fields", Kind: KindText},
				{Name: "removed_fields", Kind: KindText},
				{Name: "created_at", Kind: KindTime},
			},
		},
	}
}
