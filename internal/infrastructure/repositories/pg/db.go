package pg

// TableID database table ID
type TableID int

const (
	// TblResources table 'resources'
	TblResources TableID = iota
)

// SchemaName database scheme name
const SchemaName = "carl"

// MigrationsTable is the bookkeeping table of golang-migrate
const MigrationsTable = "carl_schema_migrations"

// String stringer interface impl
func (tid TableID) String() string {
	return tableID2string[tid]
}

// FQN returns the schema qualified table name
func (tid TableID) FQN() string {
	return SchemaName + "." + tid.String()
}

var tableID2string = map[TableID]string{
	TblResources: "resources",
}
