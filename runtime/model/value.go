package model

// Rows is row-indexed data access, implemented by List and by the
// sort/filter proxy.
type Rows interface {
	Len() int
	Data(row int, role any) (any, bool)
	SetData(row int, role any, value any) error
}

// Value is a cursor over one role of a row model. It can be stepped from
// row to row and stays usable after it runs past either end.
type Value struct {
	rows Rows
	row  int
	role any
}

// NewValue returns a cursor on role at row. role is a RoleID or a role name.
func NewValue(rows Rows, row int, role any) *Value {
	return &Value{rows: rows, row: row, role: role}
}

// Valid reports whether the cursor is on an existing row.
func (v *Value) Valid() bool {
	return v.row >= 0 && v.row < v.rows.Len()
}

// Get reads the role at the current row.
func (v *Value) Get() (any, bool) {
	return v.rows.Data(v.row, v.role)
}

// Set writes the role at the current row.
func (v *Value) Set(value any) error {
	return v.rows.SetData(v.row, v.role, value)
}

func (v *Value) Row() int {
	return v.row
}

func (v *Value) SetRow(row int) {
	v.row = row
}

// Next moves to the following row.
func (v *Value) Next() *Value {
	v.row++
	return v
}

// Prev moves to the preceding row.
func (v *Value) Prev() *Value {
	v.row--
	return v
}
