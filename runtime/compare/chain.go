package compare

// Chain orders rows by several roles in turn. For each role the
// comparator is asked first; Unknown falls back to Default. The first
// result other than Equal decides, Unknown counts as a tie.
type Chain struct {
	Roles      []string
	Comparator *Comparator
}

// Compare compares two rows.
func (c Chain) Compare(rows Rows, left, right int) Result {
	for _, role := range c.Roles {
		r := Unknown
		if c.Comparator != nil {
			r = c.Comparator.CompareRows(role, rows, left, right)
		}
		if r == Unknown {
			lv, _ := rows.Data(left, role)
			rv, _ := rows.Data(right, role)
			r = Default(lv, rv)
		}
		switch r {
		case Less, Greater:
			return r
		}
	}
	return Equal
}

// Less reports whether left sorts before right.
func (c Chain) Less(rows Rows, left, right int) bool {
	return c.Compare(rows, left, right) == Less
}
