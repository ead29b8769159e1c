package metadata

import (
	"fmt"
	"strings"
)

// ParseRoles selects roles by flags. ItemRole is never part of the result.
func (c *RoleCatalog) ParseRoles(flags RoleFlags) RoleSet {
	var out RoleSet
	if flags == ItemRoleFlag {
		return out
	}
	for _, role := range c.roles {
		if role.ID == ItemRole {
			continue
		}
		switch {
		case role.IsSignal():
			if flags&SignalRoles != 0 {
				out = append(out, role.ID)
			}
		case role.IsObjectName():
			if flags&ObjectNameRoles != 0 {
				out = append(out, role.ID)
			}
		default:
			if (flags&OwnRoles != 0 && !role.Inherited) || (flags&InheritedRoles != 0 && role.Inherited) {
				out = append(out, role.ID)
			}
		}
	}
	return out
}

// ParseRoleName resolves one role spec string: either an exact dotted name
// or a wildcard "prefix*" optionally followed by "/flags".
func (c *RoleCatalog) ParseRoleName(spec string) (RoleSet, error) {
	var out RoleSet
	if strings.Contains(spec, "*") {
		parts := strings.Split(strings.ReplaceAll(spec, " ", ""), "/")
		prefix := strings.TrimSuffix(parts[0], "*")

		flags := AllRoles
		if len(parts) > 1 {
			f, err := ParseRoleFlags(parts[1])
			if err != nil {
				return nil, RoleSpecError{Spec: spec, Reason: "unknown role name flag " + parts[1]}
			}
			flags = f
		}
		for _, id := range c.ParseRoles(flags) {
			if strings.HasPrefix(c.roles[id].Name, prefix) {
				out = append(out, id)
			}
		}
	} else if id, ok := c.byName[spec]; ok {
		out = RoleSet{id}
	}

	if len(out) == 0 {
		return nil, RoleError{Role: spec}
	}
	return out, nil
}

// ParseRoleSpec converts a role spec value to role ids. Accepted values are
// RoleFlags or int flags, a role spec string, a list of role spec strings and
// lists mixing both. Lists are merged.
func (c *RoleCatalog) ParseRoleSpec(spec any) (RoleSet, error) {
	switch v := spec.(type) {
	case nil:
		return nil, nil
	case RoleFlags:
		return c.ParseRoles(v), nil
	case int:
		return c.ParseRoles(RoleFlags(v)), nil
	case RoleID:
		if _, err := c.Role(v); err != nil {
			return nil, err
		}
		return RoleSet{v}, nil
	case RoleSet:
		for _, id := range v {
			if _, err := c.Role(id); err != nil {
				return nil, err
			}
		}
		return v.Clone(), nil
	case string:
		return c.ParseRoleName(v)
	case []string:
		var out RoleSet
		for _, s := range v {
			ids, err := c.ParseRoleName(s)
			if err != nil {
				return nil, err
			}
			out = out.Union(ids)
		}
		return out, nil
	case []any:
		var out RoleSet
		for _, item := range v {
			ids, err := c.ParseRoleSpec(item)
			if err != nil {
				return nil, err
			}
			out = out.Union(ids)
		}
		return out, nil
	}
	return nil, RoleSpecError{Spec: fmt.Sprint(spec), Reason: fmt.Sprintf("unsupported roles type %T", spec)}
}
