package erprecord

// AnyVersion is the FieldMapping key whose renames apply to every
// server version without a more specific entry.
const AnyVersion = "*"

// FieldMapping holds per server version renames of canonical field
// names: version (or AnyVersion) -> canonical name -> remote name.
type FieldMapping map[string]map[string]string

// Resolve returns the remote name of a canonical field name on the given
// server version. A rename declared for the exact version wins over the
// AnyVersion rename; without either the name is used verbatim.
func (m FieldMapping) Resolve(name, version string) string {
	if renames, ok := m[version]; ok {
		if remote, ok := renames[name]; ok {
			return remote
		}
	}
	if renames, ok := m[AnyVersion]; ok {
		if remote, ok := renames[name]; ok {
			return remote
		}
	}
	return name
}

// Set declares a rename, creating the version table on demand
func (m FieldMapping) Set(version, name, remote string) {
	if version == "" {
		version = AnyVersion
	}
	renames, ok := m[version]
	if !ok {
		renames = make(map[string]string)
		m[version] = renames
	}
	renames[name] = remote
}

func (m FieldMapping) clone() FieldMapping {
	out := make(FieldMapping, len(m))
	for version, renames := range m {
		cp := make(map[string]string, len(renames))
		for k, v := range renames {
			cp[k] = v
		}
		out[version] = cp
	}
	return out
}
