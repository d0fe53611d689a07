package artifact

// Report is the combined outcome of checking one artifact file.
type Report struct {
	Path         string   `json:"path"`
	SchemaErrors []string `json:"schemaErrors"`
	Violations   []string `json:"violations"`
	OK           bool     `json:"ok"`
}

// Check parses raw and, when it matches the schema, validates it. Business
// rules are only evaluated on a structurally valid artifact.
func Check(path string, raw []byte) Report {
	r := Report{
		Path:         path,
		SchemaErrors: []string{},
		Violations:   []string{},
	}

	a, errs := Parse(raw)
	if len(errs) > 0 {
		r.SchemaErrors = errs.Strings()
		return r
	}
	if v := Validate(a); len(v) > 0 {
		r.Violations = v
		return r
	}
	r.OK = true
	return r
}
