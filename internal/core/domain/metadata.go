package domain

// Metadata field names shared across document types.
const (
	FieldLanguage        = "language"
	FieldTitle           = "title"
	FieldSubtitle        = "subtitle"
	FieldCreator         = "creator"
	FieldSubject         = "subject"
	FieldKeywords        = "keywords"
	FieldRights          = "rights"
	FieldRightsURL       = "rightsurl"
	FieldDate            = "date"
	FieldOriginPlaceInfo = "originPlaceInfo"
	FieldIsRelatedWith   = "isRelatedWith"
	FieldType            = "type"
	FieldSediciURI       = "sedici.uri"
	FieldDCURI           = "dc.uri"

	FieldDirector      = "director"
	FieldCodirector    = "codirector"
	FieldDegreeGrantor = "degree.grantor"
	FieldDegreeName    = "degree.name"

	FieldPublisher = "publisher"
	FieldISBN      = "isbn"
	FieldCompiler  = "compiler"
	FieldEditor    = "editor"

	FieldJournalTitle          = "journalTitle"
	FieldJournalVolumeAndIssue = "journalVolumeAndIssue"
	FieldISSN                  = "issn"
	FieldEvent                 = "event"
)

// NameFields carry person names and are stripped of honorifics after
// generation, whether scalar or list valued.
var NameFields = []string{FieldCreator, FieldDirector, FieldCodirector, FieldCompiler, FieldEditor}

// MetadataRecord is a flat field-to-value mapping. Values are strings or
// lists of strings at the JSON boundary; absent fields are absent keys,
// never empty strings.
type MetadataRecord map[string]any

// Strings normalizes a field to a list regardless of how it was
// serialized. Absent and empty fields yield nil.
func (m MetadataRecord) Strings(key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// SetStrings stores a list, serializing single-element lists as bare
// strings for backward compatibility with the repository exports.
func (m MetadataRecord) SetStrings(key string, vals []string) {
	switch len(vals) {
	case 0:
		delete(m, key)
	case 1:
		m[key] = vals[0]
	default:
		m[key] = vals
	}
}

func (m MetadataRecord) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func (m MetadataRecord) Clone() MetadataRecord {
	if m == nil {
		return nil
	}
	out := make(MetadataRecord, len(m))
	for k, v := range m {
		if vs, ok := v.([]string); ok {
			cp := make([]string, len(vs))
			copy(cp, vs)
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}
