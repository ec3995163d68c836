package device

// Field is one EEPROM name/value pair.
type Field struct {
	Name  string
	Value string
}

// Metadata is an insertion-ordered EEPROM field map. It is filled once at
// construction and read-only afterwards.
type Metadata struct {
	fields []Field
	index  map[string]int
}

func newMetadata() *Metadata {
	return &Metadata{index: make(map[string]int)}
}

func (m *Metadata) set(name, value string) {
	if i, ok := m.index[name]; ok {
		m.fields[i].Value = value
		return
	}
	m.index[name] = len(m.fields)
	m.fields = append(m.fields, Field{Name: name, Value: value})
}

// Get looks up a field by name.
func (m *Metadata) Get(name string) (string, bool) {
	i, ok := m.index[name]
	if !ok {
		return "", false
	}
	return m.fields[i].Value, true
}

// Fields returns a copy of the fields in driver order.
func (m *Metadata) Fields() []Field {
	return append([]Field(nil), m.fields...)
}

func (m *Metadata) Len() int { return len(m.fields) }
