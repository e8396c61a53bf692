package labelmap

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"circularscan/internal/domain"
)

// overrideSchema constrains a JSON override file to a flat object whose
// values name canonical fields.
const overrideSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "string",
    "enum": ["documentNumber", "title", "issuingAgency", "issueDate", "fileUrl"]
  }
}`

var compiledOverrideSchema = jsonschema.MustCompileString("label-overrides.json", overrideSchema)

// Map resolves raw Vietnamese field labels to canonical document fields.
// Layers in increasing precedence: built-in defaults, a single override file
// (format chosen by extension), then runtime registrations. The merged table
// is built once per Map; Reload rebuilds it from the same path.
type Map struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	table   map[string]domain.CanonicalField
	runtime map[string]domain.CanonicalField
}

// New builds the merged label table. A missing or malformed override file is
// never fatal: that layer is skipped with a warning and the defaults stand.
func New(overridePath string, logger *slog.Logger) *Map {
	m := &Map{
		path:    overridePath,
		logger:  logger,
		runtime: map[string]domain.CanonicalField{},
	}
	m.table = m.build()
	return m
}

// Resolve translates a raw label into its canonical field. The label is
// trimmed and NFC-normalized first; lookup is case-sensitive on the
// normalized form, since source labels are fixed administrative strings.
func (m *Map) Resolve(raw string) (domain.CanonicalField, bool) {
	key := normalizeKey(raw)
	if key == "" {
		return "", false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	field, ok := m.table[key]
	return field, ok
}

// Register installs a runtime override, the highest-precedence layer.
// It survives Reload.
func (m *Map) Register(raw string, field domain.CanonicalField) {
	key := normalizeKey(raw)
	if key == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runtime[key] = field
	m.table[key] = field
}

// Reload rebuilds the table from the configured override path. Tests use it
// to pick up an override file written after construction.
func (m *Map) Reload() {
	rebuilt := m.build()

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, field := range m.runtime {
		rebuilt[key] = field
	}
	m.table = rebuilt
}

func (m *Map) build() map[string]domain.CanonicalField {
	table := defaultTable()

	if m.path == "" {
		return table
	}

	raw, err := os.ReadFile(m.path)
	if err != nil {
		m.warn("cannot read label overrides", "path", m.path, "error", err)
		return table
	}

	var layer map[string]string
	switch strings.ToLower(filepath.Ext(m.path)) {
	case ".json":
		layer, err = parseJSONOverrides(raw)
	case ".yaml", ".yml":
		layer, err = parseYAMLOverrides(raw)
	default:
		layer = parseLineOverrides(raw)
	}
	if err != nil {
		m.warn("cannot parse label overrides", "path", m.path, "error", err)
		return table
	}

	for rawLabel, value := range layer {
		key := normalizeKey(rawLabel)
		if key == "" {
			continue
		}
		if !domain.KnownField(value) {
			m.warn("override maps to unknown canonical field", "label", rawLabel, "field", value)
			continue
		}
		table[key] = domain.CanonicalField(value)
	}

	return table
}

func parseJSONOverrides(raw []byte) (map[string]string, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal overrides: %w", err)
	}
	if err := compiledOverrideSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("validate overrides: %w", err)
	}

	obj := doc.(map[string]any)
	layer := make(map[string]string, len(obj))
	for key, value := range obj {
		layer[key] = value.(string)
	}
	return layer, nil
}

func parseYAMLOverrides(raw []byte) (map[string]string, error) {
	layer := map[string]string{}
	if err := yaml.Unmarshal(raw, &layer); err != nil {
		return nil, fmt.Errorf("unmarshal overrides: %w", err)
	}
	return layer, nil
}

// parseLineOverrides handles the loose "key: value" text format. Blank lines
// and #-comments are skipped; each remaining line splits at the first colon.
// Lines without a colon are ignored rather than rejected.
func parseLineOverrides(raw []byte) map[string]string {
	layer := map[string]string{}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		layer[key] = value
	}
	return layer
}

func normalizeKey(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}

func (m *Map) warn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}

func defaultTable() map[string]domain.CanonicalField {
	defaults := map[string]domain.CanonicalField{
		"Số hiệu":          domain.FieldDocumentNumber,
		"Số văn bản":       domain.FieldDocumentNumber,
		"Số/Ký hiệu":       domain.FieldDocumentNumber,
		"Trích yếu":        domain.FieldTitle,
		"Tiêu đề":          domain.FieldTitle,
		"Cơ quan ban hành": domain.FieldIssuingAgency,
		"Đơn vị ban hành":  domain.FieldIssuingAgency,
		"Ngày ban hành":    domain.FieldIssueDate,
		"Ngày ký":          domain.FieldIssueDate,
		"Tệp đính kèm":     domain.FieldFileURL,
		"File đính kèm":    domain.FieldFileURL,
	}

	table := make(map[string]domain.CanonicalField, len(defaults))
	for key, field := range defaults {
		table[normalizeKey(key)] = field
	}
	return table
}
