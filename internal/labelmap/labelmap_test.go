package labelmap

import (
	"os"
	"path/filepath"
	"testing"

	"circularscan/internal/domain"
)

func TestResolveDefaults(t *testing.T) {
	t.Parallel()

	m := New("", nil)

	cases := map[string]domain.CanonicalField{
		"Số hiệu":          domain.FieldDocumentNumber,
		"Số văn bản":       domain.FieldDocumentNumber,
		"Trích yếu":        domain.FieldTitle,
		"Cơ quan ban hành": domain.FieldIssuingAgency,
		"Ngày ban hành":    domain.FieldIssueDate,
		"Tệp đính kèm":     domain.FieldFileURL,
	}
	for label, want := range cases {
		got, ok := m.Resolve(label)
		if !ok {
			t.Fatalf("Resolve(%q) found nothing", label)
		}
		if got != want {
			t.Fatalf("Resolve(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestResolveUnknownLabel(t *testing.T) {
	t.Parallel()

	m := New("", nil)

	if _, ok := m.Resolve("Không tồn tại"); ok {
		t.Fatal("expected no mapping for an unknown label")
	}
	if _, ok := m.Resolve("   "); ok {
		t.Fatal("expected no mapping for a blank label")
	}
}

func TestResolveTrimsAndNormalizes(t *testing.T) {
	t.Parallel()

	m := New("", nil)

	if got, ok := m.Resolve("  Số hiệu  "); !ok || got != domain.FieldDocumentNumber {
		t.Fatalf("trimmed lookup failed: %q %v", got, ok)
	}

	// Decomposed form of "Số hiệu" must hit the same entry after NFC.
	decomposed := "So\u0302\u0301 hie\u0323\u0302u"
	if got, ok := m.Resolve(decomposed); !ok || got != domain.FieldDocumentNumber {
		t.Fatalf("decomposed lookup failed: %q %v", got, ok)
	}
}

func TestResolveIsCaseSensitive(t *testing.T) {
	t.Parallel()

	m := New("", nil)

	if _, ok := m.Resolve("số hiệu"); ok {
		t.Fatal("lookup must not case-fold: labels are fixed administrative strings")
	}
}

func TestJSONOverride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "labels.json")
	writeFile(t, path, `{"Số hiệu bổ sung": "documentNumber"}`)

	m := New(path, nil)

	got, ok := m.Resolve("Số hiệu bổ sung")
	if !ok || got != domain.FieldDocumentNumber {
		t.Fatalf("json override not applied: %q %v", got, ok)
	}

	// Defaults survive underneath the override layer.
	if _, ok := m.Resolve("Trích yếu"); !ok {
		t.Fatal("defaults lost after merging json override")
	}
}

func TestLineOverride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "labels.txt")
	writeFile(t, path, "# operator overrides\n\nSố hiệu mở rộng: documentNumber\nNội dung tóm tắt: title\n")

	m := New(path, nil)

	if got, ok := m.Resolve("Số hiệu mở rộng"); !ok || got != domain.FieldDocumentNumber {
		t.Fatalf("line override not applied: %q %v", got, ok)
	}
	if got, ok := m.Resolve("Nội dung tóm tắt"); !ok || got != domain.FieldTitle {
		t.Fatalf("line override not applied: %q %v", got, ok)
	}
}

func TestYAMLOverride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "labels.yaml")
	writeFile(t, path, "Số quyết định: documentNumber\nNơi ban hành: issuingAgency\n")

	m := New(path, nil)

	if got, ok := m.Resolve("Số quyết định"); !ok || got != domain.FieldDocumentNumber {
		t.Fatalf("yaml override not applied: %q %v", got, ok)
	}
	if got, ok := m.Resolve("Nơi ban hành"); !ok || got != domain.FieldIssuingAgency {
		t.Fatalf("yaml override not applied: %q %v", got, ok)
	}
}

func TestMalformedOverrideDegrades(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "labels.json")
	writeFile(t, path, `{"broken":`)

	m := New(path, nil)

	// The broken layer is skipped; defaults still resolve.
	if _, ok := m.Resolve("Số hiệu"); !ok {
		t.Fatal("defaults must survive a malformed override file")
	}
}

func TestOverrideRejectsUnknownCanonicalField(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "labels.json")
	writeFile(t, path, `{"Số hiệu phụ": "notAField"}`)

	m := New(path, nil)

	if _, ok := m.Resolve("Số hiệu phụ"); ok {
		t.Fatal("override with an unknown canonical field must be dropped")
	}
	if _, ok := m.Resolve("Số hiệu"); !ok {
		t.Fatal("defaults must survive a rejected override file")
	}
}

func TestRegisterRuntimeOverride(t *testing.T) {
	t.Parallel()

	m := New("", nil)
	m.Register("Ký hiệu nội bộ", domain.FieldDocumentNumber)

	if got, ok := m.Resolve("Ký hiệu nội bộ"); !ok || got != domain.FieldDocumentNumber {
		t.Fatalf("runtime override not applied: %q %v", got, ok)
	}
}

func TestReloadPicksUpFileChanges(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "labels.json")
	writeFile(t, path, `{}`)

	m := New(path, nil)
	m.Register("Ký hiệu nội bộ", domain.FieldTitle)

	if _, ok := m.Resolve("Số công văn"); ok {
		t.Fatal("unexpected mapping before reload")
	}

	writeFile(t, path, `{"Số công văn": "documentNumber"}`)
	m.Reload()

	if got, ok := m.Resolve("Số công văn"); !ok || got != domain.FieldDocumentNumber {
		t.Fatalf("reload did not pick up the new override: %q %v", got, ok)
	}

	// Runtime registrations outrank the file and survive reloads.
	if got, ok := m.Resolve("Ký hiệu nội bộ"); !ok || got != domain.FieldTitle {
		t.Fatalf("runtime override lost on reload: %q %v", got, ok)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
