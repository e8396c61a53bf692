package extract

import (
	"context"
	"strings"
	"testing"
)

const sampleText = "Mã HS 6204.62.20 áp dụng cho áo khoác dệt kim xuất khẩu."

func TestMatchHSCodes(t *testing.T) {
	t.Parallel()

	codes := MatchHSCodes(sampleText)
	if len(codes) != 1 || codes[0] != "6204.62.20" {
		t.Fatalf("unexpected codes: %v", codes)
	}
}

func TestMatchHSCodesDistinct(t *testing.T) {
	t.Parallel()

	text := "6204.62.20 và 6110.20.00, nhắc lại 6204.62.20"
	codes := MatchHSCodes(text)
	if len(codes) != 2 {
		t.Fatalf("expected 2 distinct codes, got %v", codes)
	}
	if codes[0] != "6204.62.20" || codes[1] != "6110.20.00" {
		t.Fatalf("unexpected order: %v", codes)
	}
}

func TestMatchHSCodesIgnoresOtherNumbers(t *testing.T) {
	t.Parallel()

	text := "Công văn 1234/TCHQ ngày 01.02.2024 không chứa mã."
	if codes := MatchHSCodes(text); len(codes) != 0 {
		t.Fatalf("expected no codes, got %v", codes)
	}
}

func TestMatchProductNames(t *testing.T) {
	t.Parallel()

	names := MatchProductNames(sampleText)
	if len(names) == 0 {
		t.Fatal("expected at least one product-name candidate")
	}

	found := false
	for _, name := range names {
		if strings.Contains(name, "áo") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no candidate references the matched keyword: %v", names)
	}
}

func TestMatchProductNamesToleratesMissingDiacritics(t *testing.T) {
	t.Parallel()

	names := MatchProductNames("AO KHOAC det kim nhap khau")
	if len(names) == 0 {
		t.Fatalf("diacritic-free text must still match: %v", names)
	}
	if !strings.HasPrefix(names[0], "AO") {
		t.Fatalf("candidate must keep original spelling: %v", names)
	}
}

func TestEngineExtract(t *testing.T) {
	t.Parallel()

	extraction, err := NewEngine().Extract(context.Background(), sampleText)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	if !extraction.Success {
		t.Fatal("expected success")
	}
	if len(extraction.HSCodes) != 1 || extraction.HSCodes[0] != "6204.62.20" {
		t.Fatalf("unexpected hs codes: %v", extraction.HSCodes)
	}
	if len(extraction.ProductNames) == 0 {
		t.Fatal("expected product names")
	}
}
