package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.config")
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		t.Fatalf("could not write config file: %s", err.Error())
	}
	return path
}

func TestParse(t *testing.T) {
	path := writeConfig(t, `
[fmm]
Order = 4
Adaptive = true
NCrit = 100
Translation = svd
SvdRank = 25

[io]
PointFile = points.dat
ChargeFile = charges.dat
PotentialFile = potentials.dat
`)

	c, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse failed: %s", err.Error())
	}

	if c.Fmm.Order != 4 {
		t.Errorf("Expected Order = 4, got %d.", c.Fmm.Order)
	}
	if !c.Fmm.Adaptive || c.Fmm.NCrit != 100 {
		t.Errorf("Adaptive settings were not parsed.")
	}
	if c.Fmm.Translation != "svd" || c.Fmm.SvdRank != 25 {
		t.Errorf("Translation settings were not parsed.")
	}
	if c.IO.PointFile != "points.dat" {
		t.Errorf("Expected PointFile = points.dat, got %q.", c.IO.PointFile)
	}

	// Unset variables keep their defaults.
	if c.Fmm.AlphaInner != 1.05 || c.Fmm.AlphaOuter != 2.95 {
		t.Errorf("Expected default surface scalings, got %g and %g.",
			c.Fmm.AlphaInner, c.Fmm.AlphaOuter)
	}
	if c.Fmm.Threads != -1 {
		t.Errorf("Expected Threads = -1 by default, got %d.", c.Fmm.Threads)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []string{
		"[fmm]\nOrder = 1\n",
		"[fmm]\nDepth = 0\n",
		"[fmm]\nDepth = 17\n",
		"[fmm]\nAdaptive = true\nNCrit = 0\n",
		"[fmm]\nAlphaInner = 3\nAlphaOuter = 1\n",
		"[fmm]\nTranslation = dense\n",
		"[fmm]\nSvdRank = -1\n",
		"[fmm]\nThreads = 0\n",
		"[fmm]\nOrder = not a number\n",
	}

	for i := range tests {
		path := writeConfig(t, tests[i])
		if _, err := Parse(path); err == nil {
			t.Errorf("%d) Expected a parse error for %q.", i, tests[i])
		}
	}
}

func TestParseMissingFile(t *testing.T) {
	if _, err := Parse(filepath.Join(t.TempDir(), "missing.config")); err == nil {
		t.Errorf("Expected an error for a missing config file.")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("The default config does not validate: %s", err.Error())
	}
}
