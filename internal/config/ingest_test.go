package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIngestConfigIsValid(t *testing.T) {
	cfg := DefaultIngestConfig()
	require.NoError(t, ValidateIngestConfig(cfg))

	assert.Equal(t, []string{"serial_number", "三包流水号", "流水号"}, cfg.Aliases.Overview[FieldSerial])
	assert.Equal(t, []string{"三包流水号", "serial_number", "流水号"}, cfg.Aliases.PersonNode[FieldSerial])
	assert.Contains(t, cfg.Aliases.Ledger[FieldSerial], "TR编号")
}

func TestValidateIngestConfigRejectsMissingSerial(t *testing.T) {
	cfg := DefaultIngestConfig()
	cfg.Aliases.Ledger = map[string][]string{FieldAmount: {"金额"}}

	err := ValidateIngestConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger")
}

func TestValidateIngestConfigRejectsBadHint(t *testing.T) {
	cases := []struct {
		name string
		hint HintRule
	}{
		{name: "empty message", hint: HintRule{Match: []string{"x"}, Severity: "error"}},
		{name: "no matcher", hint: HintRule{Message: "m", Severity: "error"}},
		{name: "bad severity", hint: HintRule{Match: []string{"x"}, Message: "m", Severity: "fatal"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultIngestConfig()
			cfg.Hints = []HintRule{tc.hint}
			assert.Error(t, ValidateIngestConfig(cfg))
		})
	}
}

func TestMergeAliasesOverridesOnlyNamedFields(t *testing.T) {
	base := map[string][]string{"serial": {"a"}, "department": {"b"}}
	merged := mergeAliases(base, map[string][]string{"Department": {"c"}, "customer": nil})

	assert.Equal(t, []string{"a"}, merged["serial"])
	assert.Equal(t, []string{"c"}, merged["department"])
	_, ok := merged["customer"]
	assert.False(t, ok)
}

func TestParseYears(t *testing.T) {
	assert.Equal(t, []int{2024, 2025}, parseYears(" 2024, x ,2025,,1999"))
}
