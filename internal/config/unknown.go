package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// LoadWithWarnings parses config bytes and returns any unknown field warnings.
func LoadWithWarnings(data []byte) (*Config, []string, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, detectUnknownFields(data), nil
}

// detectUnknownFields compares raw JSON with known struct fields.
func detectUnknownFields(data []byte) []string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return []string{"internal: failed to re-parse config for unknown field detection"}
	}

	var warnings []string
	for _, key := range unknownKeys(raw, reflect.TypeOf(Config{})) {
		warnings = append(warnings, fmt.Sprintf("unknown field %q at root level (ignored)", key))
	}

	nested := map[string]reflect.Type{
		"project":     reflect.TypeOf(ProjectConfig{}),
		"trigger":     reflect.TypeOf(TriggerConfig{}),
		"checkout":    reflect.TypeOf(CheckoutConfig{}),
		"environment": reflect.TypeOf(EnvironmentConfig{}),
		"install":     reflect.TypeOf(InstallConfig{}),
		"lint":        reflect.TypeOf(LintConfig{}),
		"coverage":    reflect.TypeOf(CoverageConfig{}),
		"history":     reflect.TypeOf(HistoryConfig{}),
	}
	for _, section := range sortedKeys(nested) {
		sectionRaw, ok := raw[section]
		if !ok {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(sectionRaw, &fields); err != nil {
			continue
		}
		for _, key := range unknownKeys(fields, nested[section]) {
			warnings = append(warnings, fmt.Sprintf("unknown field %q in %s (ignored)", key, section))
		}
		if section == "coverage" {
			warnings = append(warnings, checkUploadUnknownFields(fields)...)
		}
	}

	if stagesRaw, ok := raw["stages"]; ok {
		warnings = append(warnings, checkStagesUnknownFields(stagesRaw)...)
	}

	return warnings
}

func checkUploadUnknownFields(coverage map[string]json.RawMessage) []string {
	uploadRaw, ok := coverage["upload"]
	if !ok {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(uploadRaw, &fields); err != nil {
		return nil
	}
	var warnings []string
	for _, key := range unknownKeys(fields, reflect.TypeOf(UploadConfig{})) {
		warnings = append(warnings, fmt.Sprintf("unknown field %q in coverage.upload (ignored)", key))
	}
	return warnings
}

func checkStagesUnknownFields(data json.RawMessage) []string {
	var stages map[string]json.RawMessage
	if err := json.Unmarshal(data, &stages); err != nil {
		return []string{"internal: failed to re-parse stages for unknown field detection"}
	}

	var warnings []string
	for _, name := range sortedKeys(stages) {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(stages[name], &fields); err != nil {
			continue
		}
		for _, key := range unknownKeys(fields, reflect.TypeOf(StageConfig{})) {
			warnings = append(warnings, fmt.Sprintf("unknown field %q in stage %q (ignored)", key, name))
		}
	}
	return warnings
}

func unknownKeys(fields map[string]json.RawMessage, t reflect.Type) []string {
	known := getJSONFields(t)
	var unknown []string
	for key := range fields {
		if key == "$schema" {
			continue
		}
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// getJSONFields returns a map of known JSON field names for a struct type.
func getJSONFields(t reflect.Type) map[string]bool {
	fields := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		if name := strings.Split(tag, ",")[0]; name != "" {
			fields[name] = true
		}
	}
	return fields
}
