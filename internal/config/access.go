package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// lookupMeta finds a setting by its JSON key and returns its category.
func lookupMeta(key string) (string, SettingMeta, bool) {
	for category, metas := range GetSettingsMetadata() {
		for _, m := range metas {
			if m.Key == key {
				return strings.ToLower(category), m, true
			}
		}
	}
	return "", SettingMeta{}, false
}

func (s *Settings) asMap() (map[string]map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Value returns the current value of the setting with the given JSON key,
// formatted for display.
func (s *Settings) Value(key string) (string, error) {
	category, _, ok := lookupMeta(key)
	if !ok {
		return "", fmt.Errorf("unknown setting %q", key)
	}
	m, err := s.asMap()
	if err != nil {
		return "", err
	}
	switch v := m[category][key].(type) {
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(v), nil
	}
}

// Set parses raw according to the setting's type and applies it. s is left
// unchanged when the new value fails validation.
func (s *Settings) Set(key, raw string) error {
	category, meta, ok := lookupMeta(key)
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}

	var value any
	switch meta.Type {
	case "int":
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s expects an integer: %w", key, err)
		}
		value = n
	case "bool":
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s expects true or false: %w", key, err)
		}
		value = b
	default:
		value = raw
	}

	m, err := s.asMap()
	if err != nil {
		return err
	}
	m[category][key] = value
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	updated := *s
	if err := json.Unmarshal(data, &updated); err != nil {
		return err
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	*s = updated
	return nil
}
