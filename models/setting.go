package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Setting keys. Keep keys stable; changing keys drops existing values in
// production.
const (
	SettingSerialPrefixRules = "SERIAL_PREFIX_RULES"
	SettingSyncMode          = "SC_SYNC_MODE"
)

const (
	SyncModeIncremental = "incremental"
	SyncModeFull        = "full"
)

// WarrantySetting is a DB-persisted key/value setting row, mirroring the
// settings surface the plugin exposes to operators.
type WarrantySetting struct {
	Key     string    `gorm:"primaryKey;size:64;column:setting_key" json:"key"`
	Value   string    `gorm:"type:text;column:setting_value" json:"value"`
	Updated time.Time `gorm:"autoUpdateTime;column:updated" json:"updated"`
}

// SerialRule maps a serial prefix to how many characters form the model
// number and how many warranty years apply.
type SerialRule struct {
	Length   int `json:"length"`
	Warranty int `json:"warranty"`
}

type SerialRules map[string]SerialRule

func DefaultSerialRules() SerialRules {
	return SerialRules{"IG": {Length: 3, Warranty: 3}}
}

var defaultSerialRule = SerialRule{Length: 3, Warranty: 3}

// Match returns the rule for the longest prefix matching unitSN, falling
// back to the default 3-character / 3-year rule.
func (rules SerialRules) Match(unitSN string) SerialRule {
	upper := strings.ToUpper(strings.TrimSpace(unitSN))
	best := ""
	rule := defaultSerialRule
	for prefix, r := range rules {
		p := strings.ToUpper(prefix)
		if strings.HasPrefix(upper, p) && len(p) > len(best) {
			best = p
			rule = r
		}
	}
	if rule.Length <= 0 {
		rule.Length = defaultSerialRule.Length
	}
	if rule.Warranty <= 0 {
		rule.Warranty = defaultSerialRule.Warranty
	}
	return rule
}

func GetSetting(db *gorm.DB, key string) (string, bool) {
	var setting WarrantySetting
	err := db.Where("setting_key = ?", key).Take(&setting).Error
	if err != nil {
		return "", false
	}
	return setting.Value, true
}

func SetSetting(db *gorm.DB, key string, value string) error {
	setting := WarrantySetting{Key: key, Value: value}
	return db.Save(&setting).Error
}

// GetSerialRules loads SERIAL_PREFIX_RULES from the settings table. Missing
// rows, malformed JSON, or an unmigrated table all fall back to the default
// rules so derivation never blocks a save.
func GetSerialRules(db *gorm.DB) SerialRules {
	if db == nil {
		return DefaultSerialRules()
	}
	raw, ok := GetSetting(db.Session(&gorm.Session{NewDB: true}), SettingSerialPrefixRules)
	if !ok || strings.TrimSpace(raw) == "" {
		return DefaultSerialRules()
	}
	var rules SerialRules
	if err := json.Unmarshal([]byte(raw), &rules); err != nil || len(rules) == 0 {
		return DefaultSerialRules()
	}
	return rules
}

// GetSyncMode returns incremental unless the setting explicitly says full.
func GetSyncMode(db *gorm.DB) string {
	raw, ok := GetSetting(db, SettingSyncMode)
	if !ok {
		return SyncModeIncremental
	}
	if strings.EqualFold(strings.TrimSpace(raw), SyncModeFull) {
		return SyncModeFull
	}
	return SyncModeIncremental
}
