package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"gorm.io/gorm"
)

// UnitSNPattern is the identity pattern for the primary unit serial.
// Serials that do not start with IG1 are rejected before persistence.
var UnitSNPattern = regexp.MustCompile(`^IG1[A-Z0-9]+$`)

// UnitRecord is the canonical, deduplicated row per physical unit derived
// from one external SafetyCulture audit. unit_sn is the primary key so the
// same unit can never be duplicated.
type UnitRecord struct {
	UnitSN         string     `gorm:"primaryKey;size:64;column:unit_sn" json:"unit_sn"`
	AuditID        *string    `gorm:"uniqueIndex;size:64;column:audit_id" json:"audit_id"`
	SCModifiedAt   *time.Time `gorm:"index;column:sc_modified_at" json:"sc_modified_at"`
	ModelNumber    string     `gorm:"size:16;index;column:model_number" json:"model_number"`
	UMSSN          *string    `gorm:"size:16;column:ums_sn" json:"ums_sn"`
	AuditDate      time.Time  `gorm:"index;column:audit_date" json:"audit_date"`
	WarrantyExpiry *time.Time `gorm:"column:warranty_expiry" json:"warranty_expiry"`
	TMDeviceID     *string    `gorm:"size:32;column:tm_device_id" json:"tm_device_id"`
	Payload        []byte     `gorm:"type:json;column:payload" json:"payload"`
	Created        time.Time  `gorm:"autoCreateTime;column:created" json:"created"`
	Updated        time.Time  `gorm:"autoUpdateTime;column:updated" json:"updated"`
}

func (r *UnitRecord) String() string {
	return fmt.Sprintf("%s (%s)", r.UnitSN, r.ModelNumber)
}

// BeforeSave normalizes and derives fields on every write:
//   - model_number = upper-cased prefix of unit_sn (serial rules decide the
//     slice length, default 3); any supplied value is overwritten
//   - warranty_expiry = audit_date + warranty years when not explicitly set
//   - ums_sn digits are reformatted into "xxxx-xxxx" when >= 8 are available
func (r *UnitRecord) BeforeSave(tx *gorm.DB) error {
	rule := GetSerialRules(tx).Match(r.UnitSN)

	if r.UnitSN != "" {
		upper := strings.ToUpper(r.UnitSN)
		n := rule.Length
		if n <= 0 || n > len(upper) {
			n = len(upper)
		}
		r.ModelNumber = upper[:n]
	}

	if !r.AuditDate.IsZero() && r.WarrantyExpiry == nil {
		expiry := AddYears(r.AuditDate, rule.Warranty)
		r.WarrantyExpiry = &expiry
	}

	if r.UMSSN != nil {
		normalized := NormalizeUMSSerial(*r.UMSSN)
		r.UMSSN = &normalized
	}

	return nil
}

// AddYears adds whole years to a date. A Feb-29 source date clamps to
// Feb-28 when the target year is not a leap year.
func AddYears(d time.Time, years int) time.Time {
	y, m, day := d.Date()
	target := time.Date(y+years, m, day, 0, 0, 0, 0, d.Location())
	if target.Month() != m {
		// time.Date normalized Feb 29 into Mar 1; clamp instead.
		target = time.Date(y+years, time.February, 28, 0, 0, 0, 0, d.Location())
	}
	return target
}

// NormalizeUMSSerial extracts the digit characters of a raw UMS serial in
// order. With at least 8 digits the result is "xxxx-xxxx" built from the
// first 8; with fewer the input is returned unmodified.
func NormalizeUMSSerial(raw string) string {
	var digits []rune
	for _, ch := range raw {
		if unicode.IsDigit(ch) {
			digits = append(digits, ch)
		}
	}
	if len(digits) < 8 {
		return raw
	}
	return string(digits[:4]) + "-" + string(digits[4:8])
}
