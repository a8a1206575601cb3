package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/warranty_backend/config"
	"bitbucket.org/mmdatafocus/warranty_backend/models"
	"bitbucket.org/mmdatafocus/warranty_backend/warrantysync"
)

func main() {
	inputPath := flag.String("input", "", "Optional: NDJSON file of raw audit records to ingest")
	limit := flag.Int("limit", 0, "Limit number of records processed (0 = all)")
	dryRun := flag.Bool("dry-run", false, "Do not write anything downstream")
	category := flag.String("category", warrantysync.DefaultCategory, "Part category name to use/create")
	skipMigrations := flag.Bool("skip-migrations", false, "Skip AutoMigrate on startup")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	if !*skipMigrations {
		models.MigrateTable()
	}

	var raws []warrantysync.RawRecord
	if strings.TrimSpace(*inputPath) != "" {
		var err error
		raws, err = readRawRecords(*inputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", *inputPath, err)
			os.Exit(1)
		}
	}

	sum, err := warrantysync.RunSync(context.Background(), warrantysync.Deps{
		Records:    db,
		Downstream: db,
		Logger:     config.GetLogger(),
	}, raws, warrantysync.Options{
		Limit:    *limit,
		DryRun:   *dryRun,
		Category: *category,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sync failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done. %s\n", sum)
}

type rawInput struct {
	UnitSN         string          `json:"unit_sn"`
	AuditID        string          `json:"audit_id"`
	SCModifiedAt   string          `json:"sc_modified_at"`
	AuditDate      string          `json:"audit_date"`
	WarrantyExpiry string          `json:"warranty_expiry"`
	UMSSN          string          `json:"ums_sn"`
	TMDeviceID     string          `json:"tm_device_id"`
	ModelNumber    string          `json:"model_number"`
	Payload        json.RawMessage `json:"payload"`
}

func readRawRecords(path string) ([]warrantysync.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var raws []warrantysync.RawRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var in rawInput
		if err := json.Unmarshal([]byte(text), &in); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		raw := warrantysync.RawRecord{
			UnitSN:      in.UnitSN,
			AuditID:     in.AuditID,
			UMSSN:       in.UMSSN,
			TMDeviceID:  in.TMDeviceID,
			ModelNumber: in.ModelNumber,
			Payload:     in.Payload,
		}
		if in.AuditDate != "" {
			d, err := parseDate(in.AuditDate)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid audit_date: %w", line, err)
			}
			raw.AuditDate = d
		}
		if in.WarrantyExpiry != "" {
			d, err := parseDate(in.WarrantyExpiry)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid warranty_expiry: %w", line, err)
			}
			raw.WarrantyExpiry = &d
		}
		if in.SCModifiedAt != "" {
			ts, err := parseDate(in.SCModifiedAt)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid sc_modified_at: %w", line, err)
			}
			raw.SCModifiedAt = &ts
		}
		raws = append(raws, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return raws, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
