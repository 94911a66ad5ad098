// seed_subjects.go: standalone script to load subjects from a CSV file into Arbiter.
//
// Usage:
//
//	go run scripts/seed_subjects.go -csv subjects.csv -api http://localhost:8700 -caller seeder
//
// The CSV needs a header row. Recognised columns: id, name, total_volume,
// average_unit_price, profit_margin, total_revenue, delivery_count,
// last_activity (RFC 3339). Unknown columns are ignored.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type subject struct {
	ID               string     `json:"id"`
	Name             string     `json:"name,omitempty"`
	TotalVolume      *float64   `json:"total_volume"`
	AverageUnitPrice *float64   `json:"average_unit_price"`
	ProfitMargin     *float64   `json:"profit_margin"`
	TotalRevenue     *float64   `json:"total_revenue,omitempty"`
	DeliveryCount    *int       `json:"delivery_count,omitempty"`
	LastActivity     *time.Time `json:"last_activity,omitempty"`
}

func main() {
	csvPath := flag.String("csv", "subjects.csv", "path to subjects CSV")
	apiURL := flag.String("api", "http://localhost:8700", "Arbiter API base URL")
	callerID := flag.String("caller", "seeder", "X-Caller-ID header value")
	dryRun := flag.Bool("dry-run", false, "print subjects without posting")
	flag.Parse()

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	subjects, err := parseSubjects(f)
	if err != nil {
		log.Fatalf("parse csv: %v", err)
	}
	log.Printf("parsed %d subjects from %s", len(subjects), *csvPath)

	if *dryRun {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		for _, s := range subjects {
			_ = enc.Encode(s)
		}
		return
	}

	client := &http.Client{Timeout: 10 * time.Second}
	created, skipped := 0, 0
	for _, s := range subjects {
		body, err := json.Marshal(s)
		if err != nil {
			log.Printf("skip %q: %v", s.ID, err)
			skipped++
			continue
		}
		req, err := http.NewRequest("POST", *apiURL+"/api/v1/subjects", bytes.NewReader(body))
		if err != nil {
			log.Printf("skip %q: %v", s.ID, err)
			skipped++
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Caller-ID", *callerID)

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("skip %q: %v", s.ID, err)
			skipped++
			continue
		}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()

		if resp.StatusCode == http.StatusCreated {
			created++
		} else {
			log.Printf("skip %q: status %d: %s", s.ID, resp.StatusCode, strings.TrimSpace(string(msg)))
			skipped++
		}
	}

	log.Printf("done: %d created, %d skipped", created, skipped)
}

func parseSubjects(r io.Reader) ([]subject, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["id"]; !ok {
		return nil, errors.New("missing id column")
	}

	var subjects []subject
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		get := func(name string) string {
			if i, ok := cols[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		s := subject{ID: get("id"), Name: get("name")}
		floats := []struct {
			col string
			dst **float64
		}{
			{"total_volume", &s.TotalVolume},
			{"average_unit_price", &s.AverageUnitPrice},
			{"profit_margin", &s.ProfitMargin},
			{"total_revenue", &s.TotalRevenue},
		}
		for _, fl := range floats {
			v := get(fl.col)
			if v == "" {
				continue
			}
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, fl.col, err)
			}
			*fl.dst = &n
		}
		if v := get("delivery_count"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("line %d: delivery_count: %w", line, err)
			}
			s.DeliveryCount = &n
		}
		if v := get("last_activity"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("line %d: last_activity: %w", line, err)
			}
			s.LastActivity = &t
		}
		subjects = append(subjects, s)
	}
	return subjects, nil
}
