// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package markets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Recorder writes market probability snapshots to InfluxDB so price
// history survives across sessions and can be charted later. It is an
// optional sink: code paths that record snapshots must tolerate a nil
// Recorder.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewRecorderFromEnv builds a recorder from INFLUXDB_URL, INFLUXDB_TOKEN,
// INFLUXDB_ORG and INFLUXDB_BUCKET. Returns (nil, nil) when the
// environment is not configured; recording is simply off in that case.
func NewRecorderFromEnv() (*Recorder, error) {
	url := os.Getenv("INFLUXDB_URL")
	token := os.Getenv("INFLUXDB_TOKEN")
	org := os.Getenv("INFLUXDB_ORG")
	bucket := os.Getenv("INFLUXDB_BUCKET")

	if url == "" || token == "" || org == "" || bucket == "" {
		return nil, nil
	}

	client := influxdb2.NewClient(url, token)
	health, err := client.Health(context.Background())
	if err != nil || health.Status != "pass" {
		client.Close()
		if err == nil {
			err = fmt.Errorf("influxdb health status %q", health.Status)
		}
		return nil, fmt.Errorf("influxdb not reachable at %s: %w", url, err)
	}

	slog.Info("Market snapshot recording enabled", "influx_url", url, "bucket", bucket)
	return &Recorder{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}, nil
}

// Record writes one point per snapshot that carries a probability.
// A nil receiver is a no-op.
func (r *Recorder) Record(ctx context.Context, snaps ...Snapshot) error {
	if r == nil {
		return nil
	}
	now := time.Now()
	for _, s := range snaps {
		if s.Probability == nil {
			continue
		}
		fields := map[string]interface{}{
			"probability": *s.Probability,
			"volume":      s.Volume,
		}
		if s.Volume24h > 0 {
			fields["volume_24h"] = s.Volume24h
		}
		if s.Liquidity > 0 {
			fields["liquidity"] = s.Liquidity
		}
		p := influxdb2.NewPoint(
			"market_snapshots",
			map[string]string{
				"market_id": s.ID,
				"platform":  string(s.Platform),
			},
			fields,
			now,
		)
		if err := r.writeAPI.WritePoint(ctx, p); err != nil {
			return fmt.Errorf("writing snapshot for %s: %w", s.ID, err)
		}
	}
	return nil
}

// Close releases the underlying InfluxDB client. Safe on nil.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.client.Close()
}
