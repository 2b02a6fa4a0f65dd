// Package e2e runs the service against real brokers and databases started
// with testcontainers.
package e2e

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxProbe reads back what the service wrote to InfluxDB.
type InfluxProbe struct {
	bucket string
	client influxdb2.Client
	query  api.QueryAPI
}

// NewInfluxProbe connects to a running instance.
func NewInfluxProbe(url, token, org, bucket string) *InfluxProbe {
	c := influxdb2.NewClient(url, token)
	return &InfluxProbe{bucket: bucket, client: c, query: c.QueryAPI(org)}
}

// Count returns the number of records of measurement written in the last
// hour, optionally restricted to a tag value.
func (p *InfluxProbe) Count(ctx context.Context, measurement, tag, value string) (int, error) {
	flux := fmt.Sprintf(`from(bucket:%q) |> range(start: -1h) |> filter(fn: (r) => r._measurement == %q)`, p.bucket, measurement)
	if tag != "" {
		flux += fmt.Sprintf(` |> filter(fn: (r) => r[%q] == %q)`, tag, value)
	}
	res, err := p.query.Query(ctx, flux)
	if err != nil {
		return 0, err
	}
	defer res.Close()
	n := 0
	for res.Next() {
		n++
	}
	return n, res.Err()
}

// Field returns the last value of field for the given run.
func (p *InfluxProbe) Field(ctx context.Context, measurement, runID, field string) (any, error) {
	flux := fmt.Sprintf(`from(bucket:%q) |> range(start: -1h) |> filter(fn: (r) => r._measurement == %q and r.run_id == %q and r._field == %q) |> last()`,
		p.bucket, measurement, runID, field)
	res, err := p.query.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	if !res.Next() {
		if err := res.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("no %s.%s for run %s", measurement, field, runID)
	}
	return res.Record().Value(), nil
}

// Close releases the client.
func (p *InfluxProbe) Close() { p.client.Close() }
