package feed

import (
	"context"
	"fmt"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"locationfeed/internal/logging"
)

// DefaultGreptimePort is the gRPC port of a GreptimeDB frontend.
const DefaultGreptimePort = 4001

// greptimeClient is the subset of greptime.Client used by the writer.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter mirrors every sent point into a GreptimeDB table.
type GreptimeDBWriter struct {
	client greptimeClient
	table  string
}

// NewGreptimeDBWriter connects to a GreptimeDB frontend. tableName is created
// on first write by the server's auto-create.
func NewGreptimeDBWriter(host string, port int, database, tableName string) (*GreptimeDBWriter, error) {
	if port == 0 {
		port = DefaultGreptimePort
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	return &GreptimeDBWriter{client: client, table: tableName}, nil
}

// Write inserts a single point row.
func (w *GreptimeDBWriter) Write(ctx context.Context, p Point) error {
	return w.WriteBatch(ctx, []Point{p})
}

// WriteBatch inserts multiple point rows in one request.
func (w *GreptimeDBWriter) WriteBatch(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	tbl, err := w.newTable()
	if err != nil {
		return err
	}
	for _, p := range points {
		lon, lat, _ := p.Feature.Point()
		if err := tbl.AddRow(p.RunID, p.Route, int64(p.Pass), int64(p.Index), lon, lat, p.SentAt); err != nil {
			return fmt.Errorf("greptime row: %w", err)
		}
	}
	if _, err := w.client.Write(ctx, tbl); err != nil {
		logging.FromContext(ctx).Error("greptime write failed", "table", w.table, "err", err)
		return err
	}
	return nil
}

func (w *GreptimeDBWriter) newTable() (*table.Table, error) {
	tbl, err := table.New(w.table)
	if err != nil {
		return nil, err
	}
	for _, c := range []struct {
		name string
		add  func(string, types.ColumnType) error
		typ  types.ColumnType
	}{
		{"run_id", tbl.AddTagColumn, types.STRING},
		{"route", tbl.AddTagColumn, types.STRING},
		{"pass", tbl.AddFieldColumn, types.INT64},
		{"seq", tbl.AddFieldColumn, types.INT64},
		{"lon", tbl.AddFieldColumn, types.FLOAT64},
		{"lat", tbl.AddFieldColumn, types.FLOAT64},
		{"ts", tbl.AddTimestampColumn, types.TIMESTAMP_MILLISECOND},
	} {
		if err := c.add(c.name, c.typ); err != nil {
			return nil, fmt.Errorf("greptime column %s: %w", c.name, err)
		}
	}
	return tbl, nil
}
