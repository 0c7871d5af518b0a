package clickhouse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/ClickHouse/clickhouse-go/v2/lib/proto"
	"hermannm.dev/cube/config"
	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/db"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

// Implements cube.Backend for ClickHouse, with one table per space of the schema.
type ClickHouseDB struct {
	conn   driver.Conn
	schema db.Schema
}

func NewClickHouseDB(config config.ClickHouse, schema db.Schema) (ClickHouseDB, error) {
	if errs := schema.Validate(); len(errs) != 0 {
		return ClickHouseDB{}, wrap.Errors("invalid cube schema", errs...)
	}
	for _, space := range schema.Spaces {
		levelColumns, measureColumns := space.Columns()
		if err := ValidateIdentifiers(append(levelColumns, measureColumns...)...); err != nil {
			return ClickHouseDB{}, wrap.Errorf(err, "invalid column in space '%s'", space.Name)
		}
		if err := ValidateIdentifier(space.Table); err != nil {
			return ClickHouseDB{}, wrap.Errorf(err, "invalid table for space '%s'", space.Name)
		}
	}

	// Options docs: https://clickhouse.com/docs/en/integrations/go#connection-settings
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{config.Address},
		Auth: clickhouse.Auth{
			Database: config.DatabaseName,
			Username: config.Username,
			Password: config.Password,
		},
		Debug: config.Debug,
		Debugf: func(format string, v ...any) {
			log.Debug(fmt.Sprintf(format, v...))
		},
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return ClickHouseDB{}, wrap.Error(err, "failed to connect to ClickHouse")
	}

	if err := conn.Ping(context.Background()); err != nil {
		return ClickHouseDB{}, wrap.Error(err, "failed to ping ClickHouse")
	}

	return ClickHouseDB{conn: conn, schema: schema}, nil
}

func (clickhouse ClickHouseDB) Close() error {
	return clickhouse.conn.Close()
}

// Info lists the spaces of the schema whose tables exist in the database.
func (clickhouse ClickHouseDB) Info(ctx context.Context) (cube.Info, error) {
	rows, err := clickhouse.conn.Query(
		ctx, "SELECT name FROM system.tables WHERE database = currentDatabase()",
	)
	if err != nil {
		return cube.Info{}, wrap.Error(err, "failed to list ClickHouse tables")
	}
	defer rows.Close()

	tables := make(map[string]struct{})
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return cube.Info{}, wrap.Error(err, "failed to scan table name")
		}
		tables[table] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return cube.Info{}, wrap.Error(err, "failed to list ClickHouse tables")
	}

	var available db.Schema
	for _, space := range clickhouse.schema.Spaces {
		if _, ok := tables[space.Table]; !ok {
			log.Warn(
				"table for space not found in ClickHouse",
				slog.String("space", space.Name),
				slog.String("table", space.Table),
			)
			continue
		}
		available.Spaces = append(available.Spaces, space)
	}

	return available.Info(), nil
}

func (clickhouse ClickHouseDB) DropTable(
	ctx context.Context,
	table string,
) (alreadyDropped bool, err error) {
	if err := ValidateIdentifier(table); err != nil {
		return false, wrap.Error(err, "invalid table name")
	}

	var query QueryBuilder
	query.WriteString("DROP TABLE ")
	query.WriteIdentifier(table)

	// See https://github.com/ClickHouse/ClickHouse/blob/bd387f6d2c30f67f2822244c0648f2169adab4d3/src/Common/ErrorCodes.cpp#L66
	const clickhouseUnknownTableErrorCode = 60

	if err := clickhouse.conn.Exec(ctx, query.String()); err != nil {
		clickHouseErr, isClickHouseErr := err.(*proto.Exception)
		if isClickHouseErr && clickHouseErr.Code == clickhouseUnknownTableErrorCode {
			return true, nil
		}

		return false, wrap.Error(err, "ClickHouse table drop query failed")
	}

	return false, nil
}
