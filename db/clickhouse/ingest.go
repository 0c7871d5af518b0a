package clickhouse

import (
	"context"

	"github.com/google/uuid"
	"hermannm.dev/cube/db"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

func (clickhouse ClickHouseDB) CreateTable(ctx context.Context, space db.SpaceSchema) error {
	query, err := buildCreateTableQuery(space)
	if err != nil {
		return err
	}

	if err := clickhouse.conn.Exec(ctx, query); err != nil {
		return wrap.Errorf(err, "ClickHouse table creation query failed for space '%s'", space.Name)
	}

	return nil
}

func buildCreateTableQuery(space db.SpaceSchema) (string, error) {
	levelColumns, measureColumns := space.Columns()
	if err := ValidateIdentifiers(append(levelColumns, measureColumns...)...); err != nil {
		return "", wrap.Error(err, "invalid column name")
	}
	if err := ValidateIdentifier(space.Table); err != nil {
		return "", wrap.Error(err, "invalid table name")
	}

	var query QueryBuilder
	query.WriteString("CREATE TABLE ")
	query.WriteIdentifier(space.Table)
	query.WriteString(" (`id` UUID")

	for _, column := range levelColumns {
		query.WriteString(", ")
		query.WriteIdentifier(column)
		query.WriteByte(' ')
		query.WriteString(levelColumnType)
	}
	for _, column := range measureColumns {
		query.WriteString(", ")
		query.WriteIdentifier(column)
		query.WriteByte(' ')
		query.WriteString(measureColumnType)
	}

	query.WriteByte(')')
	query.WriteString(" ENGINE = MergeTree()")
	query.WriteString(" PRIMARY KEY (id)")

	return query.String(), nil
}

// InsertRecords sends all records of the reader to the table of the space, in batches of
// db.BatchInsertSize.
func (clickhouse ClickHouseDB) InsertRecords(
	ctx context.Context,
	space db.SpaceSchema,
	records *db.RecordReader,
) (inserted int, err error) {
	var query QueryBuilder
	query.WriteString("INSERT INTO ")
	query.WriteIdentifier(space.Table)
	queryString := query.String()

	levelColumns, measureColumns := space.Columns()
	fieldsPerRow := len(levelColumns) + len(measureColumns) + 1 // +1 for id field

	allRowsSent := false
	for !allRowsSent {
		batch, err := clickhouse.conn.PrepareBatch(ctx, queryString)
		if err != nil {
			return inserted, wrap.Error(err, "failed to prepare batch data insert")
		}

		batchSize := 0
		for range db.BatchInsertSize {
			record, rowNumber, done, err := records.Read()
			if done {
				allRowsSent = true
				break
			}
			if err != nil {
				return inserted, wrap.Error(err, "failed to read row")
			}

			row := make([]any, 0, fieldsPerRow)

			id, err := uuid.NewUUID()
			if err != nil {
				return inserted, wrap.Errorf(err, "failed to generate unique ID for row %d", rowNumber)
			}
			row = append(row, id.String())

			for _, column := range levelColumns {
				row = append(row, record.Levels[column])
			}
			for _, column := range measureColumns {
				if value, ok := record.Measures[column]; ok {
					row = append(row, &value)
				} else {
					row = append(row, (*float64)(nil))
				}
			}

			if err := batch.Append(row...); err != nil {
				return inserted, wrap.Errorf(err, "failed to add row %d to batch insert", rowNumber)
			}
			batchSize++
		}

		if batchSize == 0 {
			if err := batch.Abort(); err != nil {
				log.ErrorCause(err, "failed to abort empty batch insert")
			}
			break
		}

		if err := batch.Send(); err != nil {
			return inserted, wrap.Error(err, "failed to send batch insert")
		}
		inserted += batchSize
		log.Infof("Inserted %d rows into table '%s'", inserted, space.Table)
	}

	return inserted, nil
}
