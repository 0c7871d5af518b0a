package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"hermannm.dev/cube/api"
	"hermannm.dev/cube/config"
	"hermannm.dev/cube/csv"
	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/db"
	"hermannm.dev/cube/db/clickhouse"
	"hermannm.dev/cube/db/elasticsearch"
	"hermannm.dev/cube/db/memory"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

func readServerConfig() (config.Config, db.Schema, error) {
	conf, err := config.ReadFromEnv()
	if err != nil {
		return config.Config{}, db.Schema{}, wrap.Error(err, "failed to read config from env")
	}
	setUpLogging(conf.LogLevel, conf.IsProduction)

	schema, err := db.ReadSchema(conf.SchemaPath)
	if err != nil {
		return config.Config{}, db.Schema{}, err
	}

	return conf, schema, nil
}

func openBackend(conf config.Config, schema db.Schema) (cube.Backend, error) {
	switch conf.Backend {
	case config.BackendClickHouse:
		log.Info("Connecting to ClickHouse...")
		backend, err := clickhouse.NewClickHouseDB(conf.ClickHouse, schema)
		if err != nil {
			return nil, wrap.Error(err, "failed to initialize ClickHouse backend")
		}
		return backend, nil
	case config.BackendMemory:
		log.Infof("Loading cube data from %s...", conf.Memory.DataDir)
		backend, err := memory.Load(schema, conf.Memory.DataDir)
		if err != nil {
			return nil, wrap.Error(err, "failed to initialize in-memory backend")
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unsupported backend '%s'", conf.Backend)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	conf, schema, err := readServerConfig()
	if err != nil {
		return err
	}

	backend, err := openBackend(conf, schema)
	if err != nil {
		return err
	}

	if conf.Elasticsearch.Enabled {
		index, err := elasticsearch.NewCoordinateIndex(conf.Elasticsearch)
		if err != nil {
			return wrap.Error(err, "failed to initialize coordinate search")
		}
		backend = db.WithSearch(backend, index)
	}

	cubeAPI := api.NewCubeAPI(backend, http.NewServeMux(), conf.API)

	log.Infof("Listening on port %s...", conf.API.Port)
	if err := cubeAPI.ListenAndServe(); err != nil {
		return wrap.Error(err, "server stopped")
	}
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	spaceName, path := args[0], args[1]

	conf, schema, err := readServerConfig()
	if err != nil {
		return err
	}
	if conf.Backend != config.BackendClickHouse {
		return fmt.Errorf(
			"ingest needs CUBE_BACKEND=%s, the %s backend reads CSV files directly",
			config.BackendClickHouse,
			conf.Backend,
		)
	}

	space, err := schema.Space(spaceName)
	if err != nil {
		return err
	}

	database, err := clickhouse.NewClickHouseDB(conf.ClickHouse, schema)
	if err != nil {
		return wrap.Error(err, "failed to initialize ClickHouse backend")
	}
	defer database.Close()

	if createFlag {
		alreadyDropped, err := database.DropTable(ctx, space.Table)
		if err != nil {
			return wrap.Errorf(err, "failed to drop table '%s'", space.Table)
		}
		if !alreadyDropped {
			log.Infof("Dropped table '%s'", space.Table)
		}

		if err := database.CreateTable(ctx, space); err != nil {
			return err
		}
		log.Infof("Created table '%s'", space.Table)
	}

	file, err := csv.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	records, err := db.NewRecordReader(space, file.Header(), file)
	if err != nil {
		return err
	}

	inserted, err := database.InsertRecords(ctx, space, records)
	if err != nil {
		return wrap.Errorf(err, "failed to ingest '%s' into space '%s'", path, space.Name)
	}

	log.Infof("Ingested %d rows into space '%s'", inserted, space.Name)
	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	conf, schema, err := readServerConfig()
	if err != nil {
		return err
	}

	backend, err := openBackend(conf, schema)
	if err != nil {
		return err
	}

	index, err := elasticsearch.NewCoordinateIndex(conf.Elasticsearch)
	if err != nil {
		return wrap.Error(err, "failed to initialize coordinate index")
	}

	if recreateFlag {
		if _, err := index.DropIndex(ctx); err != nil {
			return err
		}
		if err := index.CreateIndex(ctx); err != nil {
			return err
		}
		log.Infof("Created index '%s'", conf.Elasticsearch.Index)
	}

	return indexSchema(ctx, index, backend, schema)
}

func indexSchema(
	ctx context.Context,
	index elasticsearch.CoordinateIndex,
	driller cube.DrillFetcher,
	schema db.Schema,
) error {
	total := 0
	for _, space := range schema.Spaces {
		if spaceFlag != "" && space.Name != spaceFlag {
			continue
		}

		for _, dimension := range space.Dimensions {
			if dimensionFlag != "" && dimension.Name != dimensionFlag {
				continue
			}

			indexed, err := index.IndexCoordinates(
				ctx, driller, space.Name, dimension.Dimension(), maxDepthFlag,
			)
			if err != nil {
				return wrap.Errorf(
					err, "failed to index dimension '%s' of space '%s'", dimension.Name, space.Name,
				)
			}
			total += indexed
		}
	}

	log.Infof("Indexed %d coordinates", total)
	return nil
}
