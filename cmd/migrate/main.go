// migrate applies versioned BigQuery schema migrations from
// migrations/bigquery. Applied versions are tracked in a schema_migrations
// table so reruns are idempotent.
package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/spendlens/internal/logger"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// migrationPattern matches migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

var (
	projectID     = flag.String("project", "", "GCP project ID (required)")
	datasetID     = flag.String("dataset", "spendlens", "BigQuery dataset ID")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "migrations/bigquery", "Path to migrations directory")
)

func main() {
	flag.Parse()

	log := logger.New()
	ctx := context.Background()

	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag is required")
	}

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	if err := ensureSchemaMigrationsTable(ctx, client); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema_migrations table")
	}

	migrations, err := readMigrations()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}

	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	appliedMigrations, err := getAppliedMigrations(ctx, client)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}

	appliedVersions := make(map[int]bool)
	for _, am := range appliedMigrations {
		appliedVersions[am.Version] = true
	}

	appliedCount := 0
	for _, migration := range migrations {
		name := fmt.Sprintf("%04d_%s", migration.Version, migration.Name)
		if appliedVersions[migration.Version] {
			log.Info().Str("migration", name).Msg("Already applied, skipping")
			continue
		}

		log.Info().Str("migration", name).Msg("Applying")

		if err := executeMigration(ctx, client, migration); err != nil {
			log.Fatal().Err(err).Str("migration", name).Msg("Failed to execute migration")
		}
		if err := recordMigration(ctx, client, migration); err != nil {
			log.Fatal().Err(err).Str("migration", name).Msg("Failed to record migration")
		}

		appliedCount++
	}

	if appliedCount == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("applied", appliedCount).Msg("Migrations applied")
	}
}

// ensureSchemaMigrationsTable creates the schema_migrations table if it doesn't exist
func ensureSchemaMigrationsTable(ctx context.Context, client *bigquery.Client) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.schema_migrations`"+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, *projectID, *datasetID)

	return runQuery(ctx, client.Query(sql))
}

// readMigrations reads all migration files from the migrations directory
func readMigrations() ([]Migration, error) {
	// Check if directory exists relative to current directory
	dir := *migrationsDir
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		// Try from parent directory (in case we're in cmd/migrate)
		dir = "../../" + *migrationsDir
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, fmt.Errorf("migrations directory not found: %s", *migrationsDir)
		}
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		matches := migrationPattern.FindStringSubmatch(file.Name())
		if matches == nil {
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := string(content)
		sql = strings.ReplaceAll(sql, "{{PROJECT_ID}}", *projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", *datasetID)

		// Checksum covers the original content, before placeholder expansion,
		// so the same logical migration hashes identically across projects.
		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: file.Name(),
			SQL:      sql,
			Checksum: checksum(content),
		})
	}

	// Sort by version
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func checksum(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// getAppliedMigrations retrieves the list of already applied migrations
func getAppliedMigrations(ctx context.Context, client *bigquery.Client) ([]AppliedMigration, error) {
	sql := fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM `+"`%s.%s.schema_migrations`"+`
		ORDER BY version ASC
	`, *projectID, *datasetID)

	query := client.Query(sql)
	it, err := query.Read(ctx)
	if err != nil {
		// If table doesn't exist yet, return empty list
		if strings.Contains(err.Error(), "Not found") {
			return []AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		am := AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
		}
		if row.Checksum.Valid {
			am.Checksum = row.Checksum.StringVal
		}
		if row.AppliedBy.Valid {
			am.AppliedBy = row.AppliedBy.StringVal
		}

		applied = append(applied, am)
	}

	return applied, nil
}

// executeMigration executes a single migration SQL
func executeMigration(ctx context.Context, client *bigquery.Client, migration Migration) error {
	return runQuery(ctx, client.Query(migration.SQL))
}

// recordMigration records a successfully applied migration in schema_migrations
func recordMigration(ctx context.Context, client *bigquery.Client, migration Migration) error {
	sql := fmt.Sprintf(`
		INSERT INTO `+"`%s.%s.schema_migrations`"+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, *projectID, *datasetID)

	query := client.Query(sql)
	query.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: migration.Version},
		{Name: "name", Value: migration.Name},
		{Name: "checksum", Value: migration.Checksum},
		{Name: "applied_by", Value: *appliedBy},
	}

	return runQuery(ctx, query)
}

func runQuery(ctx context.Context, query *bigquery.Query) error {
	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
