// Package feeder exports table rows from a database into CSV files that a
// test plan consumes through a CSV Data Set Config element, so generated
// plans can be parameterized with production-like data.
package feeder

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "github.com/denisenkom/go-mssqldb" // for sqlserver
	_ "github.com/go-sql-driver/mysql"   // for mysql
	_ "github.com/lib/pq"                // for postgres
)

// Supported database drivers.
var supportedDrivers = map[string]bool{
	"postgres":  true,
	"mysql":     true,
	"sqlserver": true,
}

// identifierRe accepts plain SQL identifiers. Table and column names are
// interpolated into the query text, so anything fancier is rejected.
var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// DBConfig holds database connection configuration for DSN construction.
type DBConfig struct {
	Type     string
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// Config describes one CSV export.
type Config struct {
	Driver  string   // postgres, mysql or sqlserver
	DSN     string   // driver-specific connection string
	Table   string
	Columns []string // empty means every column
	Limit   int      // 0 means no limit
}

// Result describes a completed export.
type Result struct {
	CSVPath string   `json:"csv_path"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// BuildDSN constructs a driver-specific connection string from connection
// fields, for callers that do not want to hand-write DSN syntax.
func BuildDSN(config DBConfig) (string, error) {
	switch config.Type {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			config.Host, config.Port, config.User, config.Password, config.Database), nil
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
			config.User, config.Password, config.Host, config.Port, config.Database), nil
	case "sqlserver":
		return fmt.Sprintf("server=%s;port=%d;user id=%s;password=%s;database=%s",
			config.Host, config.Port, config.User, config.Password, config.Database), nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", config.Type)
	}
}

// Export connects to the database, reads the configured rows, and writes
// them to outputPath as CSV with a header row matching JMeter's CSV Data
// Set Config expectations.
func Export(cfg Config, outputPath string) (*Result, error) {
	if !supportedDrivers[cfg.Driver] {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	query, err := buildQuery(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %v", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %v", err)
	}

	records, err := scanRecords(rows, len(columns))
	if err != nil {
		return nil, err
	}

	if err := WriteCSV(outputPath, columns, records); err != nil {
		return nil, err
	}

	return &Result{CSVPath: outputPath, Columns: columns, Rows: len(records)}, nil
}

// buildQuery assembles the SELECT statement. Identifiers are validated
// because they cannot be bound as parameters.
func buildQuery(cfg Config) (string, error) {
	if !identifierRe.MatchString(cfg.Table) {
		return "", fmt.Errorf("invalid table name: %s", cfg.Table)
	}
	columnList := "*"
	if len(cfg.Columns) > 0 {
		for _, col := range cfg.Columns {
			if !identifierRe.MatchString(col) {
				return "", fmt.Errorf("invalid column name: %s", col)
			}
		}
		columnList = strings.Join(cfg.Columns, ", ")
	}

	query := fmt.Sprintf("SELECT %s FROM %s", columnList, cfg.Table)
	if cfg.Limit > 0 {
		if cfg.Driver == "sqlserver" {
			query = fmt.Sprintf("SELECT TOP %d %s FROM %s", cfg.Limit, columnList, cfg.Table)
		} else {
			query = fmt.Sprintf("%s LIMIT %d", query, cfg.Limit)
		}
	}
	return query, nil
}

func scanRecords(rows *sql.Rows, columnCount int) ([][]string, error) {
	var records [][]string
	values := make([]interface{}, columnCount)
	pointers := make([]interface{}, columnCount)
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		record := make([]string, columnCount)
		for i, v := range values {
			record[i] = formatValue(v)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %v", err)
	}
	return records, nil
}

func formatValue(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(value)
	default:
		return fmt.Sprint(value)
	}
}

// WriteCSV writes a header row plus records to outputPath, creating parent
// directories as needed.
func WriteCSV(outputPath string, columns []string, records [][]string) error {
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %v", err)
		}
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
