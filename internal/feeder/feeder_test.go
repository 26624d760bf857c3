package feeder

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildDSN(t *testing.T) {
	base := DBConfig{
		Host: "db.local", Port: 5432, Database: "app",
		User: "tester", Password: "secret",
	}

	tests := []struct {
		name   string
		dbType string
		want   string
	}{
		{"postgres", "postgres", "host=db.local port=5432 user=tester password=secret dbname=app sslmode=disable"},
		{"mysql", "mysql", "tester:secret@tcp(db.local:5432)/app"},
		{"sqlserver", "sqlserver", "server=db.local;port=5432;user id=tester;password=secret;database=app"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := base
			config.Type = tt.dbType
			got, err := BuildDSN(config)
			if err != nil {
				t.Fatalf("BuildDSN() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("BuildDSN() = %q, want %q", got, tt.want)
			}
		})
	}

	config := base
	config.Type = "oracle"
	if _, err := BuildDSN(config); err == nil {
		t.Error("BuildDSN() accepted an unsupported database type")
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{
			name: "all columns",
			cfg:  Config{Driver: "postgres", Table: "users"},
			want: "SELECT * FROM users",
		},
		{
			name: "column list with limit",
			cfg:  Config{Driver: "postgres", Table: "users", Columns: []string{"id", "email"}, Limit: 50},
			want: "SELECT id, email FROM users LIMIT 50",
		},
		{
			name: "sqlserver uses TOP",
			cfg:  Config{Driver: "sqlserver", Table: "users", Limit: 10},
			want: "SELECT TOP 10 * FROM users",
		},
		{
			name:    "rejects injection in table name",
			cfg:     Config{Driver: "postgres", Table: "users; DROP TABLE users"},
			wantErr: true,
		},
		{
			name:    "rejects injection in column name",
			cfg:     Config{Driver: "postgres", Table: "users", Columns: []string{"id, (SELECT 1)"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildQuery(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("buildQuery() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildQuery() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("buildQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteCSV(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "data", "users.csv")
	columns := []string{"id", "email"}
	records := [][]string{
		{"1", "a@example.com"},
		{"2", "with,comma@example.com"},
	}

	if err := WriteCSV(outputPath, columns, records); err != nil {
		t.Fatalf("WriteCSV() error: %v", err)
	}

	file, err := os.Open(outputPath)
	if err != nil {
		t.Fatalf("opening CSV: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("CSV has %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "id" || rows[0][1] != "email" {
		t.Errorf("header = %v, want [id email]", rows[0])
	}
	if rows[2][1] != "with,comma@example.com" {
		t.Errorf("comma value not preserved: %v", rows[2])
	}
}

func TestExportRejectsUnsupportedDriver(t *testing.T) {
	_, err := Export(Config{Driver: "sqlite", Table: "users"}, "out.csv")
	if err == nil {
		t.Fatal("Export() accepted an unsupported driver")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"nil", nil, ""},
		{"bytes", []byte("raw"), "raw"},
		{"int", int64(42), "42"},
		{"string", "text", "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(tt.value); got != tt.want {
				t.Errorf("formatValue(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}
