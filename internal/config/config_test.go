package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "mysql DSN gains parseTime and loc",
			config: DatabaseConfig{
				Driver:           "mysql",
				ConnectionString: "root:password@tcp(localhost:3306)/experiments",
			},
			expected: "root:password@tcp(localhost:3306)/experiments?parseTime=true&loc=UTC",
		},
		{
			name: "mysql DSN with existing params",
			config: DatabaseConfig{
				Driver:           "mysql",
				ConnectionString: "root:password@tcp(localhost:3306)/experiments?parseTime=true&loc=UTC",
			},
			expected: "root:password@tcp(localhost:3306)/experiments?parseTime=true&loc=UTC",
		},
		{
			name: "sqlite DSN passes through",
			config: DatabaseConfig{
				Driver:           "sqlite",
				ConnectionString: "file:experiments.db?cache=shared",
			},
			expected: "file:experiments.db?cache=shared",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Server.Pagination.DefaultPageSize)
	assert.Equal(t, 1000, cfg.Server.Pagination.MaxPageSize)
	assert.Equal(t, "experiment-graphql", cfg.Observability.ServiceName)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
	assert.Equal(t, "json", cfg.Observability.Logging.Format)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.False(t, cfg.Observability.TracingEnabled)
}

func TestLoad_WithEnvVars(t *testing.T) {
	t.Setenv("EXPGQL_DATABASE_DRIVER", "sqlite")
	t.Setenv("EXPGQL_DATABASE_DSN", ":memory:")
	t.Setenv("EXPGQL_SERVER_PORT", "9090")
	t.Setenv("EXPGQL_SERVER_PAGINATION_DEFAULT_PAGE_SIZE", "25")
	t.Setenv("EXPGQL_OBSERVABILITY_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.ConnectionString)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Server.Pagination.DefaultPageSize)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
}

func TestLoad_DSNFromFile(t *testing.T) {
	dsnFile, err := os.CreateTemp(t.TempDir(), "dsn")
	require.NoError(t, err)
	_, err = dsnFile.WriteString("root:secret@tcp(db:3306)/experiments\n")
	require.NoError(t, err)
	require.NoError(t, dsnFile.Close())

	t.Setenv("EXPGQL_DATABASE_DSN_FILE", dsnFile.Name())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "root:secret@tcp(db:3306)/experiments", cfg.Database.ConnectionString)
}

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           "mysql",
			ConnectionString: "root:@tcp(localhost:3306)/experiments",
		},
		Server: ServerConfig{
			Port: 8080,
			Pagination: PaginationConfig{
				DefaultPageSize: 50,
				MaxPageSize:     1000,
			},
		},
		Observability: ObservabilityConfig{
			ServiceName:      "experiment-graphql",
			TraceSampleRatio: 1.0,
			Logging:          LoggingConfig{Level: "info", Format: "json"},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	result := validConfig().Validate()
	assert.False(t, result.HasErrors(), result.Error())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "unknown driver",
			mutate: func(c *Config) { c.Database.Driver = "postgres" },
			field:  "database.driver",
		},
		{
			name:   "missing DSN",
			mutate: func(c *Config) { c.Database.ConnectionString = "" },
			field:  "database.dsn",
		},
		{
			name:   "bad port",
			mutate: func(c *Config) { c.Server.Port = 0 },
			field:  "server.port",
		},
		{
			name:   "default page size above max",
			mutate: func(c *Config) { c.Server.Pagination.DefaultPageSize = 2000 },
			field:  "server.pagination.default_page_size",
		},
		{
			name: "CORS enabled without origins",
			mutate: func(c *Config) {
				c.Server.CORSEnabled = true
				c.Server.CORSAllowedOrigins = nil
			},
			field: "server.cors_allowed_origins",
		},
		{
			name: "wildcard origin with credentials",
			mutate: func(c *Config) {
				c.Server.CORSEnabled = true
				c.Server.CORSAllowedOrigins = []string{"*"}
				c.Server.CORSAllowCredentials = true
			},
			field: "server.cors_allowed_origins",
		},
		{
			name:   "sample ratio out of range",
			mutate: func(c *Config) { c.Observability.TraceSampleRatio = 1.5 },
			field:  "observability.trace_sample_ratio",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Observability.Logging.Level = "verbose" },
			field:  "observability.logging.level",
		},
		{
			name: "tracing without OTLP endpoint",
			mutate: func(c *Config) {
				c.Observability.TracingEnabled = true
				c.Observability.OTLP.Endpoint = ""
			},
			field: "observability.otlp.endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			result := cfg.Validate()
			require.True(t, result.HasErrors())
			var fields []string
			for _, e := range result.Errors {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}
