package logger

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
)

const (
	FormatConsole = "console"
	FormatText    = "text"
	FormatJSON    = "json"

	OutputStdout = "stdout"
	OutputStderr = "stderr"
	OutputFile   = "file"
)

// Config selects the log level, line format and destination. File output
// is rotated; the size and age limits only apply to it.
type Config struct {
	Level      Level             `json:"level"       yaml:"level"       env:"LOG_LEVEL"`
	Format     string            `json:"format"      yaml:"format"      env:"LOG_FORMAT"`
	Output     string            `json:"output"      yaml:"output"      env:"LOG_OUTPUT"`
	FilePath   string            `json:"file_path"   yaml:"file_path"   env:"LOG_FILE"`
	MaxSize    int               `json:"max_size"    yaml:"max_size"` // MB
	MaxBackups int               `json:"max_backups" yaml:"max_backups"`
	MaxAge     int               `json:"max_age"     yaml:"max_age"` // days
	Compress   bool              `json:"compress"    yaml:"compress"`
	Fields     map[string]string `json:"fields"      yaml:"fields"      env:"LOG_FIELDS" envKeyValSeparator:"="`
}

// Validate rejects unknown formats and outputs, and file output without
// a path.
func (c *Config) Validate() error {
	switch c.Format {
	case FormatConsole, FormatText, FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}

	switch c.Output {
	case OutputStdout, OutputStderr:
	case OutputFile:
		if c.FilePath == "" {
			return fmt.Errorf("log output %q requires a file path", OutputFile)
		}
	default:
		return fmt.Errorf("unknown log output %q", c.Output)
	}
	return nil
}

// deploymentFields maps environment variables set by the deployment to
// the log field they populate.
var deploymentFields = map[string]string{
	"KUBERNETES_NAMESPACE": "k8s_namespace",
	"KUBERNETES_POD_NAME":  "k8s_pod",
	"APP_VERSION":          "app_version",
	"APP_ENV":              "environment",
}

// processFields identifies the running process in every line.
func processFields() map[string]string {
	hostname, _ := os.Hostname()

	fields := map[string]string{
		"service":    "issue-relay",
		"hostname":   hostname,
		"pid":        strconv.Itoa(os.Getpid()),
		"go_version": runtime.Version(),
	}
	for name, field := range deploymentFields {
		if value := os.Getenv(name); value != "" {
			fields[field] = value
		}
	}
	return fields
}

func NewDefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		Format:     FormatConsole,
		Output:     OutputStdout,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
		Fields:     processFields(),
	}
}
