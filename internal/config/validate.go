package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ConfigIssue represents a validation finding.
type ConfigIssue struct {
	Key      string `json:"key"`
	Severity string `json:"severity"` // "error", "warning", "info"
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks cfg and returns every finding. Findings with severity
// "error" make the configuration unusable.
func Validate(cfg *Config) []ConfigIssue {
	var issues []ConfigIssue

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []ConfigIssue{{Key: "config", Severity: "error", Message: err.Error()}}
		}
		for _, fe := range verrs {
			key := fe.Namespace()
			if i := strings.Index(key, "."); i >= 0 {
				key = key[i+1:]
			}
			issues = append(issues, ConfigIssue{
				Key:      key,
				Severity: "error",
				Message:  describe(fe),
				Fix:      fmt.Sprintf("set %s in %s or export %s_%s", key, Path(), EnvPrefix, strings.ToUpper(strings.ReplaceAll(key, ".", "_"))),
			})
		}
	}

	if cfg.Report.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Report.Timezone); err != nil {
			issues = append(issues, ConfigIssue{
				Key:      "report.timezone",
				Severity: "error",
				Message:  fmt.Sprintf("unknown timezone %q", cfg.Report.Timezone),
				Fix:      "use an IANA name such as America/Chicago or UTC",
			})
		}
	}
	if cfg.Sink.Kind == "s3" && cfg.Sink.S3.AccessKeyID == "" {
		issues = append(issues, ConfigIssue{
			Key:      "sink.s3",
			Severity: "info",
			Message:  "no static S3 credentials; the default AWS credential chain will be used",
		})
	}
	if cfg.Taxonomy.File == "" {
		issues = append(issues, ConfigIssue{
			Key:      "taxonomy.file",
			Severity: "info",
			Message:  "no taxonomy file; built-in taxonomy in effect",
		})
	}
	return issues
}

// HasErrors reports whether any issue has severity "error".
func HasErrors(issues []ConfigIssue) bool {
	for _, i := range issues {
		if i.Severity == "error" {
			return true
		}
	}
	return false
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return fmt.Sprintf("is required when %s", strings.ReplaceAll(fe.Param(), " ", " is "))
	case "required_with":
		return fmt.Sprintf("is required when %s is set", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("must be a URL, got %q", fe.Value())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// Show renders cfg for humans with secrets masked.
func Show(cfg *Config) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Config: %s\n\n", Path())

	sb.WriteString("Source\n")
	fmt.Fprintf(&sb, "  kind:      %s\n", cfg.Source.Kind)
	switch cfg.Source.Kind {
	case "sql":
		fmt.Fprintf(&sb, "  driver:    %s\n", cfg.Source.Driver)
		fmt.Fprintf(&sb, "  dsn:       %s\n", mask(cfg.Source.DSN))
	case "dir":
		fmt.Fprintf(&sb, "  dir:       %s\n", cfg.Source.Dir)
	}
	fmt.Fprintf(&sb, "  datasets:  users=%s actions=%s hr=%s\n",
		cfg.Source.Datasets.Users, cfg.Source.Datasets.Actions, cfg.Source.Datasets.HR)
	sb.WriteString("\n")

	sb.WriteString("Sink\n")
	fmt.Fprintf(&sb, "  kind:      %s\n", cfg.Sink.Kind)
	fmt.Fprintf(&sb, "  bucket:    %s\n", cfg.Sink.Bucket)
	if cfg.Sink.Prefix != "" {
		fmt.Fprintf(&sb, "  prefix:    %s\n", cfg.Sink.Prefix)
	}
	fmt.Fprintf(&sb, "  format:    %s\n", cfg.Sink.Format)
	switch cfg.Sink.Kind {
	case "dir":
		fmt.Fprintf(&sb, "  dir:       %s\n", cfg.Sink.Dir)
	case "s3":
		fmt.Fprintf(&sb, "  region:    %s\n", cfg.Sink.S3.Region)
		if cfg.Sink.S3.Endpoint != "" {
			fmt.Fprintf(&sb, "  endpoint:  %s\n", cfg.Sink.S3.Endpoint)
		}
		if cfg.Sink.S3.AccessKeyID != "" {
			fmt.Fprintf(&sb, "  key:       %s\n", mask(cfg.Sink.S3.AccessKeyID))
		}
	}
	sb.WriteString("\n")

	sb.WriteString("Report\n")
	taxonomy := cfg.Taxonomy.File
	if taxonomy == "" {
		taxonomy = "(built-in)"
	}
	fmt.Fprintf(&sb, "  taxonomy:  %s\n", taxonomy)
	fmt.Fprintf(&sb, "  timezone:  %s\n", cfg.Report.Timezone)
	fmt.Fprintf(&sb, "  history:   %s\n", cfg.History.Path)
	if cfg.Metrics.PushgatewayURL != "" {
		fmt.Fprintf(&sb, "  metrics:   %s (job %s)\n", cfg.Metrics.PushgatewayURL, cfg.Metrics.Job)
	}
	return sb.String()
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return s[:min(4, len(s))] + "****"
}

// Redacted returns a copy of c with credentials masked, for display.
func (c Config) Redacted() Config {
	c.Source.DSN = mask(c.Source.DSN)
	c.Sink.S3.AccessKeyID = mask(c.Sink.S3.AccessKeyID)
	c.Sink.S3.SecretAccessKey = mask(c.Sink.S3.SecretAccessKey)
	return c
}
