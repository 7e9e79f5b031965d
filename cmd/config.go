package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	consts "github.com/khanhnv2901/jsaudit/internal/shared/constants"
)

const defaultHTTPTimeoutSeconds = int(consts.DefaultHTTPTimeout / time.Second)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Defaults DefaultValues
	Scan     ScanRuntimeConfig
	Registry RegistryConfig
}

// DefaultValues represent operator-level defaults, typically derived from env/config.
type DefaultValues struct {
	Operator string
}

// ScanRuntimeConfig consolidates flag-driven settings for the scan command.
type ScanRuntimeConfig struct {
	Workers          int
	RateLimit        float64
	TimeoutSecs      int
	Extensions       []string
	SkipDirs         []string
	HeaderLines      int
	KeepReferences   bool
	Formats          []string
	TelemetryEnabled bool
	MetricsFile      string
	ProgressEnabled  bool
	FailOnFindings   bool
}

// RegistryConfig points the catalog client at a cdnjs-compatible search API.
type RegistryConfig struct {
	URL        string
	QueryParam string
	UserAgent  string
	Threshold  float64
}

type defaultOverrides struct {
	Operator         string
	OperatorOverride bool
	Workers          *int
	RateLimit        *float64
	TimeoutSecs      *int
	Extensions       []string
	HeaderLines      *int
	KeepReferences   *bool
	RegistryURL      string
	QueryParam       string
	UserAgent        string
	Threshold        *float64
	Formats          []string
	TelemetryEnabled *bool
	MetricsFile      string
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		Defaults: DefaultValues{
			Operator: detectOperatorFromEnv(),
		},
		Scan: ScanRuntimeConfig{
			Workers:         consts.DefaultWorkers,
			RateLimit:       0,
			TimeoutSecs:     defaultHTTPTimeoutSeconds,
			Extensions:      append([]string(nil), consts.DefaultExtensions...),
			SkipDirs:        []string{".git", "node_modules"},
			HeaderLines:     consts.DefaultHeaderLines,
			Formats:         []string{"json"},
			ProgressEnabled: true,
		},
		Registry: RegistryConfig{
			URL:        consts.DefaultRegistryURL,
			QueryParam: consts.DefaultRegistryQueryParam,
			UserAgent:  consts.DefaultUserAgent,
			Threshold:  consts.DefaultSimilarityThreshold,
		},
	}
}

func detectOperatorFromEnv() string {
	if env := os.Getenv("USER"); env != "" {
		return env
	}
	if env := os.Getenv("LOGNAME"); env != "" {
		return env
	}
	return ""
}

func loadDefaultOverrides() defaultOverrides {
	overrides := defaultOverrides{}

	if viper.IsSet("defaults.operator") {
		overrides.Operator = viper.GetString("defaults.operator")
		overrides.OperatorOverride = true
	}

	if viper.IsSet("scan.workers") {
		val := viper.GetInt("scan.workers")
		overrides.Workers = &val
	}

	if viper.IsSet("scan.rate_limit") {
		val := viper.GetFloat64("scan.rate_limit")
		overrides.RateLimit = &val
	}

	if viper.IsSet("scan.timeout_secs") {
		val := viper.GetInt("scan.timeout_secs")
		overrides.TimeoutSecs = &val
	}

	if viper.IsSet("scan.extensions") {
		overrides.Extensions = viper.GetStringSlice("scan.extensions")
	}

	if viper.IsSet("scan.header_lines") {
		val := viper.GetInt("scan.header_lines")
		overrides.HeaderLines = &val
	}

	if viper.IsSet("scan.keep_references") {
		val := viper.GetBool("scan.keep_references")
		overrides.KeepReferences = &val
	}

	if viper.IsSet("registry.url") {
		overrides.RegistryURL = viper.GetString("registry.url")
	}

	if viper.IsSet("registry.query_param") {
		overrides.QueryParam = viper.GetString("registry.query_param")
	}

	if viper.IsSet("registry.user_agent") {
		overrides.UserAgent = viper.GetString("registry.user_agent")
	}

	if viper.IsSet("registry.threshold") {
		val := viper.GetFloat64("registry.threshold")
		overrides.Threshold = &val
	}

	if viper.IsSet("report.formats") {
		overrides.Formats = viper.GetStringSlice("report.formats")
	}

	if viper.IsSet("telemetry.enabled") {
		val := viper.GetBool("telemetry.enabled")
		overrides.TelemetryEnabled = &val
	}

	if viper.IsSet("metrics.file") {
		overrides.MetricsFile = viper.GetString("metrics.file")
	}

	return overrides
}

// applyConfigDefaults merges config file defaults into the runtime config when the user
// did not explicitly override the corresponding flag.
func applyConfigDefaults(cmd *cobra.Command) {
	overrides := loadDefaultOverrides()
	scanFlags := scanCmd.Flags()

	if overrides.OperatorOverride && overrides.Operator != "" {
		cliConfig.Defaults.Operator = overrides.Operator
		setStringFlagIfUnset(cmd.Flags(), "operator", overrides.Operator)
	}

	if overrides.Workers != nil {
		applyIntDefault(scanFlags, "workers", *overrides.Workers, func(v int) {
			cliConfig.Scan.Workers = v
		})
	}

	if overrides.RateLimit != nil {
		applyFloatDefault(scanFlags, "rate-limit", *overrides.RateLimit, func(v float64) {
			cliConfig.Scan.RateLimit = v
		})
	}

	if overrides.TimeoutSecs != nil {
		applyIntDefault(scanFlags, "timeout", *overrides.TimeoutSecs, func(v int) {
			cliConfig.Scan.TimeoutSecs = v
		})
	}

	if len(overrides.Extensions) > 0 {
		applySliceDefault(scanFlags, "ext", overrides.Extensions, func(v []string) {
			cliConfig.Scan.Extensions = v
		})
	}

	if overrides.HeaderLines != nil {
		applyIntDefault(scanFlags, "header-lines", *overrides.HeaderLines, func(v int) {
			cliConfig.Scan.HeaderLines = v
		})
	}

	if overrides.KeepReferences != nil {
		applyBoolDefault(scanFlags, "keep-references", *overrides.KeepReferences, func(v bool) {
			cliConfig.Scan.KeepReferences = v
		})
	}

	if overrides.RegistryURL != "" {
		setStringFlagIfUnset(scanFlags, "registry-url", overrides.RegistryURL)
	}

	if overrides.QueryParam != "" {
		cliConfig.Registry.QueryParam = overrides.QueryParam
	}

	if overrides.UserAgent != "" {
		cliConfig.Registry.UserAgent = overrides.UserAgent
	}

	if overrides.Threshold != nil {
		applyFloatDefault(scanFlags, "threshold", *overrides.Threshold, func(v float64) {
			cliConfig.Registry.Threshold = v
		})
	}

	if len(overrides.Formats) > 0 {
		applySliceDefault(scanFlags, "format", overrides.Formats, func(v []string) {
			cliConfig.Scan.Formats = v
		})
	}

	if overrides.TelemetryEnabled != nil {
		applyBoolDefault(scanFlags, "telemetry", *overrides.TelemetryEnabled, func(v bool) {
			cliConfig.Scan.TelemetryEnabled = v
		})
	}

	if overrides.MetricsFile != "" {
		setStringFlagIfUnset(scanFlags, "metrics-file", overrides.MetricsFile)
	}
}

func applyIntDefault(flags *pflag.FlagSet, name string, value int, setter func(int)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyFloatDefault(flags *pflag.FlagSet, name string, value float64, setter func(float64)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyBoolDefault(flags *pflag.FlagSet, name string, value bool, setter func(bool)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applySliceDefault(flags *pflag.FlagSet, name string, value []string, setter func([]string)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(append([]string(nil), value...))
}

func setStringFlagIfUnset(flags *pflag.FlagSet, name, value string) {
	if flags == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag == nil || flag.Changed {
		return
	}
	_ = flag.Value.Set(value)
}
