package config

const (
	defaultSourceRoot     = "/mnt/CruiseData"
	defaultOutputRoot     = "/mnt/CruiseData/r2r_packages"
	defaultLogDir         = "~/.local/share/r2rpack/logs"
	defaultOutputSubdir   = "r2r"
	defaultAPIURL         = "http://openvdm.local/api/warehouse/getCruiseID"
	defaultRequestTimeout = 10
	defaultSMTPPort       = 25
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SourceRoot: defaultSourceRoot,
			OutputRoot: defaultOutputRoot,
			LogDir:     defaultLogDir,
		},
		Packaging: Packaging{
			LargeDatasets: []string{"em304", "em710", "ek80", "radar"},
			OutputSubdir:  defaultOutputSubdir,
		},
		OpenVDM: OpenVDM{
			APIURL:         defaultAPIURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Email: Email{
			SMTPPort: defaultSMTPPort,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
