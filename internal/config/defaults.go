package config

const (
	defaultDataDir            = "~/.local/share/purpleify"
	defaultLogDir             = "~/.local/share/purpleify/logs"
	defaultOutputDir          = "~/purpleify"
	defaultEndpoint           = "https://danielzfranklin.org/purpleifypdf/transform"
	defaultQuality            = "Normal"
	defaultRequestTimeout     = 120
	defaultInitialBufferBytes = 500000
	defaultMaxFrameBytes      = 256 << 20
	defaultChunkBytes         = 32 * 1024
	defaultTruncation         = TruncationError
	defaultCapacity           = 100
	defaultBackend            = BackendSQLite
	defaultRequestNamespace   = "request_data_cache"
	defaultDisabledNamespace  = "temporarily_disabled_cache"
	defaultWriteQueue         = 64
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Truncation policies for a stream that ends inside a frame.
const (
	TruncationError   = "error"
	TruncationDiscard = "discard"
)

// Correlation store backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			OutputDir: defaultOutputDir,
		},
		Transform: Transform{
			Endpoint:        defaultEndpoint,
			Quality:         defaultQuality,
			BackgroundColor: Color{R: 0x2b, G: 0x1b, B: 0x3d},
			RequestTimeout:  defaultRequestTimeout,
		},
		Decoder: Decoder{
			InitialBufferBytes: defaultInitialBufferBytes,
			MaxFrameBytes:      defaultMaxFrameBytes,
			ChunkBytes:         defaultChunkBytes,
			Truncation:         defaultTruncation,
		},
		Correlation: Correlation{
			Capacity:          defaultCapacity,
			Backend:           defaultBackend,
			RequestNamespace:  defaultRequestNamespace,
			DisabledNamespace: defaultDisabledNamespace,
			WriteQueue:        defaultWriteQueue,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
