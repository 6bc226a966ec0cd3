package envvar

const (
	// ShmbridgeEnv is the environment variable used to determine the environment
	ShmbridgeEnv = "SHMBRIDGE_ENV"

	// ShmbridgeConfigPath is the environment variable used to override the config directory
	ShmbridgeConfigPath = "SHMBRIDGE_CONFIG_PATH"

	// ShmbridgeIPCPrefix is the environment variable used to override the shared resource name prefix
	ShmbridgeIPCPrefix = "SHMBRIDGE_IPC_PREFIX"
)
