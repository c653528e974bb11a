package models

// MConfig Structure
type MConfig struct {
	Name        string             `yaml:"name"`
	Host        string             `yaml:"host"`
	Port        int                `yaml:"port"`
	LogLevel    string             `yaml:"log_level"`
	Mode        string             `yaml:"mode"`
	GrpcHost    string             `yaml:"grpc_host"`
	GrpcPort    int                `yaml:"grpc_port"`
	Broker      MBrokerConfig      `yaml:"broker"`
	ScripMaster MScripMasterConfig `yaml:"scrip_master"`
	Chain       MChainConfig       `yaml:"chain"`
	Broadcast   MBroadcastConfig   `yaml:"broadcast"`
	Cache       MCacheConfig       `yaml:"cache"`
	Storage     MStorageConfig     `yaml:"storage"`
	TokenStore  MTokenStoreConfig  `yaml:"token_store"`
	Network     MNetworkConfig     `yaml:"network"`
	NATS        MNATSConfig        `yaml:"nats"`
}

// MBrokerConfig holds the SmartAPI connection settings. Secrets are only
// ever populated from the environment.
type MBrokerConfig struct {
	BaseURL           string `yaml:"base_url"`
	APIKey            string `yaml:"-"`
	ClientCode        string `yaml:"-"`
	Password          string `yaml:"-"`
	TOTPSecret        string `yaml:"-"`
	LocalIP           string `yaml:"local_ip"`
	PublicIP          string `yaml:"public_ip"`
	MACAddress        string `yaml:"mac_address"`
	RequestTimeout    int    `yaml:"timeout"`
	MaxRefreshRetries int    `yaml:"max_refresh_retries"`
	TokenTTLHours     int    `yaml:"token_ttl_hours"`
	MaxTokensPerQuote int    `yaml:"max_tokens_per_quote"`
	AutoLogin         bool   `yaml:"auto_login"`
}

type MScripMasterConfig struct {
	URL      string `yaml:"url"`
	Timeout  int    `yaml:"timeout"`
	TTLHours int    `yaml:"ttl_hours"`
	Retries  int    `yaml:"retries"`
}

type MChainConfig struct {
	Underlying     string `yaml:"underlying"`
	SpotExchange   string `yaml:"spot_exchange"`
	SpotToken      string `yaml:"spot_token"`
	VIXToken       string `yaml:"vix_token"`
	OptionExchange string `yaml:"option_exchange"`
	StrikeInterval int    `yaml:"strike_interval"`
	Window         int    `yaml:"window"`
	ExpiryWeekday  string `yaml:"expiry_weekday"`
	ExpiryCount    int    `yaml:"expiry_count"`
}

type MBroadcastConfig struct {
	MarketIntervalSeconds int `yaml:"market_interval_seconds"`
	ChainIntervalSeconds  int `yaml:"chain_interval_seconds"`
	MetricsHistory        int `yaml:"metrics_history"`
}

type MCacheConfig struct {
	DefaultTTLSeconds  int `yaml:"default_ttl_seconds"`
	CheckPeriodSeconds int `yaml:"check_period_seconds"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MTokenStoreConfig struct {
	Type     string `yaml:"type"`
	RedisURL string `yaml:"redis_url"`
	Key      string `yaml:"key"`
}

type MNetworkConfig struct {
	UserAgent string `yaml:"user_agent"`
}

type MNATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	ClientID      string `yaml:"client_id"`
	SubjectPrefix string `yaml:"subject_prefix"`
	MaxReconnects int    `yaml:"max_reconnects"`
}
