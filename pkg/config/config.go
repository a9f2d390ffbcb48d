package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"
)

// Config holds the configuration for the mirror agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Service configuration
	ServiceName string
	HTTPPort    int
	LogLevel    string

	// Location and time zone. An empty TimeZone means "resolve from the runtime".
	Latitude  float64
	Longitude float64
	TimeZone  string

	// Sky engine configuration
	SampleIntervalSec int
	FallbackOffset    float64
	EndBoundary       float64
	BlendMode         string
	PaletteFile       string
	SkyStateTTLMin    int

	// Sunrise/sunset collaborator
	SunSource      string
	SunAPIURL      string
	SunCacheHours  float64
	SunCalcOnError bool

	// Weather collaborator
	WeatherAPIURL      string
	WeatherAPIKey      string
	WeatherCacheMin    int
	WeatherIntervalMin int

	// Widget tray
	MaxWidgets      int
	NowPlayingTopic string
	SkyContextTopic string
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:    "localhost",
		MQTTPort:      1883,
		MQTTUser:      "",
		MQTTPassword:  "",
		MQTTClientID:  "",
		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,
		ServiceName:   "mirror-agent",
		HTTPPort:      3000,
		LogLevel:      "info",
		// Gothenburg
		Latitude:  57.6529,
		Longitude: 11.9106,
		TimeZone:  "",
		// Sky engine defaults
		SampleIntervalSec: 5,
		FallbackOffset:    3.0,
		EndBoundary:       99.5,
		BlendMode:         "lrgb",
		PaletteFile:       "",
		SkyStateTTLMin:    60,
		// Sun data defaults
		SunSource:      "api",
		SunAPIURL:      "https://api.sunrise-sunset.org/json",
		SunCacheHours:  6,
		SunCalcOnError: true,
		// Weather defaults
		WeatherAPIURL:      "https://api.openweathermap.org/data/2.5/weather",
		WeatherAPIKey:      "",
		WeatherCacheMin:    15,
		WeatherIntervalMin: 15,
		// Widget defaults
		MaxWidgets:      4,
		NowPlayingTopic: "mirror/media/now-playing",
		SkyContextTopic: "mirror/context/sky",
	}
}

// LoadFromEnv loads configuration from environment variables with MIRROR_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	if v := os.Getenv("MIRROR_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("MIRROR_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("MIRROR_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("MIRROR_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("MIRROR_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	if v := os.Getenv("MIRROR_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("MIRROR_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("MIRROR_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("MIRROR_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}

	// Service configuration
	if v := os.Getenv("MIRROR_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("MIRROR_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HTTPPort = port
		}
	}
	if v := os.Getenv("MIRROR_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	// Location
	if v := os.Getenv("MIRROR_LATITUDE"); v != "" {
		if lat, err := strconv.ParseFloat(v, 64); err == nil {
			c.Latitude = lat
		}
	}
	if v := os.Getenv("MIRROR_LONGITUDE"); v != "" {
		if lon, err := strconv.ParseFloat(v, 64); err == nil {
			c.Longitude = lon
		}
	}
	if v := os.Getenv("MIRROR_TIME_ZONE"); v != "" {
		c.TimeZone = v
	}

	// Sky engine
	if v := os.Getenv("MIRROR_SAMPLE_INTERVAL_SEC"); v != "" {
		if interval, err := strconv.Atoi(v); err == nil {
			c.SampleIntervalSec = interval
		}
	}
	if v := os.Getenv("MIRROR_FALLBACK_OFFSET"); v != "" {
		if offset, err := strconv.ParseFloat(v, 64); err == nil {
			c.FallbackOffset = offset
		}
	}
	if v := os.Getenv("MIRROR_END_BOUNDARY"); v != "" {
		if boundary, err := strconv.ParseFloat(v, 64); err == nil {
			c.EndBoundary = boundary
		}
	}
	if v := os.Getenv("MIRROR_BLEND_MODE"); v != "" {
		c.BlendMode = v
	}
	if v := os.Getenv("MIRROR_PALETTE_FILE"); v != "" {
		c.PaletteFile = v
	}
	if v := os.Getenv("MIRROR_SKY_STATE_TTL_MIN"); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil {
			c.SkyStateTTLMin = ttl
		}
	}

	// Sun data
	if v := os.Getenv("MIRROR_SUN_SOURCE"); v != "" {
		c.SunSource = v
	}
	if v := os.Getenv("MIRROR_SUN_API_URL"); v != "" {
		c.SunAPIURL = v
	}
	if v := os.Getenv("MIRROR_SUN_CACHE_HOURS"); v != "" {
		if hours, err := strconv.ParseFloat(v, 64); err == nil {
			c.SunCacheHours = hours
		}
	}
	if v := os.Getenv("MIRROR_SUNCALC_ON_ERROR"); v != "" {
		if enable, err := strconv.ParseBool(v); err == nil {
			c.SunCalcOnError = enable
		}
	}

	// Weather
	if v := os.Getenv("MIRROR_WEATHER_API_URL"); v != "" {
		c.WeatherAPIURL = v
	}
	if v := os.Getenv("MIRROR_WEATHER_API_KEY"); v != "" {
		c.WeatherAPIKey = v
	}
	if v := os.Getenv("MIRROR_WEATHER_CACHE_MIN"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil {
			c.WeatherCacheMin = minutes
		}
	}
	if v := os.Getenv("MIRROR_WEATHER_INTERVAL_MIN"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil {
			c.WeatherIntervalMin = minutes
		}
	}

	// Widgets
	if v := os.Getenv("MIRROR_MAX_WIDGETS"); v != "" {
		if max, err := strconv.Atoi(v); err == nil {
			c.MaxWidgets = max
		}
	}
	if v := os.Getenv("MIRROR_NOW_PLAYING_TOPIC"); v != "" {
		c.NowPlayingTopic = v
	}
	if v := os.Getenv("MIRROR_SKY_CONTEXT_TOPIC"); v != "" {
		c.SkyContextTopic = v
	}
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	c.RegisterFlags(pflag.CommandLine)
	pflag.Parse()
}

// RegisterFlags binds every config field to a flag on fs
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	// MQTT flags
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	fs.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	fs.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	fs.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Service flags
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	fs.IntVar(&c.HTTPPort, "http-port", c.HTTPPort, "HTTP port for the dashboard, API and health checks")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// Location flags
	fs.Float64Var(&c.Latitude, "latitude", c.Latitude, "Geographic latitude for sun times")
	fs.Float64Var(&c.Longitude, "longitude", c.Longitude, "Geographic longitude for sun times")
	fs.StringVar(&c.TimeZone, "time-zone", c.TimeZone, "IANA time zone (empty resolves from the runtime)")

	// Sky engine flags
	fs.IntVar(&c.SampleIntervalSec, "sample-interval", c.SampleIntervalSec, "Sky sampling interval in seconds")
	fs.Float64Var(&c.FallbackOffset, "fallback-offset", c.FallbackOffset, "Percent of day to offset a substituted twilight event")
	fs.Float64Var(&c.EndBoundary, "end-boundary", c.EndBoundary, "Percent of day used when an end-side event is unavailable")
	fs.StringVar(&c.BlendMode, "blend-mode", c.BlendMode, "Colour blend mode (lrgb, rgb, lab, luv, hcl)")
	fs.StringVar(&c.PaletteFile, "palette-file", c.PaletteFile, "YAML file overriding the sky colour palette")
	fs.IntVar(&c.SkyStateTTLMin, "sky-state-ttl", c.SkyStateTTLMin, "Minutes to keep the last rendered sky in Redis")

	// Sun data flags
	fs.StringVar(&c.SunSource, "sun-source", c.SunSource, "Sun times source (api, suncalc)")
	fs.StringVar(&c.SunAPIURL, "sun-api-url", c.SunAPIURL, "sunrise-sunset.org compatible endpoint")
	fs.Float64Var(&c.SunCacheHours, "sun-cache-hours", c.SunCacheHours, "Hours to cache sun times")
	fs.BoolVar(&c.SunCalcOnError, "suncalc-on-error", c.SunCalcOnError, "Compute sun times locally when the API fails")

	// Weather flags
	fs.StringVar(&c.WeatherAPIURL, "weather-api-url", c.WeatherAPIURL, "OpenWeatherMap current weather endpoint")
	fs.StringVar(&c.WeatherAPIKey, "weather-api-key", c.WeatherAPIKey, "OpenWeatherMap API key (empty disables weather)")
	fs.IntVar(&c.WeatherCacheMin, "weather-cache-min", c.WeatherCacheMin, "Minutes to cache weather reports")
	fs.IntVar(&c.WeatherIntervalMin, "weather-interval-min", c.WeatherIntervalMin, "Minutes between weather widget refreshes")

	// Widget flags
	fs.IntVar(&c.MaxWidgets, "max-widgets", c.MaxWidgets, "Maximum widgets shown in the tray")
	fs.StringVar(&c.NowPlayingTopic, "now-playing-topic", c.NowPlayingTopic, "MQTT topic carrying now-playing media")
	fs.StringVar(&c.SkyContextTopic, "sky-context-topic", c.SkyContextTopic, "MQTT topic for sky phase changes")
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("Redis port must be between 1 and 65535")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	if c.SampleIntervalSec <= 0 {
		return fmt.Errorf("sample interval must be positive")
	}
	if c.FallbackOffset < 0 || c.FallbackOffset > 25 {
		return fmt.Errorf("fallback offset must be between 0 and 25 percent")
	}
	if c.EndBoundary <= 50 || c.EndBoundary > 100 {
		return fmt.Errorf("end boundary must be between 50 and 100 percent")
	}
	if c.WeatherIntervalMin <= 0 {
		return fmt.Errorf("weather interval must be positive")
	}
	if c.MaxWidgets <= 0 {
		return fmt.Errorf("max widgets must be positive")
	}

	validSunSources := map[string]bool{
		"api":     true,
		"suncalc": true,
	}
	if !validSunSources[c.SunSource] {
		return fmt.Errorf("invalid sun source: %s (must be api or suncalc)", c.SunSource)
	}

	validBlendModes := map[string]bool{
		"lrgb": true,
		"rgb":  true,
		"lab":  true,
		"luv":  true,
		"hcl":  true,
	}
	if !validBlendModes[c.BlendMode] {
		return fmt.Errorf("invalid blend mode: %s (must be lrgb, rgb, lab, luv, or hcl)", c.BlendMode)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
