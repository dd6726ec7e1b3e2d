package config

import (
	"fmt"
	"os"
)

// Default configuration values (production)
const (
	DefaultDomain   = "babeltalk.qzz.io"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "turn:babeltalk.qzz.io" // Optional, empty disables TURN
	DefaultTURNUser = "babeltalk"
	DefaultTURNPass = "babeltalk-secret"
	DefaultLanguage = "en"
)

// Config holds application configuration
type Config struct {
	// Domain is the rendezvous server domain
	Domain string

	// Insecure switches ws:// instead of wss:// (local development)
	Insecure bool

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	// Caller identity and caption languages
	DisplayName    string
	Language       string // language the user speaks
	TargetLanguage string // language captions are translated into
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain         string
	Insecure       bool
	STUNServer     string
	TURNServer     string
	TURNUser       string
	TURNPass       string
	ForceRelay     bool
	DisplayName    string
	Language       string
	TargetLanguage string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := firstNonEmpty(opts.Domain, os.Getenv("DOMAIN"), DefaultDomain)
	stunServer := firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN)
	turnServer := firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER"), DefaultTURN)
	turnUser := firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME"), DefaultTURNUser)
	turnPass := firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD"), DefaultTURNPass)
	language := firstNonEmpty(opts.Language, os.Getenv("CAPTION_LANGUAGE"), DefaultLanguage)
	target := firstNonEmpty(opts.TargetLanguage, os.Getenv("CAPTION_TARGET_LANGUAGE"), language)

	name := firstNonEmpty(opts.DisplayName, os.Getenv("DISPLAY_NAME"))
	if name == "" {
		if host, err := os.Hostname(); err == nil {
			name = host
		} else {
			name = "You"
		}
	}

	return &Config{
		Domain:         domain,
		Insecure:       opts.Insecure,
		STUNServer:     stunServer,
		TURNServer:     turnServer,
		TURNUser:       turnUser,
		TURNPass:       turnPass,
		ForceRelay:     opts.ForceRelay,
		DisplayName:    name,
		Language:       language,
		TargetLanguage: target,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *Config) scheme() string {
	if c.Insecure {
		return "ws"
	}
	return "wss"
}

// SignalingURL returns the websocket URL of the relay's signaling endpoint.
func (c *Config) SignalingURL() string {
	return fmt.Sprintf("%s://%s/ws", c.scheme(), c.Domain)
}

// CaptionsURL returns the websocket URL of the relay's caption endpoint.
func (c *Config) CaptionsURL() string {
	return fmt.Sprintf("%s://%s/captions", c.scheme(), c.Domain)
}

// RoomLink returns the webapp URL for a room ID
func (c *Config) RoomLink(roomID string) string {
	return fmt.Sprintf("https://%s/r/%s", c.Domain, roomID)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
