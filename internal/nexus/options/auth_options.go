package options

import "github.com/spf13/pflag"

// AuthOptions configures bearer token authentication. An empty token falls
// back to the NEXUS_GATEWAY_TOKEN environment variable.
type AuthOptions struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Token   string `json:"token"   mapstructure:"token"`
}

func NewAuthOptions() *AuthOptions {
	return &AuthOptions{}
}

func (o *AuthOptions) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Enabled, "auth.enabled", o.Enabled, "Require a bearer token on non-loopback requests.")
	fs.StringVar(&o.Token, "auth.token", o.Token, "Expected bearer token (default $NEXUS_GATEWAY_TOKEN).")
}
