package options

import (
	"github.com/fintellect/nexus/pkg/utils/json"
	"github.com/spf13/pflag"
)

// Options is the full set of nexusd options. Every group binds to its own
// section of the config file.
type Options struct {
	ServingOptions  *ServingOptions  `json:"serving"  mapstructure:"serving"`
	StoreOptions    *StoreOptions    `json:"store"    mapstructure:"store"`
	AuthOptions     *AuthOptions     `json:"auth"     mapstructure:"auth"`
	StreamOptions   *StreamOptions   `json:"stream"   mapstructure:"stream"`
	UpstreamOptions *UpstreamOptions `json:"upstream" mapstructure:"upstream"`
	LogOptions      *LogOptions      `json:"log"      mapstructure:"log"`
}

func NewOptions() *Options {
	return &Options{
		ServingOptions:  NewServingOptions(),
		StoreOptions:    NewStoreOptions(),
		AuthOptions:     NewAuthOptions(),
		StreamOptions:   NewStreamOptions(),
		UpstreamOptions: NewUpstreamOptions(),
		LogOptions:      NewLogOptions(),
	}
}

// AddFlags registers every option group on fs.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.ServingOptions.AddFlags(fs)
	o.StoreOptions.AddFlags(fs)
	o.AuthOptions.AddFlags(fs)
	o.StreamOptions.AddFlags(fs)
	o.UpstreamOptions.AddFlags(fs)
	o.LogOptions.AddFlags(fs)
}

// Validate collects the errors of every group.
func (o *Options) Validate() []error {
	var errs []error
	errs = append(errs, o.ServingOptions.Validate()...)
	errs = append(errs, o.StoreOptions.Validate()...)
	errs = append(errs, o.StreamOptions.Validate()...)
	errs = append(errs, o.UpstreamOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	return errs
}

func (o *Options) String() string {
	// The token is never printed.
	cp := *o
	auth := *o.AuthOptions
	if auth.Token != "" {
		auth.Token = "******"
	}
	cp.AuthOptions = &auth
	data, _ := json.Marshal(cp)

	return string(data)
}
