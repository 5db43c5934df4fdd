package options

import (
	"fmt"
	"net"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

// ServingOptions configures the HTTP listener.
type ServingOptions struct {
	BindAddress     string        `json:"bind-address"     mapstructure:"bind-address"`
	BindPort        int           `json:"bind-port"        mapstructure:"bind-port"`
	Mode            string        `json:"mode"             mapstructure:"mode"`
	EnableProfiling bool          `json:"profiling"        mapstructure:"profiling"`
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

func NewServingOptions() *ServingOptions {
	return &ServingOptions{
		BindAddress:     "127.0.0.1",
		BindPort:        11790,
		Mode:            gin.ReleaseMode,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Address returns host:port.
func (o *ServingOptions) Address() string {
	return net.JoinHostPort(o.BindAddress, fmt.Sprint(o.BindPort))
}

func (o *ServingOptions) Validate() []error {
	var errs []error
	if o.BindPort < 0 || o.BindPort > 65535 {
		errs = append(errs, fmt.Errorf("--serving.bind-port %d must be between 0 and 65535", o.BindPort))
	}
	switch o.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		errs = append(errs, fmt.Errorf("--serving.mode %q must be one of debug, release, test", o.Mode))
	}
	return errs
}

func (o *ServingOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.BindAddress, "serving.bind-address", o.BindAddress, "IP address on which to serve the HTTP API.")
	fs.IntVar(&o.BindPort, "serving.bind-port", o.BindPort, "Port on which to serve the HTTP API.")
	fs.StringVar(&o.Mode, "serving.mode", o.Mode, "Gin mode: debug, release or test.")
	fs.BoolVar(&o.EnableProfiling, "serving.profiling", o.EnableProfiling, "Expose /debug/pprof handlers.")
	fs.DurationVar(&o.ShutdownTimeout, "serving.shutdown-timeout", o.ShutdownTimeout, "Grace period for in-flight requests on shutdown.")
}
