package options

import (
	"errors"
	"net/url"
	"time"

	"github.com/spf13/pflag"
)

// StreamOptions tunes the per-conversation SSE relay.
type StreamOptions struct {
	// Heartbeat is the interval between ping events on idle streams.
	Heartbeat time.Duration `json:"heartbeat"         mapstructure:"heartbeat"`
	// SubscriberBuffer bounds the events queued for one subscriber; a
	// subscriber that falls further behind is dropped.
	SubscriberBuffer int `json:"subscriber-buffer" mapstructure:"subscriber-buffer"`
}

func NewStreamOptions() *StreamOptions {
	return &StreamOptions{
		Heartbeat:        15 * time.Second,
		SubscriberBuffer: 256,
	}
}

func (o *StreamOptions) Validate() []error {
	var errs []error
	if o.Heartbeat <= 0 {
		errs = append(errs, errors.New("stream.heartbeat must be positive"))
	}
	if o.SubscriberBuffer <= 0 {
		errs = append(errs, errors.New("stream.subscriber-buffer must be positive"))
	}
	return errs
}

func (o *StreamOptions) AddFlags(fs *pflag.FlagSet) {
	fs.DurationVar(&o.Heartbeat, "stream.heartbeat", o.Heartbeat, "Interval between SSE ping events.")
	fs.IntVar(&o.SubscriberBuffer, "stream.subscriber-buffer", o.SubscriberBuffer, "Events buffered per stream subscriber.")
}

// UpstreamOptions points at the agent backend that runs submitted turns.
type UpstreamOptions struct {
	// SubmitURL receives POSTed turns. Empty disables submission.
	SubmitURL string        `json:"submit-url" mapstructure:"submit-url"`
	Token     string        `json:"token"      mapstructure:"token"`
	Timeout   time.Duration `json:"timeout"    mapstructure:"timeout"`
}

func NewUpstreamOptions() *UpstreamOptions {
	return &UpstreamOptions{Timeout: 30 * time.Second}
}

func (o *UpstreamOptions) Validate() []error {
	var errs []error
	if o.SubmitURL != "" {
		u, err := url.Parse(o.SubmitURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, errors.New("upstream.submit-url must be an absolute URL"))
		}
	}
	if o.Timeout <= 0 {
		errs = append(errs, errors.New("upstream.timeout must be positive"))
	}
	return errs
}

func (o *UpstreamOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.SubmitURL, "upstream.submit-url", o.SubmitURL, "Agent backend endpoint that receives submitted turns.")
	fs.StringVar(&o.Token, "upstream.token", o.Token, "Bearer token sent to the agent backend.")
	fs.DurationVar(&o.Timeout, "upstream.timeout", o.Timeout, "Timeout of a forwarded submission.")
}
