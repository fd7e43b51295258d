// Connection-string parsing applies the same prefix/default pattern
// internal/clusteropts uses for environment variables to a
// Couchbase-style connection string's query options instead, since
// this is the one place in the module that owns a literal connection
// string.
package main

import (
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// IPProtocol selects which address family bootstrap DNS resolution is
// restricted to.
type IPProtocol string

const (
	IPProtocolAny        IPProtocol = "any"
	IPProtocolForceIPv4  IPProtocol = "force_ipv4"
	IPProtocolForceIPv6  IPProtocol = "force_ipv6"
)

// TLSVerify selects certificate verification behavior for TLS
// connections.
type TLSVerify string

const (
	TLSVerifyNone TLSVerify = "none"
	TLSVerifyPeer TLSVerify = "peer"
)

// ConnectionOptions is the parsed, defaulted form of a connection
// string's recognized query options.
type ConnectionOptions struct {
	Hosts []string

	EnableTLS     bool
	EnableDNSSRV  bool
	IPProtocol    IPProtocol
	TLSVerify     TLSVerify
	UserAgentExtra string
	TrustCertificate string

	KVTimeout         time.Duration
	KVDurableTimeout  time.Duration
	QueryTimeout      time.Duration
	AnalyticsTimeout  time.Duration
	SearchTimeout     time.Duration
	ViewTimeout       time.Duration
	ManagementTimeout time.Duration
	BootstrapTimeout  time.Duration
	ConnectTimeout    time.Duration
}

// defaultConnectionOptions seeds a ConnectionOptions with every
// recognized option's documented default, so ParseConnectionString only
// needs to overwrite what the string actually specifies.
func defaultConnectionOptions() ConnectionOptions {
	return ConnectionOptions{
		EnableTLS:    false,
		EnableDNSSRV: false,
		IPProtocol:   IPProtocolAny,
		TLSVerify:    TLSVerifyPeer,
	}
}

// recognizedKeys lists every connection-string option key this parser
// understands; anything else triggers the unknown-key warning path
// instead of an error.
var recognizedKeys = map[string]bool{
	"enable_tls":         true,
	"enable_dns_srv":     true,
	"ip_protocol":        true,
	"tls_verify":         true,
	"user_agent_extra":   true,
	"trust_certificate":  true,
	"kv_timeout":         true,
	"kv_durable_timeout": true,
	"query_timeout":      true,
	"analytics_timeout":  true,
	"search_timeout":     true,
	"view_timeout":       true,
	"management_timeout": true,
	"bootstrap_timeout":  true,
	"connect_timeout":    true,
}

// ParseConnectionString parses a connection string of the form
// "couchbase://host-a,host-b?enable_tls=true&kv_timeout=4s2ms" into a
// ConnectionOptions, logging a warning (never an error) for unknown
// keys and for values that fail to parse as their expected type —
// those keys keep their default instead of aborting the parse.
func ParseConnectionString(logger *logrus.Logger, raw string) (ConnectionOptions, error) {
	opts := defaultConnectionOptions()

	u, err := url.Parse(raw)
	if err != nil {
		return opts, err
	}
	opts.Hosts = strings.Split(u.Host, ",")

	v := viper.New()
	query := u.Query()
	for key, values := range query {
		if len(values) == 0 {
			continue
		}
		v.Set(key, values[0])
	}

	for key := range query {
		if !recognizedKeys[key] {
			logger.WithField("key", key).Warn("unrecognized connection-string option, ignoring")
		}
	}

	applyBool(logger, v, "enable_tls", &opts.EnableTLS)
	applyBool(logger, v, "enable_dns_srv", &opts.EnableDNSSRV)
	applyIPProtocol(logger, v, &opts.IPProtocol)
	applyTLSVerify(logger, v, &opts.TLSVerify)

	if v.IsSet("user_agent_extra") {
		opts.UserAgentExtra = v.GetString("user_agent_extra")
	}
	if v.IsSet("trust_certificate") {
		opts.TrustCertificate = v.GetString("trust_certificate")
	}

	applyDuration(logger, v, "kv_timeout", &opts.KVTimeout)
	applyDuration(logger, v, "kv_durable_timeout", &opts.KVDurableTimeout)
	applyDuration(logger, v, "query_timeout", &opts.QueryTimeout)
	applyDuration(logger, v, "analytics_timeout", &opts.AnalyticsTimeout)
	applyDuration(logger, v, "search_timeout", &opts.SearchTimeout)
	applyDuration(logger, v, "view_timeout", &opts.ViewTimeout)
	applyDuration(logger, v, "management_timeout", &opts.ManagementTimeout)
	applyDuration(logger, v, "bootstrap_timeout", &opts.BootstrapTimeout)
	applyDuration(logger, v, "connect_timeout", &opts.ConnectTimeout)

	return opts, nil
}

func applyBool(logger *logrus.Logger, v *viper.Viper, key string, dst *bool) {
	if !v.IsSet(key) {
		return
	}
	raw := v.GetString(key)
	switch strings.ToLower(raw) {
	case "true", "1", "yes":
		*dst = true
	case "false", "0", "no":
		*dst = false
	default:
		logger.WithFields(logrus.Fields{"key": key, "value": raw}).Warn("invalid boolean connection-string option, keeping default")
	}
}

func applyIPProtocol(logger *logrus.Logger, v *viper.Viper, dst *IPProtocol) {
	if !v.IsSet("ip_protocol") {
		return
	}
	raw := IPProtocol(v.GetString("ip_protocol"))
	switch raw {
	case IPProtocolAny, IPProtocolForceIPv4, IPProtocolForceIPv6:
		*dst = raw
	default:
		logger.WithFields(logrus.Fields{"key": "ip_protocol", "value": raw}).Warn("invalid enum connection-string option, keeping default")
	}
}

func applyTLSVerify(logger *logrus.Logger, v *viper.Viper, dst *TLSVerify) {
	if !v.IsSet("tls_verify") {
		return
	}
	raw := TLSVerify(v.GetString("tls_verify"))
	switch raw {
	case TLSVerifyNone, TLSVerifyPeer:
		*dst = raw
	default:
		logger.WithFields(logrus.Fields{"key": "tls_verify", "value": raw}).Warn("invalid enum connection-string option, keeping default")
	}
}

func applyDuration(logger *logrus.Logger, v *viper.Viper, key string, dst *time.Duration) {
	if !v.IsSet(key) {
		return
	}
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		logger.WithFields(logrus.Fields{"key": key, "value": raw}).Warn("invalid duration connection-string option, keeping default")
		return
	}
	*dst = d
}
