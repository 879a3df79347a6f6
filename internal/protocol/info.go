package protocol

// InfoOptions is the immutable-after-handshake snapshot of the server's
// INFO payload. Field selection and defaulting follows
// pynats/protocol/nats.py's InfoOptions.build (a dict.get with a
// default for every optional field).
type InfoOptions struct {
	ServerID     string
	ServerName   string
	Version      string
	Headers      bool
	MaxPayload   int64
	Proto        int
	ClientID     string
	AuthRequired bool
	TLSRequired  bool
	TLSVerify    bool
	ConnectURLs  []string
	LDM          bool
	JetStream    bool
	Nonce        string
	Cluster      string
	Domain       string
}

func buildInfoOptions(opts map[string]any) InfoOptions {
	return InfoOptions{
		ServerID:     stringOpt(opts, "server_id"),
		ServerName:   stringOpt(opts, "server_name"),
		Version:      stringOpt(opts, "version"),
		Headers:      boolOpt(opts, "headers"),
		MaxPayload:   int64Opt(opts, "max_payload"),
		Proto:        int(int64Opt(opts, "proto")),
		ClientID:     stringOpt(opts, "client_id"),
		AuthRequired: boolOpt(opts, "auth_required"),
		TLSRequired:  boolOpt(opts, "tls_required"),
		TLSVerify:    boolOpt(opts, "tls_verify"),
		ConnectURLs:  stringSliceOpt(opts, "connect_urls"),
		LDM:          boolOpt(opts, "ldm"),
		JetStream:    boolOpt(opts, "jetstream"),
		Nonce:        stringOpt(opts, "nonce"),
		Cluster:      stringOpt(opts, "cluster"),
		Domain:       stringOpt(opts, "domain"),
	}
}

func stringOpt(opts map[string]any, key string) string {
	if v, ok := opts[key].(string); ok {
		return v
	}
	return ""
}

func boolOpt(opts map[string]any, key string) bool {
	if v, ok := opts[key].(bool); ok {
		return v
	}
	return false
}

// int64Opt handles the encoding/json default of decoding numbers into
// float64 when unmarshaled into map[string]any.
func int64Opt(opts map[string]any, key string) int64 {
	if v, ok := opts[key].(float64); ok {
		return int64(v)
	}
	return 0
}

func stringSliceOpt(opts map[string]any, key string) []string {
	raw, ok := opts[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
