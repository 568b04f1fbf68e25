// Package config loads runtime configuration for escrowctl.
//
// Sources, later ones win: built-in defaults, an optional JSON file named by
// -c or -config, then the -a (server address) and -t (request timeout,
// seconds) flags.
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "request_timeout": "30s"
//	}
package config
