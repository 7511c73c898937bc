// Package config loads vstore configuration.
//
// The configuration is stored in vstore.json (or vstore.yaml) next to the
// binary's working directory. This package handles loading, saving, and
// validating it.
//
// # Configuration File Structure
//
//	{
//	  "name": "shop",
//	  "server": {
//	    "address": ":8080",
//	    "shutdownTimeout": "10s",
//	    "allowedOrigins": ["https://shop.example.com"]
//	  },
//	  "persist": {
//	    "backend": "redis",
//	    "key": "default",
//	    "interval": "1s",
//	    "restore": true,
//	    "redis": {"addrs": ["localhost:6379"], "ttl": "24h"}
//	  },
//	  "metrics": {"enabled": true, "path": "/metrics"},
//	  "tracing": {"enabled": false},
//	  "log": {"level": "info", "format": "text"}
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
