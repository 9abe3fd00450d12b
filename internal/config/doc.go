// Package config provides configuration parsing for streamres.
//
// The configuration is stored in streamres.yaml. This package handles
// loading, defaulting, environment overrides and validation.
//
// # Configuration File Structure
//
//	server:
//	  addr: ":8080"
//	  metrics: true
//	  metrics_path: /metrics
//	log:
//	  level: info
//	  format: text
//	redis:
//	  addr: localhost:6379
//	s3:
//	  region: us-east-1
//	feeds:
//	  - name: chat
//	    kind: redis
//	    aggregate: append
//	    keep: 100
//	    initial_request: "room:lobby"
//	    options:
//	      prefix: "chat:"
//
// Feed options are kind specific and decoded with DecodeOptions into
// RedisOptions, WebsocketOptions, S3Options or SequenceOptions.
//
// # Environment
//
// STREAMRES_ADDR overrides server.addr and STREAMRES_LOG_LEVEL overrides
// log.level.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Addr:", cfg.Server.Addr)
package config
