// Package server exposes named resources over HTTP.
//
// A Registry holds Feed handles. Each Feed wraps a resource whose requests
// are pushed over HTTP and whose state is served as JSON snapshots, either
// on demand or streamed over a WebSocket.
//
// # Routes
//
//	GET    /healthz
//	GET    /feeds                  list feeds with their status
//	GET    /feeds/{name}           snapshot {status,value,error,loading}
//	PUT    /feeds/{name}/request   body {"request":"..."} pushes a request
//	DELETE /feeds/{name}/request   pushes the absent request
//	POST   /feeds/{name}/reload    {"scheduled":bool}, 409 when not scheduled
//	GET    /feeds/{name}/ws        snapshot stream
//	GET    /metrics                Prometheus, when enabled
//
// # Usage
//
//	feeds := server.NewRegistry()
//	feeds.Add(server.NewFeed("ticks", "sequence", 0, load, agg))
//
//	srv := server.New(server.DefaultConfig(), feeds, server.WithLogger(logger))
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
