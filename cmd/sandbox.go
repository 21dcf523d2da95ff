package main

import (
	"context"
	"net"
	"strconv"

	"github.com/desertthunder/userimport/internal/server"
	"github.com/urfave/cli/v3"
)

// Sandbox serves an in-memory create-user endpoint until interrupted.
//
// Flags override the [server] section of the config file.
func (r *Runner) Sandbox(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	host, port, token := config.Server.Host, config.Server.Port, config.Server.Token
	if cmd.IsSet("host") {
		host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		port = cmd.Int("port")
	}
	if cmd.IsSet("token") {
		token = cmd.String("token")
	}
	if token == "" {
		r.logger.Warn("no token configured, the sandbox accepts any request")
	}

	handler := server.NewSandboxHandler(server.SandboxOpts{
		Path:      cmd.String("path"),
		Token:     token,
		FailFirst: cmd.Int("fail-first"),
	})
	router := server.NewSandboxRouter(handler,
		server.Recoverer(r.logger),
		server.RequestID(),
		server.RequestLogger(r.logger),
	)

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	for _, route := range handler.Routes() {
		r.writePlain("%s -> http://%s\n", route, addr)
	}

	if err := server.Serve(ctx, addr, router, r.logger); err != nil {
		return err
	}

	return r.writePlain("%d users created\n", len(handler.Users()))
}
