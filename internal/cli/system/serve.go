package system

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/julianstephens/seatwise/internal/cli"
	"github.com/julianstephens/seatwise/internal/server"
)

type ServeCmd struct {
	Addr string `help:"Listen address (overrides SEATWISE_HTTP_ADDR)."`
}

func (c *ServeCmd) Run(ctx *cli.Context) error {
	addr := c.Addr
	if addr == "" {
		addr = ctx.Config.HTTPAddr
	}

	srv := server.New(ctx.Engine, server.Options{
		RateLimit: ctx.Config.RateLimit,
		RateBurst: ctx.Config.RateBurst,
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(runCtx, addr)
}
