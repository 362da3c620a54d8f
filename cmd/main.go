package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/dasdy/gridsync/cmd/gridsync"
	"github.com/dasdy/gridsync/logging"
	"gitlab.com/greyxor/slogor"
)

func main() {
	// ContextHandler adds the attributes stored with logging.AppendCtx, such as the view ID.
	slog.SetDefault(slog.New(logging.ContextHandler{
		Handler: slogor.NewHandler(os.Stderr,
			slogor.SetLevel(slog.LevelDebug),
			slogor.SetTimeFormat(time.DateTime),
			slogor.ShowSource()),
	}))

	gridsync.Execute()
}
