// Command shmctl is a command-line client for a running shmbridge worker.
// It attaches to the worker's shared memory and semaphores, sends a single
// request, and prints the response. With --shutdown it asks the worker to
// exit instead.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ekisa-team/shmbridge/internal/client"
	"github.com/ekisa-team/shmbridge/internal/env"
	"github.com/ekisa-team/shmbridge/internal/envvar"
	"github.com/ekisa-team/shmbridge/internal/ipc"
	"github.com/ekisa-team/shmbridge/internal/logger"
)

func main() {
	var (
		flagSystem   = flag.String("system", "", "System prompt (optional)")
		flagUser     = flag.String("user", "", "User prompt")
		flagStream   = flag.Bool("stream", false, "Display the response incrementally as it is generated")
		flagShutdown = flag.Bool("shutdown", false, "Ask the worker to shut down instead of sending a request")
		flagWait     = flag.Bool("wait", true, "Wait for the worker's initial ready signal before sending")
		flagPrefix   = flag.String("prefix", defaultPrefix(), "Shared resource name prefix")
	)
	flag.Parse()

	slog.SetDefault(logger.New(env.FromEnv()))

	if !*flagShutdown && *flagUser == "" {
		fmt.Fprintln(os.Stderr, "Error: --user is required unless --shutdown is given")
		os.Exit(1)
	}

	c, err := client.Dial(*flagPrefix)
	if err != nil {
		slog.Error("Failed to attach to worker", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	if *flagWait {
		c.WaitReady()
	}

	if *flagShutdown {
		if err := c.Shutdown(); err != nil {
			slog.Error("Failed to request shutdown", "error", err)
			os.Exit(1)
		}
		fmt.Println("Shutdown requested.")
		return
	}

	req := &client.Request{
		SystemPrompt: *flagSystem,
		UserPrompt:   *flagUser,
		Stream:       *flagStream,
	}

	if *flagStream {
		printed := 0
		req.OnUpdate = func(u client.Update) {
			// Each update carries the full text so far; print only the tail.
			if len(u.Text) > printed {
				fmt.Print(u.Text[printed:])
				printed = len(u.Text)
			}
		}
	}

	text, err := c.Do(req)
	if err != nil {
		slog.Error("Request failed", "error", err)
		os.Exit(1)
	}

	if *flagStream {
		fmt.Println()
	} else {
		fmt.Println(text)
	}
}

func defaultPrefix() string {
	if p := os.Getenv(envvar.ShmbridgeIPCPrefix); p != "" {
		return p
	}
	return ipc.DefaultPrefix
}
