package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/publink"
)

func main() {
	// the default url patterns include http://localhost:4200/projects/
	go StartMockProjectHost(":4200")
	time.Sleep(100 * time.Millisecond)

	checker, err := publink.New(
		publink.WithDebounceInterval(500*time.Millisecond),
		publink.WithPort(8080),
		publink.WithTitle("publink demo"),
	)
	if err != nil {
		slog.Error("failed to create checker", "error", err)
		os.Exit(1)
	}
	defer checker.Close()

	// one-shot check
	warnings, err := checker.Check(context.Background(), `
Roadmap:  http://localhost:4200/projects/public-roadmap
Budget:   http://localhost:4200/projects/budget
Payroll:  http://localhost:4200/projects/login-payroll
`)
	if err != nil {
		slog.Error("check failed", "error", err)
		os.Exit(1)
	}
	for _, w := range warnings {
		fmt.Println("warning:", w.Message)
	}

	// live session: the warning clears once the project is published
	sess, err := checker.NewSession(func(set publink.WarningSet) {
		fmt.Printf("session warnings: %d\n", len(set))
	})
	if err != nil {
		slog.Error("failed to create session", "error", err)
		os.Exit(1)
	}
	_ = sess.SetText("draft: http://localhost:4200/projects/budget")
	time.Sleep(time.Second)

	resp, err := http.Post("http://localhost:4200/publish/budget", "", nil)
	if err == nil {
		resp.Body.Close()
	}
	// after the throttle interval the next edit probes again
	time.Sleep(checker.ThrottleInterval())
	_ = sess.SetText("final: http://localhost:4200/projects/budget")
	time.Sleep(time.Second)
	sess.Close()

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   publink demo                                        ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║   and paste http://localhost:4200/projects/anything   ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := checker.Start(ctx); err != nil {
		slog.Error("publink error", "error", err)
		os.Exit(1)
	}
}
