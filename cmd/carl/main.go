package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"k8s.io/klog/v2"

	"opendut-carl/pkg/cmd/server"
)

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.NewCommandCarl(ctx).Execute(); err != nil {
		klog.Errorf("carl: %v", err)
		klog.Flush()
		stop()
		os.Exit(1)
	}
}
