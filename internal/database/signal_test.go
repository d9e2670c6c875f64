package database

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestSetupSignalHandler_NotCanceledInitially(t *testing.T) {
	ctx, stop := SetupSignalHandler(context.Background(), nil)
	defer stop()

	select {
	case <-ctx.Done():
		t.Error("context should not be canceled immediately")
	default:
	}
}

func TestSetupSignalHandler_StopCancels(t *testing.T) {
	ctx, stop := SetupSignalHandler(context.Background(), nil)
	stop()

	select {
	case <-ctx.Done():
	case <-time.After(100 * time.Millisecond):
		t.Error("context was not canceled by stop")
	}
}

func TestSetupSignalHandler_Callback(t *testing.T) {
	if os.Getenv("CI") == "true" {
		t.Skip("Skipping signal test in CI environment")
	}

	received := make(chan os.Signal, 1)
	ctx, stop := SetupSignalHandler(context.Background(), func(sig os.Signal) {
		received <- sig
	})
	defer stop()

	time.Sleep(10 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("failed to send signal: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not canceled after receiving signal")
	}

	select {
	case sig := <-received:
		if sig != syscall.SIGTERM {
			t.Errorf("expected SIGTERM, got %v", sig)
		}
	default:
		t.Error("callback was not called")
	}
}
