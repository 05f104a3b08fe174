package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// slogAdapter satisfies paho.Logger.
type slogAdapter struct {
	level slog.Level
}

func (a slogAdapter) Println(v ...any) {
	slog.Log(context.Background(), a.level, strings.TrimSpace(fmt.Sprintln(v...)), "component", "paho")
}

func (a slogAdapter) Printf(format string, v ...any) {
	slog.Log(context.Background(), a.level, strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "paho")
}

// RouteLogs sends Paho's error and warning output to slog. Paho's loggers are
// package globals, so this affects every client in the process.
func RouteLogs() {
	paho.CRITICAL = slogAdapter{level: slog.LevelError}
	paho.ERROR = slogAdapter{level: slog.LevelError}
	paho.WARN = slogAdapter{level: slog.LevelWarn}
}
