package app

import (
	"context"
	"sync"

	"github.com/mselser95/updown-bot/internal/gate"
	"github.com/mselser95/updown-bot/internal/ledger"
	"github.com/mselser95/updown-bot/internal/notify"
	"github.com/mselser95/updown-bot/internal/race"
	"github.com/mselser95/updown-bot/internal/reconcile"
	"github.com/mselser95/updown-bot/internal/session"
	"github.com/mselser95/updown-bot/internal/windows"
	"github.com/mselser95/updown-bot/pkg/config"
	"github.com/mselser95/updown-bot/pkg/healthprobe"
	"github.com/mselser95/updown-bot/pkg/httpserver"
	"github.com/mselser95/updown-bot/pkg/websocket"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	clock         *windows.Clock
	directory     *windows.Directory
	wsManager     *websocket.Manager
	priceGate     *gate.Gate
	guard         *session.Guard
	store         ledger.Store
	notifier      *notify.ConsoleNotifier
	raceEngine    *race.Engine // nil in paper mode
	reconciler    *reconcile.Reconciler
	singleWindow  string
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Options holds application options.
type Options struct {
	SingleWindow string // For debugging: trade only this window slug, then idle
}
