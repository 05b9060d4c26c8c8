package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
)

// AllocatorConstructor builds the chromedp allocator context for a backend.
type AllocatorConstructor func(parent context.Context, cfg Config) (context.Context, context.CancelFunc, error)

var (
	mu       sync.RWMutex
	registry = map[string]AllocatorConstructor{}
)

func init() {
	RegisterBackend(string(BackendChromedp), execAllocator)
	RegisterBackend(string(BackendRemote), remoteAllocator)
}

// RegisterBackend registers a named allocator. Names are case-insensitive and
// registering an existing name replaces it.
func RegisterBackend(name string, ctor AllocatorConstructor) {
	if name == "" || ctor == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(name)] = ctor
}

// ListBackends returns the registered backend names, sorted.
func ListBackends() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func lookupBackend(b Backend) (AllocatorConstructor, error) {
	name := strings.ToLower(strings.TrimSpace(string(b)))
	if name == "" {
		name = string(BackendChromedp)
	}
	mu.RLock()
	ctor, ok := registry[name]
	mu.RUnlock()
	if !ok || ctor == nil {
		return nil, fmt.Errorf("browser backend %q not registered: available backends=%v", name, ListBackends())
	}
	return ctor, nil
}

func execAllocator(parent context.Context, cfg Config) (context.Context, context.CancelFunc, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
	)
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	ctx, cancel := chromedp.NewExecAllocator(parent, opts...)
	return ctx, cancel, nil
}

func remoteAllocator(parent context.Context, cfg Config) (context.Context, context.CancelFunc, error) {
	if cfg.RemoteURL == "" {
		return nil, nil, errors.New("remote backend requires a devtools websocket url")
	}
	ctx, cancel := chromedp.NewRemoteAllocator(parent, cfg.RemoteURL)
	return ctx, cancel, nil
}
