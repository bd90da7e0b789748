// Package sim is an in-process platform that follows a script. It is
// registered as the "sim" driver and used for dry runs and tests.
package sim

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/tradeup/internal/core/domain"
	"github.com/vietddude/tradeup/internal/infra/steam"
)

// DriverName is the name the simulator registers under.
const DriverName = "sim"

func init() {
	steam.Register(DriverName, func(cfg steam.DriverConfig) (*steam.Platform, error) {
		script, err := ParseScript(cfg.Options)
		if err != nil {
			return nil, err
		}
		s := New(script)
		return &steam.Platform{Client: s, Coordinator: s.Coordinator()}, nil
	})
}

// Script controls how the simulator answers.
type Script struct {
	// LoginResults are consumed one per LogOn. A non-zero value fails that
	// attempt with the EResult; once exhausted every logon succeeds.
	LoginResults []int
	// RequireGuard asks for a one-time code before every successful logon.
	RequireGuard bool
	// SilentLogin never answers LogOn.
	SilentLogin bool
	// SilentCoordinator never confirms the coordinator channel.
	SilentCoordinator bool
	// SilentCraft never completes a craft.
	SilentCraft bool
	// Latency delays every emitted event.
	Latency time.Duration
	// Inventory is returned by Inventory.
	Inventory []domain.InventoryItem
	// SteamID reported on logon.
	SteamID string
}

// ParseScript builds a Script from driver options:
//
//	login_results      comma separated EResult codes, 0 for success
//	require_guard      bool
//	silent_login       bool
//	silent_coordinator bool
//	silent_craft       bool
//	latency            duration
//	inventory_size     number of generated inventory items
//	steam_id           reported account id
func ParseScript(opts map[string]string) (Script, error) {
	var s Script
	var err error

	if v := opts["login_results"]; v != "" {
		for _, part := range strings.Split(v, ",") {
			code, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return s, fmt.Errorf("sim: invalid login_results %q: %w", v, err)
			}
			s.LoginResults = append(s.LoginResults, code)
		}
	}

	flags := map[string]*bool{
		"require_guard":      &s.RequireGuard,
		"silent_login":       &s.SilentLogin,
		"silent_coordinator": &s.SilentCoordinator,
		"silent_craft":       &s.SilentCraft,
	}
	for key, dst := range flags {
		if v := opts[key]; v != "" {
			if *dst, err = strconv.ParseBool(v); err != nil {
				return s, fmt.Errorf("sim: invalid %s %q: %w", key, v, err)
			}
		}
	}

	if v := opts["latency"]; v != "" {
		if s.Latency, err = time.ParseDuration(v); err != nil {
			return s, fmt.Errorf("sim: invalid latency %q: %w", v, err)
		}
	}

	if v := opts["inventory_size"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return s, fmt.Errorf("sim: invalid inventory_size %q", v)
		}
		s.Inventory = GenerateInventory(n)
	}

	s.SteamID = opts["steam_id"]
	return s, nil
}

// GenerateInventory returns n deterministic inventory items.
func GenerateInventory(n int) []domain.InventoryItem {
	items := make([]domain.InventoryItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, domain.InventoryItem{
			AssetID:    strconv.Itoa(30000000000 + i),
			DefIndex:   7 + i%5,
			PaintIndex: 300 + i,
			PaintSeed:  i * 37 % 1000,
			PaintWear:  0.07 + float64(i%10)*0.05,
			Rarity:     3,
			Quality:    4,
		})
	}
	return items
}

// Client is the simulated platform. It implements steam.Client and, through
// Coordinator, steam.GameCoordinator and steam.InventorySource.
type Client struct {
	bus    *steam.Bus
	script Script

	mu          sync.Mutex
	logons      []steam.LogOnDetails
	logoffs     int
	played      [][]uint32
	crafts      [][]string
	guardCodes  []string
	resultIndex int
	loggedOn    bool
	gcOpen      bool
}

// New creates a simulator following script.
func New(script Script) *Client {
	if script.SteamID == "" {
		script.SteamID = "76561198000000001"
	}
	return &Client{bus: steam.NewBus(), script: script}
}

// Subscribe implements steam.Subscriber.
func (c *Client) Subscribe(names ...steam.EventName) *steam.Subscription {
	return c.bus.Subscribe(names...)
}

// Emit injects an event, e.g. an unsolicited disconnect.
func (c *Client) Emit(ev steam.Event) {
	c.bus.Emit(ev)
}

// LogOn implements steam.Client.
func (c *Client) LogOn(details steam.LogOnDetails) {
	c.mu.Lock()
	c.logons = append(c.logons, details)
	result := 0
	if c.resultIndex < len(c.script.LoginResults) {
		result = c.script.LoginResults[c.resultIndex]
		c.resultIndex++
	}
	c.mu.Unlock()

	if c.script.SilentLogin {
		return
	}

	if result != 0 {
		c.later(steam.Event{Name: steam.EventError, Payload: &steam.ResultError{
			Result:  result,
			Message: fmt.Sprintf("sim: logon rejected with EResult %d", result),
		}})
		return
	}

	if c.script.RequireGuard {
		c.later(steam.Event{Name: steam.EventSteamGuard, Payload: steam.GuardChallenge{
			Respond: func(code string) {
				c.mu.Lock()
				c.guardCodes = append(c.guardCodes, code)
				c.mu.Unlock()
				c.later(c.loggedOnEvent(details.AccountName))
			},
		}})
		return
	}

	c.later(c.loggedOnEvent(details.AccountName))
}

func (c *Client) loggedOnEvent(account string) steam.Event {
	c.mu.Lock()
	c.loggedOn = true
	n := len(c.logons)
	c.mu.Unlock()

	expires := time.Now().Add(200 * 24 * time.Hour).UTC()
	return steam.Event{Name: steam.EventLoggedOn, Payload: steam.LoggedOnDetails{
		SteamID:      c.script.SteamID,
		AccountName:  account,
		RefreshToken: fmt.Sprintf("sim-refresh-%d", n),
		ExpiresAt:    &expires,
	}}
}

// LogOff implements steam.Client.
func (c *Client) LogOff() {
	c.mu.Lock()
	c.logoffs++
	c.loggedOn = false
	c.gcOpen = false
	c.mu.Unlock()
	c.later(steam.Event{Name: steam.EventDisconnected, Payload: steam.DisconnectInfo{Message: "logged off"}})
}

// GamesPlayed implements steam.Client. Launching the coordinator app opens
// the channel; an empty list closes it.
func (c *Client) GamesPlayed(appIDs []uint32) {
	c.mu.Lock()
	c.played = append(c.played, append([]uint32(nil), appIDs...))
	wasOpen := c.gcOpen
	c.gcOpen = len(appIDs) > 0
	c.mu.Unlock()

	switch {
	case len(appIDs) > 0 && !c.script.SilentCoordinator:
		c.later(steam.Event{Name: steam.EventConnectedToGC})
	case len(appIDs) == 0 && wasOpen:
		c.later(steam.Event{Name: steam.EventDisconnectedFromGC, Payload: steam.DisconnectInfo{Message: "app closed"}})
	}
}

// Coordinator returns the coordinator handle sharing this client's events.
func (c *Client) Coordinator() *Coordinator {
	return &Coordinator{c: c}
}

// Logons returns the credentials of every LogOn call.
func (c *Client) Logons() []steam.LogOnDetails {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]steam.LogOnDetails(nil), c.logons...)
}

// Logoffs returns how many times LogOff was called.
func (c *Client) Logoffs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logoffs
}

// GamesPlayedCalls returns every GamesPlayed argument.
func (c *Client) GamesPlayedCalls() [][]uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]uint32(nil), c.played...)
}

// Crafts returns every craft request.
func (c *Client) Crafts() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.crafts...)
}

// GuardCodes returns every one-time code submitted.
func (c *Client) GuardCodes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.guardCodes...)
}

func (c *Client) later(ev steam.Event) {
	if c.script.Latency <= 0 {
		go c.bus.Emit(ev)
		return
	}
	time.AfterFunc(c.script.Latency, func() { c.bus.Emit(ev) })
}

// Coordinator is the simulated coordinator channel.
type Coordinator struct {
	c *Client
}

// Subscribe implements steam.Subscriber.
func (g *Coordinator) Subscribe(names ...steam.EventName) *steam.Subscription {
	return g.c.bus.Subscribe(names...)
}

// Craft implements steam.GameCoordinator. The output item is derived from
// the first input.
func (g *Coordinator) Craft(assetIDs []string) {
	g.c.mu.Lock()
	g.c.crafts = append(g.c.crafts, append([]string(nil), assetIDs...))
	n := len(g.c.crafts)
	g.c.mu.Unlock()

	if g.c.script.SilentCraft {
		return
	}
	g.c.later(steam.Event{Name: steam.EventCraftingComplete, Payload: domain.ItemDescriptor{
		ItemID:     fmt.Sprintf("%d", 40000000000+n),
		DefIndex:   9,
		PaintIndex: 500 + n,
		PaintSeed:  n * 113 % 1000,
		PaintWear:  0.15,
		Rarity:     4,
		Quality:    4,
	}})
}

// Inventory implements steam.InventorySource.
func (g *Coordinator) Inventory(ctx context.Context) ([]domain.InventoryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]domain.InventoryItem(nil), g.c.script.Inventory...), nil
}
