// Package steam defines the platform and game coordinator handles the bot
// drives. Protocol implementations live behind these interfaces and are
// selected by driver name.
package steam

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/tradeup/internal/core/domain"
)

// DefaultAppID is the application whose launch opens the coordinator channel.
const DefaultAppID uint32 = 730

// LogOnDetails are the credentials passed to LogOn.
type LogOnDetails struct {
	AccountName  string
	Password     string
	RefreshToken string
}

// LoggedOnDetails is the payload of EventLoggedOn.
type LoggedOnDetails struct {
	SteamID      string
	AccountName  string
	RefreshToken string
	AccessToken  string
	ExpiresAt    *time.Time
}

// DisconnectInfo is the payload of EventDisconnected and EventDisconnectedFromGC.
type DisconnectInfo struct {
	EResult int
	Message string
}

// GuardChallenge is the payload of EventSteamGuard. Respond submits the
// one-time code; it must be called at most once.
type GuardChallenge struct {
	Domain        string
	LastCodeWrong bool
	Respond       func(code string)
}

// ResultError is an error carrying a platform result code.
type ResultError struct {
	Result  int
	Message string
}

func (e *ResultError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("steam error: EResult %d", e.Result)
}

// EResult returns the platform result code.
func (e *ResultError) EResult() int { return e.Result }

// Subscriber attaches scoped event subscriptions.
type Subscriber interface {
	Subscribe(names ...EventName) *Subscription
}

// Client is the authenticated platform handle.
type Client interface {
	Subscriber
	LogOn(details LogOnDetails)
	LogOff()
	GamesPlayed(appIDs []uint32)
}

// GameCoordinator is the coordinator channel layered on a Client.
type GameCoordinator interface {
	Subscriber
	Craft(assetIDs []string)
}

// InventorySource is optionally implemented by a GameCoordinator that can
// list the account inventory.
type InventorySource interface {
	Inventory(ctx context.Context) ([]domain.InventoryItem, error)
}
