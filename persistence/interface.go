// persistence/interface.go
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/wfunc/triad/game"
	"github.com/wfunc/triad/models"
)

// MatchFunc runs while the match row is held exclusively. Moves appended to
// j commit together with the match; a returned error rolls both back.
type MatchFunc func(j game.Journal, m *game.Match) error

// Store 存储接口，对局读写、匹配队列、卡牌目录和玩家数据
type Store interface {
	game.Catalog

	CreateMatch(ctx context.Context, m *game.Match) error
	// LoadMatch reads a snapshot without locking.
	LoadMatch(ctx context.Context, id string) (*game.Match, error)
	// UpdateMatch locks the match, runs fn and saves the match when fn
	// changed it. The returned match is the post-fn state.
	UpdateMatch(ctx context.Context, id string, fn MatchFunc) (*game.Match, error)
	Moves(ctx context.Context, matchID string) ([]game.Move, error)
	// RecentMatches returns the newest matches userID took part in.
	RecentMatches(ctx context.Context, userID int64, limit int) ([]*game.Match, error)
	// OpenMatch returns the newest non-finished match of userID.
	OpenMatch(ctx context.Context, userID int64) (*game.Match, error)
	// ExpiredMatchIDs lists active matches whose deadline is before now.
	ExpiredMatchIDs(ctx context.Context, now time.Time, limit int) ([]string, error)

	// QueueTransaction runs fn with the queue held exclusively.
	QueueTransaction(ctx context.Context, fn func(tx QueueTx) error) error
	Dequeue(ctx context.Context, userID int64) error
	IsQueued(ctx context.Context, userID int64) (bool, error)

	CreateUser(ctx context.Context, u *models.User) error
	User(ctx context.Context, id int64) (models.User, error)
	Users(ctx context.Context, ids ...int64) (map[int64]models.User, error)
	// CommonCardIDs lists catalog ids of rarity common.
	CommonCardIDs(ctx context.Context) (chars, traps []int, err error)
	// GrantStarter adds the cards to the inventory and to the active deck,
	// creating one when the user has none.
	GrantStarter(ctx context.Context, userID int64, chars, traps []int) error
	SeedCatalog(ctx context.Context, chars []game.CharacterCard, traps []game.TrapCard) error

	Close() error
}

// QueueTx is the view of the queue inside QueueTransaction.
type QueueTx interface {
	// Enqueue adds userID if absent and locks its entry.
	Enqueue(userID int64) error
	// EarliestOther locks and returns the longest-waiting entry other than
	// userID.
	EarliestOther(userID int64) (int64, bool, error)
	Remove(userIDs ...int64) error
	// ActiveDeck returns the deck composition, creating an empty active
	// deck when the player has none.
	ActiveDeck(userID int64) (chars, traps []int, err error)
	CreateMatch(m *game.Match) error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record %w", game.ErrNotFound)
	ErrDuplicate      = fmt.Errorf("record already exists")
)
